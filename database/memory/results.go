package memory

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/gaborage/go-bricks-tx/database/types"
)

type singleResult struct {
	raw bson.Raw
	err error
}

func (r *singleResult) Decode(v any) error {
	if r.err != nil {
		return r.err
	}
	return bson.Unmarshal(r.raw, v)
}

func (r *singleResult) Err() error {
	return r.err
}

// cursor iterates a result set materialized at query time.
type cursor struct {
	docs   []bson.Raw
	pos    int
	closed bool
}

var _ types.DocumentCursor = (*cursor)(nil)

func (c *cursor) Next(_ context.Context) bool {
	if c.closed || c.pos >= len(c.docs) {
		return false
	}
	c.pos++
	return true
}

func (c *cursor) Current() bson.Raw {
	if c.pos == 0 || c.pos > len(c.docs) {
		return nil
	}
	return c.docs[c.pos-1]
}

func (c *cursor) Decode(val any) error {
	cur := c.Current()
	if cur == nil {
		return errors.New("cursor is not positioned on a document")
	}
	return bson.Unmarshal(cur, val)
}

// All decodes the remaining documents into results, which must be a pointer
// to a slice, and closes the cursor.
func (c *cursor) All(ctx context.Context, results any) error {
	rv := reflect.ValueOf(results)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("results argument must be a pointer to a slice, got %T", results)
	}

	slice := rv.Elem().Slice(0, 0)
	elemType := slice.Type().Elem()
	for c.pos < len(c.docs) {
		elem := reflect.New(elemType)
		if err := bson.Unmarshal(c.docs[c.pos], elem.Interface()); err != nil {
			return err
		}
		slice = reflect.Append(slice, elem.Elem())
		c.pos++
	}
	rv.Elem().Set(slice)

	return c.Close(ctx)
}

func (c *cursor) Close(_ context.Context) error {
	c.closed = true
	return nil
}

func (c *cursor) Err() error {
	return nil
}

type updateResult struct {
	matched  int64
	modified int64
}

func (r *updateResult) MatchedCount() int64 {
	return r.matched
}

func (r *updateResult) ModifiedCount() int64 {
	return r.modified
}

type deleteResult struct {
	deleted int64
}

func (r *deleteResult) DeletedCount() int64 {
	return r.deleted
}
