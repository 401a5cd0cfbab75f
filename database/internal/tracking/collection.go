package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/gaborage/go-bricks-tx/database/types"
)

// Collection tracks every call made on the wrapped collection.
type Collection struct {
	coll types.DocumentCollection
	tc   *Context
	inst *instruments
}

var _ types.DocumentCollection = (*Collection)(nil)

func (c *Collection) Name() string {
	return c.coll.Name()
}

func (c *Collection) track(ctx context.Context, name string, filter any, start time.Time, affected int64, err error) {
	Track(ctx, c.tc, c.inst, Operation{Name: name, Collection: c.coll.Name(), Filter: filter}, start, affected, err)
}

func (c *Collection) InsertOne(ctx context.Context, document any) (any, error) {
	start := time.Now()
	id, err := c.coll.InsertOne(ctx, document)
	c.track(ctx, "insert_one", nil, start, affectedIf(err, 1), err)
	return id, err
}

func (c *Collection) InsertMany(ctx context.Context, documents []any) ([]any, error) {
	start := time.Now()
	ids, err := c.coll.InsertMany(ctx, documents)
	c.track(ctx, "insert_many", nil, start, int64(len(ids)), err)
	return ids, err
}

// FindOne is tracked when the result is first read, since that is when
// its error becomes known.
func (c *Collection) FindOne(ctx context.Context, filter any) types.DocumentResult {
	start := time.Now()
	res := c.coll.FindOne(ctx, filter)
	return &result{DocumentResult: res, onFirst: func(err error) {
		c.track(ctx, "find_one", filter, start, 0, err)
	}}
}

func (c *Collection) Find(ctx context.Context, filter any, opts *types.FindOptions) (types.DocumentCursor, error) {
	start := time.Now()
	cur, err := c.coll.Find(ctx, filter, opts)
	c.track(ctx, "find", filter, start, 0, err)
	return cur, err
}

func (c *Collection) FindOneAndUpdate(ctx context.Context, filter, update any) types.DocumentResult {
	start := time.Now()
	res := c.coll.FindOneAndUpdate(ctx, filter, update)
	return &result{DocumentResult: res, onFirst: func(err error) {
		c.track(ctx, "find_one_and_update", filter, start, affectedIf(err, 1), err)
	}}
}

func (c *Collection) UpdateMany(ctx context.Context, filter, update any) (types.DocumentUpdateResult, error) {
	start := time.Now()
	res, err := c.coll.UpdateMany(ctx, filter, update)
	var modified int64
	if res != nil {
		modified = res.ModifiedCount()
	}
	c.track(ctx, "update_many", filter, start, modified, err)
	return res, err
}

func (c *Collection) DeleteOne(ctx context.Context, filter any) (types.DocumentDeleteResult, error) {
	start := time.Now()
	res, err := c.coll.DeleteOne(ctx, filter)
	c.track(ctx, "delete_one", filter, start, deleted(res), err)
	return res, err
}

func (c *Collection) DeleteMany(ctx context.Context, filter any) (types.DocumentDeleteResult, error) {
	start := time.Now()
	res, err := c.coll.DeleteMany(ctx, filter)
	c.track(ctx, "delete_many", filter, start, deleted(res), err)
	return res, err
}

func (c *Collection) CountDocuments(ctx context.Context, filter any) (int64, error) {
	start := time.Now()
	n, err := c.coll.CountDocuments(ctx, filter)
	c.track(ctx, "count", filter, start, 0, err)
	return n, err
}

func affectedIf(err error, n int64) int64 {
	if err != nil {
		return 0
	}
	return n
}

func deleted(res types.DocumentDeleteResult) int64 {
	if res == nil {
		return 0
	}
	return res.DeletedCount()
}

// result reports the outcome of a lazily evaluated single result exactly once.
type result struct {
	types.DocumentResult
	once    sync.Once
	onFirst func(error)
}

func (r *result) Decode(v any) error {
	err := r.DocumentResult.Decode(v)
	r.once.Do(func() { r.onFirst(err) })
	return err
}

func (r *result) Err() error {
	err := r.DocumentResult.Err()
	r.once.Do(func() { r.onFirst(err) })
	return err
}
