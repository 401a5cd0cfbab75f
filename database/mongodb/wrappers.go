package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/gaborage/go-bricks-tx/database/types"
)

const writeConflictCode = 112

// mapError translates driver errors into the engine-neutral sentinels while
// keeping the driver error in the chain.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return types.ErrNoDocuments
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %w", types.ErrDuplicateKey, err)
	case isWriteConflict(err):
		return fmt.Errorf("%w: %w", types.ErrWriteConflict, err)
	default:
		return err
	}
}

func isWriteConflict(err error) bool {
	var se mongo.ServerError
	if !errors.As(err, &se) {
		return false
	}
	return se.HasErrorCode(writeConflictCode) || se.HasErrorLabel("TransientTransactionError")
}

// Cursor wraps mongo.Cursor to implement DocumentCursor interface
type Cursor struct {
	cursor *mongo.Cursor
}

var _ types.DocumentCursor = (*Cursor)(nil)

func (c *Cursor) Next(ctx context.Context) bool {
	return c.cursor.Next(ctx)
}

func (c *Cursor) Decode(val any) error {
	return c.cursor.Decode(val)
}

func (c *Cursor) All(ctx context.Context, results any) error {
	return mapError(c.cursor.All(ctx, results))
}

func (c *Cursor) Close(ctx context.Context) error {
	return c.cursor.Close(ctx)
}

func (c *Cursor) Err() error {
	return mapError(c.cursor.Err())
}

func (c *Cursor) Current() bson.Raw {
	return c.cursor.Current
}

// SingleResult wraps mongo.SingleResult to implement DocumentResult interface
type SingleResult struct {
	result *mongo.SingleResult
}

var _ types.DocumentResult = (*SingleResult)(nil)

func (r *SingleResult) Decode(v any) error {
	return mapError(r.result.Decode(v))
}

func (r *SingleResult) Err() error {
	return mapError(r.result.Err())
}

// UpdateResult wraps mongo.UpdateResult to implement DocumentUpdateResult interface
type UpdateResult struct {
	result *mongo.UpdateResult
}

var _ types.DocumentUpdateResult = (*UpdateResult)(nil)

func (r *UpdateResult) MatchedCount() int64 {
	return r.result.MatchedCount
}

func (r *UpdateResult) ModifiedCount() int64 {
	return r.result.ModifiedCount
}

// DeleteResult wraps mongo.DeleteResult to implement DocumentDeleteResult interface
type DeleteResult struct {
	result *mongo.DeleteResult
}

var _ types.DocumentDeleteResult = (*DeleteResult)(nil)

func (r *DeleteResult) DeletedCount() int64 {
	return r.result.DeletedCount
}
