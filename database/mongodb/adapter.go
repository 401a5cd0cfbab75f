package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/gaborage/go-bricks-tx/database/types"
)

// Collection implements types.DocumentCollection. Calls made with a context
// from Session.Bind run inside that session's transaction.
type Collection struct {
	collection *mongo.Collection
}

var _ types.DocumentCollection = (*Collection)(nil)

func (c *Collection) Name() string {
	return c.collection.Name()
}

// normalizeFilter turns a nil filter into an empty document; the driver
// rejects nil.
func normalizeFilter(filter any) any {
	if filter == nil {
		return bson.D{}
	}
	return filter
}

func (c *Collection) InsertOne(ctx context.Context, document any) (any, error) {
	res, err := c.collection.InsertOne(ctx, document)
	if err != nil {
		return nil, mapError(err)
	}
	return res.InsertedID, nil
}

func (c *Collection) InsertMany(ctx context.Context, documents []any) ([]any, error) {
	res, err := c.collection.InsertMany(ctx, documents)
	if err != nil {
		return nil, mapError(err)
	}
	return res.InsertedIDs, nil
}

func (c *Collection) FindOne(ctx context.Context, filter any) types.DocumentResult {
	return &SingleResult{result: c.collection.FindOne(ctx, normalizeFilter(filter))}
}

func (c *Collection) Find(ctx context.Context, filter any, opts *types.FindOptions) (types.DocumentCursor, error) {
	findOpts := options.Find()
	if opts != nil {
		if len(opts.Sort) > 0 {
			findOpts.SetSort(opts.Sort)
		}
		if opts.Skip != nil {
			findOpts.SetSkip(*opts.Skip)
		}
		if opts.Limit != nil {
			findOpts.SetLimit(*opts.Limit)
		}
	}

	cur, err := c.collection.Find(ctx, normalizeFilter(filter), findOpts)
	if err != nil {
		return nil, mapError(err)
	}
	return &Cursor{cursor: cur}, nil
}

func (c *Collection) FindOneAndUpdate(ctx context.Context, filter any, update any) types.DocumentResult {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	return &SingleResult{result: c.collection.FindOneAndUpdate(ctx, normalizeFilter(filter), update, opts)}
}

func (c *Collection) UpdateMany(ctx context.Context, filter any, update any) (types.DocumentUpdateResult, error) {
	res, err := c.collection.UpdateMany(ctx, normalizeFilter(filter), update)
	if err != nil {
		return nil, mapError(err)
	}
	return &UpdateResult{result: res}, nil
}

func (c *Collection) DeleteOne(ctx context.Context, filter any) (types.DocumentDeleteResult, error) {
	res, err := c.collection.DeleteOne(ctx, normalizeFilter(filter))
	if err != nil {
		return nil, mapError(err)
	}
	return &DeleteResult{result: res}, nil
}

func (c *Collection) DeleteMany(ctx context.Context, filter any) (types.DocumentDeleteResult, error) {
	res, err := c.collection.DeleteMany(ctx, normalizeFilter(filter))
	if err != nil {
		return nil, mapError(err)
	}
	return &DeleteResult{result: res}, nil
}

func (c *Collection) CountDocuments(ctx context.Context, filter any) (int64, error) {
	n, err := c.collection.CountDocuments(ctx, normalizeFilter(filter))
	if err != nil {
		return 0, mapError(err)
	}
	return n, nil
}
