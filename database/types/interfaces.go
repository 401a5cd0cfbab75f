// Package types contains the storage engine contracts shared by the database
// package and its vendor implementations.
//
//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Engine is a document store that supports multi-document transactions.
// The transaction manager borrows sessions from it; collections resolve the
// session a call belongs to from the context produced by Session.Bind.
type Engine interface {
	// Collection returns a handle to the named collection.
	Collection(name string) DocumentCollection

	// StartSession acquires a new logical session from the connection pool.
	StartSession(ctx context.Context) (Session, error)

	Health(ctx context.Context) error
	Close() error

	// DatabaseType returns the vendor identifier, e.g. "mongodb".
	DatabaseType() string
}

// Session is an engine level session able to run one transaction at a time.
type Session interface {
	// ID returns the engine-assigned session identifier.
	ID() string

	StartTransaction(opts TxOptions) error
	CommitTransaction(ctx context.Context) error
	AbortTransaction(ctx context.Context) error
	EndSession(ctx context.Context)

	// Bind returns a context that routes collection calls through this session.
	Bind(ctx context.Context) context.Context
}

// TxOptions carries the settings a transaction is started with. MongoDB always
// runs transactions with snapshot read concern and majority write concern; the
// isolation level is recorded for diagnostics.
type TxOptions struct {
	Isolation string
	Timeout   time.Duration
}

// DocumentCollection defines the operations used by repositories.
type DocumentCollection interface {
	Name() string

	InsertOne(ctx context.Context, document any) (any, error)
	InsertMany(ctx context.Context, documents []any) ([]any, error)

	FindOne(ctx context.Context, filter any) DocumentResult
	Find(ctx context.Context, filter any, opts *FindOptions) (DocumentCursor, error)

	// FindOneAndUpdate applies update to the first match and returns the
	// document as it is after the update.
	FindOneAndUpdate(ctx context.Context, filter any, update any) DocumentResult
	UpdateMany(ctx context.Context, filter any, update any) (DocumentUpdateResult, error)

	DeleteOne(ctx context.Context, filter any) (DocumentDeleteResult, error)
	DeleteMany(ctx context.Context, filter any) (DocumentDeleteResult, error)

	CountDocuments(ctx context.Context, filter any) (int64, error)
}

// DocumentCursor represents a cursor for iterating over query results
type DocumentCursor interface {
	Next(ctx context.Context) bool
	Decode(val any) error
	All(ctx context.Context, results any) error
	Close(ctx context.Context) error
	Err() error
	Current() bson.Raw
}

// DocumentResult represents a single document result. Err returns
// ErrNoDocuments when nothing matched.
type DocumentResult interface {
	Decode(v any) error
	Err() error
}

// DocumentUpdateResult represents the result of an update operation
type DocumentUpdateResult interface {
	MatchedCount() int64
	ModifiedCount() int64
}

// DocumentDeleteResult represents the result of a delete operation
type DocumentDeleteResult interface {
	DeletedCount() int64
}

// FindOptions bounds and orders a Find call.
type FindOptions struct {
	Sort  bson.D
	Skip  *int64
	Limit *int64
}

// NewFindOptions returns empty find options.
func NewFindOptions() *FindOptions {
	return &FindOptions{}
}

// SetSort orders results by the given keys (1 ascending, -1 descending).
func (o *FindOptions) SetSort(sort bson.D) *FindOptions {
	o.Sort = sort
	return o
}

func (o *FindOptions) SetSkip(n int64) *FindOptions {
	o.Skip = &n
	return o
}

func (o *FindOptions) SetLimit(n int64) *FindOptions {
	o.Limit = &n
	return o
}
