// Package repository provides generic CRUD access to one collection. Every
// operation takes an optional *transaction.TxContext; when it resolves to a
// session, or the call context carries one, the operation runs inside that
// transaction.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/gaborage/go-bricks-tx/database"
	"github.com/gaborage/go-bricks-tx/logger"
	"github.com/gaborage/go-bricks-tx/transaction"
)

// Entity is implemented by pointers to stored documents. The id is stored
// under _id.
type Entity[T any] interface {
	*T
	GetID() string
	SetID(id string)
}

type base struct {
	coll       database.DocumentCollection
	collection string
	log        logger.Logger
}

// Repository gives context-aware access to documents of type T.
type Repository[T any, P Entity[T]] struct {
	base
}

// New returns a repository over the named collection of engine.
func New[T any, P Entity[T]](engine database.Engine, collection string, log logger.Logger) *Repository[T, P] {
	return &Repository[T, P]{base: base{
		coll:       engine.Collection(collection),
		collection: collection,
		log:        log,
	}}
}

// Collection returns the collection name.
func (r *Repository[T, P]) Collection() string {
	return r.collection
}

// bind resolves the session for the call and returns the context storage
// calls must use. Expired sessions fail here; the error is logged under l
// and returned unwrapped.
func (r *base) bind(ctx context.Context, tc *transaction.TxContext, l opLog) (context.Context, error) {
	s := transaction.Resolve(ctx, tc)
	if s == nil {
		return ctx, nil
	}
	bctx, err := s.Bind(ctx)
	if err != nil {
		r.logResult(ctx, l, 0, err)
		return nil, err
	}
	return bctx, nil
}

func (r *base) fail(op, ref string, err error) error {
	return &PersistenceError{Op: op, Collection: r.collection, Ref: ref, Err: err}
}

func byID(id string) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}

func orEmpty(filter any) any {
	if filter == nil {
		return bson.D{}
	}
	return filter
}

// Create inserts entity, assigning a UUID when its id is empty.
func (r *Repository[T, P]) Create(ctx context.Context, entity P, tc *transaction.TxContext) (P, error) {
	const op = "create"
	start := time.Now()

	bctx, err := r.bind(ctx, tc, opLog{op: op, id: entity.GetID(), start: start})
	if err != nil {
		return nil, err
	}
	if entity.GetID() == "" {
		entity.SetID(uuid.NewString())
	}

	_, err = r.coll.InsertOne(bctx, entity)
	if err != nil {
		err = r.fail(op, entity.GetID(), err)
	}
	r.logResult(ctx, opLog{op: op, id: entity.GetID(), start: start}, 1, err)
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// CreateMany inserts entities in order, assigning ids as Create does.
func (r *Repository[T, P]) CreateMany(ctx context.Context, entities []P, tc *transaction.TxContext) ([]P, error) {
	const op = "create_many"
	start := time.Now()

	if len(entities) == 0 {
		return []P{}, nil
	}

	bctx, err := r.bind(ctx, tc, opLog{op: op, start: start})
	if err != nil {
		return nil, err
	}

	docs := make([]any, len(entities))
	for i, e := range entities {
		if e.GetID() == "" {
			e.SetID(uuid.NewString())
		}
		docs[i] = e
	}

	_, err = r.coll.InsertMany(bctx, docs)
	if err != nil {
		err = r.fail(op, "", err)
	}
	r.logResult(ctx, opLog{op: op, start: start}, int64(len(entities)), err)
	if err != nil {
		return nil, err
	}
	return entities, nil
}

// FindByID returns the document with id, or nil when there is none.
func (r *Repository[T, P]) FindByID(ctx context.Context, id string, tc *transaction.TxContext) (P, error) {
	return r.findOne(ctx, "find_by_id", id, byID(id), tc)
}

// FindOne returns the first document matching filter, or nil when there is none.
func (r *Repository[T, P]) FindOne(ctx context.Context, filter any, tc *transaction.TxContext) (P, error) {
	return r.findOne(ctx, "find_one", "", orEmpty(filter), tc)
}

func (r *Repository[T, P]) findOne(ctx context.Context, op, id string, filter any, tc *transaction.TxContext) (P, error) {
	start := time.Now()

	bctx, err := r.bind(ctx, tc, opLog{op: op, id: id, filter: filter, start: start})
	if err != nil {
		return nil, err
	}

	out := P(new(T))
	err = r.coll.FindOne(bctx, filter).Decode(out)
	if errors.Is(err, database.ErrNoDocuments) {
		r.logResult(ctx, opLog{op: op, id: id, filter: filter, start: start}, 0, nil)
		return nil, nil
	}
	if err != nil {
		err = r.fail(op, id, err)
	}
	r.logResult(ctx, opLog{op: op, id: id, filter: filter, start: start}, 1, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Find returns every document matching filter. opts may be nil.
func (r *Repository[T, P]) Find(ctx context.Context, filter any, opts *database.FindOptions, tc *transaction.TxContext) ([]P, error) {
	const op = "find"
	start := time.Now()
	filter = orEmpty(filter)

	bctx, err := r.bind(ctx, tc, opLog{op: op, filter: filter, start: start})
	if err != nil {
		return nil, err
	}

	docs, err := r.findAll(bctx, filter, opts)
	if err != nil {
		err = r.fail(op, "", err)
	}
	r.logResult(ctx, opLog{op: op, filter: filter, start: start}, int64(len(docs)), err)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *Repository[T, P]) findAll(ctx context.Context, filter any, opts *database.FindOptions) ([]P, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := cur.Close(ctx); cerr != nil {
			r.log.WithContext(ctx).Warn().Err(cerr).Str("collection", r.collection).Msg("Failed to close cursor")
		}
	}()

	var values []T
	if err := cur.All(ctx, &values); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	out := make([]P, len(values))
	for i := range values {
		out[i] = P(&values[i])
	}
	return out, nil
}

// UpdateByID applies update to the document with id and returns it as it is
// after the update, or nil when there is no such document.
func (r *Repository[T, P]) UpdateByID(ctx context.Context, id string, update any, tc *transaction.TxContext) (P, error) {
	const op = "update_by_id"
	start := time.Now()

	bctx, err := r.bind(ctx, tc, opLog{op: op, id: id, start: start})
	if err != nil {
		return nil, err
	}

	out := P(new(T))
	err = r.coll.FindOneAndUpdate(bctx, byID(id), update).Decode(out)
	if errors.Is(err, database.ErrNoDocuments) {
		r.logResult(ctx, opLog{op: op, id: id, start: start}, 0, nil)
		return nil, nil
	}
	if err != nil {
		err = r.fail(op, id, err)
	}
	r.logResult(ctx, opLog{op: op, id: id, start: start}, 1, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateMany applies update to every match and returns the modified count.
func (r *Repository[T, P]) UpdateMany(ctx context.Context, filter, update any, tc *transaction.TxContext) (int64, error) {
	const op = "update_many"
	start := time.Now()
	filter = orEmpty(filter)

	bctx, err := r.bind(ctx, tc, opLog{op: op, filter: filter, start: start})
	if err != nil {
		return 0, err
	}

	var modified int64
	res, err := r.coll.UpdateMany(bctx, filter, update)
	if err != nil {
		err = r.fail(op, "", err)
	} else {
		modified = res.ModifiedCount()
	}
	r.logResult(ctx, opLog{op: op, filter: filter, start: start}, modified, err)
	return modified, err
}

// DeleteByID removes the document with id and reports whether it existed.
func (r *Repository[T, P]) DeleteByID(ctx context.Context, id string, tc *transaction.TxContext) (bool, error) {
	const op = "delete_by_id"
	start := time.Now()

	bctx, err := r.bind(ctx, tc, opLog{op: op, id: id, start: start})
	if err != nil {
		return false, err
	}

	var n int64
	res, err := r.coll.DeleteOne(bctx, byID(id))
	if err != nil {
		err = r.fail(op, id, err)
	} else {
		n = res.DeletedCount()
	}
	r.logResult(ctx, opLog{op: op, id: id, start: start}, n, err)
	return n > 0, err
}

// DeleteMany removes every match and returns the deleted count.
func (r *Repository[T, P]) DeleteMany(ctx context.Context, filter any, tc *transaction.TxContext) (int64, error) {
	const op = "delete_many"
	start := time.Now()
	filter = orEmpty(filter)

	bctx, err := r.bind(ctx, tc, opLog{op: op, filter: filter, start: start})
	if err != nil {
		return 0, err
	}

	var n int64
	res, err := r.coll.DeleteMany(bctx, filter)
	if err != nil {
		err = r.fail(op, "", err)
	} else {
		n = res.DeletedCount()
	}
	r.logResult(ctx, opLog{op: op, filter: filter, start: start}, n, err)
	return n, err
}

// Count returns the number of documents matching filter.
func (r *Repository[T, P]) Count(ctx context.Context, filter any, tc *transaction.TxContext) (int64, error) {
	const op = "count"
	start := time.Now()
	filter = orEmpty(filter)

	bctx, err := r.bind(ctx, tc, opLog{op: op, filter: filter, start: start})
	if err != nil {
		return 0, err
	}

	n, err := r.coll.CountDocuments(bctx, filter)
	if err != nil {
		err = r.fail(op, "", err)
		n = 0
	}
	r.logResult(ctx, opLog{op: op, filter: filter, start: start}, n, err)
	return n, err
}

// Exists reports whether any document matches filter.
func (r *Repository[T, P]) Exists(ctx context.Context, filter any, tc *transaction.TxContext) (bool, error) {
	n, err := r.Count(ctx, filter, tc)
	return n > 0, err
}
