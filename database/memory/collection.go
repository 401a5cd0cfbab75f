package memory

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/gaborage/go-bricks-tx/database/types"
)

// Collection is a named set of documents inside an Engine.
type Collection struct {
	name   string
	engine *Engine
}

var _ types.DocumentCollection = (*Collection)(nil)

func (c *Collection) Name() string {
	return c.name
}

type entry struct {
	key string
	doc storedDoc
}

// view is the set of documents an operation sees plus the writes it makes.
type view struct {
	base   map[string]storedDoc
	writes map[string]storedDoc
}

func (v *view) get(key string) (storedDoc, bool) {
	if d, ok := v.writes[key]; ok {
		return d, d.live()
	}
	d, ok := v.base[key]
	return d, ok && d.live()
}

// entries returns live documents in insertion order.
func (v *view) entries() []entry {
	out := make([]entry, 0, len(v.base)+len(v.writes))
	for k, d := range v.base {
		if _, shadowed := v.writes[k]; shadowed || !d.live() {
			continue
		}
		out = append(out, entry{key: k, doc: d})
	}
	for k, d := range v.writes {
		if d.live() {
			out = append(out, entry{key: k, doc: d})
		}
	}
	slices.SortFunc(out, func(a, b entry) int {
		switch {
		case a.doc.order < b.doc.order:
			return -1
		case a.doc.order > b.doc.order:
			return 1
		}
		return 0
	})
	return out
}

func (v *view) matching(filter bson.Raw) ([]entry, error) {
	var out []entry
	for _, e := range v.entries() {
		ok, err := matches(e.doc.raw, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (v *view) put(key string, raw []byte, order uint64) {
	v.writes[key] = storedDoc{raw: raw, order: order}
}

func (v *view) remove(e entry) {
	v.writes[e.key] = storedDoc{order: e.doc.order}
}

// run executes fn against the transaction bound to ctx, or directly against
// committed state when no transaction is active.
func (c *Collection) run(ctx context.Context, op Op, fn func(v *view) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.engine.closed.Load() {
		return ErrClosed
	}
	if err := c.engine.fault(op); err != nil {
		return err
	}

	if sess, ok := ctx.Value(sessionKey{}).(*Session); ok && sess.engine == c.engine {
		sess.mu.Lock()
		defer sess.mu.Unlock()

		if sess.ended {
			return types.ErrSessionEnded
		}
		if sess.tx != nil {
			return fn(&view{
				base:   sess.tx.snapshot[c.name],
				writes: sess.tx.writeSet(c.name),
			})
		}
	}

	c.engine.mu.Lock()
	defer c.engine.mu.Unlock()

	v := &view{
		base:   c.engine.colls[c.name],
		writes: make(map[string]storedDoc),
	}
	if err := fn(v); err != nil {
		return err
	}
	if len(v.writes) > 0 {
		c.engine.applyLocked(map[string]map[string]storedDoc{c.name: v.writes})
	}
	return nil
}

func (c *Collection) insert(v *view, document any) (any, error) {
	raw, id, key, err := prepareInsert(document)
	if err != nil {
		return nil, err
	}
	if _, exists := v.get(key); exists {
		return nil, fmt.Errorf("%w: _id %v in %s", types.ErrDuplicateKey, id, c.name)
	}
	v.put(key, raw, c.engine.order.Add(1))
	return id, nil
}

// InsertOne stores document and returns its _id, generating an ObjectID when
// the document has none.
func (c *Collection) InsertOne(ctx context.Context, document any) (any, error) {
	var id any
	err := c.run(ctx, OpInsert, func(v *view) error {
		var err error
		id, err = c.insert(v, document)
		return err
	})
	if err != nil {
		return nil, err
	}
	return id, nil
}

// InsertMany stores all documents or none of them.
func (c *Collection) InsertMany(ctx context.Context, documents []any) ([]any, error) {
	ids := make([]any, 0, len(documents))
	err := c.run(ctx, OpInsert, func(v *view) error {
		for _, doc := range documents {
			id, err := c.insert(v, doc)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *Collection) FindOne(ctx context.Context, filter any) types.DocumentResult {
	f, err := toRaw(filter)
	if err != nil {
		return &singleResult{err: err}
	}

	var found []byte
	err = c.run(ctx, OpFind, func(v *view) error {
		hits, err := v.matching(f)
		if err != nil {
			return err
		}
		if len(hits) > 0 {
			found = hits[0].doc.raw
		}
		return nil
	})
	if err != nil {
		return &singleResult{err: err}
	}
	if found == nil {
		return &singleResult{err: types.ErrNoDocuments}
	}
	return &singleResult{raw: found}
}

func (c *Collection) Find(ctx context.Context, filter any, opts *types.FindOptions) (types.DocumentCursor, error) {
	f, err := toRaw(filter)
	if err != nil {
		return nil, err
	}

	var docs []bson.Raw
	err = c.run(ctx, OpFind, func(v *view) error {
		hits, err := v.matching(f)
		if err != nil {
			return err
		}
		docs = make([]bson.Raw, len(hits))
		for i, h := range hits {
			docs[i] = h.doc.raw
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &cursor{docs: applyFindOptions(docs, opts)}, nil
}

func (c *Collection) FindOneAndUpdate(ctx context.Context, filter any, update any) types.DocumentResult {
	f, err := toRaw(filter)
	if err != nil {
		return &singleResult{err: err}
	}
	u, err := toRaw(update)
	if err != nil {
		return &singleResult{err: err}
	}

	var updated []byte
	err = c.run(ctx, OpUpdate, func(v *view) error {
		hits, err := v.matching(f)
		if err != nil || len(hits) == 0 {
			return err
		}
		updated, err = applyUpdate(hits[0].doc.raw, u)
		if err != nil {
			return err
		}
		v.put(hits[0].key, updated, hits[0].doc.order)
		return nil
	})
	if err != nil {
		return &singleResult{err: err}
	}
	if updated == nil {
		return &singleResult{err: types.ErrNoDocuments}
	}
	return &singleResult{raw: updated}
}

func (c *Collection) UpdateMany(ctx context.Context, filter any, update any) (types.DocumentUpdateResult, error) {
	f, err := toRaw(filter)
	if err != nil {
		return nil, err
	}
	u, err := toRaw(update)
	if err != nil {
		return nil, err
	}

	res := &updateResult{}
	err = c.run(ctx, OpUpdate, func(v *view) error {
		hits, err := v.matching(f)
		if err != nil {
			return err
		}
		for _, h := range hits {
			updated, err := applyUpdate(h.doc.raw, u)
			if err != nil {
				return err
			}
			res.matched++
			if !bytes.Equal(updated, h.doc.raw) {
				res.modified++
				v.put(h.key, updated, h.doc.order)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Collection) DeleteOne(ctx context.Context, filter any) (types.DocumentDeleteResult, error) {
	return c.delete(ctx, filter, 1)
}

func (c *Collection) DeleteMany(ctx context.Context, filter any) (types.DocumentDeleteResult, error) {
	return c.delete(ctx, filter, 0)
}

// delete removes up to limit matches; zero means no limit.
func (c *Collection) delete(ctx context.Context, filter any, limit int) (types.DocumentDeleteResult, error) {
	f, err := toRaw(filter)
	if err != nil {
		return nil, err
	}

	res := &deleteResult{}
	err = c.run(ctx, OpDelete, func(v *view) error {
		hits, err := v.matching(f)
		if err != nil {
			return err
		}
		if limit > 0 && len(hits) > limit {
			hits = hits[:limit]
		}
		for _, h := range hits {
			v.remove(h)
			res.deleted++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Collection) CountDocuments(ctx context.Context, filter any) (int64, error) {
	f, err := toRaw(filter)
	if err != nil {
		return 0, err
	}

	var n int64
	err = c.run(ctx, OpCount, func(v *view) error {
		hits, err := v.matching(f)
		n = int64(len(hits))
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
