// Package memory provides an in-process document engine with snapshot
// isolated multi-document transactions. It backs unit tests and local
// development where no MongoDB replica set is available.
package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/gaborage/go-bricks-tx/database/types"
)

var (
	// ErrClosed is returned by every call after Close.
	ErrClosed = errors.New("memory engine closed")

	// ErrTransactionInProgress is returned when a session starts a second transaction.
	ErrTransactionInProgress = errors.New("transaction already in progress")
)

// Op identifies an engine operation for fault injection.
type Op string

const (
	OpStartSession     Op = "start_session"
	OpStartTransaction Op = "start_transaction"
	OpCommit           Op = "commit"
	OpAbort            Op = "abort"
	OpInsert           Op = "insert"
	OpFind             Op = "find"
	OpUpdate           Op = "update"
	OpDelete           Op = "delete"
	OpCount            Op = "count"
)

// storedDoc is one version of a document. A nil raw marks a deletion.
type storedDoc struct {
	raw     []byte
	version uint64
	order   uint64
}

func (d storedDoc) live() bool {
	return d.raw != nil
}

// Engine is an in-memory implementation of types.Engine.
//
// Transactions read from a snapshot taken when they start and buffer their
// writes. Commit applies the buffer atomically unless another commit touched
// one of the same documents after the snapshot, in which case the commit
// fails with types.ErrWriteConflict (first committer wins).
type Engine struct {
	mu    sync.RWMutex
	colls map[string]map[string]storedDoc
	seq   uint64
	order atomic.Uint64

	faultMu sync.Mutex
	faults  map[Op]error

	started atomic.Int64
	ended   atomic.Int64
	commits atomic.Int64
	aborts  atomic.Int64
	closed  atomic.Bool
}

var _ types.Engine = (*Engine)(nil)

// New creates an empty engine.
func New() *Engine {
	return &Engine{
		colls:  make(map[string]map[string]storedDoc),
		faults: make(map[Op]error),
	}
}

func (e *Engine) DatabaseType() string {
	return types.Memory
}

func (e *Engine) Collection(name string) types.DocumentCollection {
	return &Collection{name: name, engine: e}
}

// StartSession acquires a new session.
func (e *Engine) StartSession(ctx context.Context) (types.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if err := e.fault(OpStartSession); err != nil {
		return nil, err
	}

	e.started.Add(1)
	return &Session{id: uuid.NewString(), engine: e}, nil
}

func (e *Engine) Health(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}

func (e *Engine) Close() error {
	e.closed.Store(true)
	return nil
}

// SetFault makes every later op of the given kind fail with err. A nil err
// clears the fault.
func (e *Engine) SetFault(op Op, err error) {
	e.faultMu.Lock()
	defer e.faultMu.Unlock()

	if err == nil {
		delete(e.faults, op)
		return
	}
	e.faults[op] = err
}

// ClearFaults removes every injected fault.
func (e *Engine) ClearFaults() {
	e.faultMu.Lock()
	defer e.faultMu.Unlock()
	clear(e.faults)
}

func (e *Engine) fault(op Op) error {
	e.faultMu.Lock()
	defer e.faultMu.Unlock()
	return e.faults[op]
}

// SessionsStarted returns how many sessions were handed out.
func (e *Engine) SessionsStarted() int64 {
	return e.started.Load()
}

// SessionsEnded returns how many sessions were ended.
func (e *Engine) SessionsEnded() int64 {
	return e.ended.Load()
}

// OpenSessions returns the number of sessions started but not yet ended.
func (e *Engine) OpenSessions() int64 {
	return e.started.Load() - e.ended.Load()
}

func (e *Engine) Commits() int64 {
	return e.commits.Load()
}

func (e *Engine) Aborts() int64 {
	return e.aborts.Load()
}

// snapshotLocked copies the committed state. Caller holds e.mu.
func (e *Engine) snapshotLocked() (map[string]map[string]storedDoc, uint64) {
	snap := make(map[string]map[string]storedDoc, len(e.colls))
	for name, docs := range e.colls {
		c := make(map[string]storedDoc, len(docs))
		for k, d := range docs {
			if d.live() {
				c[k] = d
			}
		}
		snap[name] = c
	}
	return snap, e.seq
}

// applyLocked writes a buffered set of changes at a new sequence number.
// Caller holds e.mu for writing.
func (e *Engine) applyLocked(writes map[string]map[string]storedDoc) {
	e.seq++
	for name, docs := range writes {
		coll, ok := e.colls[name]
		if !ok {
			coll = make(map[string]storedDoc, len(docs))
			e.colls[name] = coll
		}
		for k, d := range docs {
			d.version = e.seq
			coll[k] = d
		}
	}
}

// commit validates and applies a transaction's write set.
func (e *Engine) commit(tx *txState) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for name, docs := range tx.writes {
		committed := e.colls[name]
		for k := range docs {
			if cur, ok := committed[k]; ok && cur.version > tx.startSeq {
				return types.ErrWriteConflict
			}
		}
	}

	e.applyLocked(tx.writes)
	return nil
}
