package memory

import (
	"context"
	"sync"

	"github.com/gaborage/go-bricks-tx/database/types"
)

type sessionKey struct{}

// txState is the private workspace of one transaction.
type txState struct {
	opts     types.TxOptions
	startSeq uint64
	snapshot map[string]map[string]storedDoc
	writes   map[string]map[string]storedDoc
}

func (tx *txState) writeSet(coll string) map[string]storedDoc {
	w, ok := tx.writes[coll]
	if !ok {
		w = make(map[string]storedDoc)
		tx.writes[coll] = w
	}
	return w
}

// Session is a memory engine session. It must not be used from more than one
// goroutine at a time; its methods still lock mu.
type Session struct {
	id     string
	engine *Engine

	mu    sync.Mutex
	tx    *txState
	ended bool
}

var _ types.Session = (*Session)(nil)

func (s *Session) ID() string {
	return s.id
}

// StartTransaction takes a snapshot of the committed state.
func (s *Session) StartTransaction(opts types.TxOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return types.ErrSessionEnded
	}
	if s.tx != nil {
		return ErrTransactionInProgress
	}
	if err := s.engine.fault(OpStartTransaction); err != nil {
		return err
	}

	s.engine.mu.RLock()
	snap, seq := s.engine.snapshotLocked()
	s.engine.mu.RUnlock()

	s.tx = &txState{
		opts:     opts,
		startSeq: seq,
		snapshot: snap,
		writes:   make(map[string]map[string]storedDoc),
	}
	return nil
}

// CommitTransaction applies the buffered writes. The transaction is finished
// whether or not the commit succeeds.
func (s *Session) CommitTransaction(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return types.ErrSessionEnded
	}
	if s.tx == nil {
		return types.ErrNoTransaction
	}
	tx := s.tx
	s.tx = nil

	if err := ctx.Err(); err != nil {
		s.engine.aborts.Add(1)
		return err
	}
	if err := s.engine.fault(OpCommit); err != nil {
		s.engine.aborts.Add(1)
		return err
	}
	if err := s.engine.commit(tx); err != nil {
		s.engine.aborts.Add(1)
		return err
	}

	s.engine.commits.Add(1)
	return nil
}

// AbortTransaction discards the buffered writes.
func (s *Session) AbortTransaction(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return types.ErrSessionEnded
	}
	if s.tx == nil {
		return types.ErrNoTransaction
	}
	s.tx = nil
	s.engine.aborts.Add(1)

	return s.engine.fault(OpAbort)
}

// EndSession releases the session, aborting an open transaction. Repeated
// calls are no-ops.
func (s *Session) EndSession(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return
	}
	if s.tx != nil {
		s.tx = nil
		s.engine.aborts.Add(1)
	}
	s.ended = true
	s.engine.ended.Add(1)
}

func (s *Session) Bind(ctx context.Context) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// InTransaction reports whether a transaction is open on the session.
func (s *Session) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx != nil
}
