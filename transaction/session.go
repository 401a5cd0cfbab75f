package transaction

import (
	"context"
	"sync"
	"time"

	"github.com/gaborage/go-bricks-tx/database"
)

// State is the lifecycle position of a Session.
type State int

const (
	StateNotStarted State = iota
	StateActive
	StateCommitted
	StateAborted
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateActive:
		return "active"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Session is one transaction acquired from the storage engine. It is owned
// by the manager that started it and must not be shared between goroutines
// handling different requests.
type Session struct {
	engine    database.Session
	opts      Options
	startedAt time.Time

	mu      sync.Mutex
	state   State
	outcome State
}

func newSession(engine database.Session, opts Options) *Session {
	return &Session{
		engine:    engine,
		opts:      opts,
		startedAt: time.Now(),
		state:     StateNotStarted,
	}
}

// ID returns the engine-assigned session identifier.
func (s *Session) ID() string {
	return s.engine.ID()
}

// Options returns the options the transaction was started with.
func (s *Session) Options() Options {
	return s.opts
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Outcome returns StateCommitted or StateAborted once the transaction has
// finished, StateNotStarted before that. It survives EndSession.
func (s *Session) Outcome() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// IsActive reports whether storage work may run in the session.
func (s *Session) IsActive() bool {
	return s.State() == StateActive
}

// Bind returns a context that makes storage calls run inside the
// transaction. It fails with ExpiredSessionError unless the session is active.
func (s *Session) Bind(ctx context.Context) (context.Context, error) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	if state != StateActive {
		return nil, &ExpiredSessionError{SessionID: s.ID(), State: state}
	}
	return s.engine.Bind(ctx), nil
}

// transition moves from the required state to next. On mismatch the current
// state is returned with ok=false and nothing changes.
func (s *Session) transition(from, next State) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != from {
		return s.state, false
	}
	s.state = next
	if next == StateCommitted || next == StateAborted {
		s.outcome = next
	}
	return from, true
}

// markAborted records that a claimed commit did not take effect.
func (s *Session) markAborted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateCommitted {
		s.state = StateAborted
	}
	s.outcome = StateAborted
}

// end marks the session ended and returns the previous state. ok is false
// when it was already ended.
func (s *Session) end() (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	if prev == StateEnded {
		return prev, false
	}
	s.state = StateEnded
	return prev, true
}
