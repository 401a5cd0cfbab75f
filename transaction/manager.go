// Package transaction runs units of work atomically against a storage
// engine. The Manager owns session lifecycles, TxContext carries the active
// session through service and repository layers, and Result reports the
// outcome of every transactional call without panicking.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gaborage/go-bricks-tx/database"
	"github.com/gaborage/go-bricks-tx/logger"
)

// Callback is a unit of work. ctx carries the session (see
// SessionFromContext) and the transaction deadline, if any.
type Callback[T any] func(ctx context.Context, s *Session) (T, error)

// Manager is the seam between transactional code and a storage engine.
type Manager interface {
	StartTransaction(ctx context.Context, opts Options) (*Session, error)
	CommitTransaction(ctx context.Context, s *Session) error
	AbortTransaction(ctx context.Context, s *Session) error
	EndSession(ctx context.Context, s *Session) error
	WithTransaction(ctx context.Context, fn Callback[any], opts Options) Result[any]
}

// EngineManager implements Manager on a database.Engine.
type EngineManager struct {
	engine   database.Engine
	log      logger.Logger
	defaults Options
	tel      *telemetry
	open     atomic.Int64
}

var _ Manager = (*EngineManager)(nil)

// ManagerOption configures an EngineManager.
type ManagerOption func(*EngineManager)

// WithDefaults sets the options used for fields left zero by callers.
func WithDefaults(opts Options) ManagerOption {
	return func(m *EngineManager) { m.defaults = opts }
}

// NewManager creates a manager. Metric instruments are created from the
// global meter provider at this point.
func NewManager(engine database.Engine, log logger.Logger, opts ...ManagerOption) *EngineManager {
	m := &EngineManager{
		engine:   engine,
		log:      log,
		defaults: Options{Isolation: ReadCommitted},
		tel:      newTelemetry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OpenSessions returns the number of sessions started and not yet ended.
func (m *EngineManager) OpenSessions() int64 {
	return m.open.Load()
}

func (m *EngineManager) resolve(opts Options) Options {
	if opts.Isolation == "" {
		opts.Isolation = m.defaults.Isolation
	}
	if opts.Timeout == 0 {
		opts.Timeout = m.defaults.Timeout
	}
	return opts
}

// StartTransaction acquires a session and begins a transaction with snapshot
// reads and majority writes. Engine failures are returned as ConnectionError.
func (m *EngineManager) StartTransaction(ctx context.Context, opts Options) (*Session, error) {
	opts = m.resolve(opts)

	engineSession, err := m.engine.StartSession(ctx)
	if err != nil {
		m.log.WithContext(ctx).Error().Err(err).Msg("Failed to start session")
		return nil, &ConnectionError{Err: err}
	}

	s := newSession(engineSession, opts)
	err = engineSession.StartTransaction(database.TxOptions{
		Isolation: opts.Isolation.String(),
		Timeout:   opts.Timeout,
	})
	if err != nil {
		engineSession.EndSession(context.WithoutCancel(ctx))
		m.log.WithContext(ctx).Error().Err(err).Str("session_id", s.ID()).Msg("Failed to start transaction")
		return nil, &ConnectionError{Err: err}
	}

	s.transition(StateNotStarted, StateActive)
	m.open.Add(1)
	logger.IncrementTxCounter(ctx)
	m.tel.recordStart(ctx, opts)

	m.log.WithContext(ctx).Debug().
		Str("session_id", s.ID()).
		Str("isolation", opts.Isolation.String()).
		Dur("timeout", opts.Timeout).
		Msg("Transaction started")

	return s, nil
}

// CommitTransaction commits an active transaction. A failed commit leaves
// the session aborted so it cannot be reused.
func (m *EngineManager) CommitTransaction(ctx context.Context, s *Session) error {
	if state, ok := s.transition(StateActive, StateCommitted); !ok {
		err := &InvalidSessionStateError{SessionID: s.ID(), Operation: "commit", State: state}
		m.log.WithContext(ctx).Error().Err(err).Msg("Commit rejected")
		return err
	}

	if err := s.engine.CommitTransaction(ctx); err != nil {
		s.markAborted()
		m.tel.recordAbort(ctx, s, "commit_failed")
		m.log.WithContext(ctx).Error().Err(err).Str("session_id", s.ID()).Msg("Failed to commit transaction")
		return fmt.Errorf("commit transaction %s: %w", s.ID(), err)
	}

	m.tel.recordCommit(ctx, s)
	m.log.WithContext(ctx).Debug().Str("session_id", s.ID()).Msg("Transaction committed")
	return nil
}

// AbortTransaction aborts an active transaction.
func (m *EngineManager) AbortTransaction(ctx context.Context, s *Session) error {
	return m.abort(ctx, s, "requested")
}

func (m *EngineManager) abort(ctx context.Context, s *Session, reason string) error {
	if state, ok := s.transition(StateActive, StateAborted); !ok {
		err := &InvalidSessionStateError{SessionID: s.ID(), Operation: "abort", State: state}
		m.log.WithContext(ctx).Error().Err(err).Msg("Abort rejected")
		return err
	}

	m.tel.recordAbort(ctx, s, reason)

	if err := s.engine.AbortTransaction(ctx); err != nil {
		m.log.WithContext(ctx).Error().Err(err).Str("session_id", s.ID()).Msg("Failed to abort transaction")
		return fmt.Errorf("abort transaction %s: %w", s.ID(), err)
	}

	m.log.WithContext(ctx).Debug().Str("session_id", s.ID()).Str("reason", reason).Msg("Transaction aborted")
	return nil
}

// EndSession releases the session. An active transaction is aborted by the
// engine. Ending twice returns InvalidSessionStateError.
func (m *EngineManager) EndSession(ctx context.Context, s *Session) error {
	prev, ok := s.end()
	if !ok {
		err := &InvalidSessionStateError{SessionID: s.ID(), Operation: "end", State: prev}
		m.log.WithContext(ctx).Error().Err(err).Msg("End session rejected")
		return err
	}

	if prev == StateActive {
		m.tel.recordAbort(ctx, s, "ended_active")
		m.log.WithContext(ctx).Warn().Str("session_id", s.ID()).Msg("Ending session with an open transaction")
	}

	s.engine.EndSession(ctx)
	m.open.Add(-1)
	m.tel.recordEnd(ctx)
	m.log.WithContext(ctx).Debug().Str("session_id", s.ID()).Msg("Session ended")
	return nil
}

// WithTransaction runs fn in a new transaction: commit on success, abort on
// error or panic, and always end the session. When opts.Timeout elapses
// before fn returns, the transaction is aborted with TimeoutError even if fn
// succeeded. An abort failure is logged and the original error is returned.
func (m *EngineManager) WithTransaction(ctx context.Context, fn Callback[any], opts Options) (result Result[any]) {
	opts = m.resolve(opts)

	ctx, span := m.tel.startSpan(ctx, opts)
	var s *Session
	defer func() { endSpan(span, s, result.Err) }()

	s, err := m.StartTransaction(ctx, opts)
	if err != nil {
		return Fail[any](err)
	}

	cleanupCtx := context.WithoutCancel(ctx)
	defer func() {
		if endErr := m.EndSession(cleanupCtx, s); endErr != nil {
			m.log.WithContext(ctx).Error().Err(endErr).Str("session_id", s.ID()).Msg("Failed to end session")
		}
	}()

	runCtx := ContextWithSession(ctx, s)
	cancel := context.CancelFunc(func() {})
	if opts.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, opts.Timeout)
	}
	defer cancel()

	data, err := invoke(runCtx, s, fn)
	if err == nil {
		err = runCtx.Err()
	}

	if err != nil {
		reason := "error"
		if timedOut(runCtx, err) {
			err = &TimeoutError{SessionID: s.ID(), Timeout: opts.Timeout, Err: err}
			reason = "timeout"
		} else if pe := (*PanicError)(nil); errors.As(err, &pe) {
			reason = "panic"
		}
		m.log.WithContext(ctx).Warn().Err(err).Str("session_id", s.ID()).Msg("Transaction callback failed")

		if abortErr := m.abort(cleanupCtx, s, reason); abortErr != nil {
			m.log.WithContext(ctx).Error().Err(abortErr).Str("session_id", s.ID()).
				Msg("Abort failed after callback error; returning the callback error")
		}
		return Fail[any](err)
	}

	if err := m.CommitTransaction(runCtx, s); err != nil {
		if timedOut(runCtx, err) {
			return Fail[any](&TimeoutError{SessionID: s.ID(), Timeout: opts.Timeout, Err: err})
		}
		return Fail[any](err)
	}

	return Ok(data)
}

// timedOut reports whether the transaction deadline caused err.
func timedOut(runCtx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded)
}

func invoke[T any](ctx context.Context, s *Session, fn Callback[T]) (data T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return fn(ctx, s)
}

// WithTransaction runs fn in a new transaction started by m. At most one
// Options value is used.
func WithTransaction[T any](ctx context.Context, m Manager, fn Callback[T], opts ...Options) Result[T] {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	res := m.WithTransaction(ctx, func(ctx context.Context, s *Session) (any, error) {
		return fn(ctx, s)
	}, o)
	return castResult[T](res)
}
