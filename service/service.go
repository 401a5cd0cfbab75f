// Package service provides the orchestration layer business services embed.
// Its helpers run a unit of work in a transaction, joining the one already
// attached to the context when there is one.
package service

import (
	"context"

	"github.com/gaborage/go-bricks-tx/logger"
	"github.com/gaborage/go-bricks-tx/transaction"
)

// Compensation undoes the effect of a completed step. It runs inside the
// same, still active, transaction.
type Compensation func(ctx context.Context, s *transaction.Session) error

// Base carries the manager and logger shared by a service's operations.
type Base struct {
	manager transaction.Manager
	log     logger.Logger
}

// NewBase creates a Base.
func NewBase(manager transaction.Manager, log logger.Logger) *Base {
	return &Base{manager: manager, log: log}
}

// Manager returns the transaction manager.
func (b *Base) Manager() transaction.Manager {
	return b.manager
}

// Logger returns the service logger.
func (b *Base) Logger() logger.Logger {
	return b.log
}

// ExecuteInTransaction runs fn in a transaction. When ctx already carries an
// active session fn joins it and the owner of that session decides the
// outcome. A joined session that is no longer active fails with
// ExpiredSessionError without calling fn.
func ExecuteInTransaction[T any](ctx context.Context, b *Base, fn transaction.Callback[T], opts ...transaction.Options) transaction.Result[T] {
	if s := transaction.SessionFromContext(ctx); s != nil {
		if !s.IsActive() {
			return transaction.Fail[T](&transaction.ExpiredSessionError{SessionID: s.ID(), State: s.State()})
		}
		b.log.WithContext(ctx).Debug().Str("session_id", s.ID()).Msg("Joining active transaction")

		data, err := call(ctx, s, fn)
		if err != nil {
			return transaction.Fail[T](err)
		}
		return transaction.Ok(data)
	}

	return transaction.WithTransaction(ctx, b.manager, fn, opts...)
}

// ExecuteMultipleInTransaction runs ops in order in one transaction. The
// first failure stops the batch and fails the whole transaction.
func ExecuteMultipleInTransaction[T any](ctx context.Context, b *Base, ops []transaction.Callback[T], opts ...transaction.Options) transaction.Result[[]T] {
	return ExecuteInTransaction(ctx, b, func(ctx context.Context, s *transaction.Session) ([]T, error) {
		results := make([]T, 0, len(ops))
		for i, op := range ops {
			v, err := call(ctx, s, op)
			if err != nil {
				b.log.WithContext(ctx).Warn().Err(err).Int("step", i).Str("session_id", s.ID()).Msg("Batch step failed")
				return nil, err
			}
			results = append(results, v)
		}
		return results, nil
	}, opts...)
}

// ExecuteWithRollback runs ops in order in one transaction. When op k fails,
// compensations[k-1] down to compensations[0] run before the error is
// returned; nil or missing entries are skipped. A failing compensation is
// logged and the remaining ones still run. The result carries the error of
// the failed op.
func ExecuteWithRollback[T any](ctx context.Context, b *Base, ops []transaction.Callback[T], compensations []Compensation, opts ...transaction.Options) transaction.Result[[]T] {
	return ExecuteInTransaction(ctx, b, func(ctx context.Context, s *transaction.Session) ([]T, error) {
		results := make([]T, 0, len(ops))
		for k, op := range ops {
			v, err := call(ctx, s, op)
			if err != nil {
				b.log.WithContext(ctx).Warn().Err(err).Int("step", k).Str("session_id", s.ID()).
					Msg("Step failed, running compensations")
				b.compensate(ctx, s, compensations, k)
				return nil, err
			}
			results = append(results, v)
		}
		return results, nil
	}, opts...)
}

// compensate runs compensations for the steps before failed, newest first.
// They get a context without the transaction deadline, so they still run
// after a timeout.
func (b *Base) compensate(ctx context.Context, s *transaction.Session, compensations []Compensation, failed int) {
	ctx = context.WithoutCancel(ctx)
	for i := failed - 1; i >= 0; i-- {
		if i >= len(compensations) || compensations[i] == nil {
			continue
		}
		_, err := call(ctx, s, func(ctx context.Context, s *transaction.Session) (struct{}, error) {
			return struct{}{}, compensations[i](ctx, s)
		})
		if err != nil {
			cerr := &transaction.CompensationError{Index: i, Err: err}
			b.log.WithContext(ctx).Error().Err(cerr).Int("compensation", i).Str("session_id", s.ID()).
				Msg("Compensation failed")
		}
	}
}

func call[T any](ctx context.Context, s *transaction.Session, fn transaction.Callback[T]) (data T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &transaction.PanicError{Value: r}
		}
	}()
	return fn(ctx, s)
}
