package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/gaborage/go-bricks-tx/transaction"
)

// MockTransactionManager provides a testify-based mock implementation of
// transaction.Manager.
//
// Example usage:
//
//	mgr := &mocks.MockTransactionManager{}
//	mgr.ExpectWithTransactionRun(transaction.Options{Isolation: transaction.Serializable, Timeout: time.Second})
//
//	// Code under test calls mgr.WithTransaction; the callback runs with a nil session.
//	mgr.AssertExpectations(t)
type MockTransactionManager struct {
	mock.Mock
}

var _ transaction.Manager = (*MockTransactionManager)(nil)

// StartTransaction implements transaction.Manager
func (m *MockTransactionManager) StartTransaction(ctx context.Context, opts transaction.Options) (*transaction.Session, error) {
	arguments := m.Called(ctx, opts)
	if arguments.Get(0) == nil {
		return nil, arguments.Error(1)
	}
	return arguments.Get(0).(*transaction.Session), arguments.Error(1)
}

// CommitTransaction implements transaction.Manager
func (m *MockTransactionManager) CommitTransaction(ctx context.Context, s *transaction.Session) error {
	arguments := m.Called(ctx, s)
	return arguments.Error(0)
}

// AbortTransaction implements transaction.Manager
func (m *MockTransactionManager) AbortTransaction(ctx context.Context, s *transaction.Session) error {
	arguments := m.Called(ctx, s)
	return arguments.Error(0)
}

// EndSession implements transaction.Manager
func (m *MockTransactionManager) EndSession(ctx context.Context, s *transaction.Session) error {
	arguments := m.Called(ctx, s)
	return arguments.Error(0)
}

// WithTransaction implements transaction.Manager. The configured return value
// is either a transaction.Result[any] or a function computing one from the
// call arguments.
func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn transaction.Callback[any], opts transaction.Options) transaction.Result[any] {
	arguments := m.Called(ctx, fn, opts)
	switch ret := arguments.Get(0).(type) {
	case func(context.Context, transaction.Callback[any], transaction.Options) transaction.Result[any]:
		return ret(ctx, fn, opts)
	case transaction.Result[any]:
		return ret
	default:
		return transaction.Result[any]{}
	}
}

// Helper methods for common testing scenarios

// ExpectWithTransactionRun expects a WithTransaction call with opts and runs
// the callback with a nil session, returning its outcome.
func (m *MockTransactionManager) ExpectWithTransactionRun(opts transaction.Options) *mock.Call {
	return m.On("WithTransaction", mock.Anything, mock.Anything, opts).Return(
		func(ctx context.Context, fn transaction.Callback[any], _ transaction.Options) transaction.Result[any] {
			data, err := fn(ctx, nil)
			if err != nil {
				return transaction.Fail[any](err)
			}
			return transaction.Ok(data)
		})
}

// ExpectWithTransactionFailure expects a WithTransaction call that fails with
// err without running the callback.
func (m *MockTransactionManager) ExpectWithTransactionFailure(err error) *mock.Call {
	return m.On("WithTransaction", mock.Anything, mock.Anything, mock.Anything).Return(transaction.Fail[any](err))
}
