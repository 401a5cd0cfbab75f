package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/gaborage/go-bricks-tx/database/types"
)

// MockEngine provides a testify-based mock implementation of types.Engine.
// It is useful for driving manager code through engine failures that the
// memory engine cannot produce.
//
// Example usage:
//
//	engine := &mocks.MockEngine{}
//	session := &mocks.MockSession{}
//	engine.On("StartSession", mock.Anything).Return(session, nil)
//	session.ExpectLifecycle("s-1", errors.New("commit lost"))
type MockEngine struct {
	mock.Mock
}

var _ types.Engine = (*MockEngine)(nil)

// Collection implements types.Engine
func (m *MockEngine) Collection(name string) types.DocumentCollection {
	arguments := m.Called(name)
	if arguments.Get(0) == nil {
		return nil
	}
	return arguments.Get(0).(types.DocumentCollection)
}

// StartSession implements types.Engine
func (m *MockEngine) StartSession(ctx context.Context) (types.Session, error) {
	arguments := m.Called(ctx)
	if arguments.Get(0) == nil {
		return nil, arguments.Error(1)
	}
	return arguments.Get(0).(types.Session), arguments.Error(1)
}

// Health implements types.Engine
func (m *MockEngine) Health(ctx context.Context) error {
	arguments := m.Called(ctx)
	return arguments.Error(0)
}

// Close implements types.Engine
func (m *MockEngine) Close() error {
	arguments := m.Called()
	return arguments.Error(0)
}

// DatabaseType implements types.Engine
func (m *MockEngine) DatabaseType() string {
	arguments := m.Called()
	return arguments.String(0)
}

// MockSession provides a testify-based mock implementation of types.Session.
type MockSession struct {
	mock.Mock
}

var _ types.Session = (*MockSession)(nil)

// ID implements types.Session
func (m *MockSession) ID() string {
	arguments := m.Called()
	return arguments.String(0)
}

// StartTransaction implements types.Session
func (m *MockSession) StartTransaction(opts types.TxOptions) error {
	arguments := m.Called(opts)
	return arguments.Error(0)
}

// CommitTransaction implements types.Session
func (m *MockSession) CommitTransaction(ctx context.Context) error {
	arguments := m.Called(ctx)
	return arguments.Error(0)
}

// AbortTransaction implements types.Session
func (m *MockSession) AbortTransaction(ctx context.Context) error {
	arguments := m.Called(ctx)
	return arguments.Error(0)
}

// EndSession implements types.Session
func (m *MockSession) EndSession(ctx context.Context) {
	m.Called(ctx)
}

// Bind implements types.Session
func (m *MockSession) Bind(ctx context.Context) context.Context {
	arguments := m.Called(ctx)
	if bound, ok := arguments.Get(0).(context.Context); ok {
		return bound
	}
	return ctx
}

// Helper methods for common testing scenarios

// ExpectLifecycle sets up a session that starts successfully, commits with
// commitErr, aborts and ends cleanly.
func (m *MockSession) ExpectLifecycle(id string, commitErr error) {
	m.On("ID").Return(id).Maybe()
	m.On("StartTransaction", mock.Anything).Return(nil)
	m.On("CommitTransaction", mock.Anything).Return(commitErr).Maybe()
	m.On("AbortTransaction", mock.Anything).Return(nil).Maybe()
	m.On("EndSession", mock.Anything).Return()
	m.On("Bind", mock.Anything).Return(nil).Maybe()
}
