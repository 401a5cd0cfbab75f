package transaction_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-tx/database"
	"github.com/gaborage/go-bricks-tx/logger"
	"github.com/gaborage/go-bricks-tx/testing/mocks"
	"github.com/gaborage/go-bricks-tx/transaction"
)

func TestStartTransactionPassesOptionsToEngine(t *testing.T) {
	engine := &mocks.MockEngine{}
	session := &mocks.MockSession{}
	engine.On("StartSession", mock.Anything).Return(session, nil)
	session.On("ID").Return("s-1").Maybe()
	session.On("StartTransaction", database.TxOptions{Isolation: "serializable", Timeout: 2 * time.Second}).Return(nil)
	session.On("AbortTransaction", mock.Anything).Return(nil)
	session.On("EndSession", mock.Anything).Return()

	mgr := transaction.NewManager(engine, logger.Nop())
	s, err := mgr.StartTransaction(context.Background(), transaction.Options{Isolation: transaction.Serializable, Timeout: 2 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "s-1", s.ID())

	require.NoError(t, mgr.AbortTransaction(context.Background(), s))
	require.NoError(t, mgr.EndSession(context.Background(), s))

	engine.AssertExpectations(t)
	session.AssertExpectations(t)
}

func TestCommitFailureStillEndsSession(t *testing.T) {
	engine := &mocks.MockEngine{}
	session := &mocks.MockSession{}
	commitErr := errors.New("commit lost")
	engine.On("StartSession", mock.Anything).Return(session, nil)
	session.ExpectLifecycle("s-2", commitErr)

	mgr := transaction.NewManager(engine, logger.Nop())
	res := mgr.WithTransaction(context.Background(), func(context.Context, *transaction.Session) (any, error) {
		return "done", nil
	}, transaction.Options{})

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, commitErr)
	assert.Equal(t, int64(0), mgr.OpenSessions())
	session.AssertCalled(t, "EndSession", mock.Anything)
	session.AssertNotCalled(t, "AbortTransaction", mock.Anything)
}

func TestAbortErrorIsReturnedFromManualAbort(t *testing.T) {
	engine := &mocks.MockEngine{}
	session := &mocks.MockSession{}
	abortErr := errors.New("abort lost")
	engine.On("StartSession", mock.Anything).Return(session, nil)
	session.On("ID").Return("s-3").Maybe()
	session.On("StartTransaction", mock.Anything).Return(nil)
	session.On("AbortTransaction", mock.Anything).Return(abortErr)
	session.On("EndSession", mock.Anything).Return()

	mgr := transaction.NewManager(engine, logger.Nop())
	s, err := mgr.StartTransaction(context.Background(), transaction.Options{})
	require.NoError(t, err)

	err = mgr.AbortTransaction(context.Background(), s)
	assert.ErrorIs(t, err, abortErr)
	assert.Equal(t, transaction.StateAborted, s.State())

	err = mgr.AbortTransaction(context.Background(), s)
	assert.ErrorIs(t, err, transaction.ErrInvalidSessionState)

	require.NoError(t, mgr.EndSession(context.Background(), s))
}

func TestManagerMockRunsCallback(t *testing.T) {
	mgr := &mocks.MockTransactionManager{}
	opts := transaction.Options{Isolation: transaction.RepeatableRead, Timeout: time.Second}
	mgr.ExpectWithTransactionRun(opts)

	res := transaction.WithTransaction(context.Background(), mgr, func(_ context.Context, s *transaction.Session) (string, error) {
		assert.Nil(t, s)
		return "ran", nil
	}, opts)

	require.True(t, res.Success)
	assert.Equal(t, "ran", res.Data)
	mgr.AssertExpectations(t)
}
