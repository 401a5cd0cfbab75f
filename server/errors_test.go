package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-tx/transaction"
)

func TestBaseAPIError(t *testing.T) {
	err := NewBaseAPIError("TEST_ERROR", "Test error message", http.StatusBadRequest)
	assert.Equal(t, "TEST_ERROR", err.ErrorCode())
	assert.Equal(t, "Test error message", err.Message())
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus())
	assert.Empty(t, err.Details())
	assert.Equal(t, "TEST_ERROR: Test error message", err.Error())

	err.WithDetails("key", "value")
	details := err.Details()
	details["other"] = 1
	assert.Len(t, err.Details(), 1, "Details returns a copy")

	var nilErr *BaseAPIError
	assert.Equal(t, "", nilErr.Error())
	assert.Equal(t, "plain", NewBaseAPIError("", "plain", http.StatusTeapot).Error())
}

func TestSpecificErrorTypes(t *testing.T) {
	tests := []struct {
		name   string
		err    IAPIError
		code   string
		status int
		msg    string
	}{
		{"not_found", NewNotFoundError("Profile"), "NOT_FOUND", http.StatusNotFound, "Profile not found"},
		{"conflict", NewConflictError("handle taken"), "CONFLICT", http.StatusConflict, "handle taken"},
		{"internal_default", NewInternalServerError(""), "INTERNAL_ERROR", http.StatusInternalServerError, "An internal error occurred"},
		{"bad_request", NewBadRequestError("bad"), "BAD_REQUEST", http.StatusBadRequest, "bad"},
		{"unavailable_default", NewServiceUnavailableError(""), "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, "Service temporarily unavailable"},
		{"too_many_default", NewTooManyRequestsError(""), "TOO_MANY_REQUESTS", http.StatusTooManyRequests, "Rate limit exceeded"},
		{"business", NewBusinessLogicError("PROFILE_INACTIVE", "profile is inactive"), "PROFILE_INACTIVE", http.StatusUnprocessableEntity, "profile is inactive"},
		{"tx_timeout_default", NewTransactionTimeoutError(""), "TRANSACTION_TIMEOUT", http.StatusServiceUnavailable, "Transaction timed out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.ErrorCode())
			assert.Equal(t, tt.status, tt.err.HTTPStatus())
			assert.Equal(t, tt.msg, tt.err.Message())
		})
	}
}

func TestTranslateError(t *testing.T) {
	timeout := &transaction.TimeoutError{SessionID: "s-1", Timeout: time.Second, Err: context.DeadlineExceeded}
	connection := &transaction.ConnectionError{Err: errors.New("no primary")}
	conflict := NewConflictError("taken")
	httpErr := echo.NewHTTPError(http.StatusForbidden)
	plain := errors.New("boom")

	t.Run("timeout", func(t *testing.T) {
		var apiErr IAPIError
		require.True(t, errors.As(translateError(fmt.Errorf("wrapped: %w", timeout)), &apiErr))
		assert.Equal(t, "TRANSACTION_TIMEOUT", apiErr.ErrorCode())
		assert.Equal(t, http.StatusServiceUnavailable, apiErr.HTTPStatus())
		assert.Contains(t, apiErr.Details()["error"], "exceeded timeout")
	})

	t.Run("connection", func(t *testing.T) {
		var apiErr IAPIError
		require.True(t, errors.As(translateError(connection), &apiErr))
		assert.Equal(t, "SERVICE_UNAVAILABLE", apiErr.ErrorCode())
		assert.Equal(t, http.StatusServiceUnavailable, apiErr.HTTPStatus())
	})

	t.Run("passthrough", func(t *testing.T) {
		assert.Same(t, conflict, translateError(conflict))
		assert.Same(t, httpErr, translateError(httpErr))
		assert.Same(t, plain, translateError(plain))
	})
}
