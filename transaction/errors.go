package transaction

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors matched through errors.Is by the typed errors below.
var (
	ErrConnection          = errors.New("storage engine unreachable")
	ErrInvalidSessionState = errors.New("invalid session state")
	ErrExpiredSession      = errors.New("session expired")
	ErrTimeout             = errors.New("transaction timed out")
	ErrCompensation        = errors.New("compensation failed")
)

// ConnectionError reports that a session or transaction could not be
// acquired from the storage engine.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot start transaction: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// InvalidSessionStateError is returned when commit, abort or end is called on
// a session that is not in a state allowing it.
type InvalidSessionStateError struct {
	SessionID string
	Operation string
	State     State
}

func (e *InvalidSessionStateError) Error() string {
	return fmt.Sprintf("cannot %s session %s in state %s", e.Operation, e.SessionID, e.State)
}

func (e *InvalidSessionStateError) Is(target error) bool { return target == ErrInvalidSessionState }

// ExpiredSessionError is returned when a session is used for storage work
// after it was committed, aborted or ended.
type ExpiredSessionError struct {
	SessionID string
	State     State
}

func (e *ExpiredSessionError) Error() string {
	return fmt.Sprintf("session %s is %s and cannot be used", e.SessionID, e.State)
}

func (e *ExpiredSessionError) Is(target error) bool { return target == ErrExpiredSession }

// TimeoutError reports that a transaction stayed open longer than its
// timeout and was aborted.
type TimeoutError struct {
	SessionID string
	Timeout   time.Duration
	Err       error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transaction %s exceeded timeout of %s", e.SessionID, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// CompensationError describes a failed compensation step. It is logged and
// never replaces the error that triggered the rollback.
type CompensationError struct {
	Index int
	Err   error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensation %d failed: %v", e.Index, e.Err)
}

func (e *CompensationError) Unwrap() error { return e.Err }

func (e *CompensationError) Is(target error) bool { return target == ErrCompensation }

// PanicError wraps a value recovered from a panicking callback.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("transaction callback panicked: %v", e.Value)
}
