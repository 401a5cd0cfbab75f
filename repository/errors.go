package repository

import (
	"errors"
	"fmt"
)

// ErrPersistence is matched by every PersistenceError.
var ErrPersistence = errors.New("persistence failure")

// PersistenceError reports a storage failure of a repository operation.
// Ref identifies the target document when the operation has one.
type PersistenceError struct {
	Op         string
	Collection string
	Ref        string
	Err        error
}

func (e *PersistenceError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("%s %s (id=%s): %v", e.Collection, e.Op, e.Ref, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Collection, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }
