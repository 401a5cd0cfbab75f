package types

import "errors"

var (
	// ErrNoDocuments is returned by DocumentResult.Err when a lookup matched nothing.
	ErrNoDocuments = errors.New("no documents in result")

	// ErrWriteConflict marks a transaction that lost a concurrent write race.
	ErrWriteConflict = errors.New("write conflict")

	// ErrDuplicateKey marks an insert that collides with an existing _id.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrSessionEnded is returned when a call is routed through an ended session.
	ErrSessionEnded = errors.New("session ended")

	// ErrNoTransaction is returned by commit or abort when no transaction is in progress.
	ErrNoTransaction = errors.New("no transaction in progress")
)
