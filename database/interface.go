package database

import (
	"github.com/gaborage/go-bricks-tx/database/types"
)

// The contracts live in database/types so vendor packages can implement them
// without importing this package.
type (
	Engine               = types.Engine
	Session              = types.Session
	TxOptions            = types.TxOptions
	DocumentCollection   = types.DocumentCollection
	DocumentCursor       = types.DocumentCursor
	DocumentResult       = types.DocumentResult
	DocumentUpdateResult = types.DocumentUpdateResult
	DocumentDeleteResult = types.DocumentDeleteResult
	FindOptions          = types.FindOptions
)

// NewFindOptions returns empty find options.
var NewFindOptions = types.NewFindOptions

// Re-exported sentinel errors
var (
	ErrNoDocuments   = types.ErrNoDocuments
	ErrWriteConflict = types.ErrWriteConflict
	ErrDuplicateKey  = types.ErrDuplicateKey
	ErrSessionEnded  = types.ErrSessionEnded
	ErrNoTransaction = types.ErrNoTransaction
)
