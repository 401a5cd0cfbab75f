package database

import "github.com/gaborage/go-bricks-tx/database/types"

// Re-export engine identifiers so callers only need the database package.
const (
	MongoDB = types.MongoDB
	Memory  = types.Memory
)
