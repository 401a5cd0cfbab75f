package database

import (
	"fmt"
	"slices"

	"github.com/gaborage/go-bricks-tx/config"
	"github.com/gaborage/go-bricks-tx/database/memory"
	"github.com/gaborage/go-bricks-tx/database/mongodb"
	"github.com/gaborage/go-bricks-tx/logger"
)

// NewEngine creates the storage engine selected by cfg.Type and wraps it
// with performance tracking. An empty type selects MongoDB. If the chosen
// engine fails to initialize, that error is returned.
func NewEngine(cfg *config.DatabaseConfig, log logger.Logger) (Engine, error) {
	var engine Engine

	switch cfg.Type {
	case "", MongoDB:
		conn, err := mongodb.NewConnection(cfg, log)
		if err != nil {
			return nil, err
		}
		engine = conn
	case Memory:
		engine = memory.New()
		log.Info().Msg("Using in-memory storage engine")
	default:
		return nil, fmt.Errorf("unsupported database type: %s (supported: %v)", cfg.Type, GetSupportedDatabaseTypes())
	}

	return NewTrackedEngine(engine, log, cfg), nil
}

// ValidateDatabaseType returns nil if dbType is one of the supported database types.
func ValidateDatabaseType(dbType string) error {
	if !slices.Contains(GetSupportedDatabaseTypes(), dbType) {
		return fmt.Errorf("unsupported database type: %s (supported: %v)", dbType, GetSupportedDatabaseTypes())
	}
	return nil
}

// GetSupportedDatabaseTypes returns a list of supported database types
func GetSupportedDatabaseTypes() []string {
	return []string{MongoDB, Memory}
}
