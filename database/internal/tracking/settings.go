// Package tracking wraps a storage engine so every document operation is
// counted per request, traced, measured and logged, with slow operation
// detection.
package tracking

import (
	"time"

	"github.com/gaborage/go-bricks-tx/config"
	"github.com/gaborage/go-bricks-tx/logger"
)

const (
	// DefaultSlowQueryThreshold defines the default threshold for slow operation detection
	DefaultSlowQueryThreshold = 200 * time.Millisecond
	// DefaultMaxQueryLength defines the default maximum rendered filter length for logging
	DefaultMaxQueryLength = 1000
)

// Settings holds configuration for operation tracking and logging.
type Settings struct {
	slowQueryThreshold time.Duration
	maxQueryLength     int
}

// Context groups the logger, vendor and settings used by Track.
type Context struct {
	Logger   logger.Logger
	Vendor   string
	Settings Settings
}

// NewSettings creates Settings from the database configuration. Nil or
// non-positive values fall back to the defaults.
func NewSettings(cfg *config.DatabaseConfig) Settings {
	settings := Settings{
		slowQueryThreshold: DefaultSlowQueryThreshold,
		maxQueryLength:     DefaultMaxQueryLength,
	}

	if cfg == nil {
		return settings
	}

	if cfg.Query.Slow.Threshold > 0 {
		settings.slowQueryThreshold = cfg.Query.Slow.Threshold
	}
	if cfg.Query.Log.MaxLength > 0 {
		settings.maxQueryLength = cfg.Query.Log.MaxLength
	}

	return settings
}

// SlowQueryThreshold returns the threshold for slow operation detection
func (s Settings) SlowQueryThreshold() time.Duration {
	return s.slowQueryThreshold
}

// MaxQueryLength returns the maximum rendered filter length for logging
func (s Settings) MaxQueryLength() int {
	return s.maxQueryLength
}
