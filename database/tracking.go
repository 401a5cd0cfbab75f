package database

import (
	"github.com/gaborage/go-bricks-tx/database/internal/tracking"
)

// Re-export the internal tracking implementation as the public API
type (
	TrackedEngine     = tracking.Engine
	TrackedSession    = tracking.Session
	TrackedCollection = tracking.Collection
)

// Re-export internal functions as public API
var (
	NewTrackedEngine    = tracking.NewEngine
	NewTrackingSettings = tracking.NewSettings
)

// Re-export internal constants
const (
	DefaultSlowQueryThreshold = tracking.DefaultSlowQueryThreshold
	DefaultMaxQueryLength     = tracking.DefaultMaxQueryLength
)
