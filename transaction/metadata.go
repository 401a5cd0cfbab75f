package transaction

import (
	"fmt"
	"time"

	"github.com/gaborage/go-bricks-tx/config"
)

// IsolationLevel is the isolation requested for a transaction. The MongoDB
// engine always runs with snapshot reads and majority writes; the level is
// recorded on the session and in telemetry.
type IsolationLevel string

const (
	ReadUncommitted IsolationLevel = "readUncommitted"
	ReadCommitted   IsolationLevel = "readCommitted"
	RepeatableRead  IsolationLevel = "repeatableRead"
	Serializable    IsolationLevel = "serializable"
)

// DefaultTimeout bounds a declared transaction when no timeout is given.
const DefaultTimeout = 30 * time.Second

func (l IsolationLevel) String() string {
	return string(l)
}

// ParseIsolationLevel parses a configured isolation level.
func ParseIsolationLevel(s string) (IsolationLevel, error) {
	switch l := IsolationLevel(s); l {
	case ReadUncommitted, ReadCommitted, RepeatableRead, Serializable:
		return l, nil
	default:
		return "", fmt.Errorf("unknown isolation level %q", s)
	}
}

// Options configures a single transaction. A zero Timeout means no deadline.
type Options struct {
	Isolation IsolationLevel
	Timeout   time.Duration
}

// Metadata is the transaction configuration attached statically to an
// entry point.
type Metadata struct {
	Required  bool
	Isolation IsolationLevel
	Timeout   time.Duration
}

// MetadataOption customises Transactional.
type MetadataOption func(*Metadata)

// WithIsolation sets the isolation level.
func WithIsolation(level IsolationLevel) MetadataOption {
	return func(m *Metadata) { m.Isolation = level }
}

// WithTimeout sets the timeout.
func WithTimeout(d time.Duration) MetadataOption {
	return func(m *Metadata) { m.Timeout = d }
}

// Transactional declares that an entry point runs inside a transaction.
// Defaults: read committed, 30 seconds.
func Transactional(opts ...MetadataOption) Metadata {
	m := Metadata{
		Required:  true,
		Isolation: ReadCommitted,
		Timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// NoTransaction declares that no transaction is imposed on an entry point.
func NoTransaction() Metadata {
	return Metadata{Required: false}
}

// FromConfig returns Transactional metadata using the configured defaults.
// Invalid or empty values keep the built-in defaults.
func FromConfig(cfg config.TransactionConfig) Metadata {
	m := Transactional()
	if level, err := ParseIsolationLevel(cfg.Isolation); err == nil {
		m.Isolation = level
	}
	if cfg.Timeout > 0 {
		m.Timeout = cfg.Timeout
	}
	return m
}

// Options converts the metadata into manager options.
func (m Metadata) Options() Options {
	return Options{Isolation: m.Isolation, Timeout: m.Timeout}
}
