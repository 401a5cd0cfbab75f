package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/gaborage/go-bricks-tx/logger"
)

// DefaultShutdownTimeout bounds Shutdown when no timeout is given.
const DefaultShutdownTimeout = 10 * time.Second

// Shutdown flushes and stops provider within timeout. A nil provider is a no-op.
func Shutdown(provider Provider, timeout time.Duration) error {
	if provider == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("observability shutdown failed: %w", err)
	}
	return nil
}

// ShutdownAndLog is Shutdown for deferred cleanup: failures are logged
// rather than returned.
func ShutdownAndLog(provider Provider, timeout time.Duration, log logger.Logger) {
	if err := Shutdown(provider, timeout); err != nil {
		log.Warn().Err(err).Msg("Observability provider did not shut down cleanly")
	}
}
