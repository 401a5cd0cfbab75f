package server

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/echo/v4"
)

// Timeout bounds the whole request with a context deadline. Echo's response
// writer is left in place; a handler that observes the deadline returns and
// the request fails with 503. Transaction timeouts configured on a route are
// shorter-lived and reported separately as TRANSACTION_TIMEOUT.
func Timeout(duration time.Duration) echo.MiddlewareFunc {
	if duration <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			parent := c.Request().Context()
			if err := parent.Err(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(parent, duration)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Response().Committed {
				return NewServiceUnavailableError("Request timed out").WithDetails("timeout", duration.String())
			}
			return err
		}
	}
}
