package server

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/gaborage/go-bricks-tx/config"
	"github.com/gaborage/go-bricks-tx/logger"
)

// SetupMiddlewares registers the global middleware chain. Transaction
// boundaries are not part of it; they are attached per route.
func SetupMiddlewares(e *echo.Echo, log logger.Logger, cfg *config.Config, healthPath, readyPath string) {
	e.Use(middleware.RequestID())

	e.Use(otelecho.Middleware(cfg.App.Name))

	// Per-request database and transaction counters for the action log
	e.Use(PerformanceStats())

	e.Use(LoggerWithConfig(log, LoggerConfig{
		HealthPath:           healthPath,
		ReadyPath:            readyPath,
		SlowRequestThreshold: cfg.Database.Query.Slow.Threshold,
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			log.WithContext(c.Request().Context()).Error().
				Err(err).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Str("stack", string(stack)).
				Msg("Panic recovered")
			return err
		},
	}))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		HSTSMaxAge:            3600,
		ContentSecurityPolicy: "default-src 'self'",
	}))

	e.Use(middleware.BodyLimit("10M"))

	e.Use(Timeout(cfg.Server.Timeout.Middleware))

	e.Use(RateLimit(cfg.Server.Rate.Limit))

	e.Use(Timing())
}

// PerformanceStats attaches per-request operation counters to the request
// context.
func PerformanceStats() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := logger.WithDBCounter(c.Request().Context())
			ctx = logger.WithTxCounter(ctx)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
