package server

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/gaborage/go-bricks-tx/logger"
)

// LoggerConfig configures the request logging middleware.
type LoggerConfig struct {
	// HealthPath and ReadyPath are probe endpoints excluded from logging.
	HealthPath string
	ReadyPath  string

	// SlowRequestThreshold marks slower requests with result_code WARN.
	// Zero disables slow request detection.
	SlowRequestThreshold time.Duration
}

// LoggerWithConfig emits one action log per request, carrying the database
// and transaction counters collected by PerformanceStats.
func LoggerWithConfig(log logger.Logger, cfg LoggerConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			if path == cfg.HealthPath || path == cfg.ReadyPath {
				return next(c)
			}

			start := time.Now()
			err := next(c)
			if err != nil {
				// Resolve the final status before logging
				c.Error(err)
			}
			logActionSummary(c, log, cfg, time.Since(start), err)
			return nil
		}
	}
}

func logActionSummary(c echo.Context, log logger.Logger, cfg LoggerConfig, latency time.Duration, err error) {
	ctx := c.Request().Context()
	status := c.Response().Status
	level, resultCode := determineSeverity(status, latency, cfg.SlowRequestThreshold, err)

	var event logger.LogEvent
	contextLog := log.WithContext(ctx)
	switch level {
	case "error":
		event = contextLog.Error()
	case "warn":
		event = contextLog.Warn()
	default:
		event = contextLog.Info()
	}
	if err != nil {
		event = event.Err(err)
	}

	method := c.Request().Method
	uri := c.Request().URL.Path
	event.
		Str("log.type", "action").
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Str("correlation_id", getTraceID(c)).
		Str("http.request.method", method).
		Int("http.response.status_code", status).
		Int64("http.server.request.duration", latency.Nanoseconds()).
		Str("url.path", uri).
		Str("http.route", c.Path()).
		Str("client.address", c.RealIP()).
		Str("result_code", resultCode).
		Int64("db_queries", logger.GetDBCounter(ctx)).
		Int64("db_elapsed", logger.GetDBElapsed(ctx)).
		Int64("tx_count", logger.GetTxCounter(ctx)).
		Msg(method + " " + uri + " completed in " + latency.String())
}

// determineSeverity maps status, latency and error to a log level and result code.
func determineSeverity(status int, latency, threshold time.Duration, err error) (level, resultCode string) {
	switch {
	case status >= 500 || (err != nil && status == 0):
		return "error", "ERROR"
	case status >= 400:
		return "warn", "WARN"
	case threshold > 0 && latency > threshold:
		return "info", "WARN"
	default:
		return "info", "INFO"
	}
}
