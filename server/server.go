// Package server exposes transactional HTTP entry points on Echo. Routes
// declare transaction metadata and the server wraps each one in a
// transaction boundary.
package server

import (
	"context"
	goerrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/gaborage/go-bricks-tx/config"
	"github.com/gaborage/go-bricks-tx/logger"
	"github.com/gaborage/go-bricks-tx/transaction"
)

const (
	healthPath = "/health"
	readyPath  = "/ready"
)

// ReadinessCheck reports whether a dependency is ready to serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Option customises a Server.
type Option func(*Server)

// WithReadinessCheck adds a check consulted by the readiness endpoint.
func WithReadinessCheck(name string, check ReadinessCheck) Option {
	return func(s *Server) {
		s.checks[name] = check
	}
}

// Server represents an HTTP server instance with Echo framework.
type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	logger logger.Logger
	checks map[string]ReadinessCheck
}

// New creates a server with the global middleware chain, the standardized
// error handler and the health endpoints.
func New(cfg *config.Config, log logger.Logger, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		customErrorHandler(err, c, cfg, log)
	}
	if v := NewValidator(); v != nil {
		e.Validator = v
	} else {
		log.Fatal().Msg("failed to initialize request validator")
	}

	SetupMiddlewares(e, log, cfg, healthPath, readyPath)

	s := &Server{
		echo:   e,
		cfg:    cfg,
		logger: log,
		checks: make(map[string]ReadinessCheck),
	}
	for _, opt := range opts {
		opt(s)
	}

	e.GET(healthPath, s.healthCheck)
	e.GET(readyPath, s.readyCheck)

	return s
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Register adds routes, each wrapped in the transaction boundary its
// metadata describes.
func (s *Server) Register(mgr transaction.Manager, routes ...Route) {
	RegisterRoutes(s.echo, mgr, s.logger, routes...)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.logger.Info().
		Str("service", s.cfg.App.Name).
		Str("version", s.cfg.App.Version).
		Str("env", s.cfg.App.Env).
		Str("address", addr).
		Msg("Starting server...")

	// Echo.Shutdown stops e.Server, so that is the server we start.
	server := s.echo.Server
	server.Addr = addr
	server.ReadTimeout = orDefault(s.cfg.Server.Timeout.Read, DefaultReadTimeout)
	server.WriteTimeout = orDefault(s.cfg.Server.Timeout.Write, DefaultWriteTimeout)
	server.IdleTimeout = orDefault(s.cfg.Server.Timeout.Idle, DefaultIdleTimeout)

	err := s.echo.StartServer(server)
	if goerrors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the HTTP server, waiting for in-flight
// requests within the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, orDefault(s.cfg.Server.Timeout.Shutdown, DefaultShutdownTimeout))
	defer cancel()
	return s.echo.Shutdown(ctx)
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (s *Server) readyCheck(c echo.Context) error {
	failures := make(map[string]string)
	for name, check := range s.checks {
		if err := check(c.Request().Context()); err != nil {
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status": "not ready",
			"checks": failures,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func customErrorHandler(err error, c echo.Context, cfg *config.Config, log logger.Logger) {
	if c.Response().Committed {
		return
	}
	err = translateError(err)

	var apiErr IAPIError
	if goerrors.As(err, &apiErr) {
		_ = formatErrorResponse(c, apiErr, cfg)
		return
	}

	status := http.StatusInternalServerError
	msg := "An error occurred while processing your request"
	var he *echo.HTTPError
	if goerrors.As(err, &he) {
		status = he.Code
		switch m := he.Message.(type) {
		case string:
			msg = m
		case error:
			msg = m.Error()
		}
	} else if goerrors.Is(err, context.DeadlineExceeded) {
		status = http.StatusServiceUnavailable
		msg = "Request timed out"
	}

	if status >= http.StatusInternalServerError {
		log.WithContext(c.Request().Context()).Error().Err(err).Int("status", status).Msg("Unhandled error")
	}

	base := NewBaseAPIError(statusToErrorCode(status), msg, status)
	_ = base.WithDetails("error", err.Error())
	_ = formatErrorResponse(c, base, cfg)
}

func statusToErrorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case http.StatusTooManyRequests:
		return "TOO_MANY_REQUESTS"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}
