package server

import (
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/gaborage/go-bricks-tx/config"
	"github.com/gaborage/go-bricks-tx/logger"
	"github.com/gaborage/go-bricks-tx/transaction"
)

// RouteRegistrar is the subset of Echo routing used to register routes.
// Both *echo.Echo and *echo.Group satisfy it.
type RouteRegistrar interface {
	Add(method, path string, handler echo.HandlerFunc, middleware ...echo.MiddlewareFunc) *echo.Route
}

// Route is an HTTP entry point together with its transaction metadata.
type Route struct {
	Method     string
	Path       string
	Handler    echo.HandlerFunc
	Tx         transaction.Metadata
	Middleware []echo.MiddlewareFunc
}

// NewRoute builds a Route from a typed handler.
func NewRoute[T any, R any](method, path string, handler HandlerFunc[T, R], cfg *config.Config, tx transaction.Metadata, middleware ...echo.MiddlewareFunc) Route {
	return Route{
		Method:     method,
		Path:       path,
		Handler:    WrapHandler(handler, cfg),
		Tx:         tx,
		Middleware: middleware,
	}
}

// RegisterRoutes registers routes on r. Each route's transaction boundary is
// the innermost middleware, so route middleware runs outside the transaction.
func RegisterRoutes(r RouteRegistrar, mgr transaction.Manager, log logger.Logger, routes ...Route) {
	for _, route := range routes {
		middleware := append(slices.Clone(route.Middleware), TransactionBoundary(mgr, route.Tx, log))
		r.Add(route.Method, route.Path, route.Handler, middleware...)

		event := log.Debug().
			Str("method", route.Method).
			Str("path", route.Path).
			Bool("transactional", route.Tx.Required)
		if route.Tx.Required {
			event = event.Str("isolation", route.Tx.Isolation.String()).Dur("timeout", route.Tx.Timeout)
		}
		event.Msg("Route registered")
	}
}
