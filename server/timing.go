package server

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/gaborage/go-bricks-tx/logger"
)

// Timing reports the handler duration in the X-Response-Time header and the
// number of transactions started in X-Tx-Count. The
// header is set just before the status line is written, so it also reaches
// responses held back by a transaction boundary.
func Timing() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			c.Response().Before(func() {
				h := c.Response().Header()
				h.Set(HeaderXResponseTime, time.Since(start).String())
				if n := logger.GetTxCounter(c.Request().Context()); n > 0 {
					h.Set(HeaderXTxCount, strconv.FormatInt(n, 10))
				}
			})
			return next(c)
		}
	}
}
