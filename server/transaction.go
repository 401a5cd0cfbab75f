package server

import (
	"bytes"
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gaborage/go-bricks-tx/logger"
	"github.com/gaborage/go-bricks-tx/transaction"
)

// TransactionBoundary runs the rest of the chain inside a transaction
// described by meta. The session is attached to the request context, so
// handlers and the repositories they call find it without passing it along.
//
// The response is buffered until the transaction commits. When the handler
// fails, panics, times out or the commit fails, the buffered response is
// discarded and the error is returned to the error handler instead.
// Metadata that does not require a transaction leaves the chain untouched.
func TransactionBoundary(mgr transaction.Manager, meta transaction.Metadata, log logger.Logger) echo.MiddlewareFunc {
	if !meta.Required {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			resp := c.Response()
			original := resp.Writer
			buffered := newBufferedWriter(original.Header())
			resp.Writer = buffered

			res := mgr.WithTransaction(req.Context(), func(ctx context.Context, _ *transaction.Session) (any, error) {
				c.SetRequest(req.WithContext(ctx))
				return nil, next(c)
			}, meta.Options())

			resp.Writer = original
			c.SetRequest(req)

			if res.Err != nil {
				resp.Status = 0
				resp.Size = 0
				resp.Committed = false
				log.WithContext(req.Context()).Warn().
					Err(res.Err).
					Str("http.route", c.Path()).
					Str("isolation", meta.Isolation.String()).
					Msg("Transaction rolled back, response discarded")
				return translateError(res.Err)
			}

			return buffered.flushTo(original)
		}
	}
}

// bufferedWriter holds a response until the surrounding transaction has
// committed. Headers are written to a private copy so that a discarded
// response leaves the real writer untouched.
type bufferedWriter struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func newBufferedWriter(base http.Header) *bufferedWriter {
	return &bufferedWriter{header: base.Clone()}
}

func (w *bufferedWriter) Header() http.Header {
	return w.header
}

func (w *bufferedWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.body.Write(b)
}

// Flush is a no-op; buffered data is released by flushTo.
func (w *bufferedWriter) Flush() {}

func (w *bufferedWriter) flushTo(dst http.ResponseWriter) error {
	h := dst.Header()
	for k := range h {
		if _, ok := w.header[k]; !ok {
			delete(h, k)
		}
	}
	for k, v := range w.header {
		h[k] = v
	}
	if !w.wroteHeader {
		return nil
	}
	dst.WriteHeader(w.status)
	if w.body.Len() == 0 {
		return nil
	}
	_, err := dst.Write(w.body.Bytes())
	return err
}
