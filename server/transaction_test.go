package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-tx/config"
	"github.com/gaborage/go-bricks-tx/database/memory"
	"github.com/gaborage/go-bricks-tx/logger"
	"github.com/gaborage/go-bricks-tx/repository"
	"github.com/gaborage/go-bricks-tx/service"
	"github.com/gaborage/go-bricks-tx/testing/mocks"
	"github.com/gaborage/go-bricks-tx/transaction"
)

type record struct {
	ID   string `bson:"_id" json:"id"`
	Note string `bson:"note" json:"note"`
}

func (r *record) GetID() string   { return r.ID }
func (r *record) SetID(id string) { r.ID = id }

type createRecordRequest struct {
	ID   string `json:"id" validate:"required"`
	Note string `json:"note"`
	Fail bool   `query:"fail"`
}

type txFixture struct {
	srv    *Server
	engine *memory.Engine
	mgr    *transaction.EngineManager
	repo   *repository.Repository[record, *record]
	logs   *bytes.Buffer
}

func testConfig(env string) *config.Config {
	return &config.Config{App: config.AppConfig{Name: "records", Env: env}}
}

func newTxFixture(t *testing.T) *txFixture {
	t.Helper()
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "debug", false, nil)
	cfg := testConfig(config.EnvDevelopment)
	engine := memory.New()
	f := &txFixture{
		srv:    New(cfg, log),
		engine: engine,
		mgr:    transaction.NewManager(engine, log),
		repo:   repository.New[record](engine, "records", log),
		logs:   &buf,
	}

	create := func(req createRecordRequest, hc HandlerContext) (Result[*record], IAPIError) {
		r, err := f.repo.Create(hc.Echo.Request().Context(), &record{ID: req.ID, Note: req.Note}, hc.TxContext())
		if err != nil {
			return Result[*record]{}, NewInternalServerError(err.Error())
		}
		if req.Fail {
			return Result[*record]{}, NewConflictError("forced failure")
		}
		return Created(r), nil
	}

	f.srv.Register(f.mgr,
		NewRoute(http.MethodPost, "/records", create, cfg, transaction.Transactional()),
		Route{
			Method: http.MethodPost,
			Path:   "/records/slow",
			Tx:     transaction.Transactional(transaction.WithTimeout(30 * time.Millisecond)),
			Handler: func(c echo.Context) error {
				ctx := c.Request().Context()
				if _, err := f.repo.Create(ctx, &record{ID: "slow"}, nil); err != nil {
					return err
				}
				<-ctx.Done()
				return ctx.Err()
			},
		},
		Route{
			Method: http.MethodPost,
			Path:   "/records/panic",
			Tx:     transaction.Transactional(),
			Handler: func(c echo.Context) error {
				if _, err := f.repo.Create(c.Request().Context(), &record{ID: "doomed"}, nil); err != nil {
					return err
				}
				panic("handler exploded")
			},
		},
		Route{
			Method: http.MethodPost,
			Path:   "/records/raw",
			Tx:     transaction.Transactional(),
			Handler: func(c echo.Context) error {
				if _, err := f.repo.Create(c.Request().Context(), &record{ID: "raw"}, nil); err != nil {
					return err
				}
				c.Response().Header().Set("X-Written", "yes")
				return c.JSON(http.StatusOK, map[string]string{"status": "written"})
			},
		},
		Route{
			Method: http.MethodGet,
			Path:   "/records/plain",
			Tx:     transaction.NoTransaction(),
			Handler: func(c echo.Context) error {
				return c.JSON(http.StatusOK, map[string]bool{
					"inTransaction": transaction.SessionFromContext(c.Request().Context()) != nil,
				})
			},
		},
	)
	return f
}

func (f *txFixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	f.srv.Echo().ServeHTTP(rec, req)
	return rec
}

func (f *txFixture) count(t *testing.T) int64 {
	t.Helper()
	n, err := f.repo.Count(context.Background(), nil, nil)
	require.NoError(t, err)
	return n
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestTransactionBoundaryCommitsOnSuccess(t *testing.T) {
	f := newTxFixture(t)

	rec := f.do(t, http.MethodPost, "/records", `{"id":"r1","note":"first"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Nil(t, resp.Error)
	assert.Equal(t, map[string]any{"id": "r1", "note": "first"}, resp.Data)
	assert.Equal(t, "1", rec.Header().Get(HeaderXTxCount))
	assert.NotEmpty(t, rec.Header().Get(HeaderXResponseTime))
	assert.Equal(t, int64(1), f.count(t))
	assert.Equal(t, int64(1), f.engine.Commits())
	assert.Equal(t, int64(0), f.mgr.OpenSessions())
}

func TestTransactionBoundaryRollsBackOnHandlerError(t *testing.T) {
	f := newTxFixture(t)

	rec := f.do(t, http.MethodPost, "/records?fail=true", `{"id":"r1"}`)

	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CONFLICT", resp.Error.Code)
	assert.Equal(t, "forced failure", resp.Error.Message)
	assert.Equal(t, int64(0), f.count(t))
	assert.Equal(t, int64(1), f.engine.Aborts())
	assert.Equal(t, int64(0), f.mgr.OpenSessions())
	assert.Contains(t, f.logs.String(), "Transaction rolled back, response discarded")
}

func TestTransactionBoundaryRollsBackOnPanic(t *testing.T) {
	f := newTxFixture(t)

	rec := f.do(t, http.MethodPost, "/records/panic", "")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Details["error"], "handler exploded")
	assert.Equal(t, int64(0), f.count(t))
	assert.Equal(t, int64(0), f.mgr.OpenSessions())
}

func TestTransactionBoundaryTimeout(t *testing.T) {
	f := newTxFixture(t)

	rec := f.do(t, http.MethodPost, "/records/slow", "")

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "TRANSACTION_TIMEOUT", resp.Error.Code)
	assert.Equal(t, int64(0), f.count(t))
	assert.Equal(t, int64(0), f.mgr.OpenSessions())
}

func TestTransactionBoundaryStartFailure(t *testing.T) {
	f := newTxFixture(t)
	f.engine.SetFault(memory.OpStartSession, errors.New("no primary"))

	rec := f.do(t, http.MethodPost, "/records", `{"id":"r1"}`)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "SERVICE_UNAVAILABLE", resp.Error.Code)
	assert.Contains(t, resp.Error.Details["error"], "no primary")
	assert.Equal(t, int64(0), f.engine.SessionsStarted())
}

func TestTransactionBoundaryDiscardsWrittenResponseWhenCommitFails(t *testing.T) {
	f := newTxFixture(t)
	f.engine.SetFault(memory.OpCommit, errors.New("commit lost"))

	rec := f.do(t, http.MethodPost, "/records/raw", "")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Written"))
	assert.NotContains(t, rec.Body.String(), "written")
	resp := decodeResponse(t, rec)
	assert.Contains(t, resp.Error.Details["error"], "commit lost")

	f.engine.ClearFaults()
	assert.Equal(t, int64(0), f.count(t))
}

func TestTransactionBoundaryFlushesRawResponse(t *testing.T) {
	f := newTxFixture(t)

	rec := f.do(t, http.MethodPost, "/records/raw", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "yes", rec.Header().Get("X-Written"))
	assert.JSONEq(t, `{"status":"written"}`, rec.Body.String())
	assert.Equal(t, int64(1), f.count(t))
}

func TestNoTransactionRouteRunsWithoutSession(t *testing.T) {
	f := newTxFixture(t)

	rec := f.do(t, http.MethodGet, "/records/plain", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"inTransaction":false}`, rec.Body.String())
	assert.Empty(t, rec.Header().Get(HeaderXTxCount))
	assert.Equal(t, int64(0), f.engine.SessionsStarted())
}

func TestTransactionBoundaryNestedServicesShareOneSession(t *testing.T) {
	f := newTxFixture(t)
	svc := service.NewBase(f.mgr, logger.Nop())
	var sessions []*transaction.Session

	createRecord := func(ctx context.Context, id string) error {
		return service.ExecuteInTransaction(ctx, svc, func(ctx context.Context, s *transaction.Session) (*record, error) {
			sessions = append(sessions, s)
			return f.repo.Create(ctx, &record{ID: id}, transaction.NewTxContext(s, ctx))
		}).Err
	}

	f.srv.Register(f.mgr, Route{
		Method: http.MethodPost,
		Path:   "/records/pair",
		Tx:     transaction.Transactional(),
		Handler: func(c echo.Context) error {
			ctx := c.Request().Context()
			if err := createRecord(ctx, "first"); err != nil {
				return err
			}
			if err := createRecord(ctx, "second"); err != nil {
				return err
			}
			return c.NoContent(http.StatusNoContent)
		},
	})

	rec := f.do(t, http.MethodPost, "/records/pair", "")

	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	require.Len(t, sessions, 2)
	assert.Same(t, sessions[0], sessions[1])
	assert.Equal(t, int64(1), f.engine.SessionsStarted())
	assert.Equal(t, int64(1), f.engine.Commits())
	assert.Equal(t, int64(0), f.mgr.OpenSessions())
	assert.Equal(t, int64(2), f.count(t))
}

func TestTransactionBoundaryValidationFailureRollsBack(t *testing.T) {
	f := newTxFixture(t)

	rec := f.do(t, http.MethodPost, "/records", `{"note":"no id"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "BAD_REQUEST", resp.Error.Code)
	assert.Contains(t, resp.Error.Details, "validationErrors")
	assert.Equal(t, int64(1), f.engine.Aborts())
}

func TestTransactionBoundaryPassesRouteOptions(t *testing.T) {
	mgr := &mocks.MockTransactionManager{}
	opts := transaction.Options{Isolation: transaction.Serializable, Timeout: 2 * time.Second}
	mgr.ExpectWithTransactionRun(opts)

	e := echo.New()
	RegisterRoutes(e, mgr, logger.Nop(),
		Route{
			Method:  http.MethodPut,
			Path:    "/ledger",
			Tx:      transaction.Transactional(transaction.WithIsolation(transaction.Serializable), transaction.WithTimeout(2*time.Second)),
			Handler: func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		},
		Route{
			Method:  http.MethodGet,
			Path:    "/ledger",
			Tx:      transaction.NoTransaction(),
			Handler: func(c echo.Context) error { return c.String(http.StatusOK, "ok") },
		},
	)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/ledger", http.NoBody))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ledger", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)

	mgr.AssertExpectations(t)
	mgr.AssertNumberOfCalls(t, "WithTransaction", 1)
}

func TestTransactionBoundaryManagerFailure(t *testing.T) {
	mgr := &mocks.MockTransactionManager{}
	mgr.ExpectWithTransactionFailure(&transaction.TimeoutError{Timeout: time.Second, Err: context.DeadlineExceeded})

	e := echo.New()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		customErrorHandler(err, c, testConfig(config.EnvProduction), logger.Nop())
	}
	called := false
	RegisterRoutes(e, mgr, logger.Nop(), Route{
		Method: http.MethodPost,
		Path:   "/jobs",
		Tx:     transaction.Transactional(),
		Handler: func(echo.Context) error {
			called = true
			return nil
		},
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs", http.NoBody))

	assert.False(t, called)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, "TRANSACTION_TIMEOUT", resp.Error.Code)
	assert.Empty(t, resp.Error.Details, "details are hidden outside development")
	mgr.AssertCalled(t, "WithTransaction", mock.Anything, mock.Anything, transaction.Transactional().Options())
}

func TestBufferedWriter(t *testing.T) {
	base := http.Header{"X-Request-Id": {"req-1"}}
	w := newBufferedWriter(base)

	w.Header().Set("X-Extra", "1")
	assert.Empty(t, base.Get("X-Extra"), "buffered headers stay private until flushed")

	n, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	w.WriteHeader(http.StatusTeapot)
	w.Flush()

	rec := httptest.NewRecorder()
	rec.Header().Set("X-Stale", "drop")
	require.NoError(t, w.flushTo(rec))

	assert.Equal(t, http.StatusOK, rec.Code, "the first status wins")
	assert.Equal(t, "hello", rec.Body.String())
	assert.Equal(t, "1", rec.Header().Get("X-Extra"))
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-Id"))
	assert.Empty(t, rec.Header().Get("X-Stale"))
}
