package server

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-bricks-tx/config"
	"github.com/gaborage/go-bricks-tx/transaction"
)

// IAPIError defines the interface for API errors with structured information.
type IAPIError interface {
	ErrorCode() string
	Message() string
	HTTPStatus() int
	Details() map[string]any
}

// APIResponse represents the standardized API response format.
type APIResponse struct {
	Data  any               `json:"data,omitempty"`
	Error *APIErrorResponse `json:"error,omitempty"`
	Meta  map[string]any    `json:"meta"`
}

// APIErrorResponse represents the error portion of an API response.
type APIErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// HandlerFunc is a typed handler focused on business logic.
type HandlerFunc[T any, R any] func(request T, ctx HandlerContext) (R, IAPIError)

// HandlerContext gives typed handlers access to the Echo context and, when
// the route is transactional, the session of its transaction.
type HandlerContext struct {
	Echo   echo.Context
	Config *config.Config
}

// Session returns the transaction session bound to the request, or nil when
// the route runs without one.
func (hc HandlerContext) Session() *transaction.Session {
	return transaction.SessionFromContext(hc.Echo.Request().Context())
}

// TxContext returns the request's transaction context for repository calls.
func (hc HandlerContext) TxContext() *transaction.TxContext {
	return transaction.FromContext(hc.Echo.Request().Context())
}

// WrapHandler wraps a typed handler into an Echo handler. It binds and
// validates the request and formats the response envelope. A returned
// IAPIError is handed to the error handler so that an enclosing transaction
// boundary sees the failure.
func WrapHandler[T any, R any](handlerFunc HandlerFunc[T, R], cfg *config.Config) echo.HandlerFunc {
	return func(c echo.Context) error {
		var request T

		if err := bindRequest(c, &request); err != nil {
			return NewBadRequestError("Invalid request data").WithDetails("error", err.Error())
		}

		if err := c.Validate(&request); err != nil {
			vErr := NewBadRequestError("Request validation failed")
			var ve *ValidationError
			if errors.As(err, &ve) {
				_ = vErr.WithDetails("validationErrors", ve.Errors)
			} else {
				_ = vErr.WithDetails("error", err.Error())
			}
			return vErr
		}

		response, apiErr := handlerFunc(request, HandlerContext{Echo: c, Config: cfg})
		if apiErr != nil {
			return asError(apiErr)
		}

		if rl, ok := any(response).(ResultLike); ok {
			status, headers, data := rl.ResultMeta()
			return formatSuccessResponseWithStatus(c, data, status, headers)
		}
		return formatSuccessResponseWithStatus(c, response, http.StatusOK, nil)
	}
}

func asError(apiErr IAPIError) error {
	if err, ok := apiErr.(error); ok {
		return err
	}
	base := NewBaseAPIError(apiErr.ErrorCode(), apiErr.Message(), apiErr.HTTPStatus())
	for k, v := range apiErr.Details() {
		_ = base.WithDetails(k, v)
	}
	return base
}

// bindRequest binds the JSON body, then path and query parameters declared
// with param and query struct tags.
func bindRequest(c echo.Context, target any) error {
	targetValue := reflect.ValueOf(target).Elem()
	if targetValue.Kind() != reflect.Struct {
		return nil
	}
	targetType := targetValue.Type()

	if ct := c.Request().Header.Get(echo.HeaderContentType); ct != "" {
		if mt, _, _ := mime.ParseMediaType(ct); mt == echo.MIMEApplicationJSON || strings.HasSuffix(mt, "+json") {
			if err := (&echo.DefaultBinder{}).BindBody(c, target); err != nil {
				return fmt.Errorf("failed to bind JSON body: %w", err)
			}
		}
	}

	for i := 0; i < targetType.NumField(); i++ {
		field := targetType.Field(i)
		fieldValue := targetValue.Field(i)
		if !fieldValue.CanSet() {
			continue
		}

		if paramName := field.Tag.Get("param"); paramName != "" {
			if value := c.Param(paramName); value != "" {
				if err := setFieldValue(fieldValue, value); err != nil {
					return fmt.Errorf("failed to set path param %s: %w", paramName, err)
				}
			}
		}

		if queryName := field.Tag.Get("query"); queryName != "" {
			if value := c.QueryParam(queryName); value != "" {
				if err := setFieldValue(fieldValue, value); err != nil {
					return fmt.Errorf("failed to set query param %s: %w", queryName, err)
				}
			}
		}
	}
	return nil
}

func setFieldValue(fieldValue reflect.Value, value string) error {
	if fieldValue.Kind() == reflect.Pointer {
		if fieldValue.IsNil() {
			fieldValue.Set(reflect.New(fieldValue.Type().Elem()))
		}
		return setFieldValue(fieldValue.Elem(), value)
	}

	switch fieldValue.Kind() {
	case reflect.String:
		fieldValue.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if fieldValue.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			fieldValue.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, fieldValue.Type().Bits())
		if err != nil {
			return err
		}
		fieldValue.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, fieldValue.Type().Bits())
		if err != nil {
			return err
		}
		fieldValue.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, fieldValue.Type().Bits())
		if err != nil {
			return err
		}
		fieldValue.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		fieldValue.SetBool(b)
	default:
		return fmt.Errorf("unsupported field type: %s", fieldValue.Kind())
	}
	return nil
}

// formatSuccessResponseWithStatus formats a successful response with a custom status and headers.
func formatSuccessResponseWithStatus(c echo.Context, data any, status int, headers http.Header) error {
	if status == 0 {
		status = http.StatusOK
	}
	for k, vals := range headers {
		for _, v := range vals {
			c.Response().Header().Add(k, v)
		}
	}
	if status == http.StatusNoContent {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(status, APIResponse{
		Data: data,
		Meta: responseMeta(c),
	})
}

// formatErrorResponse formats an error response with standardized structure.
func formatErrorResponse(c echo.Context, apiErr IAPIError, cfg *config.Config) error {
	errorResp := &APIErrorResponse{
		Code:    apiErr.ErrorCode(),
		Message: apiErr.Message(),
	}

	// Details may carry internal error text
	if cfg != nil && cfg.App.Env == config.EnvDevelopment {
		if details := apiErr.Details(); len(details) > 0 {
			errorResp.Details = details
		}
	}

	return c.JSON(apiErr.HTTPStatus(), APIResponse{
		Error: errorResp,
		Meta:  responseMeta(c),
	})
}

func responseMeta(c echo.Context) map[string]any {
	return map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"traceId":   getTraceID(c),
	}
}

// getTraceID prefers the active span's trace id, then the request id.
func getTraceID(c echo.Context) string {
	if sc := trace.SpanContextFromContext(c.Request().Context()); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	if requestID := c.Request().Header.Get(echo.HeaderXRequestID); requestID != "" {
		return requestID
	}
	if requestID := c.Response().Header().Get(echo.HeaderXRequestID); requestID != "" {
		return requestID
	}
	newID := uuid.New().String()
	c.Response().Header().Set(echo.HeaderXRequestID, newID)
	return newID
}

// ResultLike exposes status, headers, and payload for successful responses.
type ResultLike interface {
	ResultMeta() (status int, headers http.Header, data any)
}

// Result is a success wrapper letting handlers choose status and headers.
type Result[R any] struct {
	Data    R
	Status  int
	Headers http.Header
}

// ResultMeta implements ResultLike for Result[R].
func (r Result[R]) ResultMeta() (status int, headers http.Header, data any) {
	return r.Status, r.Headers, r.Data
}

// NoContentResult represents a 204 No Content response without a body
type NoContentResult struct{}

// ResultMeta implements ResultLike for NoContentResult
func (NoContentResult) ResultMeta() (status int, headers http.Header, data any) {
	return http.StatusNoContent, nil, nil
}

// Created returns a 201 Created Result for the given data
func Created[R any](data R) Result[R] {
	return Result[R]{Data: data, Status: http.StatusCreated}
}

// NoContent returns a 204 No Content result without a response body
func NoContent() NoContentResult { return NoContentResult{} }
