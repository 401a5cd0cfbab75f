package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-bricks-tx/database/types"
	"github.com/gaborage/go-bricks-tx/logger"
)

const (
	dbTracerName      = "go-bricks-tx/database"
	maxDBQueryAttrLen = 2000
)

// Operation names a tracked storage call.
type Operation struct {
	Name       string
	Collection string
	Filter     any
}

// Track records a completed storage operation: request counters, a client
// span with the operation start time, metrics and a log event. Empty lookups
// are logged at debug level and do not mark the span as failed.
func Track(ctx context.Context, tc *Context, inst *instruments, op Operation, start time.Time, affected int64, err error) {
	if tc == nil || tc.Logger == nil {
		return
	}

	elapsed := time.Since(start)

	logger.IncrementDBCounter(ctx)
	logger.AddDBElapsed(ctx, elapsed.Nanoseconds())

	rendered := RenderFilter(op.Filter)

	createDBSpan(ctx, tc, op, rendered, start, err)
	inst.record(ctx, tc.Vendor, op, elapsed, affected, err)

	fields := map[string]any{
		"vendor":      tc.Vendor,
		"operation":   op.Name,
		"duration_ms": elapsed.Milliseconds(),
		"duration_ns": elapsed.Nanoseconds(),
	}
	if op.Collection != "" {
		fields["collection"] = op.Collection
	}
	if rendered != "" {
		fields["filter"] = TruncateString(rendered, tc.Settings.MaxQueryLength())
	}
	if affected > 0 {
		fields["affected"] = affected
	}
	logEvent := tc.Logger.WithContext(ctx).WithFields(fields)

	switch {
	case errors.Is(err, types.ErrNoDocuments):
		logEvent.Debug().Msg("Database operation returned no documents")
	case err != nil:
		logEvent.Error().Err(err).Msg("Database operation error")
	case elapsed > tc.Settings.SlowQueryThreshold():
		logEvent.Warn().Msgf("Slow database operation detected (%s)", elapsed)
	default:
		logEvent.Debug().Msg("Database operation executed")
	}
}

// RenderFilter renders a filter as relaxed extended JSON. Values that are not
// documents fall back to their Go formatting.
func RenderFilter(filter any) string {
	if filter == nil {
		return ""
	}
	out, err := bson.MarshalExtJSON(filter, false, false)
	if err != nil {
		return fmt.Sprintf("%v", filter)
	}
	return string(out)
}

// TruncateString truncates value to at most maxLen runes, ending in "..."
// when there is room for it. A non-positive maxLen leaves value unchanged.
func TruncateString(value string, maxLen int) string {
	if maxLen <= 0 {
		return value
	}
	r := []rune(value)
	if len(r) <= maxLen {
		return value
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

func createDBSpan(ctx context.Context, tc *Context, op Operation, rendered string, start time.Time, err error) {
	_, span := otel.Tracer(dbTracerName).Start(ctx, "db."+op.Name,
		trace.WithTimestamp(start),
		trace.WithSpanKind(trace.SpanKindClient),
	)

	attrs := []attribute.KeyValue{
		attribute.String(attrDBSystem, normalizeDBVendor(tc.Vendor)),
		semconv.DBOperationName(op.Name),
	}
	if op.Collection != "" {
		attrs = append(attrs, attribute.String(attrDBCollection, op.Collection))
	}
	if rendered != "" {
		attrs = append(attrs, semconv.DBQueryText(TruncateString(rendered, maxDBQueryAttrLen)))
	}
	span.SetAttributes(attrs...)

	if isFailure(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}
