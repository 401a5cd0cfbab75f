package transaction

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-bricks-tx/observability"
)

const (
	instrumentationName = "go-bricks-tx/transaction"

	spanWithTransaction = "transaction.with"

	metricStarted   = "transaction.started"
	metricCommitted = "transaction.committed"
	metricAborted   = "transaction.aborted"
	metricDuration  = "transaction.duration"
	metricActive    = "transaction.active"

	attrIsolation = "transaction.isolation"
	attrSessionID = "transaction.session_id"
	attrOutcome   = "transaction.outcome"
	attrReason    = "transaction.abort_reason"
)

type telemetry struct {
	started   metric.Int64Counter
	committed metric.Int64Counter
	aborted   metric.Int64Counter
	duration  metric.Float64Histogram
	active    metric.Int64UpDownCounter
}

func logMetricError(name string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize metric %s: %v\n", name, err)
	}
}

// newTelemetry creates instruments from the current global meter provider.
func newTelemetry() *telemetry {
	meter := otel.Meter(instrumentationName)
	t := &telemetry{}

	var err error
	t.started, err = observability.CreateCounter(meter, metricStarted, "Transactions started")
	logMetricError(metricStarted, err)
	t.committed, err = observability.CreateCounter(meter, metricCommitted, "Transactions committed")
	logMetricError(metricCommitted, err)
	t.aborted, err = observability.CreateCounter(meter, metricAborted, "Transactions aborted")
	logMetricError(metricAborted, err)
	t.duration, err = observability.CreateHistogram(meter, metricDuration,
		"Time from start to commit or abort in milliseconds", metric.WithUnit("ms"))
	logMetricError(metricDuration, err)
	t.active, err = observability.CreateUpDownCounter(meter, metricActive, "Sessions started and not yet ended")
	logMetricError(metricActive, err)

	return t
}

func (t *telemetry) startSpan(ctx context.Context, opts Options) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, spanWithTransaction,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String(attrIsolation, opts.Isolation.String())),
	)
}

func (t *telemetry) recordStart(ctx context.Context, opts Options) {
	if t.started != nil {
		t.started.Add(ctx, 1, metric.WithAttributes(attribute.String(attrIsolation, opts.Isolation.String())))
	}
	if t.active != nil {
		t.active.Add(ctx, 1)
	}
}

func (t *telemetry) recordEnd(ctx context.Context) {
	if t.active != nil {
		t.active.Add(ctx, -1)
	}
}

func (t *telemetry) recordCommit(ctx context.Context, s *Session) {
	if t.committed != nil {
		t.committed.Add(ctx, 1)
	}
	t.recordDuration(ctx, s, "committed")
}

func (t *telemetry) recordAbort(ctx context.Context, s *Session, reason string) {
	if t.aborted != nil {
		t.aborted.Add(ctx, 1, metric.WithAttributes(attribute.String(attrReason, reason)))
	}
	t.recordDuration(ctx, s, "aborted")
}

func (t *telemetry) recordDuration(ctx context.Context, s *Session, outcome string) {
	if t.duration != nil {
		ms := float64(time.Since(s.startedAt).Nanoseconds()) / 1e6
		t.duration.Record(ctx, ms, metric.WithAttributes(attribute.String(attrOutcome, outcome)))
	}
}

func endSpan(span trace.Span, s *Session, err error) {
	if s != nil {
		span.SetAttributes(
			attribute.String(attrSessionID, s.ID()),
			attribute.String(attrOutcome, s.Outcome().String()),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
