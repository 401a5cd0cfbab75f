package tracking

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/gaborage/go-bricks-tx/database/types"
)

const (
	dbMeterName = "go-bricks-tx/database"

	// Metric names following OpenTelemetry semantic conventions
	metricDBCalls         = "db.client.calls"
	metricDBDuration      = "db.client.operation.duration"
	metricDocumentsWrites = "db.documents.affected"

	attrDBSystem     = "db.system.name"
	attrDBOperation  = "db.operation.name"
	attrDBCollection = "db.collection.name"
)

// instruments holds the metric instruments of one tracked engine. They are
// created from the global meter provider when the engine is wrapped.
type instruments struct {
	calls    metric.Int64Counter
	duration metric.Float64Histogram
	affected metric.Int64Counter
}

// logMetricError logs a metric initialization error to stderr.
// Metrics failures must not break the application.
func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize metric %s: %v\n", metricName, err)
	}
}

func newInstruments() *instruments {
	meter := otel.Meter(dbMeterName)
	inst := &instruments{}

	var err error
	inst.calls, err = meter.Int64Counter(
		metricDBCalls,
		metric.WithDescription("Total number of database client calls"),
	)
	logMetricError(metricDBCalls, err)

	inst.duration, err = meter.Float64Histogram(
		metricDBDuration,
		metric.WithDescription("Duration of database operations in milliseconds"),
		metric.WithUnit("ms"),
	)
	logMetricError(metricDBDuration, err)

	inst.affected, err = meter.Int64Counter(
		metricDocumentsWrites,
		metric.WithDescription("Number of documents inserted, modified or deleted"),
	)
	logMetricError(metricDocumentsWrites, err)

	return inst
}

// record emits the call counter, the duration histogram and, for successful
// writes, the affected documents counter.
func (i *instruments) record(ctx context.Context, vendor string, op Operation, duration time.Duration, affected int64, err error) {
	if i == nil {
		return
	}

	isError := isFailure(err)
	attrs := []attribute.KeyValue{
		attribute.String(attrDBSystem, normalizeDBVendor(vendor)),
		attribute.String(attrDBOperation, op.Name),
		attribute.String(attrDBCollection, op.Collection),
	}

	if i.calls != nil {
		counterAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
		counterAttrs = append(counterAttrs, attrs...)
		counterAttrs = append(counterAttrs, attribute.Bool("error", isError))
		i.calls.Add(ctx, 1, metric.WithAttributes(counterAttrs...))
	}

	if i.duration != nil {
		i.duration.Record(ctx, float64(duration.Nanoseconds())/1e6, metric.WithAttributes(attrs...))
	}

	if i.affected != nil && affected > 0 && !isError {
		i.affected.Add(ctx, affected, metric.WithAttributes(attrs...))
	}
}

// isFailure reports whether err is a real failure. An empty lookup is a
// normal outcome.
func isFailure(err error) bool {
	return err != nil && !errors.Is(err, types.ErrNoDocuments)
}

// normalizeDBVendor normalizes the vendor name to the OTel db.system.name values.
func normalizeDBVendor(vendor string) string {
	vendor = strings.ToLower(vendor)
	switch vendor {
	case "mongo", types.MongoDB:
		return types.MongoDB
	case "mem", types.Memory:
		return types.Memory
	default:
		return vendor
	}
}
