// Package testing provides in-memory OpenTelemetry providers and assertion
// helpers for unit tests that check spans and metrics without a collector.
//
// Usage:
//
//	rec := obtest.Install(t)
//	// run code that creates spans and records metrics
//	spans := rec.SpansNamed("transaction.with")
//	rm := rec.Collect(t)
//	assert.Equal(t, int64(1), obtest.SumInt64(rm, "transaction.committed"))
package testing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// Recorder captures every span and metric produced while it is installed.
type Recorder struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Exporter       *tracetest.InMemoryExporter
	Reader         *sdkmetric.ManualReader
}

// NewRecorder builds providers backed by an in-memory exporter and a manual
// reader. Nothing global is touched.
func NewRecorder() *Recorder {
	exporter := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()

	return &Recorder{
		TracerProvider: sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter)),
		MeterProvider:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		Exporter:       exporter,
		Reader:         reader,
	}
}

// Install sets a new Recorder as the global tracer and meter provider and
// restores the previous providers when the test ends. Instruments must be
// created after Install to report into it.
func Install(t *testing.T) *Recorder {
	t.Helper()

	rec := NewRecorder()
	prevTP := otel.GetTracerProvider()
	prevMP := otel.GetMeterProvider()

	otel.SetTracerProvider(rec.TracerProvider)
	otel.SetMeterProvider(rec.MeterProvider)

	t.Cleanup(func() {
		_ = rec.TracerProvider.Shutdown(context.Background())
		_ = rec.MeterProvider.Shutdown(context.Background())
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	})

	return rec
}

// Spans returns all finished spans.
func (r *Recorder) Spans() tracetest.SpanStubs {
	return r.Exporter.GetSpans()
}

// SpansNamed returns the finished spans with the given name in end order.
func (r *Recorder) SpansNamed(name string) []tracetest.SpanStub {
	var out []tracetest.SpanStub
	for _, s := range r.Exporter.GetSpans() {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

// Collect reads the current metric state.
func (r *Recorder) Collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, r.Reader.Collect(context.Background(), &rm), "failed to collect metrics")
	return rm
}

// FindMetric finds a metric by name. Returns nil if not found.
func FindMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// SumInt64 adds up every data point of an int64 counter. Missing metrics sum to zero.
func SumInt64(rm metricdata.ResourceMetrics, name string) int64 {
	m := FindMetric(rm, name)
	if m == nil {
		return 0
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		return 0
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

// SumInt64Where adds up the data points of an int64 counter that carry the attribute.
func SumInt64Where(rm metricdata.ResourceMetrics, name string, attr attribute.KeyValue) int64 {
	m := FindMetric(rm, name)
	if m == nil {
		return 0
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		return 0
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if v, found := dp.Attributes.Value(attr.Key); found && v == attr.Value {
			total += dp.Value
		}
	}
	return total
}

// HistogramCount returns the number of recordings of a float64 histogram.
func HistogramCount(rm metricdata.ResourceMetrics, name string) uint64 {
	m := FindMetric(rm, name)
	if m == nil {
		return 0
	}
	hist, ok := m.Data.(metricdata.Histogram[float64])
	if !ok {
		return 0
	}
	var total uint64
	for _, dp := range hist.DataPoints {
		total += dp.Count
	}
	return total
}

// SpanAttribute looks up an attribute on a span.
func SpanAttribute(span tracetest.SpanStub, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

// AssertSpanAttribute asserts that a span carries key with the expected value.
func AssertSpanAttribute(t *testing.T, span tracetest.SpanStub, key string, expected any) {
	t.Helper()
	v, ok := SpanAttribute(span, key)
	require.True(t, ok, "attribute %s not found on span %s", key, span.Name)
	assert.Equal(t, expected, v.AsInterface(), "attribute %s value mismatch", key)
}
