package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNoopProvider(t *testing.T) {
	p := newNoopProvider()

	_, ok := p.TracerProvider().(noop.TracerProvider)
	assert.True(t, ok, "expected noop.TracerProvider")

	counter, err := CreateCounter(p.MeterProvider().Meter("test"), "noop.calls", "calls")
	assert.NoError(t, err)
	counter.Add(context.Background(), 1)

	assert.NoError(t, p.ForceFlush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}
