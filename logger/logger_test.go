package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMessage = "test message"

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	return entry
}

func TestNewWithWriterLevels(t *testing.T) {
	tests := []struct {
		name        string
		level       string
		logDebug    bool
		expectEntry bool
	}{
		{name: "debug_level_emits_debug", level: "debug", logDebug: true, expectEntry: true},
		{name: "info_level_drops_debug", level: "info", logDebug: true, expectEntry: false},
		{name: "invalid_level_defaults_to_info", level: "nope", logDebug: false, expectEntry: true},
		{name: "error_level_drops_info", level: "error", logDebug: false, expectEntry: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewWithWriter(&buf, tt.level, false, nil)

			if tt.logDebug {
				log.Debug().Msg(testMessage)
			} else {
				log.Info().Msg(testMessage)
			}

			if tt.expectEntry {
				entry := decodeLine(t, &buf)
				assert.Equal(t, testMessage, entry["message"])
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestLogEventFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug", false, nil)

	log.Info().
		Str("session_id", "abc").
		Int("count", 3).
		Int64("matched", 7).
		Bool("joined", true).
		Dur("elapsed", 1500*time.Millisecond).
		Err(errors.New("boom")).
		Msg(testMessage)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "abc", entry["session_id"])
	assert.EqualValues(t, 3, entry["count"])
	assert.EqualValues(t, 7, entry["matched"])
	assert.Equal(t, true, entry["joined"])
	assert.Equal(t, "boom", entry["error"])
	assert.Contains(t, entry, "caller")
}

func TestSensitiveFieldsAreMasked(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", false, nil)

	log.Info().
		Str("password", "hunter2").
		Interface("filter", map[string]any{"email": "a@b.c", "passwordHash": "xyz"}).
		Msg(testMessage)

	entry := decodeLine(t, &buf)
	assert.Equal(t, DefaultMaskValue, entry["password"])
	filter, ok := entry["filter"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a@b.c", filter["email"])
	assert.Equal(t, DefaultMaskValue, filter["passwordHash"])
}

func TestWithFieldsFiltersValues(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", false, nil)

	log.WithFields(map[string]any{"component": "tx", "api_key": "k"}).Info().Msg(testMessage)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "tx", entry["component"])
	assert.Equal(t, DefaultMaskValue, entry["api_key"])
}

func TestWithContextUsesContextLogger(t *testing.T) {
	var base, ctxBuf bytes.Buffer
	log := NewWithWriter(&base, "info", false, nil)

	ctxLogger := zerolog.New(&ctxBuf)
	ctx := ctxLogger.WithContext(context.Background())

	log.WithContext(ctx).Info().Msg(testMessage)
	assert.Empty(t, base.String())
	assert.Contains(t, ctxBuf.String(), testMessage)

	assert.Same(t, log, log.WithContext(context.Background()))
	assert.Same(t, log, log.WithContext("not a context"))
}

func TestNopDiscards(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Error().Err(errors.New("x")).Msg(testMessage)
	})
}

func TestRequestCounters(t *testing.T) {
	ctx := WithTxCounter(WithDBCounter(context.Background()))

	IncrementDBCounter(ctx)
	IncrementDBCounter(ctx)
	AddDBElapsed(ctx, 250)
	IncrementTxCounter(ctx)

	assert.Equal(t, int64(2), GetDBCounter(ctx))
	assert.Equal(t, int64(250), GetDBElapsed(ctx))
	assert.Equal(t, int64(1), GetTxCounter(ctx))

	bare := context.Background()
	IncrementDBCounter(bare)
	IncrementTxCounter(bare)
	assert.Zero(t, GetDBCounter(bare))
	assert.Zero(t, GetTxCounter(bare))
}
