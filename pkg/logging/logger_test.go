package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		out = append(out, entry)
	}
	return out
}

func TestStructuredLogger_JSONEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("covid-waves", "1.0.0", InfoLevel)
	logger.SetOutput(&buf)

	ctx := WithRequestID(context.Background(), "req-42")
	logger.Info(ctx, "[STAGE_COMPLETE] Cleaning done", Fields{"stage": "clean", "rows": 12})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "info", e["level"])
	assert.Equal(t, "[STAGE_COMPLETE] Cleaning done", e["message"])
	assert.Equal(t, "covid-waves", e["service"])
	assert.Equal(t, "clean", e["stage"])
	assert.Equal(t, float64(12), e["rows"])
	assert.Equal(t, "req-42", e["request_id"])
}

func TestStructuredLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("test", "dev", WarnLevel)
	logger.SetOutput(&buf)

	logger.Debug(context.Background(), "hidden", nil)
	logger.Info(context.Background(), "hidden", nil)
	logger.Warn(context.Background(), "shown", nil)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "shown", entries[0]["message"])
}

func TestStructuredLogger_ErrorCarriesCause(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("test", "dev", DebugLevel)
	logger.SetOutput(&buf)

	logger.Error(context.Background(), "[LOAD_ERROR] Load failed", Fields{"path": "x.csv"}, errors.New("boom"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "error", entries[0]["level"])
	assert.Equal(t, "boom", entries[0]["error"])
	assert.Contains(t, entries[0], "caller")
}

func TestContextLogger_MergesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStructuredLogger("test", "dev", DebugLevel)
	logger.SetOutput(&buf)

	stageLog := logger.WithFields(Fields{"stage": "aggregate", "rows": 1})
	stageLog.Info(context.Background(), "step", Fields{"rows": 2})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "aggregate", entries[0]["stage"])
	assert.Equal(t, float64(2), entries[0]["rows"], "call fields override context fields")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, WarnLevel, ParseLevel("warning"))
	assert.Equal(t, ErrorLevel, ParseLevel("error"))
	assert.Equal(t, InfoLevel, ParseLevel(""))
	assert.Equal(t, "WARN", WarnLevel.String())
}
