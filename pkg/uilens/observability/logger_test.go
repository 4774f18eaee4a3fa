package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHandler captures log records for testing.
type testHandler struct {
	buf    *bytes.Buffer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func newTestHandler() *testHandler {
	return &testHandler{
		buf:   &bytes.Buffer{},
		level: slog.LevelDebug,
	}
}

func (h *testHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *testHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	for _, attr := range h.attrs {
		data[attr.Key] = attr.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})
	return json.NewEncoder(h.buf).Encode(data)
}

func (h *testHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newH := &testHandler{
		buf:    h.buf,
		level:  h.level,
		attrs:  make([]slog.Attr, len(h.attrs)+len(attrs)),
		groups: h.groups,
	}
	copy(newH.attrs, h.attrs)
	copy(newH.attrs[len(h.attrs):], attrs)
	return newH
}

func (h *testHandler) WithGroup(name string) slog.Handler {
	return &testHandler{
		buf:    h.buf,
		level:  h.level,
		attrs:  h.attrs,
		groups: append(h.groups, name),
	}
}

func (h *testHandler) getLastRecord() map[string]any {
	lines := bytes.Split(h.buf.Bytes(), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if len(lines[i]) > 0 {
			var m map[string]any
			if err := json.Unmarshal(lines[i], &m); err == nil {
				return m
			}
		}
	}
	return nil
}

func TestEnrichLogger(t *testing.T) {
	t.Run("adds checkpoint_id, url, and stage", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		enriched := EnrichLogger(logger, "cp-123", "https://example.com", "vision")
		enriched.Info("test message")

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "cp-123", record["checkpoint_id"])
		assert.Equal(t, "https://example.com", record["url"])
		assert.Equal(t, "vision", record["stage"])
		assert.Equal(t, "test message", record["msg"])
	})

	t.Run("nil logger returns nil", func(t *testing.T) {
		enriched := EnrichLogger(nil, "cp-123", "https://example.com", "vision")
		assert.Nil(t, enriched)
	})
}

func TestLogRunStart(t *testing.T) {
	t.Run("logs checkpoint_id and url at INFO level", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogRunStart(logger, "cp-456", "https://example.com")

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "INFO", record["level"])
		assert.Equal(t, "pipeline run starting", record["msg"])
		assert.Equal(t, "cp-456", record["checkpoint_id"])
		assert.Equal(t, "https://example.com", record["url"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogRunStart(nil, "cp-123", "https://example.com")
		})
	})
}

func TestLogRunComplete(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)

	LogRunComplete(logger, "cp-789", 123.5, 4)

	record := h.getLastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "INFO", record["level"])
	assert.Equal(t, "pipeline run completed", record["msg"])
	assert.Equal(t, "cp-789", record["checkpoint_id"])
	assert.Equal(t, 123.5, record["duration_ms"])
	assert.Equal(t, float64(4), record["stages_executed"])
}

func TestLogRunError(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)
	testErr := errors.New("navigation failed")

	LogRunError(logger, "cp-err", testErr, 50.0, "screenshot")

	record := h.getLastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "pipeline run failed", record["msg"])
	assert.Equal(t, "cp-err", record["checkpoint_id"])
	assert.Equal(t, "navigation failed", record["error"])
	assert.Equal(t, 50.0, record["duration_ms"])
	assert.Equal(t, "screenshot", record["last_stage"])
}

func TestLogStage(t *testing.T) {
	t.Run("start at DEBUG level", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogStageStart(logger, "extraction")

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "DEBUG", record["level"])
		assert.Equal(t, "stage starting", record["msg"])
		assert.Equal(t, "extraction", record["stage"])
	})

	t.Run("complete with duration", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogStageComplete(logger, "extraction", 42.0)

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "stage completed", record["msg"])
		assert.Equal(t, 42.0, record["duration_ms"])
	})

	t.Run("error at ERROR level", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogStageError(logger, "vision", errors.New("model unavailable"))

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "ERROR", record["level"])
		assert.Equal(t, "stage failed", record["msg"])
		assert.Equal(t, "model unavailable", record["error"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogStageStart(nil, "vision")
			LogStageComplete(nil, "vision", 1.0)
			LogStageError(nil, "vision", errors.New("x"))
		})
	})
}

func TestLogCheckpoint(t *testing.T) {
	t.Run("logs save with size", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogCheckpoint(logger, "screenshot", 2048)

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "DEBUG", record["level"])
		assert.Equal(t, "checkpoint saved", record["msg"])
		assert.Equal(t, float64(2048), record["size_bytes"])
	})

	t.Run("logs failure at WARN level", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogCheckpointError(logger, "vision", "update", errors.New("disk full"))

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "WARN", record["level"])
		assert.Equal(t, "checkpoint failed", record["msg"])
		assert.Equal(t, "update", record["operation"])
		assert.Equal(t, "disk full", record["error"])
	})
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	time.Sleep(10 * time.Millisecond)
	elapsed := done()

	assert.GreaterOrEqual(t, elapsed, float64(10))
	assert.Less(t, elapsed, float64(5000))
}
