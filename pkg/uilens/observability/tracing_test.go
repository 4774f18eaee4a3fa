package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest creates a test tracer provider with an in-memory span recorder.
func setupTracingTest(t *testing.T) (*tracetest.InMemoryExporter, func()) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)

	originalProvider := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	// Update the package-level tracer
	tracer = otel.Tracer("uilens")

	cleanup := func() {
		otel.SetTracerProvider(originalProvider)
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	}

	return exporter, cleanup
}

func TestStartRunSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	mgr := NewSpanManager()

	t.Run("creates span with correct name and attributes", func(t *testing.T) {
		ctx := context.Background()
		_, span := mgr.StartRunSpan(ctx, "https://example.com", "cp-123")
		require.NotNil(t, span)

		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		assert.Equal(t, "uilens.run", s.Name)

		var url, checkpointID string
		for _, attr := range s.Attributes {
			switch attr.Key {
			case "run.url":
				url = attr.Value.AsString()
			case "checkpoint.id":
				checkpointID = attr.Value.AsString()
			}
		}
		assert.Equal(t, "https://example.com", url)
		assert.Equal(t, "cp-123", checkpointID)
	})

	t.Run("returns context with span", func(t *testing.T) {
		exporter.Reset()

		ctx := context.Background()
		newCtx, span := mgr.StartRunSpan(ctx, "https://example.com", "cp-456")
		assert.NotEqual(t, ctx, newCtx)

		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
	})
}

func TestStartStageSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	mgr := NewSpanManager()

	ctx := context.Background()
	_, span := mgr.StartStageSpan(ctx, "vision")
	require.NotNil(t, span)

	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	s := spans[0]
	assert.Equal(t, "uilens.stage.vision", s.Name)

	var stage string
	for _, attr := range s.Attributes {
		if attr.Key == "stage" {
			stage = attr.Value.AsString()
		}
	}
	assert.Equal(t, "vision", stage)
}

func TestEndSpanWithError(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	mgr := NewSpanManager()

	t.Run("records error and sets error status", func(t *testing.T) {
		_, span := mgr.StartStageSpan(context.Background(), "screenshot")
		mgr.EndSpanWithError(span, errors.New("navigation timeout"))

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		assert.Equal(t, codes.Error, s.Status.Code)
		assert.Equal(t, "navigation timeout", s.Status.Description)
		require.NotEmpty(t, s.Events)
	})

	t.Run("sets ok status on success", func(t *testing.T) {
		exporter.Reset()

		_, span := mgr.StartStageSpan(context.Background(), "screenshot")
		mgr.EndSpanWithError(span, nil)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Ok, spans[0].Status.Code)
	})

	t.Run("nil span does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			mgr.EndSpanWithError(nil, errors.New("x"))
		})
	})
}

func TestAddSpanEvent(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	mgr := NewSpanManager()

	ctx, span := mgr.StartRunSpan(context.Background(), "https://example.com", "cp-1")
	mgr.AddSpanEvent(ctx, "checkpoint.saved", attribute.Int("size_bytes", 1024))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	found := false
	for _, ev := range spans[0].Events {
		if ev.Name == "checkpoint.saved" {
			found = true
		}
	}
	assert.True(t, found, "Expected checkpoint.saved event on span")
}
