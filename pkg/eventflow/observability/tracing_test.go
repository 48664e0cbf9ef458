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

	// Save the original provider
	originalProvider := otel.GetTracerProvider()

	// Set test provider
	otel.SetTracerProvider(tp)

	// Update the package-level tracer
	tracer = otel.Tracer("eventflow")

	cleanup := func() {
		otel.SetTracerProvider(originalProvider)
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	}

	return exporter, cleanup
}

func attrValue(attrs []attribute.KeyValue, key attribute.Key) string {
	for _, attr := range attrs {
		if attr.Key == key {
			return attr.Value.AsString()
		}
	}
	return ""
}

func TestStartDispatchSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	m := NewSpanManager()

	t.Run("creates span with correct name and attributes", func(t *testing.T) {
		ctx := context.Background()
		_, span := m.StartDispatchSpan(ctx, "evt-123", "demo")
		require.NotNil(t, span)

		// End the span to flush it to the exporter
		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		assert.Equal(t, "eventflow.dispatch", s.Name)
		assert.Equal(t, "evt-123", attrValue(s.Attributes, "event.id"))
		assert.Equal(t, "demo", attrValue(s.Attributes, "event.protocol"))
	})
}

func TestStartTraversalSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	m := NewSpanManager()

	t.Run("nests under the dispatch span", func(t *testing.T) {
		ctx := context.Background()
		ctx, dispatchSpan := m.StartDispatchSpan(ctx, "evt-1", "demo")
		_, traversalSpan := m.StartTraversalSpan(ctx, "echo", "run-1")

		traversalSpan.End()
		dispatchSpan.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 2)

		// Spans flush in end order: traversal first
		child, parent := spans[0], spans[1]
		assert.Equal(t, "eventflow.traversal", child.Name)
		assert.Equal(t, "echo", attrValue(child.Attributes, "flow.name"))
		assert.Equal(t, "run-1", attrValue(child.Attributes, "run.id"))
		assert.Equal(t, parent.SpanContext.SpanID(), child.Parent.SpanID())
	})
}

func TestStartNodeSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	m := NewSpanManager()

	_, span := m.StartNodeSpan(context.Background(), "reply")
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "eventflow.node.reply", spans[0].Name)
	assert.Equal(t, "reply", attrValue(spans[0].Attributes, "node.name"))
}

func TestEndSpanWithError(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	m := NewSpanManager()

	t.Run("records error status", func(t *testing.T) {
		exporter.Reset()

		_, span := m.StartNodeSpan(context.Background(), "failing")
		m.EndSpanWithError(span, errors.New("node failed"))

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status.Code)
		require.Len(t, spans[0].Events, 1)
		assert.Equal(t, "exception", spans[0].Events[0].Name)
	})

	t.Run("records ok status on success", func(t *testing.T) {
		exporter.Reset()

		_, span := m.StartNodeSpan(context.Background(), "fine")
		m.EndSpanWithError(span, nil)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Ok, spans[0].Status.Code)
	})

	t.Run("tolerates nil span", func(t *testing.T) {
		m.EndSpanWithError(nil, errors.New("ignored"))
	})
}

func TestAddSpanEvent(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	m := NewSpanManager()

	ctx, span := m.StartDispatchSpan(context.Background(), "evt-1", "demo")
	m.AddSpanEvent(ctx, "session.claimed", attribute.String("scope", "chat:1"))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "session.claimed", spans[0].Events[0].Name)
}
