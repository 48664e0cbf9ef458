package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the engine tracer instance, backed by the global OTel
// tracer provider.
var tracer = otel.Tracer("eventflow")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartDispatchSpan starts a span covering one event's dispatch round.
	StartDispatchSpan(ctx context.Context, eventID, protocol string) (context.Context, trace.Span)

	// StartTraversalSpan starts a span for one flow traversal.
	// It should be a child of the dispatch span.
	StartTraversalSpan(ctx context.Context, flow, runID string) (context.Context, trace.Span)

	// StartNodeSpan starts a span for a node execution.
	StartNodeSpan(ctx context.Context, node string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure
// the provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartDispatchSpan starts a span for one dispatch round.
func (m *otelSpanManager) StartDispatchSpan(ctx context.Context, eventID, protocol string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "eventflow.dispatch",
		trace.WithAttributes(
			attribute.String("event.id", eventID),
			attribute.String("event.protocol", protocol),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartTraversalSpan starts a span for one flow traversal.
func (m *otelSpanManager) StartTraversalSpan(ctx context.Context, flow, runID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "eventflow.traversal",
		trace.WithAttributes(
			attribute.String("flow.name", flow),
			attribute.String("run.id", runID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartNodeSpan starts a span for a node execution.
func (m *otelSpanManager) StartNodeSpan(ctx context.Context, node string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "eventflow.node."+node,
		trace.WithAttributes(
			attribute.String("node.name", node),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
