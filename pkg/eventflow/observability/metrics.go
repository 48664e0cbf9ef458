package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records engine metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordDispatch records one event's dispatch round.
	RecordDispatch(ctx context.Context, protocol string, claimed bool, duration time.Duration)

	// RecordTraversal records a flow traversal with its outcome.
	RecordTraversal(ctx context.Context, flow, outcome string, duration time.Duration)

	// RecordNodeRun records a node execution with its duration and error status.
	RecordNodeRun(ctx context.Context, flow, node string, duration time.Duration, err error)

	// RecordSessionExpired counts a session that timed out.
	RecordSessionExpired(ctx context.Context, flow string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	dispatches       metric.Int64Counter
	dispatchLatency  metric.Float64Histogram
	traversals       metric.Int64Counter
	traversalLatency metric.Float64Histogram
	nodeRuns         metric.Int64Counter
	nodeLatency      metric.Float64Histogram
	nodeErrors       metric.Int64Counter
	sessionsExpired  metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("eventflow")

	dispatches, err := meter.Int64Counter("eventflow.dispatch.events",
		metric.WithDescription("Number of events dispatched"),
	)
	if err != nil {
		return nil, err
	}

	dispatchLatency, err := meter.Float64Histogram("eventflow.dispatch.latency_ms",
		metric.WithDescription("Dispatch round latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	traversals, err := meter.Int64Counter("eventflow.traversal.runs",
		metric.WithDescription("Number of flow traversals"),
	)
	if err != nil {
		return nil, err
	}

	traversalLatency, err := meter.Float64Histogram("eventflow.traversal.latency_ms",
		metric.WithDescription("Flow traversal latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	nodeRuns, err := meter.Int64Counter("eventflow.node.runs",
		metric.WithDescription("Number of node executions"),
	)
	if err != nil {
		return nil, err
	}

	nodeLatency, err := meter.Float64Histogram("eventflow.node.latency_ms",
		metric.WithDescription("Node execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	nodeErrors, err := meter.Int64Counter("eventflow.node.errors",
		metric.WithDescription("Number of node execution errors"),
	)
	if err != nil {
		return nil, err
	}

	sessionsExpired, err := meter.Int64Counter("eventflow.session.expired",
		metric.WithDescription("Number of sessions expired while suspended"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		dispatches:       dispatches,
		dispatchLatency:  dispatchLatency,
		traversals:       traversals,
		traversalLatency: traversalLatency,
		nodeRuns:         nodeRuns,
		nodeLatency:      nodeLatency,
		nodeErrors:       nodeErrors,
		sessionsExpired:  sessionsExpired,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordDispatch records one dispatch round.
func (m *otelMetrics) RecordDispatch(ctx context.Context, protocol string, claimed bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("protocol", protocol),
		attribute.Bool("claimed", claimed),
	}
	m.dispatches.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.dispatchLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordTraversal records a flow traversal.
func (m *otelMetrics) RecordTraversal(ctx context.Context, flow, outcome string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("flow", flow),
		attribute.String("outcome", outcome),
	}
	m.traversals.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.traversalLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordNodeRun records a node execution.
func (m *otelMetrics) RecordNodeRun(ctx context.Context, flow, node string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("flow", flow),
		attribute.String("node", node),
	}
	m.nodeRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.nodeLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		m.nodeErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordSessionExpired counts an expired session.
func (m *otelMetrics) RecordSessionExpired(ctx context.Context, flow string) {
	m.sessionsExpired.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flow", flow),
	))
}
