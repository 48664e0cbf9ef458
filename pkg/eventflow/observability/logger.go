// Package observability provides structured logging, metrics, and
// tracing for the event engine.
//
// Logging uses slog from the standard library; metrics and tracing
// use OpenTelemetry. Metrics and tracing are opt-in with no-op
// implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds dispatch context to a logger. Returns a new
// logger carrying run_id, flow, and node fields.
func EnrichLogger(logger *slog.Logger, runID, flow, node string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("flow", flow),
		slog.String("node", node),
	)
}

// LogDispatchStart logs the arrival of an event at the dispatcher.
func LogDispatchStart(logger *slog.Logger, eventID, protocol string) {
	if logger == nil {
		return
	}
	logger.Debug("event dispatch starting",
		slog.String("event_id", eventID),
		slog.String("protocol", protocol),
	)
}

// LogDispatchDone logs completion of an event's dispatch round.
func LogDispatchDone(logger *slog.Logger, eventID string, flows int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("event dispatch completed",
		slog.String("event_id", eventID),
		slog.Int("flows_run", flows),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogTraversalStart logs the start of one flow traversal.
func LogTraversalStart(logger *slog.Logger, flow, runID, eventID string) {
	if logger == nil {
		return
	}
	logger.Debug("flow traversal starting",
		slog.String("flow", flow),
		slog.String("run_id", runID),
		slog.String("event_id", eventID),
	)
}

// LogTraversalDone logs the outcome of one flow traversal.
func LogTraversalDone(logger *slog.Logger, flow, runID, outcome string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("flow traversal finished",
		slog.String("flow", flow),
		slog.String("run_id", runID),
		slog.String("outcome", outcome),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogTraversalError logs a traversal that failed with an error or a
// recovered panic.
func LogTraversalError(logger *slog.Logger, flow, runID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("flow traversal failed",
		slog.String("flow", flow),
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
	)
}

// LogNodeSkip logs a node skipped because a dependency was not
// satisfied by the current event.
func LogNodeSkip(logger *slog.Logger, flow, node, reason string) {
	if logger == nil {
		return
	}
	logger.Debug("node skipped",
		slog.String("flow", flow),
		slog.String("node", node),
		slog.String("reason", reason),
	)
}

// LogSessionSuspend logs a traversal parking on its session.
func LogSessionSuspend(logger *slog.Logger, flow, scope string, timeout time.Duration) {
	if logger == nil {
		return
	}
	logger.Debug("session suspended",
		slog.String("flow", flow),
		slog.String("scope", scope),
		slog.Duration("timeout", timeout),
	)
}

// LogSessionWake logs a suspended session resumed by a new event.
func LogSessionWake(logger *slog.Logger, flow, eventID string) {
	if logger == nil {
		return
	}
	logger.Debug("session woken",
		slog.String("flow", flow),
		slog.String("event_id", eventID),
	)
}

// LogSessionExpire logs a session that timed out while suspended.
func LogSessionExpire(logger *slog.Logger, flow, scope string) {
	if logger == nil {
		return
	}
	logger.Debug("session expired",
		slog.String("flow", flow),
		slog.String("scope", scope),
	)
}

// LogJournalError logs a journal write failure (non-fatal).
func LogJournalError(logger *slog.Logger, runID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("journal append failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation. The returned
// function yields the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
