package eventflow

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/eventflow/pkg/eventflow/journal"
	"github.com/randalmurphal/eventflow/pkg/eventflow/observability"
	"github.com/randalmurphal/eventflow/pkg/eventflow/session"
)

// FlowOption configures a flow at construction.
type FlowOption func(*Flow)

// WithGuard sets the flow's guard predicate.
func WithGuard(g Guard) FlowOption {
	return func(f *Flow) { f.guard = g }
}

// WithPriority sets the flow's initial dispatch priority.
func WithPriority(p int) FlowOption {
	return func(f *Flow) { f.priority.Store(int64(p)) }
}

// runConfig collects the collaborators one traversal runs with.
type runConfig struct {
	logger         *slog.Logger
	mgr            *session.Manager
	rt             *Dispatcher
	adapters       []any
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	args           any
	suspendTimeout time.Duration
}

func defaultRunConfig() runConfig {
	return runConfig{
		logger:  slog.Default(),
		mgr:     session.NewManager(),
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
}

// RunOption configures one Handle call.
type RunOption func(*runConfig)

// WithRunLogger sets the traversal's logger.
func WithRunLogger(l *slog.Logger) RunOption {
	return func(c *runConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSessionManager sets the session manager the traversal suspends
// against. Traversals that should resume each other must share one.
func WithSessionManager(m *session.Manager) RunOption {
	return func(c *runConfig) {
		if m != nil {
			c.mgr = m
		}
	}
}

// WithArgs attaches a parsed-argument object, retrievable in nodes
// through di.Args.
func WithArgs(args any) RunOption {
	return func(c *runConfig) { c.args = args }
}

// WithSuspendTimeout sets the default deadline Suspend falls back to
// when called with a zero timeout. Zero means wait indefinitely.
func WithSuspendTimeout(d time.Duration) RunOption {
	return func(c *runConfig) { c.suspendTimeout = d }
}

// withRuntime wires the dispatcher and its adapters into a traversal.
func withRuntime(d *Dispatcher) RunOption {
	return func(c *runConfig) {
		c.rt = d
		c.adapters = d.adapters
		c.metrics = d.metrics
		c.spans = d.spans
	}
}

// Option configures a dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher's logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder (default no-op).
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithTracing sets the span manager (default no-op).
func WithTracing(s observability.SpanManager) Option {
	return func(d *Dispatcher) {
		if s != nil {
			d.spans = s
		}
	}
}

// WithJournal archives finished traversal trails to store.
func WithJournal(store journal.Store) Option {
	return func(d *Dispatcher) { d.journal = store }
}

// WithAdapters registers the adapter handles nodes can look up with
// di.AdapterOf.
func WithAdapters(adapters ...any) Option {
	return func(d *Dispatcher) { d.adapters = append(d.adapters, adapters...) }
}

// WithDispatchSuspendTimeout sets the default session suspension
// deadline for traversals started by Dispatch.
func WithDispatchSuspendTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.suspendTimeout = timeout }
}
