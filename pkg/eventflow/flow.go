package eventflow

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/randalmurphal/eventflow/pkg/eventflow/event"
	"github.com/randalmurphal/eventflow/pkg/eventflow/observability"
)

// Guard decides whether a flow attempts a traversal for an event at
// all. A false result or an error rejects the event silently: no
// nodes run, no records are produced.
type Guard func(ev *event.Event) (bool, error)

// Flow is one registered, independently prioritized event processor
// wrapping a graph. Priority changes take effect on the next
// dispatch, never on an in-progress traversal.
type Flow struct {
	name     string
	graph    *Graph
	priority atomic.Int64

	gmu   sync.RWMutex
	guard Guard
}

// NewFlow creates a flow over graph.
//
// Panics if name is empty or graph is nil.
func NewFlow(name string, graph *Graph, opts ...FlowOption) *Flow {
	if name == "" {
		panic("eventflow: flow name cannot be empty")
	}
	if graph == nil {
		panic("eventflow: flow graph cannot be nil")
	}
	f := &Flow{name: name, graph: graph}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name returns the flow's name.
func (f *Flow) Name() string { return f.name }

// Graph returns the flow's graph. Combinators may extend it at any
// time; running traversals keep the snapshot they started with.
func (f *Flow) Graph() *Graph { return f.graph }

// Priority returns the flow's current dispatch priority.
func (f *Flow) Priority() int { return int(f.priority.Load()) }

// SetPriority changes the flow's priority, effective next dispatch.
func (f *Flow) SetPriority(p int) { f.priority.Store(int64(p)) }

// SetGuard replaces the flow's guard, effective next traversal.
func (f *Flow) SetGuard(g Guard) {
	f.gmu.Lock()
	f.guard = g
	f.gmu.Unlock()
}

// currentGuard returns the guard to evaluate for one traversal.
func (f *Flow) currentGuard() Guard {
	f.gmu.RLock()
	defer f.gmu.RUnlock()
	return f.guard
}

// Outcome classifies how a traversal ended.
type Outcome int8

// Traversal outcomes.
const (
	// OutcomeCompleted means the walk visited every reachable node.
	OutcomeCompleted Outcome = iota
	// OutcomeRejected means the guard declined the event; nothing ran.
	OutcomeRejected
	// OutcomeTerminated means a node aborted the traversal on purpose.
	OutcomeTerminated
	// OutcomeFailed means a node returned an error or panicked.
	OutcomeFailed
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeRejected:
		return "rejected"
	case OutcomeTerminated:
		return "terminated"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result reports one finished traversal.
type Result struct {
	// Outcome classifies the ending.
	Outcome Outcome
	// Blocked is the propagation-block flag consulted by the dispatcher.
	Blocked bool
	// RunID identifies the traversal.
	RunID string
	// Records is the traversal's record trail.
	Records []Record
	// Err is the failure for OutcomeFailed, nil otherwise.
	Err error
}

// Handle runs one traversal of the flow against ev. Failures are
// contained: they are reported in the Result, never panicked or
// returned separately.
func (f *Flow) Handle(ctx context.Context, ev *event.Event, opts ...RunOption) *Result {
	if ev == nil {
		return &Result{Outcome: OutcomeFailed, Err: ErrNilEvent}
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	runID := uuid.New().String()
	tctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	t := &traversal{
		ctx:            tctx,
		cancel:         cancel,
		flow:           f,
		runID:          runID,
		logger:         cfg.logger,
		rt:             cfg.rt,
		store:          NewStore(),
		records:        &RecordLog{},
		mgr:            cfg.mgr,
		metrics:        cfg.metrics,
		spans:          cfg.spans,
		adapters:       cfg.adapters,
		args:           cfg.args,
		suspendTimeout: cfg.suspendTimeout,
		event:          ev,
	}

	observability.LogTraversalStart(t.logger, f.name, runID, ev.ID())
	done := observability.TimedOperation()
	sctx, span := t.spans.StartTraversalSpan(tctx, f.name, runID)
	t.ctx = sctx

	res := t.run(f)
	res.RunID = runID
	res.Blocked = t.isBlocked()
	res.Records = t.records.All()

	t.spans.EndSpanWithError(span, res.Err)
	elapsed := done()
	t.metrics.RecordTraversal(ctx, f.name, res.Outcome.String(), msToDuration(elapsed))
	if res.Err != nil {
		observability.LogTraversalError(t.logger, f.name, runID, res.Err)
	}
	observability.LogTraversalDone(t.logger, f.name, runID, res.Outcome.String(), elapsed)

	return res
}
