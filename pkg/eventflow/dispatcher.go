package eventflow

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/randalmurphal/eventflow/pkg/eventflow/event"
	"github.com/randalmurphal/eventflow/pkg/eventflow/journal"
	"github.com/randalmurphal/eventflow/pkg/eventflow/observability"
	"github.com/randalmurphal/eventflow/pkg/eventflow/session"
)

// Dispatcher fans incoming events out to registered flows, tier by
// tier in descending priority. Suspended sessions get first claim on
// every event; a claimed event never reaches ordinary dispatch.
type Dispatcher struct {
	mu        sync.Mutex
	flows     map[*Flow]struct{}
	dismissed map[*Flow]struct{}

	sessions       *session.Manager
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	journal        journal.Store
	adapters       []any
	suspendTimeout time.Duration
}

// NewDispatcher creates a dispatcher with no registered flows.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		flows:     make(map[*Flow]struct{}),
		dismissed: make(map[*Flow]struct{}),
		sessions:  session.NewManager(),
		logger:    slog.Default(),
		metrics:   observability.NoopMetrics{},
		spans:     observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Sessions returns the dispatcher's session manager.
func (d *Dispatcher) Sessions() *session.Manager { return d.sessions }

// Register adds a flow, effective next dispatch. Registering the same
// flow twice returns ErrFlowRegistered; a deregistered flow cannot
// come back (ErrFlowDismissed).
func (d *Dispatcher) Register(f *Flow) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.dismissed[f]; ok {
		return ErrFlowDismissed
	}
	if _, ok := d.flows[f]; ok {
		return ErrFlowRegistered
	}
	d.flows[f] = struct{}{}
	return nil
}

// Deregister dismisses a flow. In-flight traversals finish; the flow
// is excluded from future dispatches. Deregistering an unknown flow
// is a no-op.
func (d *Dispatcher) Deregister(f *Flow) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.flows[f]; !ok {
		return
	}
	delete(d.flows, f)
	d.dismissed[f] = struct{}{}
}

// UpdatePriority changes a flow's priority, effective next dispatch.
func (d *Dispatcher) UpdatePriority(f *Flow, priority int) {
	f.SetPriority(priority)
}

// Flows returns the registered, non-dismissed flows in descending
// priority order.
func (d *Dispatcher) Flows() []*Flow {
	d.mu.Lock()
	flows := make([]*Flow, 0, len(d.flows))
	for f := range d.flows {
		flows = append(flows, f)
	}
	d.mu.Unlock()

	sort.SliceStable(flows, func(i, j int) bool {
		if flows[i].Priority() != flows[j].Priority() {
			return flows[i].Priority() > flows[j].Priority()
		}
		return flows[i].Name() < flows[j].Name()
	})
	return flows
}

// tiers groups the registered flows by priority, highest first.
func (d *Dispatcher) tiers() [][]*Flow {
	flows := d.Flows()
	var out [][]*Flow
	for _, f := range flows {
		if n := len(out); n > 0 && out[n-1][0].Priority() == f.Priority() {
			out[n-1] = append(out[n-1], f)
			continue
		}
		out = append(out, []*Flow{f})
	}
	return out
}

// Dispatch offers one event to suspended sessions, then to the
// registered flows tier by tier. Within a tier all flows run
// concurrently and the dispatcher waits for the whole tier; if any
// traversal set the block flag, lower tiers are not dispatched.
// Traversal failures are logged and contained, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *event.Event) error {
	if ev == nil {
		return ErrNilEvent
	}

	observability.LogDispatchStart(d.logger, ev.ID(), ev.Protocol())
	done := observability.TimedOperation()
	sctx, span := d.spans.StartDispatchSpan(ctx, ev.ID(), ev.Protocol())

	claimed, err := d.sessions.Claim(ev)
	if err != nil {
		d.logger.Warn("session rule failed during claim",
			slog.String("event_id", ev.ID()),
			slog.String("error", err.Error()),
		)
	}
	if claimed {
		d.spans.EndSpanWithError(span, nil)
		elapsed := done()
		d.metrics.RecordDispatch(ctx, ev.Protocol(), true, msToDuration(elapsed))
		observability.LogDispatchDone(d.logger, ev.ID(), 0, elapsed)
		return nil
	}

	ran := 0
	for _, tier := range d.tiers() {
		results := make([]*Result, len(tier))
		var wg sync.WaitGroup
		for i, f := range tier {
			wg.Add(1)
			go func(i int, f *Flow) {
				defer wg.Done()
				results[i] = f.Handle(sctx, ev,
					withRuntime(d),
					WithRunLogger(d.logger),
					WithSessionManager(d.sessions),
					WithSuspendTimeout(d.suspendTimeout),
				)
			}(i, f)
		}
		wg.Wait()

		blocked := false
		for i, res := range results {
			if res.Outcome != OutcomeRejected {
				ran++
			}
			if res.Blocked {
				blocked = true
			}
			d.archive(tier[i], ev, res)
		}
		if blocked {
			break
		}
	}

	d.spans.EndSpanWithError(span, nil)
	elapsed := done()
	d.metrics.RecordDispatch(ctx, ev.Protocol(), false, msToDuration(elapsed))
	observability.LogDispatchDone(d.logger, ev.ID(), ran, elapsed)
	return nil
}

// Serve dispatches events from a channel until it closes or ctx is
// cancelled. Each event is dispatched on its own goroutine: a
// traversal suspended on a session must not hold up the events that
// could resume it. Serve waits for in-flight dispatches before
// returning.
func (d *Dispatcher) Serve(ctx context.Context, events <-chan *event.Event) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev == nil {
				continue
			}
			wg.Add(1)
			go func(ev *event.Event) {
				defer wg.Done()
				if err := d.Dispatch(ctx, ev); err != nil {
					d.logger.Error("dispatch failed",
						slog.String("error", err.Error()),
					)
				}
			}(ev)
		}
	}
}

// archive writes a finished traversal's trail to the journal, if one
// is configured.
func (d *Dispatcher) archive(f *Flow, ev *event.Event, res *Result) {
	if d.journal == nil || res == nil || len(res.Records) == 0 {
		return
	}

	entries := make([]journal.Entry, len(res.Records))
	for i, r := range res.Records {
		entries[i] = journal.Entry{
			RunID:     res.RunID,
			Flow:      f.Name(),
			EventID:   r.EventID,
			Seq:       i,
			Stage:     string(r.Stage),
			Node:      r.Node,
			Timestamp: r.At,
		}
	}
	if err := d.journal.Append(entries); err != nil {
		observability.LogJournalError(d.logger, res.RunID, err)
	}
}
