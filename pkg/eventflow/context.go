package eventflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/eventflow/pkg/eventflow/event"
	"github.com/randalmurphal/eventflow/pkg/eventflow/observability"
	"github.com/randalmurphal/eventflow/pkg/eventflow/session"
)

// traversal is the state shared by every node visit of one (flow,
// event) pairing. It is never shared between traversals.
type traversal struct {
	ctx    context.Context
	cancel context.CancelCauseFunc

	flow    *Flow
	runID   string
	logger  *slog.Logger
	rt      *Dispatcher
	store   *Store
	records *RecordLog
	mgr     *session.Manager
	metrics observability.MetricsRecorder
	spans   observability.SpanManager

	adapters       []any
	args           any
	suspendTimeout time.Duration

	mu         sync.Mutex
	event      *event.Event
	blocked    bool
	terminated bool
	failure    error
	sessions   []*session.Session

	// wg tracks paths started with Advance.
	wg sync.WaitGroup
}

func (t *traversal) activeEvent() *event.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.event
}

func (t *traversal) setEvent(ev *event.Event) {
	t.mu.Lock()
	t.event = ev
	t.mu.Unlock()
}

func (t *traversal) isBlocked() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.blocked
}

func (t *traversal) terminate() {
	t.mu.Lock()
	already := t.terminated
	t.terminated = true
	t.mu.Unlock()
	if !already {
		t.cancel(errTerminated)
	}
}

func (t *traversal) isTerminated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.terminated
}

// fail records the first failure and aborts the traversal.
func (t *traversal) fail(err error) {
	t.mu.Lock()
	if t.failure == nil {
		t.failure = err
	}
	t.mu.Unlock()
	t.terminate()
}

func (t *traversal) failErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failure
}

func (t *traversal) innermost() *session.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sessions) == 0 {
		return nil
	}
	return t.sessions[len(t.sessions)-1]
}

func (t *traversal) record(stage Stage, node string) {
	t.records.append(Record{
		Flow:    t.flow.Name(),
		Node:    node,
		Stage:   stage,
		EventID: t.activeEvent().ID(),
	})
}

// walkFrame is the graph view one walk runs over. CallFlow pushes a
// new frame for the sub-flow while sharing the traversal.
type walkFrame struct {
	flow *Flow
	shot *graphShot
}

// Context is the per-visit handle passed to a node body. It carries
// the traversal's shared state plus the identity of the node being
// visited, and implements context.Context for cancellation.
type Context struct {
	context.Context
	t     *traversal
	frame *walkFrame
	node  *Node

	mu       sync.Mutex
	advanced bool
}

// Event returns the traversal's active event. After a session resume
// this is the event that woke the session.
func (c *Context) Event() *event.Event { return c.t.activeEvent() }

// Flow returns the flow whose graph is being walked. Within CallFlow
// this is the sub-flow.
func (c *Context) Flow() *Flow { return c.frame.flow }

// Node returns the node being visited.
func (c *Context) Node() *Node { return c.node }

// RunID returns the traversal's unique run identifier.
func (c *Context) RunID() string { return c.t.runID }

// Store returns the traversal-wide key/value store.
func (c *Context) Store() *Store { return c.t.store }

// Records returns the traversal's record trail.
func (c *Context) Records() *RecordLog { return c.t.records }

// Logger returns the traversal logger enriched with the current flow
// and node.
func (c *Context) Logger() *slog.Logger {
	return observability.EnrichLogger(c.t.logger, c.t.runID, c.frame.flow.Name(), c.node.Name())
}

// Block sets the propagation-block flag: after this traversal's tier
// finishes, the dispatcher will not offer the event to lower-priority
// tiers. The current walk continues.
func (c *Context) Block() {
	c.t.mu.Lock()
	c.t.blocked = true
	c.t.mu.Unlock()
	c.t.record(StageBlock, c.node.Name())
}

// Terminate aborts the entire traversal, including sibling paths.
// Usable from arbitrarily deep inside a node body; the body should
// still return promptly (the verdict no longer matters).
func (c *Context) Terminate() {
	c.t.terminate()
}

// Advance starts the node's successors immediately, concurrent with
// the remainder of the node body. The body's eventual verdict no
// longer controls successor continuation. Calling Advance twice is a
// no-op.
func (c *Context) Advance() {
	c.mu.Lock()
	if c.advanced {
		c.mu.Unlock()
		return
	}
	c.advanced = true
	c.mu.Unlock()

	succs := c.frame.shot.nexts[c.node]
	c.t.wg.Add(1)
	go func() {
		defer c.t.wg.Done()
		err := c.t.descend(c.frame, succs)
		if err != nil && !errors.Is(err, errTerminated) {
			c.t.fail(err)
		} else if err != nil {
			c.t.terminate()
		}
	}()
}

func (c *Context) wasAdvanced() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.advanced
}

// CallFlow runs sub's graph inline: same store, same records, same
// active event, same sessions. The sub-flow's guard is not consulted.
// A Terminate inside the sub-flow terminates the calling traversal
// too; a node failure is returned as the sub-flow's error.
func (c *Context) CallFlow(sub *Flow) error {
	frame := &walkFrame{flow: sub, shot: sub.graph.snapshot()}
	c.t.record(StageFlowStart, "")
	err := c.t.descend(frame, frame.shot.starts)
	if err != nil {
		c.t.record(StageFlowEarlyFinish, "")
		return err
	}
	c.t.record(StageFlowFinish, "")
	return nil
}

// EnterSession opens a (nestable) session scope for the traversal.
// Suspend targets the innermost open session. A nil rule falls back
// to matching on equal event scope.
func (c *Context) EnterSession(rule session.Rule) *session.Session {
	if rule == nil {
		rule = session.ScopeRule()
	}
	s := c.t.mgr.Open(c.t.activeEvent(), rule)
	c.t.mu.Lock()
	c.t.sessions = append(c.t.sessions, s)
	c.t.mu.Unlock()
	return s
}

// ExitSession closes the innermost session scope.
func (c *Context) ExitSession() {
	c.t.mu.Lock()
	var s *session.Session
	if n := len(c.t.sessions); n > 0 {
		s = c.t.sessions[n-1]
		c.t.sessions = c.t.sessions[:n-1]
	}
	c.t.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

// Suspend parks the traversal on its innermost session until an event
// matching the session's rule arrives or the timeout elapses. A zero
// timeout falls back to the traversal's default; a negative default
// means wait indefinitely.
//
// On resume it returns true and the traversal's active event is
// replaced by the resuming event. On timeout it returns false and the
// active event is unchanged.
func (c *Context) Suspend(timeout time.Duration) (bool, error) {
	s := c.t.innermost()
	if s == nil {
		return false, ErrNoSession
	}
	if timeout == 0 {
		timeout = c.t.suspendTimeout
	}
	if timeout < 0 {
		timeout = 0
	}

	flow := c.frame.flow.Name()
	observability.LogSessionSuspend(c.t.logger, flow, c.Event().Scope(), timeout)

	ev, ok := s.Suspend(c, timeout)
	if !ok {
		observability.LogSessionExpire(c.t.logger, flow, c.Event().Scope())
		c.t.metrics.RecordSessionExpired(c, flow)
		return false, nil
	}

	c.t.setEvent(ev)
	observability.LogSessionWake(c.t.logger, flow, ev.ID())
	return true, nil
}

// Ambient lookup surface for the dependency resolver.

// AmbientEvent implements di.Ambient.
func (c *Context) AmbientEvent() any {
	ev := c.t.activeEvent()
	if ev == nil {
		return nil
	}
	return ev
}

// AmbientRuntime implements di.Ambient.
func (c *Context) AmbientRuntime() any {
	if c.t.rt == nil {
		return nil
	}
	return c.t.rt
}

// AmbientAdapters implements di.Ambient.
func (c *Context) AmbientAdapters() []any { return c.t.adapters }

// AmbientLogger implements di.Ambient.
func (c *Context) AmbientLogger() *slog.Logger { return c.t.logger }

// AmbientFlowStore implements di.Ambient.
func (c *Context) AmbientFlowStore() any { return c.t.store }

// AmbientRecords implements di.Ambient.
func (c *Context) AmbientRecords() any { return c.t.records }

// AmbientSession implements di.Ambient.
func (c *Context) AmbientSession() any {
	s := c.t.innermost()
	if s == nil {
		return nil
	}
	return s
}

// AmbientSessionStore implements di.Ambient.
func (c *Context) AmbientSessionStore() any {
	s := c.t.innermost()
	if s == nil {
		return nil
	}
	return s.Store()
}

// AmbientRule implements di.Ambient.
func (c *Context) AmbientRule() any {
	s := c.t.innermost()
	if s == nil {
		return nil
	}
	return s.Rule()
}

// AmbientArgs implements di.Ambient.
func (c *Context) AmbientArgs() any { return c.t.args }
