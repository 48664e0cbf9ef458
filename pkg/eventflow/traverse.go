package eventflow

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/randalmurphal/eventflow/pkg/eventflow/di"
	"github.com/randalmurphal/eventflow/pkg/eventflow/observability"
)

// Context satisfies the resolver's ambient surface.
var _ di.Ambient = (*Context)(nil)

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// run executes the whole traversal: guard, walk, cleanup,
// classification.
func (t *traversal) run(f *Flow) *Result {
	if guard := f.currentGuard(); guard != nil {
		ok, err := evalGuard(guard, t)
		if err != nil {
			observability.LogTraversalError(t.logger, f.name, t.runID, err)
			return &Result{Outcome: OutcomeRejected}
		}
		if !ok {
			return &Result{Outcome: OutcomeRejected}
		}
	}

	frame := &walkFrame{flow: f, shot: f.graph.snapshot()}
	t.record(StageFlowStart, "")

	err := t.descend(frame, frame.shot.starts)
	// Paths started with Advance must settle before the traversal is
	// classified.
	t.wg.Wait()
	t.closeSessions()

	if errors.Is(err, errTerminated) {
		err = nil
	}
	if err == nil {
		// A path started with Advance may have failed on its own.
		err = t.failErr()
	}

	switch {
	case err != nil:
		t.record(StageFlowEarlyFinish, "")
		return &Result{Outcome: OutcomeFailed, Err: err}
	case t.isTerminated():
		t.record(StageFlowEarlyFinish, "")
		return &Result{Outcome: OutcomeTerminated}
	default:
		t.record(StageFlowFinish, "")
		return &Result{Outcome: OutcomeCompleted}
	}
}

// evalGuard runs the guard with panic containment. A guard panic
// counts as a rejection, reported as an error for logging.
func evalGuard(guard Guard, t *traversal) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = &PanicError{
				Flow:  t.flow.Name(),
				Node:  "guard",
				Value: r,
				Stack: string(debug.Stack()),
			}
		}
	}()
	return guard(t.activeEvent())
}

// descend visits nodes in order, stopping at the first abort.
func (t *traversal) descend(frame *walkFrame, nodes []*Node) error {
	for _, n := range nodes {
		if err := t.visit(frame, n); err != nil {
			return err
		}
	}
	return nil
}

// visit performs one node visit: resolve, invoke, steer. A node
// reachable over several paths is visited once per path, each visit
// with fresh resolution.
func (t *traversal) visit(frame *walkFrame, n *Node) error {
	if t.isTerminated() {
		return errTerminated
	}
	if err := t.ctx.Err(); err != nil {
		if cause := context.Cause(t.ctx); cause != nil {
			return cause
		}
		return err
	}

	vc := &Context{Context: t.ctx, t: t, frame: frame, node: n}
	scope := di.NewScope(vc, vc)

	fn, err := n.bind(scope)
	if err != nil {
		if errors.Is(err, di.ErrUnsatisfied) {
			// Unsatisfied dependencies end this path only; other
			// paths reaching the same node are attempted on their own.
			t.record(StageDependsSkip, n.Name())
			observability.LogNodeSkip(t.logger, frame.flow.Name(), n.Name(), err.Error())
			return nil
		}
		return &NodeError{Flow: frame.flow.Name(), Node: n.Name(), Err: err}
	}

	t.record(StageNodeStart, n.Name())
	start := time.Now()
	nctx, span := t.spans.StartNodeSpan(t.ctx, n.Name())
	verdict, err := t.invoke(vc, fn)
	t.metrics.RecordNodeRun(nctx, frame.flow.Name(), n.Name(), time.Since(start), err)
	t.spans.EndSpanWithError(span, err)

	if err != nil {
		var pe *PanicError
		if errors.As(err, &pe) {
			return err
		}
		return &NodeError{Flow: frame.flow.Name(), Node: n.Name(), Err: err}
	}
	if t.isTerminated() {
		return errTerminated
	}

	switch verdict {
	case Terminate:
		t.record(StageStop, n.Name())
		t.terminate()
		return errTerminated
	case Suppress:
		t.record(StageNodeSuppress, n.Name())
		return nil
	case Skip:
		t.record(StageNodeSkip, n.Name())
	default:
		t.record(StageNodeFinish, n.Name())
	}

	if vc.wasAdvanced() {
		// Successors are already running; the verdict no longer
		// controls them.
		return nil
	}
	return t.descend(frame, frame.shot.nexts[n])
}

// invoke runs a bound node body with panic containment, looping on
// Restart without re-resolving dependencies.
func (t *traversal) invoke(vc *Context, fn NodeFunc) (verdict Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			verdict = Terminate
			err = &PanicError{
				Flow:  vc.frame.flow.Name(),
				Node:  vc.node.Name(),
				Value: r,
				Stack: string(debug.Stack()),
			}
		}
	}()

	for {
		verdict, err = fn(vc)
		if err != nil || verdict != Restart {
			return verdict, err
		}
		if t.isTerminated() {
			return verdict, nil
		}
		t.record(StageNodeRestart, vc.node.Name())
	}
}

// closeSessions closes any session scopes the walk left open, so a
// suspended session of an aborted traversal can never be resumed.
func (t *traversal) closeSessions() {
	t.mu.Lock()
	open := t.sessions
	t.sessions = nil
	t.mu.Unlock()

	for i := len(open) - 1; i >= 0; i-- {
		open[i].Close()
	}
}
