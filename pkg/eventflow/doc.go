/*
Package eventflow is an in-process event processing engine built on
directed acyclic graphs of processing nodes.

# Overview

Incoming events are handed to a Dispatcher, which fans each event out
to registered Flows in descending priority order. A Flow owns one
acyclic Graph of Nodes; handling an event walks the graph depth-first
from its start nodes, resolving each node's declared dependencies
against the traversal's context before running it. A node whose
dependencies cannot be satisfied by the current event is skipped, not
failed, which is how a flow routes different event types through
different branches of the same graph.

Traversals can pause: a node enters a session and suspends until a
later event matching the session's rule arrives, at which point the
same traversal resumes with the new event in context.

# Basic Usage

Build nodes, connect them into a graph, wrap the graph in a flow, and
register the flow with a dispatcher:

	hello := eventflow.NewNode1("hello",
	    di.Event[*event.Event](),
	    func(c *eventflow.Context, ev *event.Event) (eventflow.Verdict, error) {
	        fmt.Println("got:", ev.PlainText())
	        return eventflow.Continue, nil
	    })

	graph, err := eventflow.NewGraph(eventflow.Chain{eventflow.G(hello)})
	if err != nil {
	    log.Fatal(err)
	}

	flow := eventflow.NewFlow("greeter", graph)

	d := eventflow.NewDispatcher()
	if err := d.Register(flow); err != nil {
	    log.Fatal(err)
	}
	d.Dispatch(context.Background(), event.New("chat"))

# Control Signals

A node's return value steers the walk: Continue descends into the
node's successors, Suppress ends the current path, Terminate aborts
the whole traversal, and Restart re-runs the node body. During the
body, Context offers Advance (start successors immediately), Block
(stop the event from reaching lower-priority flows), and CallFlow
(run another flow inline against the same context).

# Sessions

	c.EnterSession(session.ScopeRule())
	defer c.ExitSession()

	ok, err := c.Suspend(30 * time.Second)
	if err != nil {
	    return eventflow.Continue, err
	}
	if ok {
	    // c.Event() is now the event that resumed the session.
	}

# Observability

Every traversal produces an ordered record trail readable from within
nodes and archived to a journal store after dispatch. Logging uses
slog; metrics and tracing use OpenTelemetry and default to no-ops.
*/
package eventflow
