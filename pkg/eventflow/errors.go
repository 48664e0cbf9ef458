package eventflow

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph construction and mutation.
var (
	// ErrCyclicGraph indicates a path specification or combinator
	// would introduce a cycle.
	ErrCyclicGraph = errors.New("graph contains a cycle")

	// ErrNodeUnknown indicates a combinator references a node that is
	// not part of the graph.
	ErrNodeUnknown = errors.New("node not in graph")
)

// Sentinel errors for flow registration.
var (
	// ErrFlowRegistered indicates Register() was called twice for the
	// same flow.
	ErrFlowRegistered = errors.New("flow already registered")

	// ErrFlowDismissed indicates an operation on a flow that has been
	// deregistered. Dismissal is final; a dismissed flow cannot be
	// registered again.
	ErrFlowDismissed = errors.New("flow dismissed")
)

// Sentinel errors for traversal operations.
var (
	// ErrNilEvent indicates Dispatch() or Handle() received a nil event.
	ErrNilEvent = errors.New("event cannot be nil")

	// ErrNoSession indicates Suspend() was called outside a session scope.
	ErrNoSession = errors.New("no active session")

	// errTerminated marks a traversal aborted by Terminate. It is
	// classified as OutcomeTerminated, not as a failure.
	errTerminated = errors.New("traversal terminated")
)

// GraphError wraps a structural error with the mutating operation.
type GraphError struct {
	// Op is the operation that failed ("build", "add", "after", "before", "link").
	Op string
	// Node is the node involved, if any.
	Node string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *GraphError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("graph %s: node %s: %v", e.Op, e.Node, e.Err)
	}
	return fmt.Sprintf("graph %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *GraphError) Unwrap() error {
	return e.Err
}

// NodeError wraps an error from a node's body with its location.
type NodeError struct {
	// Flow is the flow whose traversal ran the node.
	Flow string
	// Node is the node that failed.
	Node string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("flow %s: node %s: %v", e.Flow, e.Node, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic recovered from a node body.
// It includes the stack trace for debugging.
type PanicError struct {
	// Flow is the flow whose traversal ran the node.
	Flow string
	// Node is the node that panicked.
	Node string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("flow %s: node %s panicked: %v", e.Flow, e.Node, e.Value)
}
