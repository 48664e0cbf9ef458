package eventflow

import (
	"github.com/randalmurphal/eventflow/pkg/eventflow/di"
)

// Verdict is the control signal a node returns to steer the walk.
type Verdict int8

// Node verdicts.
const (
	// Continue descends into the node's successors.
	Continue Verdict = iota
	// Suppress ends the current path; sibling paths are unaffected.
	Suppress
	// Terminate aborts the entire traversal immediately.
	Terminate
	// Skip ends the node body early but still descends into
	// successors, as if the node had returned Continue.
	Skip
	// Restart re-runs the node body from the start without
	// re-resolving its dependencies. Pairs with session suspension
	// for ask-again loops.
	Restart
)

// String implements fmt.Stringer.
func (v Verdict) String() string {
	switch v {
	case Continue:
		return "continue"
	case Suppress:
		return "suppress"
	case Terminate:
		return "terminate"
	case Skip:
		return "skip"
	case Restart:
		return "restart"
	default:
		return "unknown"
	}
}

// NodeFunc is a node body. It receives the per-visit traversal handle
// and reports a verdict. A non-nil error aborts the traversal.
type NodeFunc func(c *Context) (Verdict, error)

// Node is the atomic unit of processing. A node may be shared across
// several graphs; per-traversal state lives in the Context, never in
// the node.
type Node struct {
	name string
	bind func(s *di.Scope) (NodeFunc, error)
}

// Name returns the node's display name.
func (n *Node) Name() string { return n.name }

func newNode(name string, bind func(s *di.Scope) (NodeFunc, error)) *Node {
	if name == "" {
		panic("eventflow: node name cannot be empty")
	}
	if bind == nil {
		panic("eventflow: node function cannot be nil")
	}
	return &Node{name: name, bind: bind}
}

// NewNode creates a node with no declared dependencies.
//
// Panics if name is empty or fn is nil.
func NewNode(name string, fn NodeFunc) *Node {
	if fn == nil {
		panic("eventflow: node function cannot be nil")
	}
	return newNode(name, func(*di.Scope) (NodeFunc, error) {
		return fn, nil
	})
}

// NewNode1 creates a node whose body takes one resolved dependency.
// Resolution runs once per visit, before the body; an unsatisfied
// dependency skips the node instead of running it.
func NewNode1[A any](name string, da di.Dependency[A], fn func(c *Context, a A) (Verdict, error)) *Node {
	if fn == nil {
		panic("eventflow: node function cannot be nil")
	}
	return newNode(name, func(s *di.Scope) (NodeFunc, error) {
		a, err := da.Resolve(s)
		if err != nil {
			return nil, err
		}
		return func(c *Context) (Verdict, error) {
			return fn(c, a)
		}, nil
	})
}

// NewNode2 creates a node whose body takes two resolved dependencies.
func NewNode2[A, B any](name string, da di.Dependency[A], db di.Dependency[B], fn func(c *Context, a A, b B) (Verdict, error)) *Node {
	if fn == nil {
		panic("eventflow: node function cannot be nil")
	}
	return newNode(name, func(s *di.Scope) (NodeFunc, error) {
		a, err := da.Resolve(s)
		if err != nil {
			return nil, err
		}
		b, err := db.Resolve(s)
		if err != nil {
			return nil, err
		}
		return func(c *Context) (Verdict, error) {
			return fn(c, a, b)
		}, nil
	})
}

// NewNode3 creates a node whose body takes three resolved dependencies.
func NewNode3[A, B, C any](name string, da di.Dependency[A], db di.Dependency[B], dc di.Dependency[C], fn func(c *Context, a A, b B, cc C) (Verdict, error)) *Node {
	if fn == nil {
		panic("eventflow: node function cannot be nil")
	}
	return newNode(name, func(s *di.Scope) (NodeFunc, error) {
		a, err := da.Resolve(s)
		if err != nil {
			return nil, err
		}
		b, err := db.Resolve(s)
		if err != nil {
			return nil, err
		}
		cv, err := dc.Resolve(s)
		if err != nil {
			return nil, err
		}
		return func(c *Context) (Verdict, error) {
			return fn(c, a, b, cv)
		}, nil
	})
}
