package eventflow

import (
	"sync"
)

// Group is a set of parallel branches within a path specification.
type Group []*Node

// G groups nodes into one fan-out/fan-in step of a chain.
func G(nodes ...*Node) Group { return Group(nodes) }

// Chain is one path specification: an ordered sequence of groups.
// Consecutive groups are fully connected, every node of one group to
// every node of the next.
type Chain []Group

// links is the per-node adjacency bookkeeping.
type links struct {
	nexts []*Node
	prevs []*Node
}

// Graph is a mutable DAG of nodes. It is built from one or more
// chains and can be extended afterwards through combinators, even on
// an already-registered flow. Acyclicity is validated on construction
// and after every combinator; a mutation that would introduce a cycle
// is rolled back and reported, never left in place.
//
// Structural reads during traversal take a snapshot under the
// graph's lock, so combinator calls and running traversals do not
// interleave mid-walk.
type Graph struct {
	mu    sync.RWMutex
	order []*Node
	info  map[*Node]*links
}

// NewGraph builds a graph from the union of the edges implied by all
// chains. Duplicate edges collapse; a cycle is a construction error.
//
// Panics if a chain contains a nil node.
func NewGraph(chains ...Chain) (*Graph, error) {
	g := &Graph{info: make(map[*Node]*links)}
	for _, chain := range chains {
		for i, group := range chain {
			for _, n := range group {
				g.register(n)
			}
			if i == 0 {
				continue
			}
			for _, from := range chain[i-1] {
				for _, to := range group {
					g.connect(from, to)
				}
			}
		}
	}
	if err := g.validate(); err != nil {
		return nil, &GraphError{Op: "build", Err: err}
	}
	return g, nil
}

// register adds a node to the graph if not already present.
// Caller holds the lock (or the graph is not yet shared).
func (g *Graph) register(n *Node) {
	if n == nil {
		panic("eventflow: chain contains a nil node")
	}
	if _, ok := g.info[n]; ok {
		return
	}
	g.order = append(g.order, n)
	g.info[n] = &links{}
}

// connect adds the edge from -> to, idempotently.
// Caller holds the lock (or the graph is not yet shared).
func (g *Graph) connect(from, to *Node) {
	fl := g.info[from]
	for _, n := range fl.nexts {
		if n == to {
			return
		}
	}
	fl.nexts = append(fl.nexts, to)
	tl := g.info[to]
	tl.prevs = append(tl.prevs, from)
}

// validate checks acyclicity with Kahn's algorithm.
// Caller holds the lock (or the graph is not yet shared).
func (g *Graph) validate() error {
	inDeg := make(map[*Node]int, len(g.order))
	for _, n := range g.order {
		inDeg[n] = len(g.info[n].prevs)
	}

	queue := make([]*Node, 0, len(g.order))
	for _, n := range g.order {
		if inDeg[n] == 0 {
			queue = append(queue, n)
		}
	}

	seen := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		seen++
		for _, next := range g.info[n].nexts {
			inDeg[next]--
			if inDeg[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if seen != len(g.order) {
		return ErrCyclicGraph
	}
	return nil
}

// snapshot copies the adjacency for one traversal.
func (g *Graph) snapshot() *graphShot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	shot := &graphShot{nexts: make(map[*Node][]*Node, len(g.order))}
	for _, n := range g.order {
		l := g.info[n]
		if len(l.prevs) == 0 {
			shot.starts = append(shot.starts, n)
		}
		nexts := make([]*Node, len(l.nexts))
		copy(nexts, l.nexts)
		shot.nexts[n] = nexts
	}
	return shot
}

// graphShot is an immutable view of the graph taken at traversal start.
type graphShot struct {
	starts []*Node
	nexts  map[*Node][]*Node
}

// Nodes returns all nodes in registration order.
func (g *Graph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, len(g.order))
	copy(out, g.order)
	return out
}

// Starts returns the nodes with no predecessors, in registration order.
func (g *Graph) Starts() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []*Node
	for _, n := range g.order {
		if len(g.info[n].prevs) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// Ends returns the nodes with no successors, in registration order.
func (g *Graph) Ends() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []*Node
	for _, n := range g.order {
		if len(g.info[n].nexts) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// Successors returns a node's direct successors.
func (g *Graph) Successors(n *Node) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	l, ok := g.info[n]
	if !ok {
		return nil
	}
	out := make([]*Node, len(l.nexts))
	copy(out, l.nexts)
	return out
}

// Add inserts isolated nodes with no edges.
func (g *Graph) Add(nodes ...*Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, n := range nodes {
		g.register(n)
	}
	return nil
}

// After inserts n as a successor of every node in preds (merge-join).
// All preds must already be in the graph.
func (g *Graph) After(n *Node, preds ...*Node) error {
	return g.mutate("after", n, preds, func(pred *Node) {
		g.connect(pred, n)
	})
}

// Before inserts n as a predecessor of every node in succs (fork-split).
// All succs must already be in the graph.
func (g *Graph) Before(n *Node, succs ...*Node) error {
	return g.mutate("before", n, succs, func(succ *Node) {
		g.connect(n, succ)
	})
}

// mutate applies an edge-adding combinator with validation and
// rollback on cycle.
func (g *Graph) mutate(op string, n *Node, anchors []*Node, connect func(anchor *Node)) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, a := range anchors {
		if _, ok := g.info[a]; !ok {
			return &GraphError{Op: op, Node: a.Name(), Err: ErrNodeUnknown}
		}
	}

	saved := g.save()
	g.register(n)
	for _, a := range anchors {
		connect(a)
	}
	if err := g.validate(); err != nil {
		g.restore(saved)
		return &GraphError{Op: op, Node: n.Name(), Err: err}
	}
	return nil
}

// Link builds a new graph concatenating g and other: all nodes and
// edges of both, plus an edge from every end of g to every start of
// other. Neither input graph is modified.
func (g *Graph) Link(other *Graph) (*Graph, error) {
	g.mu.RLock()
	ends := make([]*Node, 0)
	combined := &Graph{info: make(map[*Node]*links)}
	for _, n := range g.order {
		combined.register(n)
		if len(g.info[n].nexts) == 0 {
			ends = append(ends, n)
		}
	}
	for _, n := range g.order {
		for _, next := range g.info[n].nexts {
			combined.connect(n, next)
		}
	}
	g.mu.RUnlock()

	other.mu.RLock()
	starts := make([]*Node, 0)
	for _, n := range other.order {
		combined.register(n)
	}
	for _, n := range other.order {
		if len(other.info[n].prevs) == 0 {
			starts = append(starts, n)
		}
		for _, next := range other.info[n].nexts {
			combined.connect(n, next)
		}
	}
	other.mu.RUnlock()

	for _, end := range ends {
		for _, start := range starts {
			combined.connect(end, start)
		}
	}

	if err := combined.validate(); err != nil {
		return nil, &GraphError{Op: "link", Err: err}
	}
	return combined, nil
}

// save copies the adjacency for rollback.
// Caller holds the lock.
func (g *Graph) save() map[*Node]links {
	saved := make(map[*Node]links, len(g.info))
	for n, l := range g.info {
		cp := links{
			nexts: make([]*Node, len(l.nexts)),
			prevs: make([]*Node, len(l.prevs)),
		}
		copy(cp.nexts, l.nexts)
		copy(cp.prevs, l.prevs)
		saved[n] = cp
	}
	return saved
}

// restore reverts a failed mutation.
// Caller holds the lock.
func (g *Graph) restore(saved map[*Node]links) {
	kept := g.order[:0]
	for _, n := range g.order {
		if l, ok := saved[n]; ok {
			*g.info[n] = l
			kept = append(kept, n)
		} else {
			delete(g.info, n)
		}
	}
	g.order = kept
}
