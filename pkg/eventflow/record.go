package eventflow

import (
	"sync"
	"time"
)

// Stage labels one step in a traversal's record trail.
type Stage string

// Record stages.
const (
	StageFlowStart       Stage = "flow_start"
	StageFlowFinish      Stage = "flow_finish"
	StageFlowEarlyFinish Stage = "flow_early_finish"
	StageNodeStart       Stage = "node_start"
	StageNodeFinish      Stage = "node_finish"
	// StageNodeSuppress marks a node that returned Suppress; its
	// successors were not walked on this path.
	StageNodeSuppress Stage = "node_suppress"
	// StageDependsSkip marks a node skipped because its dependencies
	// were not satisfied by the current context.
	StageDependsSkip Stage = "depends_skip"
	StageNodeSkip    Stage = "node_skip"
	StageNodeRestart Stage = "node_restart"
	StageBlock       Stage = "block"
	StageStop        Stage = "stop"
)

// Record is one entry of a traversal's trail: which node was visited
// or skipped, at which stage, and when.
type Record struct {
	Flow    string
	Node    string
	Stage   Stage
	EventID string
	At      time.Time
}

// RecordLog is the append-only record trail of one traversal. It is
// safe for concurrent use; paths started with Advance append to the
// same log as the rest of the traversal.
type RecordLog struct {
	mu   sync.Mutex
	recs []Record
}

func (l *RecordLog) append(r Record) {
	r.At = time.Now()
	l.mu.Lock()
	l.recs = append(l.recs, r)
	l.mu.Unlock()
}

// All returns a copy of the trail in append order.
func (l *RecordLog) All() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.recs))
	copy(out, l.recs)
	return out
}

// Len returns the number of records.
func (l *RecordLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.recs)
}
