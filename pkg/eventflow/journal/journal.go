// Package journal persists the record trails of finished traversals
// for later inspection.
package journal

import (
	"errors"
	"time"
)

// Entry is one persisted traversal record.
type Entry struct {
	RunID     string
	Flow      string
	EventID   string
	Seq       int
	Stage     string
	Node      string
	Timestamp time.Time
}

// Store persists traversal trails.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append stores the entries of one run. Entries keep the order
	// they are given in.
	Append(entries []Entry) error

	// List returns all entries for a run in append order.
	// Returns an empty slice (not an error) for an unknown run.
	List(runID string) ([]Entry, error)

	// Runs returns the IDs of all stored runs.
	Runs() ([]string, error)

	// DeleteRun removes all entries for a run.
	// Returns nil if the run has no entries.
	DeleteRun(runID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for journal operations.
var (
	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("journal store closed")
)
