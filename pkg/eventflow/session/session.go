// Package session lets a flow pause mid-traversal and wait for a
// later event to carry on with.
//
// A traversal opens a Session against a Manager, runs some nodes,
// then calls Suspend with a Rule. Incoming events offered to the
// Manager are matched against suspended sessions in first-suspended
// order; the first match wakes its session with the new event instead
// of starting a fresh traversal. A session that times out expires and
// its traversal resumes empty-handed.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/randalmurphal/eventflow/pkg/eventflow/event"
)

// State is the lifecycle phase of a session.
type State int8

// Session states.
const (
	StateActive State = iota
	StateSuspended
	StateResumed
	StateExpired
	StateClosed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateSuspended:
		return "suspended"
	case StateResumed:
		return "resumed"
	case StateExpired:
		return "expired"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Store is the per-session key/value state. It is owned by the
// session's traversal; no locking is needed.
type Store map[string]any

// Session is one conversation-scoped continuation.
type Session struct {
	mgr   *Manager
	rule  Rule
	store Store

	mu    sync.Mutex
	state State
	event *event.Event
	wake  chan *event.Event
}

// Rule returns the match rule the session suspends under.
func (s *Session) Rule() Rule { return s.rule }

// Store returns the session's key/value state.
func (s *Session) Store() Store { return s.store }

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Event returns the event the session currently holds. After a wakeup
// this is the event that resumed the session.
func (s *Session) Event() *event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.event
}

// Suspend parks the session until a matching event arrives, the
// timeout elapses, or ctx is cancelled. A timeout of zero means wait
// indefinitely.
//
// On wakeup it returns the resuming event and true, and the session
// holds that event from then on. On timeout or cancellation it
// returns nil and false; the session is expired or closed and will
// not be woken.
func (s *Session) Suspend(ctx context.Context, timeout time.Duration) (*event.Event, bool) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil, false
	}
	s.state = StateSuspended
	s.mu.Unlock()

	s.mgr.park(s)

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case ev := <-s.wake:
		if ev == nil {
			// Unparked by Close.
			return nil, false
		}
		s.mu.Lock()
		s.state = StateActive
		s.event = ev
		s.mu.Unlock()
		return ev, true
	case <-timer:
		return s.giveUp(StateExpired)
	case <-ctx.Done():
		return s.giveUp(StateClosed)
	}
}

// giveUp ends a suspension that lost the race with its deadline. A
// wakeup that slipped in concurrently still wins.
func (s *Session) giveUp(terminal State) (*event.Event, bool) {
	s.mu.Lock()
	if s.state == StateResumed {
		// Claim already delivered; honor the wakeup.
		s.mu.Unlock()
		ev := <-s.wake
		s.mu.Lock()
		s.state = StateActive
		s.event = ev
		s.mu.Unlock()
		return ev, true
	}
	s.state = terminal
	s.mu.Unlock()
	return nil, false
}

// Close marks the session finished. A suspended session is unparked;
// its Suspend returns with no event. Closing is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	prev := s.state
	s.state = StateClosed
	s.mu.Unlock()

	if prev == StateSuspended {
		select {
		case s.wake <- nil:
		default:
		}
	}
}

// tryResume delivers ev to a suspended session. It returns false when
// the session is no longer waiting.
func (s *Session) tryResume(ev *event.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSuspended {
		return false
	}
	s.state = StateResumed
	s.wake <- ev
	return true
}
