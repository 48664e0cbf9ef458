package session

import (
	"sync"

	"github.com/randalmurphal/eventflow/pkg/eventflow/event"
)

// Manager tracks suspended sessions and routes incoming events to
// them. Suspended sessions are matched in the order they suspended;
// the first match wins.
type Manager struct {
	mu      sync.Mutex
	waiting []*Session
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{}
}

// Open starts an active session for ev under the given rule.
func (m *Manager) Open(ev *event.Event, rule Rule) *Session {
	return &Session{
		mgr:   m,
		rule:  rule,
		store: make(Store),
		state: StateActive,
		event: ev,
		wake:  make(chan *event.Event, 1),
	}
}

// park queues a session for wakeup matching.
func (m *Manager) park(s *Session) {
	m.mu.Lock()
	m.waiting = append(m.waiting, s)
	m.mu.Unlock()
}

// Claim offers ev to the suspended sessions in FIFO order. The first
// session whose rule matches is resumed with ev and Claim returns
// true; the event must then not be dispatched to flows. Sessions that
// expired or closed since parking are dropped along the way. A rule
// error skips that session.
func (m *Manager) Claim(ev *event.Event) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	kept := m.waiting[:0]
	claimed := false
	for i, s := range m.waiting {
		if claimed {
			kept = append(kept, m.waiting[i:]...)
			break
		}
		if s.State() != StateSuspended {
			continue
		}
		ok, err := s.rule.Match(s.Event(), ev)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			kept = append(kept, s)
			continue
		}
		if ok && s.tryResume(ev) {
			claimed = true
			continue
		}
		kept = append(kept, s)
	}
	for i := len(kept); i < len(m.waiting); i++ {
		m.waiting[i] = nil
	}
	m.waiting = kept
	return claimed, firstErr
}

// Waiting reports how many sessions are currently parked, stale
// entries included.
func (m *Manager) Waiting() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiting)
}
