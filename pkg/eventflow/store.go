package eventflow

import (
	"sync"
)

// Store is the per-traversal key/value state shared by every node of
// one traversal. It is never shared between traversals. It is safe
// for concurrent use so that paths started with Advance can write
// alongside the rest of the walk.
type Store struct {
	mu sync.RWMutex
	m  map[string]any
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{m: make(map[string]any)}
}

// Get returns the value for key and whether it is present.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

// Set stores a value under key.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	s.m[key] = value
	s.mu.Unlock()
}

// Delete removes key.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
}

// Has reports whether key is present.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.m[key]
	return ok
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
