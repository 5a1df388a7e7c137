// Package watchstate holds the client's merged view of server watch tasks,
// keyed by canonical listing URL.
package watchstate

import (
	"sync"

	"ticketwatch/internal/canon"
	"ticketwatch/internal/model"
)

// Store maps canonical URLs to watch state. Every method canonicalizes the
// URL it is given before touching the map.
type Store struct {
	mu      sync.RWMutex
	entries map[string]model.WatchState
}

// New creates an empty Store.
func New() *Store {
	return &Store{entries: make(map[string]model.WatchState)}
}

// Hydrate replaces the whole map with statuses. Keys may be raw URLs.
func (s *Store) Hydrate(statuses map[string]model.WatchPatch) {
	entries := make(map[string]model.WatchState, len(statuses))
	for raw, patch := range statuses {
		key := canon.Canonicalize(raw)
		entries[key] = patch.Apply(entries[key])
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
}

// Merge applies patch over the entry for url, creating it if needed, and
// returns the merged state.
func (s *Store) Merge(url string, patch model.WatchPatch) model.WatchState {
	key := canon.Canonicalize(url)

	s.mu.Lock()
	defer s.mu.Unlock()
	merged := patch.Apply(s.entries[key])
	s.entries[key] = merged
	return merged
}

// Get returns the entry for url. A missing entry means no known task, not a
// disabled one.
func (s *Store) Get(url string) (model.WatchState, bool) {
	key := canon.Canonicalize(url)

	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.entries[key]
	return st, ok
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot returns a copy of the map.
func (s *Store) Snapshot() map[string]model.WatchState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.WatchState, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}
