package config

import "sync/atomic"

// Store publishes immutable Config snapshots to concurrent readers.
// Workers load the current snapshot on every pacing tick, so a swapped
// configuration reaches all live connections on their next iteration
// without locking. A Config handed to NewStore or Swap must not be
// mutated afterwards.
type Store struct {
	ptr atomic.Pointer[Config]
}

// NewStore creates a store holding cfg.
func NewStore(cfg *Config) *Store {
	s := &Store{}
	s.ptr.Store(cfg)
	return s
}

// Load returns the current snapshot. Never nil for a store built with
// NewStore.
func (s *Store) Load() *Config {
	return s.ptr.Load()
}

// Swap publishes cfg as the new snapshot. In-flight readers keep the
// old one until their next Load.
func (s *Store) Swap(cfg *Config) {
	s.ptr.Store(cfg)
}
