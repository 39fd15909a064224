// Package memory implements an in-memory kv Store for tests and ephemeral runs.
package memory

import (
	"context"
	"sync"

	"plancore/internal/infra/kv"
)

// Store implements kv.Store backed by process memory.
type Store struct {
	mu   sync.RWMutex
	objs map[string][]byte
}

// New returns an empty in-memory store.
func New() *Store { return &Store{objs: make(map[string][]byte)} }

// Driver returns the kv driver identifier.
func (s *Store) Driver() kv.Driver { return kv.DriverMemory }

// Put stores the payload, replacing any existing value.
func (s *Store) Put(_ context.Context, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	s.objs[key] = cp
	return nil
}

// Get returns a copy of the stored payload.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.objs[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	return cp, true, nil
}

// Delete removes the key, reporting whether it existed.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objs[key]
	if ok {
		delete(s.objs, key)
	}
	return ok, nil
}
