// Package memory is an in-process manifest.Store backed by a map, used in
// tests and for local experimentation without a database file.
package memory

import (
	"context"
	"sync"

	"replicator/internal/manifest"
)

// Store is a concurrency-safe in-memory manifest.Store.
type Store struct {
	mu        sync.RWMutex
	manifests map[string]manifest.Manifest
}

var _ manifest.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{manifests: make(map[string]manifest.Manifest)}
}

// Get returns the manifest for objectID, or manifest.ErrNotFound.
func (s *Store) Get(_ context.Context, objectID string) (manifest.Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.manifests[objectID]
	if !ok {
		return manifest.Manifest{}, manifest.ErrNotFound
	}
	return m, nil
}

// Upsert inserts or overwrites the stored manifest for m.ObjectID.
func (s *Store) Upsert(_ context.Context, m manifest.Manifest) error {
	chunks := make([]string, len(m.Chunks))
	copy(chunks, m.Chunks)
	m.Chunks = chunks

	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifests[m.ObjectID] = m
	return nil
}
