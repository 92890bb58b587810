// Package memory is an in-process node.Registry backed by a map, used in
// tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"replicator/internal/node"
)

// Store is a concurrency-safe in-memory node.Registry.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]node.Node
}

var _ node.Registry = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{nodes: make(map[string]node.Node)}
}

func (s *Store) Register(_ context.Context, n node.Node) (node.Node, error) {
	if err := n.Validate(); err != nil {
		return node.Node{}, err
	}

	n.Status = node.StatusHealthy
	n.LastHeartbeat = time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[n.Name] = n
	return n, nil
}

func (s *Store) Get(_ context.Context, name string) (node.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[name]
	if !ok {
		return node.Node{}, node.ErrNotFound
	}
	return n, nil
}

func (s *Store) List(_ context.Context) ([]node.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]node.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes, nil
}
