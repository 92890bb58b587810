package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"replicator/internal/node"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nodes.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRegisterAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Register(ctx, node.Node{Name: "node-a", BaseURL: "http://a:8080"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := s.Get(ctx, "node-a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.BaseURL != "http://a:8080" {
		t.Fatalf("BaseURL = %q, want http://a:8080", got.BaseURL)
	}
	if got.Status != node.StatusHealthy {
		t.Fatalf("Status = %q, want %q", got.Status, node.StatusHealthy)
	}
}

func TestRegisterUpdatesExistingName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Register(ctx, node.Node{Name: "node-a", BaseURL: "http://old:8080"}); err != nil {
		t.Fatalf("Register first: %v", err)
	}
	if _, err := s.Register(ctx, node.Node{Name: "node-a", BaseURL: "http://new:8080"}); err != nil {
		t.Fatalf("Register second: %v", err)
	}

	nodes, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("List returned %d nodes, want 1", len(nodes))
	}
	if nodes[0].BaseURL != "http://new:8080" {
		t.Fatalf("BaseURL = %q, want updated value", nodes[0].BaseURL)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(context.Background(), "missing"); err != node.ErrNotFound {
		t.Fatalf("Get: got %v, want ErrNotFound", err)
	}
}
