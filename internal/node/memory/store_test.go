package memory

import (
	"context"
	"testing"

	"replicator/internal/node"
)

func TestRegisterAndGet(t *testing.T) {
	s := New()
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
	if got.LastHeartbeat.IsZero() {
		t.Fatal("LastHeartbeat not set by Register")
	}
	if got.Status != node.StatusHealthy {
		t.Fatalf("Status = %q, want %q", got.Status, node.StatusHealthy)
	}
}

func TestRegisterUpdatesExistingName(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.Register(ctx, node.Node{Name: "node-a", BaseURL: "http://old:8080"}); err != nil {
		t.Fatalf("Register first: %v", err)
	}
	if _, err := s.Register(ctx, node.Node{Name: "node-a", BaseURL: "http://new:8080"}); err != nil {
		t.Fatalf("Register second: %v", err)
	}

	got, err := s.Get(ctx, "node-a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.BaseURL != "http://new:8080" {
		t.Fatalf("BaseURL = %q, want updated value", got.BaseURL)
	}

	nodes, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("List returned %d nodes, want 1 (re-register must not duplicate)", len(nodes))
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := New()
	if _, err := s.Get(context.Background(), "missing"); err != node.ErrNotFound {
		t.Fatalf("Get: got %v, want ErrNotFound", err)
	}
}

func TestRegisterRejectsInvalidNode(t *testing.T) {
	s := New()
	if _, err := s.Register(context.Background(), node.Node{BaseURL: "http://a:8080"}); err == nil {
		t.Fatal("Register accepted a node with empty name")
	}
}
