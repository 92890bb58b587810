package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"replicator/internal/manifest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "manifests.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := manifest.Manifest{
		ObjectID:  "obj-1",
		SizeBytes: 10,
		ChunkSize: 5,
		Chunks:    []string{"aa", "bb"},
	}
	if err := s.Upsert(ctx, m); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := s.Get(ctx, "obj-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SizeBytes != 10 || got.ChunkSize != 5 || len(got.Chunks) != 2 {
		t.Fatalf("Get returned unexpected manifest: %+v", got)
	}
	if got.Chunks[0] != "aa" || got.Chunks[1] != "bb" {
		t.Fatalf("Get returned chunks out of order: %+v", got.Chunks)
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(context.Background(), "missing"); err != manifest.ErrNotFound {
		t.Fatalf("Get: got %v, want ErrNotFound", err)
	}
}

func TestUpsertOverwritesPreviousValue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := manifest.Manifest{ObjectID: "obj-1", SizeBytes: 1, ChunkSize: 1, Chunks: []string{"aa"}}
	second := manifest.Manifest{ObjectID: "obj-1", SizeBytes: 2, ChunkSize: 2, Chunks: []string{"bb", "cc"}}

	if err := s.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert first: %v", err)
	}
	if err := s.Upsert(ctx, second); err != nil {
		t.Fatalf("Upsert second: %v", err)
	}

	got, err := s.Get(ctx, "obj-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SizeBytes != 2 || len(got.Chunks) != 2 {
		t.Fatalf("Upsert did not overwrite: %+v", got)
	}
}

func TestEmptyManifestRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := manifest.Manifest{ObjectID: "empty-obj", SizeBytes: 0, ChunkSize: 0, Chunks: nil}
	if err := s.Upsert(ctx, m); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := s.Get(ctx, "empty-obj")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SizeBytes != 0 || len(got.Chunks) != 0 {
		t.Fatalf("Get returned unexpected manifest: %+v", got)
	}
}

func TestMigrationsAreIdempotentAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifests.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open first: %v", err)
	}
	if err := s1.Upsert(context.Background(), manifest.Manifest{ObjectID: "obj-1", SizeBytes: 1, ChunkSize: 1, Chunks: []string{"aa"}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("Open second: %v", err)
	}
	defer s2.Close()

	got, err := s2.Get(context.Background(), "obj-1")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.SizeBytes != 1 {
		t.Fatalf("Get after reopen returned %+v", got)
	}
}
