// Package sqlite is a SQLite-backed implementation of manifest.Store.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"replicator/internal/dbutil"
	"replicator/internal/manifest"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a SQLite-backed manifest.Store. The chunk hash list is persisted
// as an opaque JSON string in one column (chunks_json) — an internal
// serialization detail never exposed through the HTTP surface (SPEC_FULL.md,
// "Dynamic manifest JSON").
type Store struct {
	db *sql.DB
}

var _ manifest.Store = (*Store)(nil)

// Open opens (or creates) a manifest database at path and applies schema
// migrations.
func Open(path string) (*Store, error) {
	db, err := dbutil.Open(path)
	if err != nil {
		return nil, err
	}
	if err := dbutil.RunMigrations(db, migrationsFS, "manifest"); err != nil {
		db.Close()
		return nil, fmt.Errorf("manifest/sqlite: run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the manifest for objectID, or manifest.ErrNotFound.
func (s *Store) Get(ctx context.Context, objectID string) (manifest.Manifest, error) {
	var sizeBytes, chunkSize int64
	var chunksJSON string

	row := s.db.QueryRowContext(ctx,
		`SELECT size_bytes, chunk_size, chunks_json FROM object_manifests WHERE object_id = ?`,
		objectID)
	if err := row.Scan(&sizeBytes, &chunkSize, &chunksJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return manifest.Manifest{}, manifest.ErrNotFound
		}
		return manifest.Manifest{}, fmt.Errorf("manifest/sqlite: get %s: %w", objectID, err)
	}

	var chunks []string
	if err := json.Unmarshal([]byte(chunksJSON), &chunks); err != nil {
		return manifest.Manifest{}, fmt.Errorf("manifest/sqlite: decode chunks for %s: %w", objectID, err)
	}

	return manifest.Manifest{
		ObjectID:  objectID,
		SizeBytes: sizeBytes,
		ChunkSize: chunkSize,
		Chunks:    chunks,
	}, nil
}

// Upsert inserts or overwrites the manifest row for m.ObjectID. Last-writer-
// wins: no version check (§3, §9).
func (s *Store) Upsert(ctx context.Context, m manifest.Manifest) error {
	if chunks := m.Chunks; chunks == nil {
		chunks = []string{}
		m.Chunks = chunks
	}
	chunksJSON, err := json.Marshal(m.Chunks)
	if err != nil {
		return fmt.Errorf("manifest/sqlite: encode chunks for %s: %w", m.ObjectID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO object_manifests (object_id, size_bytes, chunk_size, chunks_json, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(object_id) DO UPDATE SET
			size_bytes = excluded.size_bytes,
			chunk_size = excluded.chunk_size,
			chunks_json = excluded.chunks_json,
			updated_at = excluded.updated_at
	`, m.ObjectID, m.SizeBytes, m.ChunkSize, string(chunksJSON), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("manifest/sqlite: upsert %s: %w", m.ObjectID, err)
	}
	return nil
}
