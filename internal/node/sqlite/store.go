// Package sqlite is a SQLite-backed implementation of node.Registry.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"replicator/internal/dbutil"
	"replicator/internal/node"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a SQLite-backed node.Registry. It shares a database file with
// job.sqlite.Store in the control plane deployment: both migrate
// independently-numbered table sets into the same schema_migrations
// tracking table, disambiguated by component name (see dbutil.RunMigrations).
type Store struct {
	db *sql.DB
}

var _ node.Registry = (*Store)(nil)

// Open opens (or creates) a node database at path and applies schema
// migrations.
func Open(path string) (*Store, error) {
	db, err := dbutil.Open(path)
	if err != nil {
		return nil, err
	}
	if err := dbutil.RunMigrations(db, migrationsFS, "node"); err != nil {
		db.Close()
		return nil, fmt.Errorf("node/sqlite: run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenWithDB wraps an already-open *sql.DB, applying this package's
// migrations to it. Used when the node registry shares a database
// connection with another store (the control plane keeps nodes and jobs
// in one file).
func OpenWithDB(db *sql.DB) (*Store, error) {
	if err := dbutil.RunMigrations(db, migrationsFS, "node"); err != nil {
		return nil, fmt.Errorf("node/sqlite: run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Register upserts n, keyed by Name (§3: re-registering an existing name
// replaces its base URL and refreshes the heartbeat).
func (s *Store) Register(ctx context.Context, n node.Node) (node.Node, error) {
	if err := n.Validate(); err != nil {
		return node.Node{}, err
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nodes (name, base_url, status, last_heartbeat)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			base_url = excluded.base_url,
			status = excluded.status,
			last_heartbeat = excluded.last_heartbeat
	`, n.Name, n.BaseURL, node.StatusHealthy, now.Format(time.RFC3339Nano))
	if err != nil {
		return node.Node{}, fmt.Errorf("node/sqlite: register %s: %w", n.Name, err)
	}

	n.Status = node.StatusHealthy
	n.LastHeartbeat = now
	return n, nil
}

// Get returns the node with name, or node.ErrNotFound.
func (s *Store) Get(ctx context.Context, name string) (node.Node, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, base_url, status, last_heartbeat FROM nodes WHERE name = ?`, name)
	return scanNode(row)
}

// List returns all registered nodes, ordered by name.
func (s *Store) List(ctx context.Context) ([]node.Node, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, base_url, status, last_heartbeat FROM nodes ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("node/sqlite: list: %w", err)
	}
	defer rows.Close()

	var nodes []node.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("node/sqlite: list: %w", err)
	}
	return nodes, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (node.Node, error) {
	var n node.Node
	var heartbeat string
	if err := row.Scan(&n.Name, &n.BaseURL, &n.Status, &heartbeat); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return node.Node{}, node.ErrNotFound
		}
		return node.Node{}, fmt.Errorf("node/sqlite: scan: %w", err)
	}
	var err error
	if n.LastHeartbeat, err = time.Parse(time.RFC3339Nano, heartbeat); err != nil {
		return node.Node{}, fmt.Errorf("node/sqlite: parse last_heartbeat: %w", err)
	}
	return n, nil
}
