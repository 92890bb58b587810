// Package dbutil provides small helpers shared by the sqlite-backed stores:
// embedded-SQL schema migrations and a common way to open a database file.
package dbutil

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

// migration is one embedded, numbered SQL file.
type migration struct {
	Version int
	SQL     string
}

// Open opens (creating parent directories and the file as needed) a SQLite
// database at path and applies WAL + foreign-key pragmas, matching the
// settings the rest of the system relies on for single-writer durability.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("dbutil: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("dbutil: open sqlite %s: %w", path, err)
	}

	// A single writer is assumed throughout this system (§5 "single-writer
	// runner", single control-plane process); serialize the pool to avoid
	// SQLITE_BUSY under concurrent readers/writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbutil: set journal_mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbutil: set foreign_keys: %w", err)
	}

	return db, nil
}

// RunMigrations applies every *.sql file under dir in fs, in ascending
// numeric-prefix order (e.g. 0001_init.sql, 0002_add_index.sql), tracking
// applied versions in a schema_migrations table keyed by (component,
// version). The files are always read from the "migrations" directory of
// fs; the component key is the caller-supplied name (e.g. "job", "node",
// "manifest"). It lets independent stores share one *sql.DB — as the node
// and job sqlite stores do in the control-plane deployment — without their
// version numbers colliding in a single unnamespaced table. Safe to call on
// every startup: already-applied migrations are skipped.
func RunMigrations(db *sql.DB, fs embed.FS, component string) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		component TEXT NOT NULL,
		version INTEGER NOT NULL,
		PRIMARY KEY (component, version)
	) STRICT`); err != nil {
		return fmt.Errorf("dbutil: create schema_migrations: %w", err)
	}

	applied := map[int]bool{}
	rows, err := db.Query("SELECT version FROM schema_migrations WHERE component = ?", component)
	if err != nil {
		return fmt.Errorf("dbutil: query applied migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("dbutil: scan migration version: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	migrations, err := loadMigrations(fs, "migrations")
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("dbutil: begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("dbutil: apply migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (component, version) VALUES (?, ?)", component, m.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("dbutil: record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("dbutil: commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func loadMigrations(fsys embed.FS, dir string) ([]migration, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("dbutil: read migrations dir %s: %w", dir, err)
	}

	var migrations []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		parts := strings.SplitN(e.Name(), "_", 2)
		if len(parts) < 2 {
			return nil, fmt.Errorf("dbutil: invalid migration filename: %s", e.Name())
		}
		version, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("dbutil: invalid migration version in %s: %w", e.Name(), err)
		}
		data, err := fsys.ReadFile(dir + "/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("dbutil: read migration %s: %w", e.Name(), err)
		}
		migrations = append(migrations, migration{Version: version, SQL: string(data)})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}
