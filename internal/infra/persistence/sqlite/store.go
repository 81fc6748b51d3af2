// Package sqlite stores run history in a local SQLite file using the pure Go
// modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"siosearch/internal/infra/persistence/sqlstore"
)

const defaultPath = "siosearch.db"

// Dialect is the SQLite flavour of the runs table.
var Dialect = sqlstore.Dialect{
	Name: "sqlite",
	Schema: []string{
		`PRAGMA journal_mode=WAL`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			completed_at INTEGER NOT NULL,
			targets TEXT NOT NULL,
			mirror TEXT NOT NULL,
			spw_rows INTEGER NOT NULL,
			mous_rows INTEGER NOT NULL,
			payload BLOB NOT NULL
		)`,
	},
	Upsert: `INSERT INTO runs(id, started_at, completed_at, targets, mirror, spw_rows, mous_rows, payload)
		VALUES(?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET started_at=excluded.started_at, completed_at=excluded.completed_at,
		targets=excluded.targets, mirror=excluded.mirror, spw_rows=excluded.spw_rows,
		mous_rows=excluded.mous_rows, payload=excluded.payload`,
	List: `SELECT id, started_at, completed_at, targets, mirror, spw_rows, mous_rows FROM runs ORDER BY started_at DESC, id`,
	Get:  `SELECT payload FROM runs WHERE id = ?`,
}

// Store is the SQLite-backed run history.
type Store struct {
	*sqlstore.Store
	path string
}

// New opens (creating if needed) the database at path.
func New(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	inner, err := sqlstore.Open(ctx, db, Dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: inner, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }
