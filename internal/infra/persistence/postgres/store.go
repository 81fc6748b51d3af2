// Package postgres stores run history in PostgreSQL through the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"siosearch/internal/infra/persistence/sqlstore"
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/siosearch?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Dialect is the PostgreSQL flavour of the runs table.
var Dialect = sqlstore.Dialect{
	Name: "postgres",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at BIGINT NOT NULL,
			completed_at BIGINT NOT NULL,
			targets TEXT NOT NULL,
			mirror TEXT NOT NULL,
			spw_rows BIGINT NOT NULL,
			mous_rows BIGINT NOT NULL,
			payload BYTEA NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS runs_started_at_idx ON runs (started_at DESC)`,
	},
	Upsert: `INSERT INTO runs(id, started_at, completed_at, targets, mirror, spw_rows, mous_rows, payload)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT(id) DO UPDATE SET started_at=EXCLUDED.started_at, completed_at=EXCLUDED.completed_at,
		targets=EXCLUDED.targets, mirror=EXCLUDED.mirror, spw_rows=EXCLUDED.spw_rows,
		mous_rows=EXCLUDED.mous_rows, payload=EXCLUDED.payload`,
	List: `SELECT id, started_at, completed_at, targets, mirror, spw_rows, mous_rows FROM runs ORDER BY started_at DESC, id`,
	Get:  `SELECT payload FROM runs WHERE id = $1`,
}

// Store is the PostgreSQL-backed run history.
type Store struct {
	*sqlstore.Store
}

// New connects to dsn (defaultDSN when empty), pings, and ensures the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	inner, err := sqlstore.Open(ctx, db, Dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: inner}, nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
