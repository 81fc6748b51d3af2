// Package results opens the run history store selected by configuration.
package results

import (
	"context"
	"fmt"
	"strings"

	"siosearch/internal/core"
	"siosearch/internal/infra/persistence/memory"
	"siosearch/internal/infra/persistence/postgres"
	"siosearch/internal/infra/persistence/sqlite"
)

// Driver names a run history backend.
type Driver string

const (
	DriverNone     Driver = "none"
	DriverMemory   Driver = "memory"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Store records runs and reads them back.
type Store interface {
	core.RunRecorder
	ListRuns(ctx context.Context, limit int) ([]core.RunSummary, error)
	GetRun(ctx context.Context, id string) (core.RunRecord, error)
	Close() error
}

// Config selects the backend.
type Config struct {
	Driver      Driver
	SQLitePath  string
	PostgresDSN string
}

// Enabled reports whether runs should be recorded.
func (c Config) Enabled() bool {
	d := Driver(strings.ToLower(strings.TrimSpace(string(c.Driver))))
	return d != "" && d != DriverNone
}

// Open constructs the configured Store. A disabled config is an error; check
// Enabled first.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch Driver(strings.ToLower(strings.TrimSpace(string(cfg.Driver)))) {
	case DriverMemory:
		return memory.New(), nil
	case DriverSQLite:
		return sqlite.New(ctx, cfg.SQLitePath)
	case DriverPostgres:
		return postgres.New(ctx, cfg.PostgresDSN)
	case "", DriverNone:
		return nil, fmt.Errorf("results store disabled")
	default:
		return nil, fmt.Errorf("unknown results driver %q", cfg.Driver)
	}
}
