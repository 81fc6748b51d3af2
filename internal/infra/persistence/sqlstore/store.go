// Package sqlstore keeps run history in a single SQL table: summary columns
// for listing plus the full run as a compressed JSON payload. The sqlite and
// postgres packages supply the dialect and driver.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"siosearch/internal/core"
)

// Dialect carries the driver-specific statements.
type Dialect struct {
	Name   string
	Schema []string
	Upsert string
	List   string
	Get    string
}

// Store implements run recording and lookup over database/sql.
type Store struct {
	db *sql.DB
	d  Dialect
	mu sync.Mutex
}

// Open applies the dialect schema and returns a ready store.
func Open(ctx context.Context, db *sql.DB, d Dialect) (*Store, error) {
	for _, stmt := range d.Schema {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("%s: apply schema: %w", d.Name, err)
		}
	}
	return &Store{db: db, d: d}, nil
}

// RecordRun upserts rec keyed by its ID.
func (s *Store) RecordRun(ctx context.Context, rec core.RunRecord) (retErr error) {
	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("run id required")
	}
	payload, err := EncodeRun(rec)
	if err != nil {
		return err
	}
	targets, err := json.Marshal(rec.Targets)
	if err != nil {
		return fmt.Errorf("encode targets: %w", err)
	}
	sum := rec.Summary()

	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", s.d.Name, err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, s.d.Upsert,
		rec.ID, rec.StartedAt.UnixNano(), rec.CompletedAt.UnixNano(), string(targets), rec.Mirror,
		int64(sum.SpwRows), int64(sum.MousRows), payload); err != nil {
		return fmt.Errorf("%s: upsert run %s: %w", s.d.Name, rec.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", s.d.Name, err)
	}
	return nil
}

// ListRuns returns summaries newest first. limit <= 0 returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]core.RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, s.d.List)
	if err != nil {
		return nil, fmt.Errorf("%s: list runs: %w", s.d.Name, err)
	}
	defer func() { _ = rows.Close() }()

	var out []core.RunSummary
	for rows.Next() {
		var (
			sum                core.RunSummary
			started, completed int64
			targets            string
			spw, mous          int64
		)
		if err := rows.Scan(&sum.ID, &started, &completed, &targets, &sum.Mirror, &spw, &mous); err != nil {
			return nil, fmt.Errorf("%s: scan run: %w", s.d.Name, err)
		}
		if err := json.Unmarshal([]byte(targets), &sum.Targets); err != nil {
			return nil, fmt.Errorf("%s: decode targets for %s: %w", s.d.Name, sum.ID, err)
		}
		sum.StartedAt = time.Unix(0, started).UTC()
		sum.CompletedAt = time.Unix(0, completed).UTC()
		sum.SpwRows, sum.MousRows = int(spw), int(mous)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate runs: %w", s.d.Name, err)
	}
	SortSummaries(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetRun loads the full record for id.
func (s *Store) GetRun(ctx context.Context, id string) (core.RunRecord, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, s.d.Get, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RunRecord{}, fmt.Errorf("%s: %w", id, core.ErrRunNotFound)
	}
	if err != nil {
		return core.RunRecord{}, fmt.Errorf("%s: get run %s: %w", s.d.Name, id, err)
	}
	return DecodeRun(payload)
}

func (s *Store) Close() error { return s.db.Close() }

// SortSummaries orders newest first, ties by ID.
func SortSummaries(in []core.RunSummary) {
	sort.SliceStable(in, func(i, j int) bool {
		if !in[i].StartedAt.Equal(in[j].StartedAt) {
			return in[i].StartedAt.After(in[j].StartedAt)
		}
		return in[i].ID < in[j].ID
	})
}
