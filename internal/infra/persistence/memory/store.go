// Package memory keeps run history in process memory. Records are stored in
// their encoded form so callers never share maps with the store.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"siosearch/internal/core"
	"siosearch/internal/infra/persistence/sqlstore"
)

type entry struct {
	summary core.RunSummary
	payload []byte
}

// Store implements run history without persistence.
type Store struct {
	mu   sync.RWMutex
	runs map[string]entry
}

// New returns an empty store.
func New() *Store { return &Store{runs: make(map[string]entry)} }

func (s *Store) RecordRun(_ context.Context, rec core.RunRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("run id required")
	}
	payload, err := sqlstore.EncodeRun(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[rec.ID] = entry{summary: rec.Summary(), payload: payload}
	return nil
}

func (s *Store) ListRuns(_ context.Context, limit int) ([]core.RunSummary, error) {
	s.mu.RLock()
	out := make([]core.RunSummary, 0, len(s.runs))
	for _, e := range s.runs {
		sum := e.summary
		sum.Targets = append([]string(nil), sum.Targets...)
		out = append(out, sum)
	}
	s.mu.RUnlock()
	sqlstore.SortSummaries(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GetRun(_ context.Context, id string) (core.RunRecord, error) {
	s.mu.RLock()
	e, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return core.RunRecord{}, fmt.Errorf("%s: %w", id, core.ErrRunNotFound)
	}
	return sqlstore.DecodeRun(e.payload)
}

func (s *Store) Close() error { return nil }
