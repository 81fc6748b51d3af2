package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var expvarSeq uint64

// StageStats accumulates the reports of one stage across runs.
type StageStats struct {
	Runs         int64   `json:"runs"`
	Failures     int64   `json:"failures"`
	DurationMS   float64 `json:"duration_ms_total"`
	LastRows     int     `json:"last_rows"`
	RowsTotal    int64   `json:"rows_total"`
	SkippedTotal int64   `json:"skipped_total"`
}

// RunStatsSnapshot is the expvar view: the last run seen and per-stage stats.
type RunStatsSnapshot struct {
	LastRunID string                `json:"last_run_id,omitempty"`
	Stages    map[string]StageStats `json:"stages"`
}

// ExpvarRunStats publishes per-stage row counts and outcomes via expvar.
type ExpvarRunStats struct {
	name    string
	mu      sync.Mutex
	lastRun string
	stages  map[string]StageStats
}

// NewExpvarRunStats publishes stats under name (default "siosearch_stages").
// expvar names are process-global; a taken name gets a numeric suffix.
func NewExpvarRunStats(name string) *ExpvarRunStats {
	if name == "" {
		name = "siosearch_stages"
	}
	if expvar.Get(name) != nil {
		name = fmt.Sprintf("%s_%d", name, atomic.AddUint64(&expvarSeq, 1))
	}
	s := &ExpvarRunStats{name: name, stages: make(map[string]StageStats)}
	expvar.Publish(name, expvar.Func(func() any { return s.Snapshot() }))
	return s
}

// Name returns the expvar export name.
func (s *ExpvarRunStats) Name() string { return s.name }

// Snapshot copies the accumulated stats.
func (s *ExpvarRunStats) Snapshot() RunStatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	stages := make(map[string]StageStats, len(s.stages))
	for k, v := range s.stages {
		stages[k] = v
	}
	return RunStatsSnapshot{LastRunID: s.lastRun, Stages: stages}
}

// Observe implements MetricsRecorder.
func (s *ExpvarRunStats) Observe(_ context.Context, r StageReport) {
	if r.Stage == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.RunID != "" {
		s.lastRun = r.RunID
	}
	st := s.stages[r.Stage]
	st.Runs++
	if !r.Success() {
		st.Failures++
	}
	st.DurationMS += float64(r.Duration) / float64(time.Millisecond)
	st.LastRows = r.Rows
	st.RowsTotal += int64(r.Rows)
	st.SkippedTotal += int64(r.Skipped)
	s.stages[r.Stage] = st
}

// TraceEntry is one finished stage span, one JSON line per entry.
type TraceEntry struct {
	RunID      string    `json:"run_id"`
	Stage      string    `json:"stage"`
	Outcome    string    `json:"outcome"`
	Rows       int       `json:"rows"`
	Skipped    int       `json:"skipped,omitempty"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
}

// JSONTracer writes finished stage spans as JSON lines and retains them.
type JSONTracer struct {
	mu      sync.Mutex
	entries []TraceEntry
	enc     *json.Encoder
}

// NewJSONTracer builds a tracer writing to w; a nil writer only retains spans.
func NewJSONTracer(w io.Writer) *JSONTracer {
	t := &JSONTracer{}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Entries returns a copy of the recorded spans.
func (t *JSONTracer) Entries() []TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TraceEntry(nil), t.entries...)
}

// Start implements Tracer.
func (t *JSONTracer) Start(ctx context.Context, runID, stage string) (context.Context, TraceSpan) {
	return ctx, &stageSpan{tracer: t, entry: TraceEntry{RunID: runID, Stage: stage, StartedAt: time.Now().UTC()}}
}

type stageSpan struct {
	tracer *JSONTracer
	entry  TraceEntry
}

func (s *stageSpan) End(rows, skipped int, err error) {
	e := s.entry
	e.DurationMS = float64(time.Since(e.StartedAt)) / float64(time.Millisecond)
	e.Rows, e.Skipped = rows, skipped
	e.Outcome = StageReport{Err: err}.Outcome()
	if err != nil {
		e.Error = err.Error()
	}
	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.tracer.entries = append(s.tracer.entries, e)
	if s.tracer.enc != nil {
		_ = s.tracer.enc.Encode(e)
	}
}
