package core

import (
	"context"
	"time"
)

// Pipeline stage operation names reported to metrics and tracers.
const (
	OpQuery         = "query"
	OpHarmonize     = "harmonize"
	OpMatch         = "match"
	OpAggregateSpw  = "aggregate_spw"
	OpAggregateMous = "aggregate_mous"
	OpWrite         = "write"
	OpRecord        = "record"
	OpDownload      = "download"
)

// StageReport describes one finished pipeline stage.
type StageReport struct {
	RunID    string
	Stage    string
	Err      error
	Duration time.Duration
	// Rows is what the stage produced: archive rows (query), observations
	// (harmonize), covering SPW records (match), table rows (aggregate_*),
	// files (write), runs (record) or retrieved MOUS IDs (download).
	Rows int
	// Skipped counts targets that returned nothing (query) or MOUS IDs whose
	// download failed (download).
	Skipped int
}

// Success reports whether the stage finished without error.
func (r StageReport) Success() bool { return r.Err == nil }

// Outcome is the metric label for the stage result.
func (r StageReport) Outcome() string {
	if r.Err != nil {
		return "error"
	}
	return "success"
}

// MetricsRecorder observes finished stages.
type MetricsRecorder interface {
	Observe(ctx context.Context, report StageReport)
}

// Tracer starts a span around a stage of a run.
type Tracer interface {
	Start(ctx context.Context, runID, stage string) (context.Context, TraceSpan)
}

// TraceSpan is closed with the stage counts and error, nil on success.
type TraceSpan interface {
	End(rows, skipped int, err error)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, StageReport) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(int, int, error) {}

// MultiRecorder fans reports out to several recorders.
type MultiRecorder []MetricsRecorder

// Observe implements MetricsRecorder.
func (m MultiRecorder) Observe(ctx context.Context, report StageReport) {
	for _, r := range m {
		if r != nil {
			r.Observe(ctx, report)
		}
	}
}
