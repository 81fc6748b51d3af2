package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"siosearch/pkg/obscore"
)

// Options is the immutable run configuration threaded through the pipeline.
type Options struct {
	Targets     []string
	Transitions TransitionTable
	Query       QueryOptions
	Download    bool
	UseCache    bool
}

// ReportWriter persists the two report tables.
type ReportWriter interface {
	Write(ctx context.Context, runID string, spw SpwTable, mous MousTable) ([]Artifact, error)
}

// RunRecorder stores a completed run.
type RunRecorder interface {
	RecordRun(ctx context.Context, run RunRecord) error
}

// Result summarizes one pipeline run.
type Result struct {
	RunID           string
	ObservationRows int
	// SkippedTargets failed or returned no rows, in query order.
	SkippedTargets []string
	NoMatches      bool
	Spw            SpwTable
	Mous           MousTable
	Artifacts      []Artifact
	Download       *DownloadSummary
}

// Pipeline runs query, harmonize, match, aggregate, write, record and
// download strictly in sequence.
type Pipeline struct {
	opts      Options
	querier   Querier
	writer    ReportWriter
	retriever Retriever
	recorder  RunRecorder
	metrics   MetricsRecorder
	tracer    Tracer
	log       *zap.Logger
	now       func() time.Time
	newID     func() string
}

// PipelineOption customizes a Pipeline.
type PipelineOption func(*Pipeline)

// WithRetriever sets the bulk download client.
func WithRetriever(r Retriever) PipelineOption { return func(p *Pipeline) { p.retriever = r } }

// WithRecorder sets the run history store.
func WithRecorder(r RunRecorder) PipelineOption { return func(p *Pipeline) { p.recorder = r } }

// WithMetrics sets the stage metrics recorder.
func WithMetrics(m MetricsRecorder) PipelineOption { return func(p *Pipeline) { p.metrics = m } }

// WithTracer sets the stage tracer.
func WithTracer(t Tracer) PipelineOption { return func(p *Pipeline) { p.tracer = t } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) PipelineOption { return func(p *Pipeline) { p.log = l } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) PipelineOption { return func(p *Pipeline) { p.now = now } }

// WithIDGenerator overrides run ID generation.
func WithIDGenerator(fn func() string) PipelineOption { return func(p *Pipeline) { p.newID = fn } }

// NewPipeline wires a pipeline. Querier and writer are required.
func NewPipeline(opts Options, q Querier, w ReportWriter, options ...PipelineOption) *Pipeline {
	p := &Pipeline{
		opts:    opts,
		querier: q,
		writer:  w,
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		log:     zap.NewNop(),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Run executes the pipeline. A run in which nothing matches returns a
// Result with NoMatches set and writes nothing.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	if p.querier == nil || p.writer == nil {
		return Result{}, fmt.Errorf("pipeline requires a querier and a report writer")
	}
	started := p.now()
	res := Result{RunID: p.newID()}
	log := p.log.With(zap.String("run_id", res.RunID))

	var table obscore.Table
	if err := p.stage(ctx, res.RunID, OpQuery, func(ctx context.Context) (int, int, error) {
		tq, err := QueryTargets(ctx, p.querier, p.opts.Targets, p.opts.Query, log)
		table = tq.Table
		res.SkippedTargets = tq.Skipped(p.opts.Targets)
		return table.Len(), len(res.SkippedTargets), err
	}); err != nil {
		return res, err
	}
	res.ObservationRows = table.Len()

	var obs Observations
	if err := p.stage(ctx, res.RunID, OpHarmonize, func(context.Context) (int, int, error) {
		var err error
		obs, err = Harmonize(table)
		return len(obs.Records), 0, err
	}); err != nil {
		return res, err
	}

	var matches Matches
	_ = p.stage(ctx, res.RunID, OpMatch, func(context.Context) (int, int, error) {
		matches = Match(obs, p.opts.Transitions)
		return len(matches.Records), 0, nil
	})
	if matches.Empty() {
		log.Info("no spectral windows cover any configured transition")
		res.NoMatches = true
		return res, nil
	}
	log.Info("transition-covering SPW rows", zap.Int("rows", len(matches.Records)))
	for source, n := range matches.CountBySource() {
		log.Debug("matches per source", zap.String("source", source), zap.Int("rows", n))
	}

	_ = p.stage(ctx, res.RunID, OpAggregateSpw, func(context.Context) (int, int, error) {
		res.Spw = BuildSpwTable(matches)
		return len(res.Spw.Records), 0, nil
	})
	_ = p.stage(ctx, res.RunID, OpAggregateMous, func(context.Context) (int, int, error) {
		res.Mous = BuildMousTable(matches)
		return len(res.Mous.Rows), 0, nil
	})
	log.Info("unique MOUS IDs with transition coverage", zap.Int("count", len(res.Mous.Rows)))

	if err := p.stage(ctx, res.RunID, OpWrite, func(ctx context.Context) (int, int, error) {
		artifacts, err := p.writer.Write(ctx, res.RunID, res.Spw, res.Mous)
		res.Artifacts = artifacts
		return len(artifacts), 0, err
	}); err != nil {
		return res, fmt.Errorf("write reports: %w", err)
	}
	for _, a := range res.Artifacts {
		log.Info("saved", zap.String("file", a.Path), zap.Int("rows", a.Rows))
	}

	if p.recorder != nil {
		run := RunRecord{
			ID:              res.RunID,
			StartedAt:       started,
			CompletedAt:     p.now(),
			Targets:         append([]string(nil), p.opts.Targets...),
			Mirror:          p.opts.Query.Mirror,
			RadiusArcmin:    p.opts.Query.RadiusArcmin,
			Transitions:     p.opts.Transitions.Clone(),
			ObservationRows: res.ObservationRows,
			Spw:             res.Spw.Dataset(),
			Mous:            res.Mous.Dataset(),
			Artifacts:       res.Artifacts,
		}
		if err := p.stage(ctx, res.RunID, OpRecord, func(ctx context.Context) (int, int, error) {
			if err := p.recorder.RecordRun(ctx, run); err != nil {
				return 0, 0, err
			}
			return 1, 0, nil
		}); err != nil {
			return res, fmt.Errorf("record run: %w", err)
		}
	}

	if !p.opts.Download {
		log.Info("download stage disabled")
		return res, nil
	}
	if p.retriever == nil {
		log.Warn("download requested but no retriever configured")
		return res, nil
	}
	_ = p.stage(ctx, res.RunID, OpDownload, func(ctx context.Context) (int, int, error) {
		summary := DownloadAll(ctx, p.retriever, res.Mous, p.opts.UseCache, log)
		res.Download = &summary
		failed := len(summary.Failures)
		if failed > 0 {
			return summary.Retrieved, failed, fmt.Errorf("%d of %d downloads failed", failed, summary.Requested)
		}
		return summary.Retrieved, 0, nil
	})
	return res, nil
}

// stage runs fn, which returns the rows it produced and the units it skipped,
// and reports the result to the tracer and metrics recorder.
func (p *Pipeline) stage(ctx context.Context, runID, op string, fn func(context.Context) (rows, skipped int, err error)) error {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, runID, op)
	rows, skipped, err := fn(ctx)
	span.End(rows, skipped, err)
	p.metrics.Observe(ctx, StageReport{
		RunID:    runID,
		Stage:    op,
		Err:      err,
		Duration: time.Since(start),
		Rows:     rows,
		Skipped:  skipped,
	})
	return err
}
