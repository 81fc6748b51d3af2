package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"siosearch/internal/adapters/report"
	"siosearch/internal/archive"
	"siosearch/internal/blob"
	"siosearch/internal/config"
	"siosearch/internal/core"
	"siosearch/internal/download"
	"siosearch/internal/results"
)

func (a *app) runCmd() *cobra.Command {
	var (
		targets   []string
		mirror    string
		radius    float64
		outputDir string
		doDL      bool
		useCache  bool
		splitSPW  bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Query the archive, match SiO transitions and write reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			flags := cmd.Flags()
			if flags.Changed("target") {
				cfg.Targets = targets
			}
			if flags.Changed("mirror") {
				cfg.Archive.Mirror = mirror
			}
			if flags.Changed("radius") {
				cfg.Archive.RadiusArcmin = radius
			}
			if flags.Changed("output") {
				cfg.Output.Dir = outputDir
			}
			if flags.Changed("download") {
				cfg.Download.Enabled = doDL
			}
			if flags.Changed("use-cache") {
				cfg.Download.UseCache = useCache
			}
			if flags.Changed("split-spw") {
				cfg.Archive.SplitSPW = splitSPW
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("%w: %v", errUsage, err)
			}
			res, err := runPipeline(cmd.Context(), cfg, a.log)
			if err != nil {
				return err
			}
			renderRunSummary(a.stdout, res)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringSliceVarP(&targets, "target", "t", nil, "Target name or \"ra dec\" in degrees (repeatable)")
	f.StringVar(&mirror, "mirror", "", "Archive mirror: eso, nrao or naoj")
	f.Float64Var(&radius, "radius", 0, "Cone search radius in arcminutes")
	f.StringVarP(&outputDir, "output", "o", "", "Directory for the report files")
	f.BoolVar(&doDL, "download", false, "Download the products of every matched MOUS")
	f.BoolVar(&useCache, "use-cache", false, "Skip products already held in the product store")
	f.BoolVar(&splitSPW, "split-spw", false, "Expand each observation into one row per spectral window")
	return cmd
}

// runPipeline wires the configured collaborators and runs one search.
func runPipeline(ctx context.Context, cfg *config.Config, log *zap.Logger) (core.Result, error) {
	opts, err := cfg.CoreOptions()
	if err != nil {
		return core.Result{}, err
	}
	archOpts, err := cfg.ArchiveOptions()
	if err != nil {
		return core.Result{}, err
	}
	archOpts.Logger = log
	client := archive.New(archOpts)

	var store blob.Store
	if cfg.BlobStore().Enabled() {
		if store, err = blob.Open(ctx, cfg.BlobStore()); err != nil {
			return core.Result{}, fmt.Errorf("open blob store: %w", err)
		}
	}
	writerOpts := []report.Option{report.WithLogger(log)}
	if store != nil {
		writerOpts = append(writerOpts, report.WithStore(store))
	}
	writer := report.New(cfg.Output.Dir, writerOpts...)

	pipeOpts := []core.PipelineOption{core.WithLogger(log)}
	if rc := cfg.ResultsStore(); rc.Enabled() {
		rs, err := results.Open(ctx, rc)
		if err != nil {
			return core.Result{}, fmt.Errorf("open results store: %w", err)
		}
		defer func() { _ = rs.Close() }()
		pipeOpts = append(pipeOpts, core.WithRecorder(rs))
	}

	if opts.Download {
		products := store
		if products == nil {
			if products, err = blob.NewFilesystem(cfg.ProductDir()); err != nil {
				return core.Result{}, fmt.Errorf("open product cache: %w", err)
			}
		}
		link, err := cfg.DatalinkURL()
		if err != nil {
			return core.Result{}, err
		}
		retriever, err := download.New(download.Options{
			DatalinkURL: link,
			Store:       products,
			Timeout:     archOpts.Timeout,
			Limiter:     archive.NewLimiter(archOpts.RequestsPerSecond),
			Logger:      log,
		})
		if err != nil {
			return core.Result{}, err
		}
		pipeOpts = append(pipeOpts, core.WithRetriever(retriever))
	}

	var recorders core.MultiRecorder
	if name := cfg.Metrics.ExpvarName; name != "" {
		recorders = append(recorders, core.NewExpvarRunStats(name))
	}
	var prom *core.PrometheusRecorder
	if cfg.Metrics.Textfile != "" {
		prom = core.NewPrometheusRecorder("siosearch")
		recorders = append(recorders, prom)
	}
	if len(recorders) > 0 {
		pipeOpts = append(pipeOpts, core.WithMetrics(recorders))
	}
	if path := cfg.Metrics.TraceFile; path != "" {
		f, err := os.Create(path) // #nosec G304 -- operator supplied trace path
		if err != nil {
			return core.Result{}, fmt.Errorf("open trace file: %w", err)
		}
		defer func() { _ = f.Close() }()
		pipeOpts = append(pipeOpts, core.WithTracer(core.NewJSONTracer(f)))
	}

	res, runErr := core.NewPipeline(opts, client, writer, pipeOpts...).Run(ctx)
	if prom != nil {
		if err := prom.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.Warn("write metrics textfile", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
		}
	}
	if runErr != nil {
		var schemaErr *core.SchemaError
		if errors.As(runErr, &schemaErr) {
			log.Error("archive result is missing a required column", zap.String("column", schemaErr.Column))
		}
		return res, runErr
	}
	return res, nil
}
