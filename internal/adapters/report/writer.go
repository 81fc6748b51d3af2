// Package report writes the SPW and MOUS tables as CSV and LaTeX files and,
// when a blob store is configured, publishes them under runs/<run-id>/.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"siosearch/internal/blob"
	"siosearch/internal/core"
	"siosearch/pkg/obscore"
)

// Writer implements core.ReportWriter.
type Writer struct {
	dir   string
	store blob.Store
	log   *zap.Logger
}

var _ core.ReportWriter = (*Writer)(nil)

// Option configures a Writer.
type Option func(*Writer)

// WithStore publishes every artifact to s after writing it locally.
func WithStore(s blob.Store) Option { return func(w *Writer) { w.store = s } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.log = l
		}
	}
}

// New returns a Writer targeting dir ("." when empty).
func New(dir string, opts ...Option) *Writer {
	if dir == "" {
		dir = "."
	}
	w := &Writer{dir: dir, log: zap.NewNop()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type rendered struct {
	name        string
	format      obscore.Format
	contentType string
	rows        int
	payload     []byte
}

// Write renders both tables and writes sio_spw_matches.{csv,tex} and
// sio_mous_summary.{csv,tex}, replacing existing files. The SPW LaTeX table
// omits the MOUS identifier.
func (w *Writer) Write(ctx context.Context, runID string, spw core.SpwTable, mous core.MousTable) ([]core.Artifact, error) {
	spwData, mousData := spw.Dataset(), mous.Dataset()
	spwTeX := make([]obscore.Column, 0, len(spwData.Schema))
	for _, c := range spwData.Schema {
		if c.Name != obscore.ColMousID {
			spwTeX = append(spwTeX, c)
		}
	}

	var outputs []rendered
	for _, d := range []obscore.Dataset{spwData, mousData} {
		payload, err := RenderCSV(d, d.Schema)
		if err != nil {
			return nil, fmt.Errorf("render %s csv: %w", d.Name, err)
		}
		outputs = append(outputs, rendered{name: d.Name + ".csv", format: obscore.FormatCSV, contentType: "text/csv", rows: len(d.Rows), payload: payload})
	}
	outputs = append(outputs,
		rendered{name: spwData.Name + ".tex", format: obscore.FormatLaTeX, contentType: "application/x-tex", rows: len(spwData.Rows), payload: RenderLaTeX(spwData, spwTeX)},
		rendered{name: mousData.Name + ".tex", format: obscore.FormatLaTeX, contentType: "application/x-tex", rows: len(mousData.Rows), payload: RenderLaTeX(mousData, mousData.Schema)},
	)

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	artifacts := make([]core.Artifact, 0, len(outputs))
	for _, out := range outputs {
		if err := ctx.Err(); err != nil {
			return artifacts, err
		}
		p := filepath.Join(w.dir, out.name)
		if err := writeFileAtomic(p, out.payload); err != nil {
			return artifacts, fmt.Errorf("write %s: %w", p, err)
		}
		art := core.Artifact{Name: out.name, Path: p, Format: out.format, Rows: out.rows, SizeBytes: int64(len(out.payload))}
		if w.store != nil {
			u, err := w.publish(ctx, runID, out)
			if err != nil {
				return artifacts, err
			}
			art.URL = u
		}
		w.log.Info("report written", zap.String("file", p), zap.Int("rows", out.rows), zap.String("url", art.URL))
		artifacts = append(artifacts, art)
	}
	return artifacts, nil
}

func (w *Writer) publish(ctx context.Context, runID string, out rendered) (string, error) {
	key := path.Join("runs", runID, out.name)
	info, err := w.store.Put(ctx, key, bytes.NewReader(out.payload), blob.PutOptions{
		ContentType: out.contentType,
		Replace:     true,
		Metadata:    map[string]string{"run_id": runID, "rows": strconv.Itoa(out.rows)},
	})
	if err != nil {
		return "", fmt.Errorf("publish %s: %w", key, err)
	}
	if info.URL != "" {
		return info.URL, nil
	}
	u, err := w.store.PresignURL(ctx, key, blob.SignedURLOptions{})
	if errors.Is(err, blob.ErrUnsupported) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u, nil
}

func writeFileAtomic(p string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}
