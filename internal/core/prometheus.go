package core

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder exports stage durations, outcomes and row counts on its
// own registry.
type PrometheusRecorder struct {
	registry  *prometheus.Registry
	durations *prometheus.HistogramVec
	outcomes  *prometheus.CounterVec
	rows      *prometheus.GaugeVec
	skipped   *prometheus.CounterVec
}

// NewPrometheusRecorder registers the stage collectors under namespace.
func NewPrometheusRecorder(namespace string) *PrometheusRecorder {
	if namespace == "" {
		namespace = "siosearch"
	}
	reg := prometheus.NewRegistry()
	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Duration of pipeline stages.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"stage"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stage_total",
		Help:      "Pipeline stage executions by outcome.",
	}, []string{"stage", "outcome"})
	rows := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stage_rows",
		Help:      "Rows produced by the stage in the latest run.",
	}, []string{"stage"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stage_skipped_total",
		Help:      "Targets without rows and MOUS IDs whose download failed.",
	}, []string{"stage"})
	reg.MustRegister(durations, outcomes, rows, skipped)
	return &PrometheusRecorder{registry: reg, durations: durations, outcomes: outcomes, rows: rows, skipped: skipped}
}

// Observe implements MetricsRecorder.
func (r *PrometheusRecorder) Observe(_ context.Context, rep StageReport) {
	if rep.Stage == "" {
		return
	}
	r.durations.WithLabelValues(rep.Stage).Observe(rep.Duration.Seconds())
	r.outcomes.WithLabelValues(rep.Stage, rep.Outcome()).Inc()
	r.rows.WithLabelValues(rep.Stage).Set(float64(rep.Rows))
	if rep.Skipped > 0 {
		r.skipped.WithLabelValues(rep.Stage).Add(float64(rep.Skipped))
	}
}

// Registry exposes the underlying registry.
func (r *PrometheusRecorder) Registry() *prometheus.Registry { return r.registry }

// WriteTextfile writes the registry in text exposition format, for the node
// exporter textfile collector.
func (r *PrometheusRecorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
