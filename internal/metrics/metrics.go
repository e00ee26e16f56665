package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels the result of one resolution.
type Outcome string

const (
	OutcomeOK    Outcome = "ok"
	OutcomeError Outcome = "error"
	OutcomeCycle Outcome = "cycle"
)

// Recorder owns the resolver's collectors on a private registry so several
// recorders (one per test, one per CLI run) never collide. A nil Recorder
// discards every observation.
type Recorder struct {
	registry *prometheus.Registry

	resolutionsTotal   *prometheus.CounterVec
	resolutionDuration *prometheus.HistogramVec
	diagnosticsTotal   *prometheus.CounterVec
	modulesOrdered     *prometheus.GaugeVec
}

// New registers the collectors on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		resolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modgraph_resolutions_total",
				Help: "Number of resolution passes by platform and outcome.",
			},
			[]string{"platform", "outcome"},
		),
		resolutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "modgraph_resolution_duration_seconds",
				Help:    "Time taken to resolve one platform context.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"platform"},
		),
		diagnosticsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modgraph_diagnostics_total",
				Help: "Number of diagnostics reported by kind.",
			},
			[]string{"kind"},
		),
		modulesOrdered: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "modgraph_modules_ordered",
				Help: "Number of modules in the last build order per platform.",
			},
			[]string{"platform"},
		),
	}
	r.registry.MustRegister(
		r.resolutionsTotal,
		r.resolutionDuration,
		r.diagnosticsTotal,
		r.modulesOrdered,
	)
	return r
}

// Observation summarises one resolution for the recorder.
type Observation struct {
	Platform    string
	Outcome     Outcome
	Duration    time.Duration
	Ordered     int
	Diagnostics map[string]int
}

// Observe records a finished resolution.
func (r *Recorder) Observe(obs Observation) {
	if r == nil {
		return
	}
	r.resolutionsTotal.WithLabelValues(obs.Platform, string(obs.Outcome)).Inc()
	r.resolutionDuration.WithLabelValues(obs.Platform).Observe(obs.Duration.Seconds())
	r.modulesOrdered.WithLabelValues(obs.Platform).Set(float64(obs.Ordered))
	for kind, count := range obs.Diagnostics {
		if count > 0 {
			r.diagnosticsTotal.WithLabelValues(kind).Add(float64(count))
		}
	}
}

// Gatherer exposes the private registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}

// WriteTextfile writes every metric in the Prometheus text format, suitable
// for the node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("metrics: ensure dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
