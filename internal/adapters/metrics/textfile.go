// Package metrics records step outcomes as Prometheus metrics and writes
// them in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/felixgeelhaar/edgeprov/internal/domain/compiler"
	"github.com/felixgeelhaar/edgeprov/internal/domain/execution"
)

const namespace = "edgeprov"

// TextfileRecorder observes a pipeline run and writes the collected metrics
// to a file on Flush.
type TextfileRecorder struct {
	mu       sync.Mutex
	path     string
	registry *prometheus.Registry

	stepResults  *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	runSteps     *prometheus.GaugeVec
	lastRun      prometheus.Gauge
	runFailed    prometheus.Gauge
}

// NewTextfileRecorder creates a recorder that writes to path.
func NewTextfileRecorder(path string) *TextfileRecorder {
	r := &TextfileRecorder{
		path:     path,
		registry: prometheus.NewRegistry(),
		stepResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "step_results_total",
				Help:      "Step outcomes by step and status",
			},
			[]string{"step", "status"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Time spent in check, apply and verify per step",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms to ~27min
			},
			[]string{"step"},
		),
		runSteps: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "run",
				Name:      "steps",
				Help:      "Steps in the last run by status",
			},
			[]string{"status"},
		),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "last_finished_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
		runFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "failed",
			Help:      "1 if the last run had a failed step",
		}),
	}
	r.registry.MustRegister(r.stepResults, r.stepDuration, r.runSteps, r.lastRun, r.runFailed)
	return r
}

// StepStarted implements execution.Observer.
func (r *TextfileRecorder) StepStarted(compiler.StepID) {}

// StepFinished implements execution.Observer.
func (r *TextfileRecorder) StepFinished(result execution.StepResult) {
	step := result.StepID().String()
	r.stepResults.WithLabelValues(step, result.Status().String()).Inc()
	if !result.StartedAt().IsZero() {
		r.stepDuration.WithLabelValues(step).Observe(result.Duration().Seconds())
	}
}

// RecordRun sets the run-level gauges from a finished report.
func (r *TextfileRecorder) RecordRun(report *execution.Report) {
	if report == nil {
		return
	}
	r.runSteps.Reset()
	for status, n := range report.Counts() {
		r.runSteps.WithLabelValues(status.String()).Set(float64(n))
	}
	r.lastRun.Set(float64(report.FinishedAt().Unix()))
	if report.Failed() {
		r.runFailed.Set(1)
	} else {
		r.runFailed.Set(0)
	}
}

// Flush writes every collected metric to the textfile.
func (r *TextfileRecorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(r.path, r.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", r.path, err)
	}
	return nil
}

var _ execution.Observer = (*TextfileRecorder)(nil)
