package metrics

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"squash/internal/convergence"
	"squash/internal/logging"
)

var terminalStates = []convergence.State{
	convergence.StateAlreadyUnderTarget,
	convergence.StateConverged,
	convergence.StateExhausted,
	convergence.StateFailed,
	convergence.StateCancelled,
}

type runMetrics struct {
	registry          *prometheus.Registry
	success           prometheus.Gauge
	state             *prometheus.GaugeVec
	iterations        prometheus.Gauge
	maxIterations     prometheus.Gauge
	inputBytes        prometheus.Gauge
	outputBytes       prometheus.Gauge
	targetBytes       prometheus.Gauge
	finalBitrate      prometheus.Gauge
	duration          prometheus.Gauge
	lastTimestamp     prometheus.Gauge
	iterationDuration prometheus.Histogram
}

func newRunMetrics() *runMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &runMetrics{
		registry: reg,
		success: factory.NewGauge(prometheus.GaugeOpts{
			Name: "squash_run_success",
			Help: "1 when the last run wrote a usable output file",
		}),
		state: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "squash_run_state",
			Help: "Terminal state of the last run (1 for the active state)",
		}, []string{"state"}),
		iterations: factory.NewGauge(prometheus.GaugeOpts{
			Name: "squash_run_iterations",
			Help: "Encode iterations used by the last run",
		}),
		maxIterations: factory.NewGauge(prometheus.GaugeOpts{
			Name: "squash_run_max_iterations",
			Help: "Iteration budget of the last run",
		}),
		inputBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "squash_run_input_bytes",
			Help: "Size of the last run's input file",
		}),
		outputBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "squash_run_output_bytes",
			Help: "Size of the last run's final result",
		}),
		targetBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "squash_run_target_bytes",
			Help: "Target size of the last run",
		}),
		finalBitrate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "squash_run_final_bitrate_kbps",
			Help: "Video bitrate of the last run's final encode",
		}),
		duration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "squash_run_duration_seconds",
			Help: "Wall-clock duration of the last run",
		}),
		lastTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "squash_run_last_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
		iterationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "squash_iteration_duration_seconds",
			Help:    "Encode duration of each iteration in the last run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
	}
}

func (m *runMetrics) observe(report convergence.Report, finished time.Time) {
	m.success.Set(boolGauge(report.WroteOutput()))
	for _, state := range terminalStates {
		m.state.WithLabelValues(state.String()).Set(boolGauge(state == report.State))
	}
	m.iterations.Set(float64(report.IterationsUsed))
	m.maxIterations.Set(float64(report.MaxIterations))
	m.inputBytes.Set(float64(report.InputSizeBytes))
	m.outputBytes.Set(float64(report.SizeBytes))
	m.targetBytes.Set(float64(report.TargetSizeBytes))
	m.finalBitrate.Set(report.FinalBitrateKbps)
	m.duration.Set(report.Elapsed.Seconds())
	m.lastTimestamp.Set(float64(finished.Unix()))
	for _, it := range report.Iterations {
		m.iterationDuration.Observe(it.Elapsed.Seconds())
	}
}

// Write renders report into the textfile at path, replacing its contents.
func Write(path string, report convergence.Report, finished time.Time) error {
	if filepath.Ext(path) != ".prom" {
		return fmt.Errorf("metrics textfile %q must end in .prom", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure metrics directory: %w", err)
	}
	m := newRunMetrics()
	m.observe(report, finished)
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Exporter is a convergence.Sink that writes the textfile when a run finishes.
type Exporter struct {
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// NewExporter returns an exporter for path. An empty path disables it.
func NewExporter(path string, logger *slog.Logger) *Exporter {
	if path == "" {
		return nil
	}
	return &Exporter{
		path:   path,
		logger: logging.NewComponentLogger(logger, "metrics"),
		now:    time.Now,
	}
}

// Handle implements convergence.Sink.
func (e *Exporter) Handle(evt convergence.Event) {
	if e == nil || evt.Kind != convergence.EventFinished || evt.Report == nil {
		return
	}
	if err := Write(e.path, *evt.Report, e.now()); err != nil {
		e.logger.Warn("metrics export failed", logging.String("path", e.path), logging.Error(err))
		return
	}
	e.logger.Debug("metrics exported", logging.String("path", e.path))
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
