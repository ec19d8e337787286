package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects per-run counters. A nil *Metrics records nothing.
type Metrics struct {
	registry             *prometheus.Registry
	runsTotal            *prometheus.CounterVec
	runDuration          *prometheus.HistogramVec
	pixelsProcessedTotal prometheus.Counter
	bytesWrittenTotal    prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ppmkit_runs_total",
			Help: "Total ppmkit runs by action and final status.",
		}, []string{"action", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ppmkit_run_duration_seconds",
			Help:    "Wall time of each run from fetch to emit.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"action", "status"}),
		pixelsProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ppmkit_pixels_processed_total",
			Help: "Total source pixels read by successful runs.",
		}),
		bytesWrittenTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ppmkit_bytes_written_total",
			Help: "Total output bytes written by successful runs.",
		}),
	}

	registry.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.pixelsProcessedTotal,
		m.bytesWrittenTotal,
	)
	return m
}

// Gatherer exposes the registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes the registry in the text exposition format for the
// node exporter textfile collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) observeRun(action, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(action, status).Inc()
	m.runDuration.WithLabelValues(action, status).Observe(elapsed.Seconds())
}

func (m *Metrics) observeOutput(pixels int, bytes int64) {
	if m == nil {
		return
	}
	m.pixelsProcessedTotal.Add(float64(pixels))
	m.bytesWrittenTotal.Add(float64(bytes))
}
