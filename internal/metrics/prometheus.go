// Package metrics provides Prometheus metrics for conversion runs, written as
// a node-exporter textfile since a batch run has no scrape endpoint.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Row outcomes.
const (
	OutcomeConverted        = "converted"
	OutcomeNamingConvention = "naming_convention"
	OutcomeRowParse         = "row_parse"
)

// Run statuses, mirroring the history store.
const (
	StatusOK          = "ok"
	StatusFailed      = "failed"
	StatusWriteFailed = "write_failed"
)

// Manager owns the conversion metrics. A nil *Manager records nothing.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         *prometheus.Registry

	rows           *prometheus.CounterVec
	collisions     prometheus.Counter
	entriesWritten prometheus.Counter
	runs           *prometheus.CounterVec
	runDuration    prometheus.Histogram
	lastRun        prometheus.Gauge
}

// NewManager creates a metrics manager with its own registry unless one is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "ale2ccc",
		subsystem:        "convert",
		histogramBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		constLabels:      map[string]string{},
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.rows = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "rows_total",
		Help:        "Data rows seen, by outcome",
		ConstLabels: m.constLabels,
	}, []string{"outcome"})

	m.collisions = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "id_collisions_total",
		Help:        "Records inserted under a versioned id because the derived id was taken",
		ConstLabels: m.constLabels,
	})

	m.entriesWritten = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "entries_written_total",
		Help:        "ColorCorrection elements written to CCC documents",
		ConstLabels: m.constLabels,
	})

	m.runs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "runs_total",
		Help:        "Conversion runs, by final status",
		ConstLabels: m.constLabels,
	}, []string{"status"})

	m.runDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "run_duration_seconds",
		Help:        "Wall time of a conversion run",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})

	m.lastRun = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "last_run_timestamp_seconds",
		Help:        "Unix time the last conversion run finished",
		ConstLabels: m.constLabels,
	})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRow counts one data row under outcome.
func (m *Manager) RecordRow(outcome string) {
	if m == nil {
		return
	}
	m.rows.WithLabelValues(outcome).Inc()
}

// RecordCollision counts one versioned insertion.
func (m *Manager) RecordCollision() {
	if m == nil {
		return
	}
	m.collisions.Inc()
}

// RecordRun records the end of a run.
func (m *Manager) RecordRun(status string, entriesWritten int, elapsed time.Duration, finished time.Time) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
	if entriesWritten > 0 {
		m.entriesWritten.Add(float64(entriesWritten))
	}
	m.runDuration.Observe(elapsed.Seconds())
	m.lastRun.Set(float64(finished.Unix()))
}

// WriteTextfile atomically writes the registry in the text exposition format.
func (m *Manager) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrTextfileWrite, err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("%w: %v", ErrTextfileWrite, err)
	}
	return nil
}
