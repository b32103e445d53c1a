// Package metrics exposes Prometheus counters for benchmark execution and
// result gathering.
//
// A Collector owns its registry so several can coexist in one process
// (tests, the CLI and the server each create their own).
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "llmperf"

// Collector groups every metric the module records.
type Collector struct {
	registry *prometheus.Registry

	// JobOutcomes counts finished jobs.
	// Labels: status, backend, hardware
	JobOutcomes *prometheus.CounterVec

	// JobDuration measures wall time of dispatched jobs.
	// Labels: backend, hardware
	JobDuration *prometheus.HistogramVec

	// UploadFailures counts artifacts that could not be uploaded.
	UploadFailures *prometheus.CounterVec

	// GatheredRecords counts flattened rows per cell.
	// Labels: backend, hardware, subset, machine
	GatheredRecords *prometheus.CounterVec

	// MissingNamespaces counts cells with no remote namespace.
	MissingNamespaces prometheus.Counter

	// ActiveRuns is the number of matrix runs in progress.
	ActiveRuns prometheus.Gauge
}

// NewCollector registers all metrics on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		JobOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_outcomes_total",
			Help:      "Benchmark jobs by final status",
		}, []string{"status", "backend", "hardware"}),
		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of dispatched benchmark jobs",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
		}, []string{"backend", "hardware"}),
		UploadFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_failures_total",
			Help:      "Artifacts that could not be uploaded",
		}, []string{"backend", "hardware"}),
		GatheredRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gathered_records_total",
			Help:      "Flattened result rows gathered per cell",
		}, []string{"backend", "hardware", "subset", "machine"}),
		MissingNamespaces: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "missing_namespaces_total",
			Help:      "Cells whose remote namespace does not exist",
		}),
		ActiveRuns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Matrix runs currently executing",
		}),
	}
}

// Registry returns the registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordOutcome is nil-safe so callers may run without metrics.
func (c *Collector) RecordOutcome(status, backend, hardware string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.JobOutcomes.WithLabelValues(status, backend, hardware).Inc()
	if elapsed > 0 {
		c.JobDuration.WithLabelValues(backend, hardware).Observe(elapsed.Seconds())
	}
}

func (c *Collector) RecordUploadFailure(backend, hardware string) {
	if c == nil {
		return
	}
	c.UploadFailures.WithLabelValues(backend, hardware).Inc()
}

func (c *Collector) RecordGathered(backend, hardware, subset, machine string, rows int) {
	if c == nil {
		return
	}
	c.GatheredRecords.WithLabelValues(backend, hardware, subset, machine).Add(float64(rows))
}

func (c *Collector) RecordMissingNamespace() {
	if c == nil {
		return
	}
	c.MissingNamespaces.Inc()
}

// RunStarted and RunFinished track the active run gauge.
func (c *Collector) RunStarted() {
	if c != nil {
		c.ActiveRuns.Inc()
	}
}

func (c *Collector) RunFinished() {
	if c != nil {
		c.ActiveRuns.Dec()
	}
}
