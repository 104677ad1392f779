// Package metrics provides Prometheus metrics for the import pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns the Prometheus instruments for one process.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Pipeline counters, labelled by source.
	recordsFetched  *prometheus.CounterVec
	recordsInserted *prometheus.CounterVec
	recordsUpdated  *prometheus.CounterVec
	recordsSkipped  *prometheus.CounterVec
	duplicates      *prometheus.CounterVec
	outliers        *prometheus.CounterVec
	unitFailures    *prometheus.CounterVec
	scheduleChanges prometheus.Counter

	// Run-level instruments.
	fetchDuration prometheus.Histogram
	runDuration   prometheus.Histogram
	lastRunUnix   prometheus.Gauge
	lastRunErrors prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "macrofeed",
		subsystem:        "import",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	factory := promauto.With(m.registry)

	counter := func(name, help string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      name,
			Help:      help,
		}, []string{"source"})
	}

	m.recordsFetched = counter("records_fetched_total", "Records fetched from providers.")
	m.recordsInserted = counter("records_inserted_total", "New releases inserted into the store.")
	m.recordsUpdated = counter("records_updated_total", "Existing releases updated in the store.")
	m.recordsSkipped = counter("records_skipped_total", "Records rejected by validation.")
	m.duplicates = counter("duplicates_removed_total", "Records collapsed by deduplication.")
	m.outliers = counter("outliers_removed_total", "Records flagged as statistical outliers.")
	m.unitFailures = counter("unit_failures_total", "Import units that failed.")

	m.scheduleChanges = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "schedule_changes_total",
		Help:      "Detected release-schedule changes.",
	})
	m.fetchDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "fetch_duration_seconds",
		Help:      "Duration of one unit fetch.",
		Buckets:   m.histogramBuckets,
	})
	m.runDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "run_duration_seconds",
		Help:      "Duration of one import run.",
		Buckets:   m.histogramBuckets,
	})
	m.lastRunUnix = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time of the last completed run.",
	})
	m.lastRunErrors = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "last_run_errors",
		Help:      "Per-unit errors recorded by the last run.",
	})
}

// Registry exposes the custom registry for scrape handlers.
func Registry() *prometheus.Registry { return customRegistry }

// Package-level helpers against the global manager.

// RecordFetched counts records fetched from a source.
func RecordFetched(source string, n int) {
	globalManager.recordsFetched.WithLabelValues(source).Add(float64(n))
}

// RecordInserts counts releases inserted for a source.
func RecordInserts(source string, n int) {
	globalManager.recordsInserted.WithLabelValues(source).Add(float64(n))
}

// RecordUpdates counts releases updated for a source.
func RecordUpdates(source string, n int) {
	globalManager.recordsUpdated.WithLabelValues(source).Add(float64(n))
}

// RecordSkips counts validation rejections for a source.
func RecordSkips(source string, n int) {
	globalManager.recordsSkipped.WithLabelValues(source).Add(float64(n))
}

// RecordDuplicates counts dedup collisions for a source.
func RecordDuplicates(source string, n int) {
	globalManager.duplicates.WithLabelValues(source).Add(float64(n))
}

// RecordOutliers counts outlier exclusions for a source.
func RecordOutliers(source string, n int) {
	globalManager.outliers.WithLabelValues(source).Add(float64(n))
}

// RecordUnitFailure counts one failed import unit.
func RecordUnitFailure(source string) {
	globalManager.unitFailures.WithLabelValues(source).Inc()
}

// RecordScheduleChange counts one detected schedule change.
func RecordScheduleChange() {
	globalManager.scheduleChanges.Inc()
}

// ObserveFetchDuration records one unit fetch duration in seconds.
func ObserveFetchDuration(seconds float64) {
	globalManager.fetchDuration.Observe(seconds)
}

// ObserveRunDuration records one run duration in seconds and stamps the
// last-run gauges.
func ObserveRunDuration(seconds float64, unixTime float64, errorCount int) {
	globalManager.runDuration.Observe(seconds)
	globalManager.lastRunUnix.Set(unixTime)
	globalManager.lastRunErrors.Set(float64(errorCount))
}
