// Package trackermetrics exposes Prometheus instrumentation for the
// scanner and dispatcher (SPEC_FULL.md §5.7, an ambient addition beyond
// spec.md's explicit scope). Grounded on the teacher's
// events/metrics.go and fetch/metrics.go Namespace/Subsystem shape.
package trackermetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every gauge/counter/histogram this tracker publishes.
// A nil *Metrics is safe to call methods on — every method is a no-op
// in that case — so callers that don't wire metrics in (e.g. most unit
// tests) need not special-case it.
type Metrics struct {
	ScanWindowsTotal    *prometheus.CounterVec
	CapHalvingsTotal    *prometheus.CounterVec
	BlocksScannedTotal  *prometheus.CounterVec
	CacheHitsTotal      *prometheus.CounterVec
	CacheMissesTotal    *prometheus.CounterVec
	ConsumerErrorsTotal *prometheus.CounterVec
	DispatchDuration    *prometheus.HistogramVec
}

// NewMetrics constructs and registers Metrics under namespace/subsystem
// with the default Prometheus registerer. Tests should use a unique
// namespace per test function to avoid duplicate-registration panics,
// the way the teacher's events/metrics_test.go does.
func NewMetrics(namespace, subsystem string) *Metrics {
	if namespace == "" {
		namespace = "nft_tracker"
	}
	if subsystem == "" {
		subsystem = "core"
	}

	return &Metrics{
		ScanWindowsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "scan_windows_total",
			Help:      "Total number of scan windows successfully processed, by standard.",
		}, []string{"standard"}),
		CapHalvingsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cap_halvings_total",
			Help:      "Total number of times a scanner halved its step after a provider result-cap rejection.",
		}, []string{"standard"}),
		BlocksScannedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "blocks_scanned_total",
			Help:      "Total number of blocks covered by successfully processed scan windows.",
		}, []string{"standard"}),
		CacheHitsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cache_hits_total",
			Help:      "Total number of metadata cache reads that found an existing row.",
		}, []string{"table"}),
		CacheMissesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cache_misses_total",
			Help:      "Total number of metadata cache reads that required a fresh RPC fetch.",
		}, []string{"table"}),
		ConsumerErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "consumer_errors_total",
			Help:      "Total number of consumer callback panics recovered by the dispatcher.",
		}, []string{"standard"}),
		DispatchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent resolving metadata and invoking the consumer callback for one event.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"standard"}),
	}
}

func (m *Metrics) ObserveWindow(standard string, blockCount uint64) {
	if m == nil {
		return
	}
	m.ScanWindowsTotal.WithLabelValues(standard).Inc()
	m.BlocksScannedTotal.WithLabelValues(standard).Add(float64(blockCount))
}

func (m *Metrics) ObserveCapHalving(standard string) {
	if m == nil {
		return
	}
	m.CapHalvingsTotal.WithLabelValues(standard).Inc()
}

func (m *Metrics) ObserveCacheHit(table string) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(table).Inc()
}

func (m *Metrics) ObserveCacheMiss(table string) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(table).Inc()
}

func (m *Metrics) ObserveConsumerError(standard string) {
	if m == nil {
		return
	}
	m.ConsumerErrorsTotal.WithLabelValues(standard).Inc()
}

// ObserveDispatch times a dispatch call; use as
// `defer m.ObserveDispatch(standard, time.Now())`.
func (m *Metrics) ObserveDispatch(standard string, start time.Time) {
	if m == nil {
		return
	}
	m.DispatchDuration.WithLabelValues(standard).Observe(time.Since(start).Seconds())
}
