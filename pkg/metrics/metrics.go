// Package metrics exports Prometheus counters, gauges, and histograms for
// the replay pipeline: cache hit rates, transport latency, attempt
// outcomes, and mutation-lab findings.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Object cache metrics
	ObjectCacheMemoryHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sui_replay_object_cache_memory_hits_total",
			Help: "Total number of object cache hits served from the in-memory tier",
		},
	)

	ObjectCacheDiskHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sui_replay_object_cache_disk_hits_total",
			Help: "Total number of object cache hits served from the disk tier",
		},
	)

	ObjectCacheRemoteFetches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sui_replay_object_cache_remote_fetches_total",
			Help: "Total number of object cache misses resolved via a transport fetch",
		},
	)

	ObjectCacheDynamicFieldFetches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sui_replay_object_cache_dynamic_field_fetches_total",
			Help: "Total number of dynamic-field child lookups served by the child-fetcher",
		},
	)

	ObjectCacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sui_replay_object_cache_size",
			Help: "Current number of (id, version) entries in the in-memory object cache tier",
		},
	)

	PackageCacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sui_replay_package_cache_size",
			Help: "Current number of packages loaded into the package cache",
		},
	)

	// Transport metrics
	TransportRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sui_replay_transport_requests_total",
			Help: "Total number of transport requests by adapter and outcome",
		},
		[]string{"adapter", "outcome"},
	)

	TransportRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sui_replay_transport_request_duration_seconds",
			Help:    "Transport request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"adapter"},
	)

	// Replay engine metrics
	ReplayAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sui_replay_attempts_total",
			Help: "Total number of replay attempts by kind and reason code",
		},
		[]string{"kind", "reason"},
	)

	ReplayDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sui_replay_duration_seconds",
			Help:    "Time taken to replay a transaction to a final outcome",
			Buckets: prometheus.DefBuckets,
		},
	)

	StrictMatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sui_replay_strict_matches_total",
			Help: "Total number of transactions that reached StrictMatch",
		},
	)

	DenyListEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sui_replay_deny_list_evictions_total",
			Help: "Total number of (parent, child) pairs evicted after a parent/child conflict",
		},
	)

	// Mutation lab metrics
	LabRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sui_replay_lab_runs_total",
			Help: "Total number of mutation lab runs by operator and result",
		},
		[]string{"operator", "result"},
	)

	LabFindingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sui_replay_lab_findings_total",
			Help: "Total number of mutation lab oracle hits by oracle name",
		},
		[]string{"oracle"},
	)

	LabPendingRuns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sui_replay_lab_pending_runs",
			Help: "Current number of mutation lab candidate targets awaiting a run record",
		},
	)
)

func init() {
	prometheus.MustRegister(ObjectCacheMemoryHits)
	prometheus.MustRegister(ObjectCacheDiskHits)
	prometheus.MustRegister(ObjectCacheRemoteFetches)
	prometheus.MustRegister(ObjectCacheDynamicFieldFetches)
	prometheus.MustRegister(ObjectCacheSize)
	prometheus.MustRegister(PackageCacheSize)
	prometheus.MustRegister(TransportRequestsTotal)
	prometheus.MustRegister(TransportRequestDuration)
	prometheus.MustRegister(ReplayAttemptsTotal)
	prometheus.MustRegister(ReplayDuration)
	prometheus.MustRegister(StrictMatchesTotal)
	prometheus.MustRegister(DenyListEvictionsTotal)
	prometheus.MustRegister(LabRunsTotal)
	prometheus.MustRegister(LabFindingsTotal)
	prometheus.MustRegister(LabPendingRuns)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
