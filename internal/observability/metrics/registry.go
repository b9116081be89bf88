// Package metrics provides centralized Prometheus metrics for the fetcher.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch metrics track collection cycles and their outcomes
var (
	// FetchCyclesTotal counts job executions by job id and result
	FetchCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_cycles_total",
			Help: "Total number of fetch cycles executed",
		},
		[]string{"job", "result"},
	)

	// FetchCycleDuration measures fetch cycle duration in seconds
	FetchCycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fetch_cycle_duration_seconds",
			Help:    "Fetch cycle duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"job"},
	)

	// RecordsFetchedTotal counts records fetched from the API by resource
	RecordsFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_fetched_total",
			Help: "Total number of records fetched from the upstream API",
		},
		[]string{"resource"},
	)

	// RecordsStoredTotal counts records written to storage by resource
	RecordsStoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_stored_total",
			Help: "Total number of records written to the time-series store",
		},
		[]string{"resource"},
	)

	// FetchErrorsTotal counts fetch cycle errors by job
	FetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_errors_total",
			Help: "Total number of errors accumulated across fetch cycles",
		},
		[]string{"job"},
	)
)

// Response cache metrics mirror the cache's internal counters
var (
	// CacheHitsTotal tracks accumulated cache hits
	CacheHitsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "response_cache_hits_total",
			Help: "Accumulated response cache hits",
		},
	)

	// CacheMissesTotal tracks accumulated cache misses
	CacheMissesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "response_cache_misses_total",
			Help: "Accumulated response cache misses",
		},
	)

	// CacheEvictionsTotal tracks accumulated LRU evictions
	CacheEvictionsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "response_cache_evictions_total",
			Help: "Accumulated response cache LRU evictions",
		},
	)

	// CacheExpiredTotal tracks accumulated TTL expirations
	CacheExpiredTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "response_cache_expired_total",
			Help: "Accumulated response cache TTL expirations",
		},
	)

	// CacheSize tracks the current number of cached entries
	CacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "response_cache_size",
			Help: "Current number of entries in the response cache",
		},
	)

	// CacheHitRate tracks the accumulated hit rate percentage
	CacheHitRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "response_cache_hit_rate_percent",
			Help: "Accumulated response cache hit rate percentage",
		},
	)
)

// Circuit breaker metrics export the upstream breaker state
var (
	// CircuitBreakerState is 0 for closed, 1 for half-open, 2 for open
	CircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Upstream circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// CircuitBreakerConsecutiveFailures tracks the current failure streak
	CircuitBreakerConsecutiveFailures = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current consecutive failure count of the upstream circuit breaker",
		},
	)
)

// Storage metrics track sink behavior
var (
	// StorageWritesTotal counts write batches by result
	StorageWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_writes_total",
			Help: "Total number of storage write batches",
		},
		[]string{"result"},
	)
)

// Scheduler metrics export per-job dispatch state
var (
	// JobRunsTotal tracks completed runs per job
	JobRunsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduler_job_runs_total",
			Help: "Completed runs per scheduled job",
		},
		[]string{"job"},
	)

	// JobMisfiresTotal tracks misfires per job
	JobMisfiresTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduler_job_misfires_total",
			Help: "Misfires (skipped overlapping fires) per scheduled job",
		},
		[]string{"job"},
	)
)
