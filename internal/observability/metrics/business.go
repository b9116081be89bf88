package metrics

import (
	"time"

	"coinfetch/internal/cache"
	"coinfetch/internal/resilience/circuitbreaker"
	"coinfetch/internal/scheduler"
)

// RecordFetchCycle records one job execution's duration and outcome.
// Result should be "success" or "degraded" (completed with errors).
func RecordFetchCycle(job string, duration time.Duration, errors int) {
	result := "success"
	if errors > 0 {
		result = "degraded"
	}
	FetchCyclesTotal.WithLabelValues(job, result).Inc()
	FetchCycleDuration.WithLabelValues(job).Observe(duration.Seconds())
	if errors > 0 {
		FetchErrorsTotal.WithLabelValues(job).Add(float64(errors))
	}
}

// RecordRecords records fetched and stored counts for one resource type.
func RecordRecords(resource string, fetched, stored int) {
	if fetched > 0 {
		RecordsFetchedTotal.WithLabelValues(resource).Add(float64(fetched))
	}
	if stored > 0 {
		RecordsStoredTotal.WithLabelValues(resource).Add(float64(stored))
	}
}

// RecordStorageWrite records one write batch outcome.
func RecordStorageWrite(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	StorageWritesTotal.WithLabelValues(result).Inc()
}

// UpdateCacheStats mirrors the response cache counters into gauges.
// Called periodically from the worker's snapshot loop.
func UpdateCacheStats(s cache.Stats) {
	CacheHitsTotal.Set(float64(s.Hits))
	CacheMissesTotal.Set(float64(s.Misses))
	CacheEvictionsTotal.Set(float64(s.Evictions))
	CacheExpiredTotal.Set(float64(s.ExpiredEntries))
	CacheSize.Set(float64(s.Size))
	CacheHitRate.Set(s.HitRatePercent)
}

// UpdateBreakerStats exports the upstream circuit breaker state.
func UpdateBreakerStats(s circuitbreaker.Stats) {
	var state float64
	switch s.State {
	case circuitbreaker.StateClosed:
		state = 0
	case circuitbreaker.StateHalfOpen:
		state = 1
	case circuitbreaker.StateOpen:
		state = 2
	}
	CircuitBreakerState.Set(state)
	CircuitBreakerConsecutiveFailures.Set(float64(s.ConsecutiveFailures))
}

// UpdateJobStats exports scheduler per-job run and misfire counts.
func UpdateJobStats(jobs []scheduler.JobStatus) {
	for _, j := range jobs {
		JobRunsTotal.WithLabelValues(j.ID).Set(float64(j.Runs))
		JobMisfiresTotal.WithLabelValues(j.ID).Set(float64(j.Misfires))
	}
}
