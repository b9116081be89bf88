package worker

import (
	"coinfetch/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics combines the standard configuration metrics with counters
// tracking scheduled job execution from the worker's point of view.
//
// Embedded (from ConfigMetrics, component "worker"):
//   - worker_config_load_timestamp
//   - worker_config_validation_errors_total
//   - worker_config_fallbacks_total
//   - worker_config_fallback_active
//
// Worker-specific:
//   - worker_job_runs_total{job,status}
//   - worker_job_duration_seconds{job}
//   - worker_records_stored_total
//   - worker_job_last_success_timestamp{job}
type WorkerMetrics struct {
	*config.ConfigMetrics

	// JobRunsTotal counts completed job runs by job name and outcome.
	JobRunsTotal *prometheus.CounterVec

	// JobDurationSeconds measures wall-clock job duration. Buckets cover
	// 1s through 30m, matching the spread between a cached status check
	// and a weekly deep sync.
	JobDurationSeconds *prometheus.HistogramVec

	// RecordsStoredTotal counts records written to storage across all jobs.
	RecordsStoredTotal prometheus.Counter

	// JobLastSuccessTimestamp records when each job last completed cleanly.
	JobLastSuccessTimestamp *prometheus.GaugeVec
}

// NewWorkerMetrics creates and registers the worker metric set. Metrics are
// auto-registered via promauto, so this must be called once per process.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		JobRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_job_runs_total",
			Help: "Total number of scheduled job runs by job name and status (success/failure)",
		}, []string{"job", "status"}),

		JobDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "worker_job_duration_seconds",
			Help:    "Duration of scheduled job execution in seconds",
			Buckets: []float64{1, 5, 30, 60, 300, 900, 1800},
		}, []string{"job"}),

		RecordsStoredTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_records_stored_total",
			Help: "Total number of records written to storage across all job runs",
		}),

		JobLastSuccessTimestamp: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "worker_job_last_success_timestamp",
			Help: "Unix timestamp of the last successful run per job",
		}, []string{"job"}),
	}
}

// RecordJobRun increments the run counter for a job with the given status
// ("success" or "failure").
func (m *WorkerMetrics) RecordJobRun(job, status string) {
	m.JobRunsTotal.WithLabelValues(job, status).Inc()
}

// RecordJobDuration observes a job's execution time in seconds.
func (m *WorkerMetrics) RecordJobDuration(job string, seconds float64) {
	m.JobDurationSeconds.WithLabelValues(job).Observe(seconds)
}

// RecordRecordsStored adds to the stored-record counter.
func (m *WorkerMetrics) RecordRecordsStored(count int) {
	m.RecordsStoredTotal.Add(float64(count))
}

// RecordLastSuccess stamps the current time as a job's last clean finish.
func (m *WorkerMetrics) RecordLastSuccess(job string) {
	m.JobLastSuccessTimestamp.WithLabelValues(job).SetToCurrentTime()
}
