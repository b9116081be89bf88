package worker

import (
	"fmt"
	"log/slog"
	"time"

	pkgconfig "coinfetch/pkg/config"

	"coinfetch/internal/pkg/config"
)

// WorkerConfig holds the operational parameters for the fetch worker:
// job cadences, timezone, per-job timeout and the health endpoint port.
//
// Loading is fail-open: an invalid value falls back to its default with a
// warning and a metrics bump, so one malformed cadence string cannot keep
// the worker from starting.
type WorkerConfig struct {
	// FetchInterval is the cadence of the regular full fetch.
	// Default: 5 minutes.
	FetchInterval time.Duration

	// HourlyExchangesSchedule is the cron expression for the exchange
	// refresh. Default: "0 * * * *" (top of every hour).
	HourlyExchangesSchedule string

	// DailyHistorySchedule is the cron expression for the historical
	// backfill. Default: "0 2 * * *" (02:00 daily).
	DailyHistorySchedule string

	// WeeklySyncSchedule is the cron expression for the deep sync.
	// Default: "0 3 * * 0" (Sunday 03:00).
	WeeklySyncSchedule string

	// Timezone is the IANA timezone calendar schedules evaluate in.
	// Default: "UTC".
	Timezone string

	// Workers bounds concurrent job executions. Range 1-8, default 2.
	Workers int

	// JobTimeout caps a single job execution. Default: 30 minutes.
	JobTimeout time.Duration

	// HealthPort serves /health and /health/ready. Default: 9091.
	HealthPort int

	// MetricsPort serves /metrics. Default: 9090.
	MetricsPort int
}

// DefaultConfig returns production-ready defaults matching the cadences
// the jobs were designed around.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		FetchInterval:           5 * time.Minute,
		HourlyExchangesSchedule: "0 * * * *",
		DailyHistorySchedule:    "0 2 * * *",
		WeeklySyncSchedule:      "0 3 * * 0",
		Timezone:                "UTC",
		Workers:                 2,
		JobTimeout:              30 * time.Minute,
		HealthPort:              9091,
		MetricsPort:             9090,
	}
}

// Validate checks every field, aggregating all failures.
func (c *WorkerConfig) Validate() error {
	var errs []error

	if err := pkgconfig.ValidateDurationRange(c.FetchInterval, time.Minute, 24*time.Hour); err != nil {
		errs = append(errs, fmt.Errorf("fetch interval: %w", err))
	}
	for _, s := range []struct {
		name string
		expr string
	}{
		{"hourly exchanges schedule", c.HourlyExchangesSchedule},
		{"daily history schedule", c.DailyHistorySchedule},
		{"weekly sync schedule", c.WeeklySyncSchedule},
	} {
		if err := pkgconfig.ValidateCronSchedule(s.expr); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	if err := pkgconfig.ValidateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := pkgconfig.ValidateIntRange(c.Workers, 1, 8); err != nil {
		errs = append(errs, fmt.Errorf("workers: %w", err))
	}
	if err := pkgconfig.ValidatePositiveDuration(c.JobTimeout); err != nil {
		errs = append(errs, fmt.Errorf("job timeout: %w", err))
	}
	if err := pkgconfig.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("health port: %w", err))
	}
	if err := pkgconfig.ValidateIntRange(c.MetricsPort, 1024, 65535); err != nil {
		errs = append(errs, fmt.Errorf("metrics port: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadConfigFromEnv loads the worker configuration from environment
// variables with per-field validation and fallback to defaults. It never
// returns an error; degradations are logged and surfaced via metrics.
//
// Environment variables:
//   - FETCH_INTERVAL: duration, e.g. "5m"
//   - HOURLY_EXCHANGES_SCHEDULE, DAILY_HISTORY_SCHEDULE,
//     WEEKLY_SYNC_SCHEDULE: five-field cron expressions
//   - WORKER_TIMEZONE: IANA timezone name
//   - WORKER_POOL_SIZE: integer 1-8
//   - JOB_TIMEOUT: duration, e.g. "30m"
//   - WORKER_HEALTH_PORT, WORKER_METRICS_PORT: integers 1024-65535
func LoadConfigFromEnv(logger *slog.Logger, metrics *config.ConfigMetrics) (*WorkerConfig, error) {
	cfg := DefaultConfig()
	fallbackApplied := false

	applyWarnings := func(field string, result config.ConfigLoadResult) {
		if !result.FallbackApplied {
			return
		}
		fallbackApplied = true
		metrics.RecordValidationError(field)
		metrics.RecordFallback(field, "default")
		for _, warning := range result.Warnings {
			logger.Warn("configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", warning))
		}
	}

	result := config.LoadEnvDuration("FETCH_INTERVAL", cfg.FetchInterval, func(d time.Duration) error {
		return pkgconfig.ValidateDurationRange(d, time.Minute, 24*time.Hour)
	})
	cfg.FetchInterval = result.Value.(time.Duration)
	applyWarnings("fetch_interval", result)

	result = config.LoadEnvWithFallback("HOURLY_EXCHANGES_SCHEDULE", cfg.HourlyExchangesSchedule, pkgconfig.ValidateCronSchedule)
	cfg.HourlyExchangesSchedule = result.Value.(string)
	applyWarnings("hourly_exchanges_schedule", result)

	result = config.LoadEnvWithFallback("DAILY_HISTORY_SCHEDULE", cfg.DailyHistorySchedule, pkgconfig.ValidateCronSchedule)
	cfg.DailyHistorySchedule = result.Value.(string)
	applyWarnings("daily_history_schedule", result)

	result = config.LoadEnvWithFallback("WEEKLY_SYNC_SCHEDULE", cfg.WeeklySyncSchedule, pkgconfig.ValidateCronSchedule)
	cfg.WeeklySyncSchedule = result.Value.(string)
	applyWarnings("weekly_sync_schedule", result)

	result = config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, pkgconfig.ValidateTimezone)
	cfg.Timezone = result.Value.(string)
	applyWarnings("timezone", result)

	result = config.LoadEnvInt("WORKER_POOL_SIZE", cfg.Workers, func(v int) error {
		return pkgconfig.ValidateIntRange(v, 1, 8)
	})
	cfg.Workers = result.Value.(int)
	applyWarnings("worker_pool_size", result)

	result = config.LoadEnvDuration("JOB_TIMEOUT", cfg.JobTimeout, func(d time.Duration) error {
		return pkgconfig.ValidateDurationRange(d, time.Minute, 4*time.Hour)
	})
	cfg.JobTimeout = result.Value.(time.Duration)
	applyWarnings("job_timeout", result)

	result = config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
		return pkgconfig.ValidateIntRange(v, 1024, 65535)
	})
	cfg.HealthPort = result.Value.(int)
	applyWarnings("health_port", result)

	result = config.LoadEnvInt("WORKER_METRICS_PORT", cfg.MetricsPort, func(v int) error {
		return pkgconfig.ValidateIntRange(v, 1024, 65535)
	})
	cfg.MetricsPort = result.Value.(int)
	applyWarnings("metrics_port", result)

	metrics.SetFallbackActive(fallbackApplied)
	metrics.RecordLoadTimestamp()

	return &cfg, nil
}

// Location resolves the configured timezone. The zero Config resolves UTC.
func (c *WorkerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
