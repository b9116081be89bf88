package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coinfetch/internal/cache"
	appconfig "coinfetch/internal/config"
	"coinfetch/internal/infra/influx"
	workerPkg "coinfetch/internal/infra/worker"
	"coinfetch/internal/observability/logging"
	"coinfetch/internal/observability/metrics"
	"coinfetch/internal/resilience/circuitbreaker"
	"coinfetch/internal/resilience/retry"
	"coinfetch/internal/scheduler"
	"coinfetch/internal/upstream"
	fetchUC "coinfetch/internal/usecase/fetch"
)

const (
	jobRegularFetch    = "regular_fetch"
	jobHourlyExchanges = "hourly_exchanges"
	jobDailyHistory    = "daily_historical"
	jobWeeklySync      = "weekly_full_sync"
)

func main() {
	once := flag.Bool("once", false, "run a single fetch cycle and exit")
	flag.Parse()

	logger := logging.NewLogger()
	if os.Getenv("LOG_FORMAT") == "text" {
		logger = logging.NewTextLogger()
	}
	slog.SetDefault(logger)

	appCfg, err := appconfig.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if err := appCfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	workerMetrics := workerPkg.NewWorkerMetrics()
	workerCfg, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics.ConfigMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.Duration("fetch_interval", workerCfg.FetchInterval),
		slog.String("timezone", workerCfg.Timezone),
		slog.Int("workers", workerCfg.Workers),
		slog.Duration("job_timeout", workerCfg.JobTimeout))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc, client := buildFetchService(appCfg)
	sched := buildScheduler(logger, svc, workerCfg, workerMetrics)

	if *once {
		logger.Info("running single fetch cycle")
		if err := sched.RunOnce(ctx, jobRegularFetch); err != nil {
			logger.Error("fetch cycle failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	startMetricsServer(ctx, logger, workerCfg.MetricsPort)

	healthAddr := fmt.Sprintf(":%d", workerCfg.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	go snapshotLoop(ctx, client, sched)

	healthServer.SetReady(true)
	logger.Info("fetcher started",
		slog.String("base_url", appCfg.API.BaseURL),
		slog.Any("tracked_coins", appCfg.Fetch.TrackedCoins))

	if err := sched.Start(ctx); !cleanShutdown(err) {
		logger.Error("scheduler failed", slog.Any("error", err))
		os.Exit(1)
	}
	healthServer.SetReady(false)
	logger.Info("fetcher stopped")
}

// buildFetchService wires the response cache, circuit breakers, API client,
// and storage sink factory into the fetch service.
func buildFetchService(cfg *appconfig.Config) (*fetchUC.Service, *upstream.Client) {
	responseCache := cache.New(cfg.Cache.Capacity, cfg.Cache.DefaultTTL)

	apiBreaker := circuitbreaker.New(circuitbreaker.Config{
		Name:             "livecoinwatch",
		FailureThreshold: cfg.Breaker.FailureThreshold,
		OpenDuration:     cfg.Breaker.OpenDuration,
	})
	storageBreaker := circuitbreaker.NewStorageBreaker(circuitbreaker.DefaultStorageConfig())

	client := upstream.NewClient(upstream.Config{
		APIKey:  cfg.API.Key,
		BaseURL: cfg.API.BaseURL,
		Retry: retry.Config{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialDelay:   cfg.Retry.InitialDelay,
			MaxDelay:       cfg.Retry.MaxDelay,
			Multiplier:     2.0,
			JitterFraction: 0.1,
		},
	}, apiBreaker, responseCache)

	influxCfg := influx.Config{
		URL:    cfg.Influx.URL,
		Token:  cfg.Influx.Token,
		Org:    cfg.Influx.Org,
		Bucket: cfg.Influx.Bucket,
	}
	sinkFactory := func(ctx context.Context) (fetchUC.Sink, error) {
		return influx.Connect(ctx, influxCfg, storageBreaker)
	}

	svc := fetchUC.NewService(client, sinkFactory, fetchUC.Config{
		Currency:            cfg.API.Currency,
		TrackedCoins:        cfg.Fetch.TrackedCoins,
		TopCoinsLimit:       cfg.Fetch.TopCoinsLimit,
		ExchangesLimit:      cfg.Fetch.ExchangesLimit,
		RequestsPerMinute:   cfg.Fetch.RequestsPerMinute,
		RateLimitCooldown:   cfg.Fetch.RateLimitCooldown,
		HistoryLookback:     cfg.Fetch.HistoryLookback,
		LowCreditsThreshold: cfg.Fetch.LowCreditsThreshold,
	})

	return svc, client
}

// cleanShutdown reports whether the scheduler exited because its context
// was cancelled by a shutdown signal rather than by a failure.
func cleanShutdown(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

// buildScheduler registers the four standing jobs on their cadences.
func buildScheduler(logger *slog.Logger, svc *fetchUC.Service, workerCfg *workerPkg.WorkerConfig, workerMetrics *workerPkg.WorkerMetrics) *scheduler.Scheduler {
	sched := scheduler.New(scheduler.Config{Workers: workerCfg.Workers})
	loc := workerCfg.Location()

	mustCron := func(expr string) scheduler.Cadence {
		cadence, err := scheduler.ParseCron(expr, loc)
		if err != nil {
			logger.Error("invalid cron schedule", slog.String("expr", expr), slog.Any("error", err))
			os.Exit(1)
		}
		return cadence
	}

	sched.AddJob(jobRegularFetch, "Regular market data fetch",
		scheduler.Interval{Every: workerCfg.FetchInterval},
		jobHandler(jobRegularFetch, workerCfg.JobTimeout, workerMetrics, svc.RunFullFetch))

	sched.AddJob(jobHourlyExchanges, "Hourly exchange refresh",
		mustCron(workerCfg.HourlyExchangesSchedule),
		jobHandler(jobHourlyExchanges, workerCfg.JobTimeout, workerMetrics, svc.RunHourlyExchanges))

	sched.AddJob(jobDailyHistory, "Daily historical backfill",
		mustCron(workerCfg.DailyHistorySchedule),
		jobHandler(jobDailyHistory, workerCfg.JobTimeout, workerMetrics, svc.RunDailyHistory))

	sched.AddJob(jobWeeklySync, "Weekly full synchronization",
		mustCron(workerCfg.WeeklySyncSchedule),
		jobHandler(jobWeeklySync, workerCfg.JobTimeout, workerMetrics, svc.RunWeeklySync))

	return sched
}

// jobHandler wraps a fetch entry point with a timeout and metrics recording.
func jobHandler(name string, timeout time.Duration, workerMetrics *workerPkg.WorkerMetrics, run func(ctx context.Context) *fetchUC.Stats) scheduler.Handler {
	return func(ctx context.Context) {
		jobCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		start := time.Now()
		stats := run(jobCtx)

		metrics.RecordFetchCycle(name, stats.Duration, stats.Errors)
		metrics.RecordRecords("coins", stats.CoinsFetched, stats.CoinsStored)
		metrics.RecordRecords("exchanges", stats.ExchangesFetched, stats.ExchangesStored)
		metrics.RecordRecords("markets", stats.MarketsFetched, stats.MarketsStored)

		status := "success"
		if stats.Errors > 0 {
			status = "failure"
		} else {
			workerMetrics.RecordLastSuccess(name)
		}
		workerMetrics.RecordJobRun(name, status)
		workerMetrics.RecordJobDuration(name, time.Since(start).Seconds())
		workerMetrics.RecordRecordsStored(stats.CoinsStored + stats.ExchangesStored + stats.MarketsStored)
	}
}

// snapshotLoop periodically exports cache, breaker, and job gauges.
func snapshotLoop(ctx context.Context, client *upstream.Client, sched *scheduler.Scheduler) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateCacheStats(client.CacheStats())
			metrics.UpdateBreakerStats(client.BreakerStats())
			metrics.UpdateJobStats(sched.Jobs())
		}
	}
}
