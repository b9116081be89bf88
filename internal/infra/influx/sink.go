// Package influx persists fetched market data into InfluxDB.
//
// Each job execution opens its own short-lived sink (connect, write, close)
// instead of sharing a long-lived client across workers. Long-lived shared
// handles leaked connections under concurrent jobs; bounding the handle to
// the job's lifetime keeps resource usage flat.
package influx

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"coinfetch/internal/domain/entity"
	"coinfetch/internal/observability/metrics"
	"coinfetch/internal/resilience/circuitbreaker"
	"coinfetch/internal/upstream"
)

// Config holds the InfluxDB connection parameters.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string

	// PingTimeout bounds the reachability check on connect
	PingTimeout time.Duration
}

// Sink is a short-lived handle to the time-series store.
type Sink struct {
	client  influxdb2.Client
	writer  api.WriteAPIBlocking
	breaker *circuitbreaker.StorageBreaker
}

// Connect opens a sink and verifies the server is reachable. The breaker is
// shared across sink instances so sustained write failures are remembered
// between jobs; it may be nil to disable the guard.
func Connect(ctx context.Context, cfg Config, breaker *circuitbreaker.StorageBreaker) (*Sink, error) {
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 5 * time.Second
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	ok, err := client.Ping(pingCtx)
	if err != nil || !ok {
		client.Close()
		if err == nil {
			err = fmt.Errorf("ping returned not ready")
		}
		return nil, &upstream.StorageError{Operation: "connect", Err: err}
	}

	return &Sink{
		client:  client,
		writer:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		breaker: breaker,
	}, nil
}

// Close releases the underlying client. Safe to call on a nil sink.
func (s *Sink) Close() {
	if s == nil || s.client == nil {
		return
	}
	s.client.Close()
}

// WritePoints writes pre-built points through the storage breaker.
// Failures are wrapped as StorageError and not retried here.
func (s *Sink) WritePoints(ctx context.Context, points []entity.Point) error {
	if len(points) == 0 {
		return nil
	}

	pts := make([]*write.Point, 0, len(points))
	for _, p := range points {
		pts = append(pts, write.NewPoint(p.Measurement, p.Tags, p.Fields, p.Time))
	}

	writeFn := func() error {
		return s.writer.WritePoint(ctx, pts...)
	}

	var err error
	if s.breaker != nil {
		err = s.breaker.Execute(writeFn)
	} else {
		err = writeFn()
	}
	metrics.RecordStorageWrite(err == nil)
	if err != nil {
		return &upstream.StorageError{Operation: "write", Err: err}
	}

	slog.Debug("wrote points", slog.Int("count", len(pts)))
	return nil
}

// WriteCoins persists coin snapshots, skipping records that fail validation.
func (s *Sink) WriteCoins(ctx context.Context, coins []entity.Coin) error {
	points := make([]entity.Point, 0, len(coins))
	for i := range coins {
		if err := coins[i].Validate(); err != nil {
			slog.Warn("skipping invalid coin", slog.Any("error", err))
			continue
		}
		points = append(points, coins[i].ToPoint())
	}
	return s.WritePoints(ctx, points)
}

// WriteExchanges persists exchange snapshots, skipping invalid records.
func (s *Sink) WriteExchanges(ctx context.Context, exchanges []entity.Exchange) error {
	points := make([]entity.Point, 0, len(exchanges))
	for i := range exchanges {
		if err := exchanges[i].Validate(); err != nil {
			slog.Warn("skipping invalid exchange", slog.Any("error", err))
			continue
		}
		points = append(points, exchanges[i].ToPoint())
	}
	return s.WritePoints(ctx, points)
}

// WriteMarkets persists whole-market snapshots.
func (s *Sink) WriteMarkets(ctx context.Context, markets []entity.Market) error {
	points := make([]entity.Point, 0, len(markets))
	for i := range markets {
		points = append(points, markets[i].ToPoint())
	}
	return s.WritePoints(ctx, points)
}
