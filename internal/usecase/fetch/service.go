// Package fetch orchestrates market data collection: it paces calls to the
// upstream API, maps responses into domain records, and stores them through
// short-lived sink handles. Fetch failures do not abort a cycle; the cycle
// degrades to partial results and the failures are counted into its stats.
package fetch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"coinfetch/internal/domain/entity"
	"coinfetch/internal/observability/logging"
	"coinfetch/internal/upstream"
)

// Caller is the upstream API surface the service consumes.
type Caller interface {
	Status(ctx context.Context) error
	Credits(ctx context.Context) (*upstream.Credits, error)
	CoinSingle(ctx context.Context, code, currency string, meta bool) (*entity.Coin, error)
	CoinHistory(ctx context.Context, code, currency string, start, end time.Time) (*entity.Coin, error)
	CoinsList(ctx context.Context, q upstream.ListQuery) ([]entity.Coin, error)
	ExchangesList(ctx context.Context, q upstream.ListQuery) ([]entity.Exchange, error)
	Overview(ctx context.Context, currency string) (*entity.Market, error)
	OverviewHistory(ctx context.Context, currency string, start, end time.Time) ([]entity.Market, error)
}

// Sink is a short-lived storage handle. The service opens one per store
// operation and closes it when done.
type Sink interface {
	WriteCoins(ctx context.Context, coins []entity.Coin) error
	WriteExchanges(ctx context.Context, exchanges []entity.Exchange) error
	WriteMarkets(ctx context.Context, markets []entity.Market) error
	Close()
}

// SinkFactory opens a fresh storage handle for one job execution.
type SinkFactory func(ctx context.Context) (Sink, error)

// Config holds the fetch orchestration settings.
type Config struct {
	// Currency is the quote currency for all fetches
	Currency string

	// TrackedCoins are codes fetched individually every cycle
	TrackedCoins []string

	// TopCoinsLimit is the page size for the regular top-coins fetch
	TopCoinsLimit int

	// ExchangesLimit is the page size for exchange fetches
	ExchangesLimit int

	// RequestsPerMinute paces outbound calls; minimum spacing between
	// calls is derived from it
	RequestsPerMinute int

	// RateLimitCooldown is the fixed sleep after an upstream 429
	RateLimitCooldown time.Duration

	// HistoryLookback is the window for daily per-coin history fetches
	HistoryLookback time.Duration

	// LowCreditsThreshold triggers a warning when the remaining daily
	// allowance drops below it
	LowCreditsThreshold int
}

// Stats accumulates counts for one fetch cycle.
type Stats struct {
	CoinsFetched     int
	CoinsStored      int
	ExchangesFetched int
	ExchangesStored  int
	MarketsFetched   int
	MarketsStored    int
	Errors           int
	Duration         time.Duration
}

// Service composes the upstream caller and the storage sink into fetch
// cycles. Safe for concurrent use; the limiter serializes call pacing
// across jobs sharing the service.
type Service struct {
	caller      Caller
	sinkFactory SinkFactory
	cfg         Config
	limiter     *rate.Limiter

	// sleep is overridable in tests so cooldowns do not stall the suite
	sleep func(ctx context.Context, d time.Duration)
}

// NewService creates a fetch service. Zero-valued config fields fall back
// to production defaults.
func NewService(caller Caller, sinkFactory SinkFactory, cfg Config) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.TopCoinsLimit <= 0 {
		cfg.TopCoinsLimit = 20
	}
	if cfg.ExchangesLimit <= 0 {
		cfg.ExchangesLimit = 20
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 30
	}
	if cfg.RateLimitCooldown <= 0 {
		cfg.RateLimitCooldown = time.Minute
	}
	if cfg.HistoryLookback <= 0 {
		cfg.HistoryLookback = 24 * time.Hour
	}
	if cfg.LowCreditsThreshold <= 0 {
		cfg.LowCreditsThreshold = 10
	}

	return &Service{
		caller:      caller,
		sinkFactory: sinkFactory,
		cfg:         cfg,
		limiter:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
		sleep: func(ctx context.Context, d time.Duration) {
			select {
			case <-time.After(d):
			case <-ctx.Done():
			}
		},
	}
}

// pace blocks until the inter-call spacing allows the next request.
func (s *Service) pace(ctx context.Context) {
	if err := s.limiter.Wait(ctx); err != nil {
		slog.Debug("pacing interrupted", slog.Any("error", err))
	}
}

// cooldownOnRateLimit reports whether err was a rate limit, sleeping the
// fixed cooldown when it was.
func (s *Service) cooldownOnRateLimit(ctx context.Context, err error) bool {
	var rlErr *upstream.RateLimitError
	if !errors.As(err, &rlErr) {
		return false
	}
	slog.Warn("rate limit exceeded, backing off",
		slog.Duration("cooldown", s.cfg.RateLimitCooldown))
	s.sleep(ctx, s.cfg.RateLimitCooldown)
	return true
}

// CheckStatus reports whether the upstream API is reachable.
func (s *Service) CheckStatus(ctx context.Context) bool {
	s.pace(ctx)
	if err := s.caller.Status(ctx); err != nil {
		slog.Error("api status check failed", slog.Any("error", err))
		return false
	}
	slog.Info("api status check successful")
	return true
}

// CheckCredits fetches the remaining API credit allowance. Advisory only:
// a failure returns nil and the cycle continues.
func (s *Service) CheckCredits(ctx context.Context) *upstream.Credits {
	s.pace(ctx)
	credits, err := s.caller.Credits(ctx)
	if err != nil {
		slog.Error("failed to get api credits", slog.Any("error", err))
		return nil
	}
	slog.Info("api credits", slog.Int("remaining", credits.DailyCreditsRemaining))
	if credits.DailyCreditsRemaining < s.cfg.LowCreditsThreshold {
		slog.Warn("low api credits remaining, consider reducing fetch frequency",
			slog.Int("remaining", credits.DailyCreditsRemaining))
	}
	return credits
}

// FetchTrackedCoins fetches each tracked coin individually. A rate limit
// triggers a cooldown and skips the remaining codes for this cycle; other
// errors skip only the failing code. The second return value is the number
// of codes that failed.
func (s *Service) FetchTrackedCoins(ctx context.Context) ([]entity.Coin, int) {
	coins := make([]entity.Coin, 0, len(s.cfg.TrackedCoins))
	failed := 0
	for _, code := range s.cfg.TrackedCoins {
		s.pace(ctx)
		coin, err := s.caller.CoinSingle(ctx, code, s.cfg.Currency, true)
		if err != nil {
			failed++
			if s.cooldownOnRateLimit(ctx, err) {
				break
			}
			slog.Error("failed to fetch coin",
				slog.String("code", code), slog.Any("error", err))
			continue
		}
		coins = append(coins, *coin)
	}
	slog.Info("fetched tracked coins",
		slog.Int("count", len(coins)), slog.Int("failed", failed))
	return coins, failed
}

// FetchTopCoins fetches the current top coins by rank.
func (s *Service) FetchTopCoins(ctx context.Context, limit int) ([]entity.Coin, error) {
	if limit <= 0 {
		limit = s.cfg.TopCoinsLimit
	}
	s.pace(ctx)
	coins, err := s.caller.CoinsList(ctx, upstream.ListQuery{
		Currency: s.cfg.Currency,
		Limit:    limit,
		Meta:     true,
	})
	if err != nil {
		if !s.cooldownOnRateLimit(ctx, err) {
			slog.Error("failed to fetch coins list", slog.Any("error", err))
		}
		return nil, err
	}
	slog.Info("fetched coins list", slog.Int("count", len(coins)))
	return coins, nil
}

// FetchExchanges fetches the busiest exchanges.
func (s *Service) FetchExchanges(ctx context.Context, limit int) ([]entity.Exchange, error) {
	if limit <= 0 {
		limit = s.cfg.ExchangesLimit
	}
	s.pace(ctx)
	exchanges, err := s.caller.ExchangesList(ctx, upstream.ListQuery{
		Currency: s.cfg.Currency,
		Limit:    limit,
	})
	if err != nil {
		if !s.cooldownOnRateLimit(ctx, err) {
			slog.Error("failed to fetch exchanges", slog.Any("error", err))
		}
		return nil, err
	}
	slog.Info("fetched exchanges", slog.Int("count", len(exchanges)))
	return exchanges, nil
}

// FetchMarketOverview fetches the whole-market snapshot.
func (s *Service) FetchMarketOverview(ctx context.Context) ([]entity.Market, error) {
	s.pace(ctx)
	market, err := s.caller.Overview(ctx, s.cfg.Currency)
	if err != nil {
		if !s.cooldownOnRateLimit(ctx, err) {
			slog.Error("failed to fetch market overview", slog.Any("error", err))
		}
		return nil, err
	}
	return []entity.Market{*market}, nil
}

// FetchCoinHistory fetches one coin's history over the configured lookback.
func (s *Service) FetchCoinHistory(ctx context.Context, code string) (*entity.Coin, error) {
	end := time.Now().UTC()
	start := end.Add(-s.cfg.HistoryLookback)

	s.pace(ctx)
	coin, err := s.caller.CoinHistory(ctx, code, s.cfg.Currency, start, end)
	if err != nil {
		if !s.cooldownOnRateLimit(ctx, err) {
			slog.Error("failed to fetch coin history",
				slog.String("code", code), slog.Any("error", err))
		}
		return nil, err
	}
	slog.Info("fetched coin history",
		slog.String("code", code), slog.Int("points", len(coin.History)))
	return coin, nil
}

// FetchOverviewHistory fetches whole-market history over the lookback.
func (s *Service) FetchOverviewHistory(ctx context.Context) ([]entity.Market, error) {
	end := time.Now().UTC()
	start := end.Add(-s.cfg.HistoryLookback)

	s.pace(ctx)
	markets, err := s.caller.OverviewHistory(ctx, s.cfg.Currency, start, end)
	if err != nil {
		if !s.cooldownOnRateLimit(ctx, err) {
			slog.Error("failed to fetch overview history", slog.Any("error", err))
		}
		return nil, err
	}
	slog.Info("fetched overview history", slog.Int("count", len(markets)))
	return markets, nil
}

// StoreCoins writes coins through a fresh sink handle. Returns false on
// any open or write failure.
func (s *Service) StoreCoins(ctx context.Context, coins []entity.Coin) bool {
	if len(coins) == 0 {
		return true
	}
	return s.withSink(ctx, "coins", func(sink Sink) error {
		return sink.WriteCoins(ctx, coins)
	})
}

// StoreExchanges writes exchanges through a fresh sink handle.
func (s *Service) StoreExchanges(ctx context.Context, exchanges []entity.Exchange) bool {
	if len(exchanges) == 0 {
		return true
	}
	return s.withSink(ctx, "exchanges", func(sink Sink) error {
		return sink.WriteExchanges(ctx, exchanges)
	})
}

// StoreMarkets writes market snapshots through a fresh sink handle.
func (s *Service) StoreMarkets(ctx context.Context, markets []entity.Market) bool {
	if len(markets) == 0 {
		return true
	}
	return s.withSink(ctx, "markets", func(sink Sink) error {
		return sink.WriteMarkets(ctx, markets)
	})
}

func (s *Service) withSink(ctx context.Context, what string, fn func(Sink) error) bool {
	sink, err := s.sinkFactory(ctx)
	if err != nil {
		slog.Error("failed to open storage sink",
			slog.String("data", what), slog.Any("error", err))
		return false
	}
	defer sink.Close()

	if err := fn(sink); err != nil {
		slog.Error("failed to store data",
			slog.String("data", what), slog.Any("error", err))
		return false
	}
	return true
}

// RunFullFetch runs one complete collection cycle: status check, advisory
// credits check, tracked coins, top coins, exchanges, market overview.
// Each resource type is fetched and stored independently; both fetch and
// store failures increment Errors without aborting the remaining steps.
func (s *Service) RunFullFetch(ctx context.Context) *Stats {
	log := logging.FromContext(ctx)
	log.Info("starting full fetch cycle")
	start := time.Now()
	stats := &Stats{}
	defer func() {
		stats.Duration = time.Since(start)
		log.Info("full fetch cycle completed",
			slog.Duration("duration", stats.Duration),
			slog.Int("coins_stored", stats.CoinsStored),
			slog.Int("exchanges_stored", stats.ExchangesStored),
			slog.Int("markets_stored", stats.MarketsStored),
			slog.Int("errors", stats.Errors))
	}()

	if !s.CheckStatus(ctx) {
		log.Error("api is not available, skipping fetch cycle")
		stats.Errors++
		return stats
	}

	s.CheckCredits(ctx)

	if len(s.cfg.TrackedCoins) > 0 {
		coins, failed := s.FetchTrackedCoins(ctx)
		stats.Errors += failed
		stats.CoinsFetched += len(coins)
		if s.StoreCoins(ctx, coins) {
			stats.CoinsStored += len(coins)
		} else {
			stats.Errors++
		}
	}

	top, err := s.FetchTopCoins(ctx, 0)
	if err != nil {
		stats.Errors++
	}
	if len(top) > 0 {
		stats.CoinsFetched += len(top)
		if s.StoreCoins(ctx, top) {
			stats.CoinsStored += len(top)
		} else {
			stats.Errors++
		}
	}

	exchanges, err := s.FetchExchanges(ctx, 0)
	if err != nil {
		stats.Errors++
	}
	if len(exchanges) > 0 {
		stats.ExchangesFetched += len(exchanges)
		if s.StoreExchanges(ctx, exchanges) {
			stats.ExchangesStored += len(exchanges)
		} else {
			stats.Errors++
		}
	}

	markets, err := s.FetchMarketOverview(ctx)
	if err != nil {
		stats.Errors++
	}
	if len(markets) > 0 {
		stats.MarketsFetched += len(markets)
		if s.StoreMarkets(ctx, markets) {
			stats.MarketsStored += len(markets)
		} else {
			stats.Errors++
		}
	}

	return stats
}
