package fetch

import (
	"context"
	"log/slog"

	"coinfetch/internal/observability/logging"
)

// RunHourlyExchanges fetches and stores a wider exchange page than the
// regular cycle uses.
func (s *Service) RunHourlyExchanges(ctx context.Context) *Stats {
	log := logging.FromContext(ctx)
	log.Info("starting exchange fetch job")
	stats := &Stats{}

	exchanges, err := s.FetchExchanges(ctx, 50)
	if err != nil {
		stats.Errors++
	}
	if len(exchanges) == 0 {
		log.Warn("no exchanges fetched")
		return stats
	}
	stats.ExchangesFetched = len(exchanges)

	if s.StoreExchanges(ctx, exchanges) {
		stats.ExchangesStored = len(exchanges)
	} else {
		stats.Errors++
	}
	log.Info("exchange fetch completed", slog.Int("count", stats.ExchangesStored))
	return stats
}

// RunDailyHistory backfills per-point snapshots for each tracked coin over
// the configured lookback window.
func (s *Service) RunDailyHistory(ctx context.Context) *Stats {
	log := logging.FromContext(ctx)
	log.Info("starting historical fetch job")
	stats := &Stats{}

	for _, code := range s.cfg.TrackedCoins {
		coin, err := s.FetchCoinHistory(ctx, code)
		if err != nil {
			stats.Errors++
			continue
		}
		if coin == nil || len(coin.History) == 0 {
			continue
		}

		snapshots := coin.FlattenHistory()
		stats.CoinsFetched += len(snapshots)
		if s.StoreCoins(ctx, snapshots) {
			stats.CoinsStored += len(snapshots)
		} else {
			stats.Errors++
		}
	}

	log.Info("historical fetch completed",
		slog.Int("records", stats.CoinsStored), slog.Int("errors", stats.Errors))
	return stats
}

// RunWeeklySync collects a comprehensive snapshot: a deep coins page, a
// deep exchanges page, the market overview and its recent history.
func (s *Service) RunWeeklySync(ctx context.Context) *Stats {
	log := logging.FromContext(ctx)
	log.Info("starting weekly full sync job")
	stats := &Stats{}

	coins, err := s.FetchTopCoins(ctx, 200)
	if err != nil {
		stats.Errors++
	}
	if len(coins) > 0 {
		stats.CoinsFetched = len(coins)
		if s.StoreCoins(ctx, coins) {
			stats.CoinsStored = len(coins)
		} else {
			stats.Errors++
		}
	}

	exchanges, err := s.FetchExchanges(ctx, 100)
	if err != nil {
		stats.Errors++
	}
	if len(exchanges) > 0 {
		stats.ExchangesFetched = len(exchanges)
		if s.StoreExchanges(ctx, exchanges) {
			stats.ExchangesStored = len(exchanges)
		} else {
			stats.Errors++
		}
	}

	markets, err := s.FetchMarketOverview(ctx)
	if err != nil {
		stats.Errors++
	}
	history, err := s.FetchOverviewHistory(ctx)
	if err != nil {
		stats.Errors++
	}
	markets = append(markets, history...)
	if len(markets) > 0 {
		stats.MarketsFetched = len(markets)
		if s.StoreMarkets(ctx, markets) {
			stats.MarketsStored = len(markets)
		} else {
			stats.Errors++
		}
	}

	log.Info("weekly full sync completed",
		slog.Int("total_stored", stats.CoinsStored+stats.ExchangesStored+stats.MarketsStored),
		slog.Int("errors", stats.Errors))
	return stats
}
