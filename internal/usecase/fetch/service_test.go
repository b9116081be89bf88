package fetch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinfetch/internal/domain/entity"
	"coinfetch/internal/upstream"
)

// mockCaller implements Caller with overridable behavior per endpoint.
type mockCaller struct {
	statusErr   error
	credits     *upstream.Credits
	creditsErr  error
	coinSingle  func(code string) (*entity.Coin, error)
	coinHistory func(code string) (*entity.Coin, error)
	coinsList   func(q upstream.ListQuery) ([]entity.Coin, error)
	exchanges   func(q upstream.ListQuery) ([]entity.Exchange, error)
	overview    func() (*entity.Market, error)
	overviewH   func() ([]entity.Market, error)
}

func (m *mockCaller) Status(ctx context.Context) error { return m.statusErr }

func (m *mockCaller) Credits(ctx context.Context) (*upstream.Credits, error) {
	if m.creditsErr != nil {
		return nil, m.creditsErr
	}
	if m.credits == nil {
		return &upstream.Credits{DailyCreditsRemaining: 5000, DailyCreditsLimit: 10000}, nil
	}
	return m.credits, nil
}

func (m *mockCaller) CoinSingle(ctx context.Context, code, currency string, meta bool) (*entity.Coin, error) {
	if m.coinSingle != nil {
		return m.coinSingle(code)
	}
	return &entity.Coin{Code: code, Name: code, Currency: currency}, nil
}

func (m *mockCaller) CoinHistory(ctx context.Context, code, currency string, start, end time.Time) (*entity.Coin, error) {
	if m.coinHistory != nil {
		return m.coinHistory(code)
	}
	return &entity.Coin{Code: code, Currency: currency}, nil
}

func (m *mockCaller) CoinsList(ctx context.Context, q upstream.ListQuery) ([]entity.Coin, error) {
	if m.coinsList != nil {
		return m.coinsList(q)
	}
	return nil, nil
}

func (m *mockCaller) ExchangesList(ctx context.Context, q upstream.ListQuery) ([]entity.Exchange, error) {
	if m.exchanges != nil {
		return m.exchanges(q)
	}
	return nil, nil
}

func (m *mockCaller) Overview(ctx context.Context, currency string) (*entity.Market, error) {
	if m.overview != nil {
		return m.overview()
	}
	return &entity.Market{Currency: currency}, nil
}

func (m *mockCaller) OverviewHistory(ctx context.Context, currency string, start, end time.Time) ([]entity.Market, error) {
	if m.overviewH != nil {
		return m.overviewH()
	}
	return nil, nil
}

// mockSink records writes and close calls.
type mockSink struct {
	mu        sync.Mutex
	coins     []entity.Coin
	exchanges []entity.Exchange
	markets   []entity.Market
	closed    int
	writeErr  error
}

func (m *mockSink) WriteCoins(ctx context.Context, coins []entity.Coin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.coins = append(m.coins, coins...)
	return nil
}

func (m *mockSink) WriteExchanges(ctx context.Context, exchanges []entity.Exchange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.exchanges = append(m.exchanges, exchanges...)
	return nil
}

func (m *mockSink) WriteMarkets(ctx context.Context, markets []entity.Market) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.markets = append(m.markets, markets...)
	return nil
}

func (m *mockSink) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
}

func newTestService(caller Caller, sink *mockSink, cfg Config) (*Service, *int) {
	if cfg.RequestsPerMinute == 0 {
		cfg.RequestsPerMinute = 100000 // effectively unpaced in tests
	}
	opens := 0
	svc := NewService(caller, func(ctx context.Context) (Sink, error) {
		opens++
		return sink, nil
	}, cfg)
	svc.sleep = func(ctx context.Context, d time.Duration) {}
	return svc, &opens
}

func TestRunFullFetchHappyPath(t *testing.T) {
	rate := 1.0
	caller := &mockCaller{
		coinsList: func(q upstream.ListQuery) ([]entity.Coin, error) {
			coins := make([]entity.Coin, q.Limit)
			for i := range coins {
				coins[i] = entity.Coin{Code: "C", Name: "c", Rate: &rate}
			}
			return coins, nil
		},
		exchanges: func(q upstream.ListQuery) ([]entity.Exchange, error) {
			return []entity.Exchange{{Code: "binance", Name: "Binance"}}, nil
		},
	}
	sink := &mockSink{}
	svc, opens := newTestService(caller, sink, Config{
		TrackedCoins:  []string{"BTC", "ETH"},
		TopCoinsLimit: 3,
	})

	stats := svc.RunFullFetch(context.Background())

	assert.Equal(t, 5, stats.CoinsFetched, "2 tracked + 3 top")
	assert.Equal(t, 5, stats.CoinsStored)
	assert.Equal(t, 1, stats.ExchangesFetched)
	assert.Equal(t, 1, stats.ExchangesStored)
	assert.Equal(t, 1, stats.MarketsFetched)
	assert.Equal(t, 1, stats.MarketsStored)
	assert.Equal(t, 0, stats.Errors)

	// one short-lived sink handle per store step
	assert.Equal(t, 4, *opens)
	assert.Equal(t, 4, sink.closed)
}

func TestRunFullFetchAbortsWhenAPIDown(t *testing.T) {
	caller := &mockCaller{statusErr: upstream.ErrServiceUnavailable}
	sink := &mockSink{}
	svc, opens := newTestService(caller, sink, Config{TrackedCoins: []string{"BTC"}})

	stats := svc.RunFullFetch(context.Background())

	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 0, stats.CoinsFetched)
	assert.Equal(t, 0, *opens, "no storage activity when the API is down")
}

func TestRunFullFetchIsolatesStoreFailures(t *testing.T) {
	caller := &mockCaller{
		coinsList: func(q upstream.ListQuery) ([]entity.Coin, error) {
			return []entity.Coin{{Code: "BTC", Name: "Bitcoin"}}, nil
		},
		exchanges: func(q upstream.ListQuery) ([]entity.Exchange, error) {
			return []entity.Exchange{{Code: "kraken", Name: "Kraken"}}, nil
		},
	}

	coinSink := &mockSink{writeErr: errors.New("bucket full")}
	goodSink := &mockSink{}
	calls := 0
	svc := NewService(caller, func(ctx context.Context) (Sink, error) {
		calls++
		if calls == 1 {
			return coinSink, nil // first store step (coins) fails
		}
		return goodSink, nil
	}, Config{RequestsPerMinute: 100000})
	svc.sleep = func(ctx context.Context, d time.Duration) {}

	stats := svc.RunFullFetch(context.Background())

	assert.Equal(t, 1, stats.Errors, "coin store failure counted")
	assert.Equal(t, 0, stats.CoinsStored)
	assert.Equal(t, 1, stats.ExchangesStored, "later steps still ran")
	assert.Equal(t, 1, stats.MarketsStored)
}

func TestFetchTrackedCoinsCoolsDownOnRateLimit(t *testing.T) {
	var fetched []string
	caller := &mockCaller{
		coinSingle: func(code string) (*entity.Coin, error) {
			if code == "ETH" {
				return nil, &upstream.RateLimitError{Operation: "coin_single"}
			}
			fetched = append(fetched, code)
			return &entity.Coin{Code: code, Name: code}, nil
		},
	}
	sink := &mockSink{}
	svc, _ := newTestService(caller, sink, Config{
		TrackedCoins:      []string{"BTC", "ETH", "ADA"},
		RateLimitCooldown: time.Minute,
	})

	var slept time.Duration
	svc.sleep = func(ctx context.Context, d time.Duration) { slept += d }

	coins, failed := svc.FetchTrackedCoins(context.Background())

	require.Len(t, coins, 1, "codes after the rate limit are skipped this cycle")
	assert.Equal(t, 1, failed, "the rate-limited code counts as failed")
	assert.Equal(t, []string{"BTC"}, fetched)
	assert.Equal(t, time.Minute, slept, "fixed cooldown applied once")
}

func TestFetchTrackedCoinsSkipsFailingCode(t *testing.T) {
	caller := &mockCaller{
		coinSingle: func(code string) (*entity.Coin, error) {
			if code == "ETH" {
				return nil, &upstream.APIError{Status: 404, Description: "unknown coin"}
			}
			return &entity.Coin{Code: code, Name: code}, nil
		},
	}
	sink := &mockSink{}
	svc, _ := newTestService(caller, sink, Config{TrackedCoins: []string{"BTC", "ETH", "ADA"}})

	coins, failed := svc.FetchTrackedCoins(context.Background())

	require.Len(t, coins, 2, "a plain API error only skips the failing code")
	assert.Equal(t, 1, failed)
}

func TestFetchTopCoinsReportsError(t *testing.T) {
	caller := &mockCaller{
		coinsList: func(q upstream.ListQuery) ([]entity.Coin, error) {
			return nil, &upstream.APIError{Status: 500, Description: "boom"}
		},
	}
	sink := &mockSink{}
	svc, _ := newTestService(caller, sink, Config{})

	coins, err := svc.FetchTopCoins(context.Background(), 10)
	assert.Nil(t, coins)
	require.Error(t, err)
}

func TestRunFullFetchCountsFetchFailures(t *testing.T) {
	netErr := &upstream.NetworkError{Operation: "coin_single", Err: errors.New("connection refused")}
	caller := &mockCaller{
		coinSingle: func(code string) (*entity.Coin, error) { return nil, netErr },
		coinsList: func(q upstream.ListQuery) ([]entity.Coin, error) {
			return nil, &upstream.NetworkError{Operation: "coins_list", Err: errors.New("connection refused")}
		},
		exchanges: func(q upstream.ListQuery) ([]entity.Exchange, error) {
			return []entity.Exchange{{Code: "kraken", Name: "Kraken"}}, nil
		},
	}
	sink := &mockSink{}
	svc, _ := newTestService(caller, sink, Config{TrackedCoins: []string{"BTC"}})

	stats := svc.RunFullFetch(context.Background())

	assert.Equal(t, 1, stats.ExchangesStored, "exchange step still ran")
	assert.Equal(t, 1, stats.MarketsStored, "overview step still ran")
	assert.Equal(t, 0, stats.CoinsStored)
	assert.GreaterOrEqual(t, stats.Errors, 1, "failed coin fetches must surface in the cycle stats")
}

func TestRunDailyHistoryFlattensAndStores(t *testing.T) {
	caller := &mockCaller{
		coinHistory: func(code string) (*entity.Coin, error) {
			return &entity.Coin{
				Code: code,
				Name: code,
				History: []entity.HistoryPoint{
					{Date: 1756300000000, Rate: 100, Volume: 10, Cap: 1000},
					{Date: 1756386400000, Rate: 110, Volume: 12, Cap: 1100},
				},
			}, nil
		},
	}
	sink := &mockSink{}
	svc, _ := newTestService(caller, sink, Config{TrackedCoins: []string{"BTC"}})

	stats := svc.RunDailyHistory(context.Background())

	assert.Equal(t, 2, stats.CoinsStored)
	require.Len(t, sink.coins, 2)
	assert.Equal(t, time.UnixMilli(1756300000000).UTC(), sink.coins[0].FetchedAt)
	assert.Empty(t, sink.coins[0].History, "flattened snapshots drop the history slice")
}

func TestRunHourlyExchanges(t *testing.T) {
	var gotLimit int
	caller := &mockCaller{
		exchanges: func(q upstream.ListQuery) ([]entity.Exchange, error) {
			gotLimit = q.Limit
			return []entity.Exchange{{Code: "a", Name: "A"}, {Code: "b", Name: "B"}}, nil
		},
	}
	sink := &mockSink{}
	svc, _ := newTestService(caller, sink, Config{})

	stats := svc.RunHourlyExchanges(context.Background())

	assert.Equal(t, 50, gotLimit)
	assert.Equal(t, 2, stats.ExchangesStored)
}

func TestRunWeeklySyncUsesDeepPages(t *testing.T) {
	var coinLimit, exchangeLimit int
	caller := &mockCaller{
		coinsList: func(q upstream.ListQuery) ([]entity.Coin, error) {
			coinLimit = q.Limit
			return []entity.Coin{{Code: "BTC", Name: "Bitcoin"}}, nil
		},
		exchanges: func(q upstream.ListQuery) ([]entity.Exchange, error) {
			exchangeLimit = q.Limit
			return []entity.Exchange{{Code: "x", Name: "X"}}, nil
		},
		overviewH: func() ([]entity.Market, error) {
			return []entity.Market{{Currency: "USD"}, {Currency: "USD"}}, nil
		},
	}
	sink := &mockSink{}
	svc, _ := newTestService(caller, sink, Config{})

	stats := svc.RunWeeklySync(context.Background())

	assert.Equal(t, 200, coinLimit)
	assert.Equal(t, 100, exchangeLimit)
	assert.Equal(t, 1, stats.CoinsStored)
	assert.Equal(t, 1, stats.ExchangesStored)
	assert.Equal(t, 3, stats.MarketsStored, "overview plus two history entries")
}

func TestStoreSkipsWhenEmpty(t *testing.T) {
	sink := &mockSink{}
	svc, opens := newTestService(&mockCaller{}, sink, Config{})

	assert.True(t, svc.StoreCoins(context.Background(), nil))
	assert.True(t, svc.StoreExchanges(context.Background(), nil))
	assert.True(t, svc.StoreMarkets(context.Background(), nil))
	assert.Equal(t, 0, *opens, "no sink opened for empty result sets")
}

func TestStoreReportsSinkOpenFailure(t *testing.T) {
	svc := NewService(&mockCaller{}, func(ctx context.Context) (Sink, error) {
		return nil, errors.New("influx unreachable")
	}, Config{RequestsPerMinute: 100000})
	svc.sleep = func(ctx context.Context, d time.Duration) {}

	ok := svc.StoreCoins(context.Background(), []entity.Coin{{Code: "BTC", Name: "Bitcoin"}})
	assert.False(t, ok)
}
