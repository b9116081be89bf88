package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"coinfetch/internal/domain/entity"
)

// Credits is the remaining API credit allowance.
type Credits struct {
	DailyCreditsRemaining int `json:"dailyCreditsRemaining"`
	DailyCreditsLimit     int `json:"dailyCreditsLimit"`
}

// Fiat is a fiat currency the API can quote against.
type Fiat struct {
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	Symbol    string   `json:"symbol"`
	Countries []string `json:"countries"`
	Flag      string   `json:"flag"`
}

// ListQuery holds paging and ordering for list endpoints. Zero values are
// replaced with the endpoint's defaults.
type ListQuery struct {
	Currency string
	Sort     string
	Order    string
	Offset   int
	Limit    int
	Meta     bool
}

// Status checks API reachability. A nil error means the API answered.
func (c *Client) Status(ctx context.Context) error {
	_, err := c.call(ctx, OpStatus, nil)
	return err
}

// Credits returns the remaining daily API credit allowance.
func (c *Client) Credits(ctx context.Context) (*Credits, error) {
	body, err := c.call(ctx, OpCredits, nil)
	if err != nil {
		return nil, err
	}
	var credits Credits
	if err := json.Unmarshal(body, &credits); err != nil {
		return nil, fmt.Errorf("decode credits response: %w", err)
	}
	return &credits, nil
}

// CoinSingle fetches the current snapshot for one coin. The API does not
// echo the code back, so it is stamped from the request.
func (c *Client) CoinSingle(ctx context.Context, code, currency string, meta bool) (*entity.Coin, error) {
	code = entity.NormalizeCode(code)
	body, err := c.call(ctx, OpCoinSingle, map[string]interface{}{
		"currency": currency,
		"code":     code,
		"meta":     meta,
	})
	if err != nil {
		return nil, err
	}

	var coin entity.Coin
	if err := json.Unmarshal(body, &coin); err != nil {
		return nil, fmt.Errorf("decode coin %s: %w", code, err)
	}
	coin.Code = code
	coin.Currency = currency
	coin.FetchedAt = c.now().UTC()
	return &coin, nil
}

// CoinHistory fetches historical observations for one coin over [start, end].
func (c *Client) CoinHistory(ctx context.Context, code, currency string, start, end time.Time) (*entity.Coin, error) {
	code = entity.NormalizeCode(code)
	body, err := c.call(ctx, OpCoinHistory, map[string]interface{}{
		"currency": currency,
		"code":     code,
		"start":    start.UnixMilli(),
		"end":      end.UnixMilli(),
		"meta":     true,
	})
	if err != nil {
		return nil, err
	}

	var coin entity.Coin
	if err := json.Unmarshal(body, &coin); err != nil {
		return nil, fmt.Errorf("decode coin history %s: %w", code, err)
	}
	coin.Code = code
	coin.Currency = currency
	coin.FetchedAt = c.now().UTC()
	return &coin, nil
}

// CoinsList fetches a page of coins ordered by rank unless overridden.
func (c *Client) CoinsList(ctx context.Context, q ListQuery) ([]entity.Coin, error) {
	if q.Currency == "" {
		q.Currency = "USD"
	}
	if q.Sort == "" {
		q.Sort = "rank"
	}
	if q.Order == "" {
		q.Order = "ascending"
	}
	if q.Limit <= 0 {
		q.Limit = 100
	}

	body, err := c.call(ctx, OpCoinsList, map[string]interface{}{
		"currency": q.Currency,
		"sort":     q.Sort,
		"order":    q.Order,
		"offset":   q.Offset,
		"limit":    q.Limit,
		"meta":     q.Meta,
	})
	if err != nil {
		return nil, err
	}

	var coins []entity.Coin
	if err := json.Unmarshal(body, &coins); err != nil {
		return nil, fmt.Errorf("decode coins list: %w", err)
	}
	fetchedAt := c.now().UTC()
	for i := range coins {
		coins[i].Currency = q.Currency
		coins[i].FetchedAt = fetchedAt
	}
	return coins, nil
}

// ExchangesList fetches a page of exchanges ordered by visitors unless
// overridden.
func (c *Client) ExchangesList(ctx context.Context, q ListQuery) ([]entity.Exchange, error) {
	if q.Currency == "" {
		q.Currency = "USD"
	}
	if q.Sort == "" {
		q.Sort = "visitors"
	}
	if q.Order == "" {
		q.Order = "descending"
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}

	body, err := c.call(ctx, OpExchangesList, map[string]interface{}{
		"currency": q.Currency,
		"sort":     q.Sort,
		"order":    q.Order,
		"offset":   q.Offset,
		"limit":    q.Limit,
		"meta":     q.Meta,
	})
	if err != nil {
		return nil, err
	}

	var exchanges []entity.Exchange
	if err := json.Unmarshal(body, &exchanges); err != nil {
		return nil, fmt.Errorf("decode exchanges list: %w", err)
	}
	fetchedAt := c.now().UTC()
	for i := range exchanges {
		exchanges[i].Currency = q.Currency
		exchanges[i].FetchedAt = fetchedAt
	}
	return exchanges, nil
}

// Overview fetches the current whole-market snapshot.
func (c *Client) Overview(ctx context.Context, currency string) (*entity.Market, error) {
	if currency == "" {
		currency = "USD"
	}
	body, err := c.call(ctx, OpOverview, map[string]interface{}{
		"currency": currency,
	})
	if err != nil {
		return nil, err
	}

	var market entity.Market
	if err := json.Unmarshal(body, &market); err != nil {
		return nil, fmt.Errorf("decode overview: %w", err)
	}
	market.Currency = currency
	market.FetchedAt = c.now().UTC()
	return &market, nil
}

// OverviewHistory fetches whole-market snapshots over [start, end]. Each
// entry carries its own observation timestamp, which becomes the snapshot
// time.
func (c *Client) OverviewHistory(ctx context.Context, currency string, start, end time.Time) ([]entity.Market, error) {
	if currency == "" {
		currency = "USD"
	}
	body, err := c.call(ctx, OpOverviewHistory, map[string]interface{}{
		"currency": currency,
		"start":    start.UnixMilli(),
		"end":      end.UnixMilli(),
	})
	if err != nil {
		return nil, err
	}

	var raw []struct {
		entity.Market
		Date int64 `json:"date"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode overview history: %w", err)
	}

	markets := make([]entity.Market, 0, len(raw))
	for _, r := range raw {
		m := r.Market
		m.Currency = currency
		if r.Date > 0 {
			m.FetchedAt = time.UnixMilli(r.Date).UTC()
		} else {
			m.FetchedAt = c.now().UTC()
		}
		markets = append(markets, m)
	}
	return markets, nil
}

// FiatsAll fetches every fiat currency the API can quote against.
func (c *Client) FiatsAll(ctx context.Context) ([]Fiat, error) {
	body, err := c.call(ctx, OpFiatsAll, nil)
	if err != nil {
		return nil, err
	}
	var fiats []Fiat
	if err := json.Unmarshal(body, &fiats); err != nil {
		return nil, fmt.Errorf("decode fiats: %w", err)
	}
	return fiats, nil
}
