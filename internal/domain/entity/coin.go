package entity

import (
	"strings"
	"time"
)

// CoinDelta holds rate-of-change ratios over standard windows.
type CoinDelta struct {
	Hour  *float64 `json:"hour"`
	Day   *float64 `json:"day"`
	Week  *float64 `json:"week"`
	Month *float64 `json:"month"`
}

// HistoryPoint is a single historical observation for a coin.
// Date is a UNIX timestamp in milliseconds, matching the upstream wire format.
type HistoryPoint struct {
	Date   int64   `json:"date"`
	Rate   float64 `json:"rate"`
	Volume float64 `json:"volume"`
	Cap    float64 `json:"cap"`
}

// Validate checks that the history point carries a usable timestamp.
func (h HistoryPoint) Validate() error {
	if h.Date <= 0 {
		return ErrInvalidTimestamp
	}
	return nil
}

// Time converts the millisecond timestamp to a time.Time in UTC.
func (h HistoryPoint) Time() time.Time {
	return time.UnixMilli(h.Date).UTC()
}

// Coin is a snapshot of a single cryptocurrency. Pointer fields are optional:
// the upstream omits them for young or thinly traded assets.
type Coin struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Rank   *int   `json:"rank"`
	Age    *int   `json:"age"`
	Pairs  *int   `json:"pairs"`
	Venues *int   `json:"exchanges"`

	Rate              *float64 `json:"rate"`
	Volume            *float64 `json:"volume"`
	Cap               *float64 `json:"cap"`
	Liquidity         *float64 `json:"liquidity"`
	AllTimeHighUSD    *float64 `json:"allTimeHighUSD"`
	CirculatingSupply *float64 `json:"circulatingSupply"`
	TotalSupply       *float64 `json:"totalSupply"`
	MaxSupply         *float64 `json:"maxSupply"`

	Delta   *CoinDelta     `json:"delta"`
	History []HistoryPoint `json:"history"`

	Currency  string    `json:"-"`
	FetchedAt time.Time `json:"-"`
}

// NormalizeCode upper-cases and trims an asset code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks the invariants a coin record must hold before storage.
func (c *Coin) Validate() error {
	if strings.TrimSpace(c.Code) == "" {
		return ErrEmptyCode
	}
	return nil
}

// ToPoint converts the coin snapshot into a storage point. Optional fields
// are emitted only when present; record_count guarantees at least one field
// so the point is always writable.
func (c *Coin) ToPoint() Point {
	fields := map[string]interface{}{
		"record_count": int64(1),
	}
	if c.Rate != nil {
		fields["rate"] = *c.Rate
	}
	if c.Volume != nil {
		fields["volume"] = *c.Volume
	}
	if c.Cap != nil {
		fields["cap"] = *c.Cap
	}
	if c.Liquidity != nil {
		fields["liquidity"] = *c.Liquidity
	}
	if c.AllTimeHighUSD != nil {
		fields["all_time_high_usd"] = *c.AllTimeHighUSD
	}
	if c.CirculatingSupply != nil {
		fields["circulating_supply"] = *c.CirculatingSupply
	}
	if c.TotalSupply != nil {
		fields["total_supply"] = *c.TotalSupply
	}
	if c.MaxSupply != nil {
		fields["max_supply"] = *c.MaxSupply
	}
	if c.Rank != nil {
		fields["rank"] = int64(*c.Rank)
	}
	if c.Venues != nil {
		fields["exchanges"] = int64(*c.Venues)
	}
	if c.Pairs != nil {
		fields["pairs"] = int64(*c.Pairs)
	}
	if c.Delta != nil {
		if c.Delta.Hour != nil {
			fields["delta_hour"] = *c.Delta.Hour
		}
		if c.Delta.Day != nil {
			fields["delta_day"] = *c.Delta.Day
		}
		if c.Delta.Week != nil {
			fields["delta_week"] = *c.Delta.Week
		}
	}

	ts := c.FetchedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return Point{
		Measurement: MeasurementCoin,
		Tags: map[string]string{
			"code":     NormalizeCode(c.Code),
			"name":     c.Name,
			"currency": c.Currency,
		},
		Fields: fields,
		Time:   ts,
	}
}

// FlattenHistory expands the coin's history into one snapshot per point,
// each stamped with the historical observation time and stripped of the
// history slice. Used by the daily history job to backfill the store.
func (c *Coin) FlattenHistory() []Coin {
	out := make([]Coin, 0, len(c.History))
	for _, h := range c.History {
		if h.Validate() != nil {
			continue
		}
		rate, volume, cap := h.Rate, h.Volume, h.Cap
		snapshot := *c
		snapshot.Rate = &rate
		snapshot.Volume = &volume
		snapshot.Cap = &cap
		snapshot.FetchedAt = h.Time()
		snapshot.History = nil
		out = append(out, snapshot)
	}
	return out
}
