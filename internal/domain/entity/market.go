package entity

import "time"

// Market is a whole-market overview snapshot: aggregate capitalization,
// volume, liquidity and BTC dominance.
type Market struct {
	Cap          *float64 `json:"cap"`
	Volume       *float64 `json:"volume"`
	Liquidity    *float64 `json:"liquidity"`
	BTCDominance *float64 `json:"btcDominance"`

	Currency  string    `json:"-"`
	FetchedAt time.Time `json:"-"`
}

// ToPoint converts the market snapshot into a storage point.
func (m *Market) ToPoint() Point {
	fields := map[string]interface{}{
		"record_count": int64(1),
	}
	if m.Cap != nil {
		fields["total_market_cap"] = *m.Cap
	}
	if m.Volume != nil {
		fields["total_volume"] = *m.Volume
	}
	if m.Liquidity != nil {
		fields["total_liquidity"] = *m.Liquidity
	}
	if m.BTCDominance != nil {
		fields["btc_dominance"] = *m.BTCDominance
	}

	ts := m.FetchedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return Point{
		Measurement: MeasurementMarket,
		Tags: map[string]string{
			"currency": m.Currency,
		},
		Fields: fields,
		Time:   ts,
	}
}
