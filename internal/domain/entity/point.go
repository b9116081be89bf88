// Package entity defines the market data records the fetcher collects and the
// storage point representation the time-series sink consumes.
package entity

import "time"

// Point is a single time-series datapoint: a measurement name, a set of
// indexed tags, a set of numeric (or string) fields, and a timestamp.
// The storage sink maps Points to its native write format.
type Point struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]interface{}
	Time        time.Time
}

// Measurement names used by the fetcher. Kept stable so downstream
// dashboards survive upgrades.
const (
	MeasurementCoin     = "cryptocurrency_data"
	MeasurementExchange = "exchange_data"
	MeasurementMarket   = "market_overview"
)
