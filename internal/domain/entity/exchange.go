package entity

import (
	"strings"
	"time"
)

// Exchange is a snapshot of a trading venue's activity.
type Exchange struct {
	Code             string   `json:"code"`
	Name             string   `json:"name"`
	Rank             *int     `json:"rank"`
	Volume           *float64 `json:"volume"`
	Visitors         *int     `json:"visitors"`
	VolumePerVisitor *float64 `json:"volumePerVisitor"`

	Currency  string    `json:"-"`
	FetchedAt time.Time `json:"-"`
}

// Validate checks the invariants an exchange record must hold before storage.
func (e *Exchange) Validate() error {
	if strings.TrimSpace(e.Code) == "" {
		return ErrEmptyCode
	}
	return nil
}

// ToPoint converts the exchange snapshot into a storage point.
func (e *Exchange) ToPoint() Point {
	fields := map[string]interface{}{
		"record_count": int64(1),
	}
	if e.Volume != nil {
		fields["volume"] = *e.Volume
	}
	if e.Visitors != nil {
		fields["visitors"] = int64(*e.Visitors)
	}
	if e.VolumePerVisitor != nil {
		fields["volume_per_visitor"] = *e.VolumePerVisitor
	}
	if e.Rank != nil {
		fields["rank"] = int64(*e.Rank)
	}

	ts := e.FetchedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return Point{
		Measurement: MeasurementExchange,
		Tags: map[string]string{
			"code":     NormalizeCode(e.Code),
			"name":     e.Name,
			"currency": e.Currency,
		},
		Fields: fields,
		Time:   ts,
	}
}
