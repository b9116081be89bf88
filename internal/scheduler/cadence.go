package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Cadence computes when a job fires next.
type Cadence interface {
	// Next returns the first activation strictly after t
	Next(t time.Time) time.Time

	// String describes the cadence for logs
	String() string
}

// Interval fires every fixed duration.
type Interval struct {
	Every time.Duration
}

// Next returns t plus the interval.
func (i Interval) Next(t time.Time) time.Time { return t.Add(i.Every) }

func (i Interval) String() string { return fmt.Sprintf("every %s", i.Every) }

// cronCadence wraps a parsed cron schedule.
type cronCadence struct {
	expr     string
	schedule cron.Schedule
	loc      *time.Location
}

func (c cronCadence) Next(t time.Time) time.Time {
	return c.schedule.Next(t.In(c.loc))
}

func (c cronCadence) String() string { return fmt.Sprintf("cron %q", c.expr) }

// cronParser accepts standard five-field expressions (minute granularity).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseCron builds a calendar cadence from a five-field cron expression,
// evaluated in the given location (UTC when nil).
func ParseCron(expr string, loc *time.Location) (Cadence, error) {
	if loc == nil {
		loc = time.UTC
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", expr, err)
	}
	return cronCadence{expr: expr, schedule: schedule, loc: loc}, nil
}
