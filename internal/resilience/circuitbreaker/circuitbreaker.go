// Package circuitbreaker provides circuit breakers for external dependencies.
//
// The upstream API breaker in this file is a consecutive-failure breaker with
// explicit CanExecute/RecordSuccess/RecordFailure hooks, letting the caller
// decide which error classes count against the circuit (a rate-limit response
// reflects throttling, not unavailability, and must not trip it). The storage
// sink breaker in storage.go wraps sony/gobreaker instead, where the simpler
// execute-a-function contract fits.
package circuitbreaker

import (
	"log/slog"
	"sync"
	"time"
)

// State is the current state of the circuit breaker.
type State int

const (
	// StateClosed allows all calls. Normal operation.
	StateClosed State = iota

	// StateOpen rejects all calls until the open duration has elapsed.
	StateOpen

	// StateHalfOpen admits a single probe call to test recovery.
	StateHalfOpen
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns the current system time.
func (c *SystemClock) Now() time.Time { return time.Now() }

// Config holds the breaker configuration.
type Config struct {
	// Name identifies the breaker in logs.
	Name string

	// FailureThreshold is the number of consecutive failures that trips
	// the circuit. Default: 5.
	FailureThreshold int

	// OpenDuration is how long the circuit stays open before admitting a
	// probe. The duration is constant; backoff between attempts is the
	// retry layer's job. Default: 60 seconds.
	OpenDuration time.Duration

	// Clock abstracts time. Default: SystemClock.
	Clock Clock
}

// Breaker is a consecutive-failure circuit breaker.
//
// Transitions: Closed reaches Open after FailureThreshold consecutive
// failures; Open becomes HalfOpen lazily when CanExecute observes that
// OpenDuration has elapsed since the last failure; HalfOpen returns to
// Closed on a recorded success and to Open on a recorded failure.
//
// In HalfOpen exactly one probe is admitted: the first CanExecute returns
// true and subsequent callers are rejected until the probe's outcome is
// recorded. Safe for concurrent use.
type Breaker struct {
	config Config

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	lastFailureAt       time.Time
	probeInFlight       bool
}

// New creates a circuit breaker, applying defaults for zero-valued config.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenDuration <= 0 {
		cfg.OpenDuration = 60 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = &SystemClock{}
	}
	return &Breaker{
		config: cfg,
		state:  StateClosed,
	}
}

// CanExecute reports whether a call may proceed.
//
// Closed: always true. Open: true only once OpenDuration has elapsed since
// the last failure, which transitions the breaker to HalfOpen and admits
// the caller as the probe. HalfOpen: true only for the single probe slot.
func (b *Breaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true

	case StateOpen:
		if b.config.Clock.Now().Sub(b.lastFailureAt) >= b.config.OpenDuration {
			b.transition(StateHalfOpen)
			b.probeInFlight = true
			return true
		}
		return false

	case StateHalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true

	default:
		return true
	}
}

// RecordSuccess resets the failure count and closes the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	b.probeInFlight = false
	if b.state != StateClosed {
		b.transition(StateClosed)
	}
}

// RecordFailure increments the consecutive failure count and stamps the
// failure time. A half-open probe failure reopens the circuit immediately;
// otherwise the circuit opens when the count reaches the threshold.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures++
	b.lastFailureAt = b.config.Clock.Now()
	b.probeInFlight = false

	switch {
	case b.state == StateHalfOpen:
		b.transition(StateOpen)
	case b.state == StateClosed && b.consecutiveFailures >= b.config.FailureThreshold:
		b.transition(StateOpen)
	}
}

// CancelProbe releases the probe slot without recording an outcome. Callers
// use it when a probe resolves to an error that says nothing about upstream
// availability, such as a rate-limit response: the circuit must neither
// reopen nor close, and the next caller gets the probe slot. A no-op outside
// HalfOpen.
func (b *Breaker) CancelProbe() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.probeInFlight = false
	}
}

// State returns the current state without side effects.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats is a snapshot of breaker internals for monitoring.
type Stats struct {
	State               State
	ConsecutiveFailures int
	LastFailureAt       time.Time
}

// Stats returns a snapshot of the breaker state.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		LastFailureAt:       b.lastFailureAt,
	}
}

// transition changes state and logs it. Caller holds the lock.
func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	slog.Warn("circuit breaker state changed",
		slog.String("circuit", b.config.Name),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.Int("consecutive_failures", b.consecutiveFailures))
}
