package circuitbreaker

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ErrStorageOpen is returned when the storage circuit rejects a write.
var ErrStorageOpen = errors.New("storage circuit breaker is open")

// StorageConfig holds the configuration for the storage circuit breaker.
type StorageConfig struct {
	// Name is the circuit name for logging and metrics
	Name string

	// MaxRequests is the maximum number of requests allowed in half-open state
	MaxRequests uint32

	// Interval is the cyclic period of the closed state to clear counts
	Interval time.Duration

	// Timeout is how long to wait in open state before trying again
	Timeout time.Duration

	// FailureThreshold is the failure ratio that trips the circuit
	FailureThreshold float64

	// MinRequests is the minimum number of requests before calculating the ratio
	MinRequests uint32
}

// DefaultStorageConfig returns configuration tuned for time-series writes.
// Opens on sustained write failures, 30 second recovery timeout.
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Name:             "storage",
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 1.0,
		MinRequests:      5,
	}
}

// StorageBreaker protects the storage sink from cascading write failures.
// Unlike the upstream breaker, write outcomes are known at call time, so
// the simpler execute-a-function contract of gobreaker fits here.
type StorageBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

// NewStorageBreaker creates a storage circuit breaker.
func NewStorageBreaker(cfg StorageConfig) *StorageBreaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}

	return &StorageBreaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		name:    cfg.Name,
	}
}

// Execute runs a write through the circuit breaker.
// If the circuit is open, it returns ErrStorageOpen without calling fn.
func (sb *StorageBreaker) Execute(fn func() error) error {
	_, err := sb.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrStorageOpen
	}
	return err
}

// Name returns the circuit name.
func (sb *StorageBreaker) Name() string {
	return sb.name
}

// IsOpen reports whether the circuit is currently open.
func (sb *StorageBreaker) IsOpen() bool {
	return sb.breaker.State() == gobreaker.StateOpen
}
