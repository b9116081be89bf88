package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrServiceUnavailable is returned when the circuit breaker is open and no
// network I/O was attempted.
var ErrServiceUnavailable = errors.New("upstream temporarily unavailable: circuit breaker is open")

// NetworkError is a connection, DNS or timeout failure before a status code
// was received. Transient, retryable, and counts against the circuit breaker.
type NetworkError struct {
	Operation string
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error calling %s: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Retryable reports that network failures are worth retrying.
func (e *NetworkError) Retryable() bool { return true }

// RateLimitError is an explicit throttling signal (HTTP 429). It is retryable
// with backoff, but never counts against the circuit breaker: throttling
// reflects this client's own call rate, not upstream unavailability.
type RateLimitError struct {
	Operation string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded calling %s", e.Operation)
}

// Retryable reports that a throttled call may succeed after backoff.
func (e *RateLimitError) Retryable() bool { return true }

// AuthError is an authentication failure (HTTP 401). It implies a
// misconfigured API key, so it is never retried, but it does count against
// the circuit breaker so a bad deployment stops hammering the API.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (HTTP %d): %s", e.Status, e.Message)
}

// Retryable reports that retrying with the same credentials cannot help.
func (e *AuthError) Retryable() bool { return false }

// APIError is a non-2xx response other than 401/429, carrying the
// server-supplied description when one was present.
type APIError struct {
	Status      int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (HTTP %d): %s", e.Status, e.Description)
}

// Retryable reports whether the status suggests a transient server problem.
func (e *APIError) Retryable() bool {
	return e.Status >= 500 || e.Status == http.StatusRequestTimeout
}

// StorageError is a write failure from the storage sink. The core does not
// retry it; callers surface it in their error stats.
type StorageError struct {
	Operation string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Operation, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Retryable reports that the core leaves storage retries to the caller.
func (e *StorageError) Retryable() bool { return false }

// countsAsBreakerFailure reports whether an error reflects upstream
// unavailability. Rate limits and plain client errors do not: a 4xx means
// the API is alive and answering.
func countsAsBreakerFailure(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	return false
}
