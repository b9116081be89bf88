// Package upstream implements the market data API client. All endpoints are
// POST with a JSON body and an x-api-key header. Every call flows through
// the same resilience pipeline: response cache, circuit breaker, bounded
// retry with exponential backoff, and a typed error taxonomy.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"coinfetch/internal/cache"
	"coinfetch/internal/resilience/circuitbreaker"
	"coinfetch/internal/resilience/retry"
)

// Operation describes one logical API endpoint and its caching policy.
type Operation struct {
	// Name is the stable operation name used in cache fingerprints and logs
	Name string

	// Path is the URL path, e.g. "/coins/single"
	Path string

	// Cacheable marks responses safe to serve from the response cache
	Cacheable bool

	// TTL is the cache lifetime for this operation's responses
	TTL time.Duration
}

// Exchange listings move slowly, so they get the longest TTL. Single-coin
// prices are the most volatile and get the shortest. History endpoints are
// not cached: each scheduled run requests a fresh time range.
var (
	OpStatus          = Operation{Name: "status", Path: "/status", Cacheable: true, TTL: 2 * time.Minute}
	OpCredits         = Operation{Name: "credits", Path: "/credits", Cacheable: true, TTL: 5 * time.Minute}
	OpCoinSingle      = Operation{Name: "coin_single", Path: "/coins/single", Cacheable: true, TTL: time.Minute}
	OpCoinHistory     = Operation{Name: "coin_history", Path: "/coins/single/history"}
	OpCoinsList       = Operation{Name: "coins_list", Path: "/coins/list", Cacheable: true, TTL: 90 * time.Second}
	OpExchangesList   = Operation{Name: "exchanges_list", Path: "/exchanges/list", Cacheable: true, TTL: 10 * time.Minute}
	OpOverview        = Operation{Name: "overview", Path: "/overview", Cacheable: true, TTL: 5 * time.Minute}
	OpOverviewHistory = Operation{Name: "overview_history", Path: "/overview/history"}
	OpFiatsAll        = Operation{Name: "fiats_all", Path: "/fiats/all", Cacheable: true, TTL: 10 * time.Minute}
)

// maxResponseBytes caps response reads. The largest normal payload is a
// coins list page, well under a megabyte.
const maxResponseBytes = 16 << 20

// Config holds the API client configuration.
type Config struct {
	// APIKey is sent in the x-api-key header
	APIKey string

	// BaseURL is the API root, without a trailing slash
	BaseURL string

	// ConnectTimeout bounds connection establishment. Short, to fail fast
	// on unreachable hosts.
	ConnectTimeout time.Duration

	// ReadTimeout bounds the whole request including the response body
	ReadTimeout time.Duration

	// UserAgent is sent with every request
	UserAgent string

	// Retry is the backoff policy applied per call
	Retry retry.Config
}

// DefaultConfig returns the production client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "https://api.livecoinwatch.com",
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    30 * time.Second,
		UserAgent:      "coinfetch/1.0",
		Retry:          retry.UpstreamConfig(),
	}
}

// Client is the resilient API caller. The breaker and cache are shared
// across all workers talking to the same upstream; Client is safe for
// concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *circuitbreaker.Breaker
	cache   *cache.Cache

	now func() time.Time
}

// NewClient creates an API client sharing the given breaker and response
// cache. Either may be nil to disable that layer, which the -once CLI path
// uses for ad-hoc calls.
func NewClient(cfg Config, breaker *circuitbreaker.Breaker, responseCache *cache.Cache) *Client {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.UpstreamConfig()
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		TLSHandshakeTimeout: cfg.ConnectTimeout,
		MaxIdleConns:        5,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.ReadTimeout,
		},
		breaker: breaker,
		cache:   responseCache,
		now:     time.Now,
	}
}

// call runs one operation through the resilience pipeline: cache lookup,
// breaker admission, retried request, breaker bookkeeping, cache populate.
// A cache hit bypasses the breaker entirely; stale-but-available data is
// preferred over failing fast while the upstream recovers.
func (c *Client) call(ctx context.Context, op Operation, params map[string]interface{}) (json.RawMessage, error) {
	if params == nil {
		params = map[string]interface{}{}
	}

	var key string
	if op.Cacheable && c.cache != nil {
		key = cache.Fingerprint(op.Name, params)
		if v, ok := c.cache.Get(key); ok {
			slog.Debug("serving cached response", slog.String("operation", op.Name))
			return v.(json.RawMessage), nil
		}
	}

	if c.breaker != nil && !c.breaker.CanExecute() {
		return nil, ErrServiceUnavailable
	}

	var body json.RawMessage
	err := retry.WithBackoff(ctx, c.cfg.Retry, func() error {
		b, reqErr := c.doRequest(ctx, op, params)
		if reqErr != nil {
			return reqErr
		}
		body = b
		return nil
	})

	if err != nil {
		if c.breaker != nil {
			if countsAsBreakerFailure(err) {
				c.breaker.RecordFailure()
			} else {
				// Non-counting outcomes still release the half-open
				// probe slot.
				c.breaker.CancelProbe()
			}
		}
		return nil, err
	}

	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}
	if op.Cacheable && c.cache != nil {
		c.cache.Put(key, body, op.TTL)
	}
	return body, nil
}

// doRequest performs a single attempt and classifies the outcome into the
// typed error taxonomy. Error responses are never cached.
func (c *Client) doRequest(ctx context.Context, op Operation, params map[string]interface{}) (json.RawMessage, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", op.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+op.Path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &NetworkError{Operation: op.Name, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &NetworkError{Operation: op.Name, Err: err}
	}

	slog.Debug("api request completed",
		slog.String("operation", op.Name),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", c.now().Sub(start)))

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &AuthError{Status: resp.StatusCode, Message: "invalid API key"}
	case resp.StatusCode == http.StatusTooManyRequests:
		slog.Warn("rate limit hit", slog.String("operation", op.Name))
		return nil, &RateLimitError{Operation: op.Name}
	default:
		return nil, &APIError{Status: resp.StatusCode, Description: errorDescription(resp.StatusCode, body)}
	}
}

// errorDescription extracts the server-supplied error description, falling
// back to the bare status code.
func errorDescription(status int, body []byte) string {
	var envelope struct {
		Error struct {
			Description string `json:"description"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Description != "" {
		return envelope.Error.Description
	}
	return fmt.Sprintf("HTTP %d", status)
}

// CacheStats returns response cache counters for metrics export.
// Zero value when no cache is attached.
func (c *Client) CacheStats() cache.Stats {
	if c.cache == nil {
		return cache.Stats{}
	}
	return c.cache.Stats()
}

// BreakerStats returns circuit breaker state for metrics export.
// Zero value when no breaker is attached.
func (c *Client) BreakerStats() circuitbreaker.Stats {
	if c.breaker == nil {
		return circuitbreaker.Stats{}
	}
	return c.breaker.Stats()
}
