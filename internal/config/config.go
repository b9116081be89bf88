// Package config assembles the application configuration for the fetcher.
//
// Values come from three layers, lowest precedence first: built-in defaults,
// an optional YAML file named by CONFIG_FILE, and environment variables.
// Loading is lenient; Validate enforces the hard requirements (API key and
// storage credentials) so a misconfigured process fails before its first
// request instead of during one.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	pkgconfig "coinfetch/pkg/config"
)

// APIConfig covers the upstream market-data API.
type APIConfig struct {
	// Key authenticates every request. Required.
	Key string `yaml:"key"`

	// BaseURL is the API root. Override for testing against a stub.
	BaseURL string `yaml:"base_url"`

	// Currency is the quote currency for rates and volumes.
	Currency string `yaml:"currency"`
}

// InfluxConfig covers the time-series storage backend.
type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// FetchConfig covers what gets fetched and how aggressively.
type FetchConfig struct {
	// TrackedCoins are always fetched individually each cycle.
	TrackedCoins []string `yaml:"tracked_coins"`

	// RequestsPerMinute paces outbound API calls.
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// MaxCoinsPerFetch caps a single coin list page.
	MaxCoinsPerFetch int `yaml:"max_coins_per_fetch"`

	// TopCoinsLimit is how many top-ranked coins each cycle pulls.
	TopCoinsLimit int `yaml:"top_coins_limit"`

	// ExchangesLimit is how many exchanges each cycle pulls.
	ExchangesLimit int `yaml:"exchanges_limit"`

	// RateLimitCooldown is how long to back off after the API rate-limits us.
	RateLimitCooldown time.Duration `yaml:"rate_limit_cooldown"`

	// HistoryLookback is the window requested by the historical backfill.
	HistoryLookback time.Duration `yaml:"history_lookback"`

	// LowCreditsThreshold triggers a warning when remaining API credits
	// drop below it.
	LowCreditsThreshold int `yaml:"low_credits_threshold"`
}

// CacheConfig covers the in-process response cache.
type CacheConfig struct {
	Capacity   int           `yaml:"capacity"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// BreakerConfig covers the upstream circuit breaker.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	OpenDuration     time.Duration `yaml:"open_duration"`
}

// RetryConfig covers retry behavior for upstream calls.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// Config is the full application configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Influx  InfluxConfig  `yaml:"influx"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Cache   CacheConfig   `yaml:"cache"`
	Breaker BreakerConfig `yaml:"breaker"`
	Retry   RetryConfig   `yaml:"retry"`
}

// Default returns the built-in configuration. The API key and storage
// credentials are intentionally empty; Validate rejects them.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:  "https://api.livecoinwatch.com",
			Currency: "USD",
		},
		Influx: InfluxConfig{
			URL:    "http://localhost:8086",
			Bucket: "crypto_data",
		},
		Fetch: FetchConfig{
			TrackedCoins:        []string{"BTC", "ETH", "GLQ"},
			RequestsPerMinute:   60,
			MaxCoinsPerFetch:    100,
			TopCoinsLimit:       20,
			ExchangesLimit:      20,
			RateLimitCooldown:   time.Minute,
			HistoryLookback:     24 * time.Hour,
			LowCreditsThreshold: 10,
		},
		Cache: CacheConfig{
			Capacity:   500,
			DefaultTTL: 5 * time.Minute,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			OpenDuration:     60 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
		},
	}
}

// Load assembles the configuration: defaults, then the YAML file named by
// CONFIG_FILE (when set), then environment variables. The result is not
// validated; callers run Validate once logging is up.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnv(&cfg)
	return &cfg, nil
}

func loadFile(cfg *Config, path string) error {
	// #nosec G304 -- path comes from the operator's environment, not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.API.Key = pkgconfig.GetEnvString("LCW_API_KEY", cfg.API.Key)
	cfg.API.BaseURL = pkgconfig.GetEnvString("LCW_BASE_URL", cfg.API.BaseURL)
	cfg.API.Currency = pkgconfig.GetEnvString("LCW_CURRENCY", cfg.API.Currency)

	cfg.Influx.URL = pkgconfig.GetEnvString("INFLUXDB_URL", cfg.Influx.URL)
	cfg.Influx.Token = pkgconfig.GetEnvString("INFLUXDB_TOKEN", cfg.Influx.Token)
	cfg.Influx.Org = pkgconfig.GetEnvString("INFLUXDB_ORG", cfg.Influx.Org)
	cfg.Influx.Bucket = pkgconfig.GetEnvString("INFLUXDB_BUCKET", cfg.Influx.Bucket)

	cfg.Fetch.TrackedCoins = pkgconfig.GetEnvStringList("TRACKED_COINS", cfg.Fetch.TrackedCoins)
	cfg.Fetch.RequestsPerMinute = pkgconfig.GetEnvInt("REQUESTS_PER_MINUTE", cfg.Fetch.RequestsPerMinute)
	cfg.Fetch.MaxCoinsPerFetch = pkgconfig.GetEnvInt("MAX_COINS_PER_FETCH", cfg.Fetch.MaxCoinsPerFetch)
	cfg.Fetch.TopCoinsLimit = pkgconfig.GetEnvInt("TOP_COINS_LIMIT", cfg.Fetch.TopCoinsLimit)
	cfg.Fetch.ExchangesLimit = pkgconfig.GetEnvInt("EXCHANGES_LIMIT", cfg.Fetch.ExchangesLimit)
	cfg.Fetch.RateLimitCooldown = pkgconfig.GetEnvDuration("RATE_LIMIT_COOLDOWN", cfg.Fetch.RateLimitCooldown)
	cfg.Fetch.HistoryLookback = pkgconfig.GetEnvDuration("HISTORY_LOOKBACK", cfg.Fetch.HistoryLookback)
	cfg.Fetch.LowCreditsThreshold = pkgconfig.GetEnvInt("LOW_CREDITS_THRESHOLD", cfg.Fetch.LowCreditsThreshold)

	cfg.Cache.Capacity = pkgconfig.GetEnvInt("CACHE_CAPACITY", cfg.Cache.Capacity)
	cfg.Cache.DefaultTTL = pkgconfig.GetEnvDuration("CACHE_DEFAULT_TTL", cfg.Cache.DefaultTTL)

	cfg.Breaker.FailureThreshold = pkgconfig.GetEnvInt("BREAKER_FAILURE_THRESHOLD", cfg.Breaker.FailureThreshold)
	cfg.Breaker.OpenDuration = pkgconfig.GetEnvDuration("BREAKER_OPEN_DURATION", cfg.Breaker.OpenDuration)

	cfg.Retry.MaxAttempts = pkgconfig.GetEnvInt("RETRY_MAX_ATTEMPTS", cfg.Retry.MaxAttempts)
	cfg.Retry.InitialDelay = pkgconfig.GetEnvDuration("RETRY_INITIAL_DELAY", cfg.Retry.InitialDelay)
	cfg.Retry.MaxDelay = pkgconfig.GetEnvDuration("RETRY_MAX_DELAY", cfg.Retry.MaxDelay)
}

// Validate checks the assembled configuration. Unlike the worker's
// fail-open cadence loading, these are hard requirements.
func (c *Config) Validate() error {
	if c.API.Key == "" {
		return fmt.Errorf("api key is required (set LCW_API_KEY)")
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("api base URL is required")
	}
	if c.Influx.Token == "" {
		return fmt.Errorf("storage token is required (set INFLUXDB_TOKEN)")
	}
	if c.Influx.Org == "" {
		return fmt.Errorf("storage org is required (set INFLUXDB_ORG)")
	}
	if c.Influx.Bucket == "" {
		return fmt.Errorf("storage bucket is required")
	}
	if len(c.Fetch.TrackedCoins) == 0 {
		return fmt.Errorf("at least one tracked coin is required")
	}
	if err := pkgconfig.ValidateIntRange(c.Fetch.RequestsPerMinute, 1, 600); err != nil {
		return fmt.Errorf("requests per minute: %w", err)
	}
	if err := pkgconfig.ValidateIntRange(c.Fetch.MaxCoinsPerFetch, 1, 1000); err != nil {
		return fmt.Errorf("max coins per fetch: %w", err)
	}
	if err := pkgconfig.ValidatePositiveDuration(c.Fetch.RateLimitCooldown); err != nil {
		return fmt.Errorf("rate limit cooldown: %w", err)
	}
	if err := pkgconfig.ValidatePositiveDuration(c.Fetch.HistoryLookback); err != nil {
		return fmt.Errorf("history lookback: %w", err)
	}
	if err := pkgconfig.ValidateIntRange(c.Breaker.FailureThreshold, 1, 100); err != nil {
		return fmt.Errorf("breaker failure threshold: %w", err)
	}
	if err := pkgconfig.ValidatePositiveDuration(c.Breaker.OpenDuration); err != nil {
		return fmt.Errorf("breaker open duration: %w", err)
	}
	if err := pkgconfig.ValidateIntRange(c.Retry.MaxAttempts, 1, 10); err != nil {
		return fmt.Errorf("retry max attempts: %w", err)
	}
	return nil
}
