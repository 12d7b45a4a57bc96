// Package config provides configuration management for the trends proxy.
// It loads configuration from environment variables with sensible defaults
// and validates the result so the process fails fast on bad settings.
//
// Environment Variables:
//
// Application settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//
// Upstream provider:
//   - UPSTREAM_BASE_URL: Base URL of the trends data provider (required)
//   - UPSTREAM_TIMEOUT: Per-request timeout (default: 30s)
//   - UPSTREAM_MAX_RPS: Request-rate floor below the quota window,
//     0 disables smoothing (default: 1)
//
// Upstream quota (the hourly request budget against the provider):
//   - QUOTA_CAPACITY: Requests permitted per window (default: 80)
//   - QUOTA_WINDOW: Window duration (default: 1h)
//   - QUOTA_BACKEND: "memory" or "redis" (default: memory)
//   - ADMIT_DELAY_MIN / ADMIT_DELAY_MAX: Pacing delay range applied to
//     admitted requests (defaults: 3s / 7s)
//
// Retry policy for upstream fetches:
//   - RETRY_MAX_ATTEMPTS: Attempts per fetch, including the first (default: 3)
//   - RETRY_THROTTLE_COOLDOWN: Wait after an upstream throttle signal (default: 30s)
//   - RETRY_TRANSIENT_BACKOFF: Wait after a transient failure (default: 5s)
//
// Batch requests:
//   - BATCH_MAX_KEYWORDS: Keywords accepted per batch call (default: 3)
//   - BATCH_DELAY_MIN / BATCH_DELAY_MAX: Pacing between batch items
//     (defaults: 5s / 15s)
//
// Result cache:
//   - CACHE_ENABLED: Cache analyzed results (default: true)
//   - CACHE_TTL: Result lifetime (default: 15m)
//   - CACHE_BACKEND: "local" or "redis" (default: local)
//
// Redis (only needed when a redis backend is selected):
//   - REDIS_ADDRESS, REDIS_PASSWORD, REDIS_DB, REDIS_POOL_SIZE
//
// Inbound API rate limiting:
//   - RATE_LIMIT_ENABLED: Per-IP limiting on the API routes (default: true)
//   - RATE_LIMIT_RPS: Requests per second per IP (default: 10)
//   - RATE_LIMIT_BURST: Burst size per IP (default: 20)
//
// Request defaults:
//   - DEFAULT_TIMEFRAME: Lookback window when the caller omits one (default: "today 3-m")
//   - DEFAULT_GEO: Country code when the caller omits one (default: "US")
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"trends-proxy/internal/trends"
)

// Config holds all configuration values for the trends proxy. All fields
// correspond to environment variables that can override the defaults.
// Load() fills it in; Validate() must pass before use.
type Config struct {
	// Application settings
	Port     string
	LogLevel string

	// Upstream provider
	UpstreamBaseURL string
	UpstreamTimeout time.Duration
	UpstreamMaxRPS  float64

	// Upstream quota window
	QuotaCapacity int
	QuotaWindow   time.Duration
	QuotaBackend  string
	AdmitDelayMin time.Duration
	AdmitDelayMax time.Duration

	// Retry policy
	RetryMaxAttempts      int
	RetryThrottleCooldown time.Duration
	RetryTransientBackoff time.Duration

	// Batch requests
	BatchMaxKeywords int
	BatchDelayMin    time.Duration
	BatchDelayMax    time.Duration

	// Result cache
	CacheEnabled bool
	CacheTTL     time.Duration
	CacheBackend string

	// Redis connection
	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int

	// Inbound API rate limiting
	RateLimitEnabled bool
	RateLimitRPS     int
	RateLimitBurst   int

	// Request defaults
	DefaultTimeframe string
	DefaultGeo       string
}

// Load creates a new Config instance with values loaded from environment
// variables. It does not validate; call Validate() on the result.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		UpstreamBaseURL: getEnv("UPSTREAM_BASE_URL", ""),
		UpstreamTimeout: getDurationEnv("UPSTREAM_TIMEOUT", 30*time.Second),
		UpstreamMaxRPS:  getFloatEnv("UPSTREAM_MAX_RPS", 1),

		QuotaCapacity: getIntEnv("QUOTA_CAPACITY", 80),
		QuotaWindow:   getDurationEnv("QUOTA_WINDOW", time.Hour),
		QuotaBackend:  getEnv("QUOTA_BACKEND", "memory"),
		AdmitDelayMin: getDurationEnv("ADMIT_DELAY_MIN", 3*time.Second),
		AdmitDelayMax: getDurationEnv("ADMIT_DELAY_MAX", 7*time.Second),

		RetryMaxAttempts:      getIntEnv("RETRY_MAX_ATTEMPTS", 3),
		RetryThrottleCooldown: getDurationEnv("RETRY_THROTTLE_COOLDOWN", 30*time.Second),
		RetryTransientBackoff: getDurationEnv("RETRY_TRANSIENT_BACKOFF", 5*time.Second),

		BatchMaxKeywords: getIntEnv("BATCH_MAX_KEYWORDS", 3),
		BatchDelayMin:    getDurationEnv("BATCH_DELAY_MIN", 5*time.Second),
		BatchDelayMax:    getDurationEnv("BATCH_DELAY_MAX", 15*time.Second),

		CacheEnabled: getBoolEnv("CACHE_ENABLED", true),
		CacheTTL:     getDurationEnv("CACHE_TTL", 15*time.Minute),
		CacheBackend: getEnv("CACHE_BACKEND", "local"),

		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		RedisPoolSize: getIntEnv("REDIS_POOL_SIZE", 10),

		RateLimitEnabled: getBoolEnv("RATE_LIMIT_ENABLED", true),
		RateLimitRPS:     getIntEnv("RATE_LIMIT_RPS", 10),
		RateLimitBurst:   getIntEnv("RATE_LIMIT_BURST", 20),

		DefaultTimeframe: getEnv("DEFAULT_TIMEFRAME", "today 3-m"),
		DefaultGeo:       getEnv("DEFAULT_GEO", "US"),
	}
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv retrieves a boolean environment variable value or returns a default value.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getIntEnv retrieves an integer environment variable value or returns a default value.
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getFloatEnv retrieves a float environment variable value or returns a default value.
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv retrieves a duration environment variable value or returns a default value.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate checks that required fields are present and all values are usable.
// The application should call this after Load and before starting.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	if c.UpstreamBaseURL == "" {
		return fmt.Errorf("UPSTREAM_BASE_URL environment variable is required")
	}
	if u, err := url.Parse(c.UpstreamBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("UPSTREAM_BASE_URL must be an absolute URL")
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive")
	}
	if c.UpstreamMaxRPS < 0 {
		return fmt.Errorf("UPSTREAM_MAX_RPS must not be negative")
	}

	if c.QuotaCapacity < 1 {
		return fmt.Errorf("QUOTA_CAPACITY must be a positive number")
	}
	if c.QuotaWindow <= 0 {
		return fmt.Errorf("QUOTA_WINDOW must be a positive duration")
	}
	switch c.QuotaBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("QUOTA_BACKEND must be 'memory' or 'redis'")
	}
	if c.AdmitDelayMin < 0 || c.AdmitDelayMax < c.AdmitDelayMin {
		return fmt.Errorf("ADMIT_DELAY_MIN/ADMIT_DELAY_MAX must form a non-negative range")
	}

	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if c.RetryThrottleCooldown < 0 || c.RetryTransientBackoff < 0 {
		return fmt.Errorf("retry delays must not be negative")
	}

	if c.BatchMaxKeywords < 1 {
		return fmt.Errorf("BATCH_MAX_KEYWORDS must be at least 1")
	}
	if c.BatchDelayMin < 0 || c.BatchDelayMax < c.BatchDelayMin {
		return fmt.Errorf("BATCH_DELAY_MIN/BATCH_DELAY_MAX must form a non-negative range")
	}

	if c.CacheEnabled {
		if c.CacheTTL <= 0 {
			return fmt.Errorf("CACHE_TTL must be a positive duration")
		}
		switch c.CacheBackend {
		case "local", "redis":
		default:
			return fmt.Errorf("CACHE_BACKEND must be 'local' or 'redis'")
		}
	}

	if c.NeedsRedis() {
		if c.RedisAddress == "" {
			return fmt.Errorf("REDIS_ADDRESS is required when a redis backend is selected")
		}
		if c.RedisDB < 0 || c.RedisDB > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if c.RedisPoolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
	}

	if c.RateLimitEnabled {
		if c.RateLimitRPS < 1 {
			return fmt.Errorf("RATE_LIMIT_RPS must be a positive number")
		}
		if c.RateLimitBurst < 1 {
			return fmt.Errorf("RATE_LIMIT_BURST must be a positive number")
		}
	}

	if !trends.IsSupportedTimeframe(c.DefaultTimeframe) {
		return fmt.Errorf("DEFAULT_TIMEFRAME must be one of %v", trends.SupportedTimeframes)
	}
	if c.DefaultGeo == "" {
		return fmt.Errorf("DEFAULT_GEO must not be empty")
	}

	return nil
}

// NeedsRedis reports whether any configured backend requires a Redis connection.
func (c *Config) NeedsRedis() bool {
	return c.QuotaBackend == "redis" || (c.CacheEnabled && c.CacheBackend == "redis")
}
