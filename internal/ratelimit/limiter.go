package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"trends-proxy/internal/common/logging"
)

// Config holds inbound rate limiting configuration. This limiter
// protects the proxy itself; the upstream quota window is governed
// separately.
type Config struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int

	// MaxKeys caps the tracked client count; CleanupPeriod bounds how
	// long an idle client's limiter is kept
	MaxKeys       int
	CleanupPeriod time.Duration
}

// DefaultConfig returns default inbound rate limiting configuration
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		RequestsPerSecond: 10,
		BurstSize:         20,
		MaxKeys:           10000,
		CleanupPeriod:     10 * time.Minute,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}
	if c.BurstSize <= 0 {
		return fmt.Errorf("burst size must be positive")
	}
	return nil
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// Limiter applies a per-client token bucket using golang.org/x/time/rate.
type Limiter struct {
	mu          sync.Mutex
	config      Config
	limiters    map[string]*limiterEntry
	lastCleanup time.Time
	logger      logging.Logger
}

// NewLimiter creates a new per-client rate limiter
func NewLimiter(config Config, logger logging.Logger) (*Limiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Limiter{
		config:      config,
		limiters:    make(map[string]*limiterEntry),
		lastCleanup: time.Now(),
		logger:      logger.WithFields(logging.Field{Key: "component", Value: "ratelimit"}),
	}, nil
}

// Allow reports whether the client identified by key may proceed, and
// how many tokens remain in its bucket.
func (l *Limiter) Allow(key string) (bool, int) {
	if !l.config.Enabled {
		return true, l.config.BurstSize
	}

	limiter := l.limiterForKey(key)
	allowed := limiter.Allow()

	remaining := int(limiter.Tokens())
	if remaining < 0 {
		remaining = 0
	}
	return allowed, remaining
}

func (l *Limiter) limiterForKey(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastCleanup) > l.config.CleanupPeriod {
		l.cleanup()
	}

	entry, exists := l.limiters[key]
	if !exists {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(l.config.RequestsPerSecond), l.config.BurstSize),
		}
		l.limiters[key] = entry

		if len(l.limiters) > l.config.MaxKeys {
			l.cleanup()
		}
	}
	entry.lastUsed = time.Now()

	return entry.limiter
}

// cleanup removes limiters that haven't been used recently. Caller
// holds the mutex.
func (l *Limiter) cleanup() {
	cutoff := time.Now().Add(-l.config.CleanupPeriod)

	for key, entry := range l.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(l.limiters, key)
		}
	}

	l.lastCleanup = time.Now()
}

// HTTPMiddleware enforces the limit per request key and sets the
// standard X-RateLimit headers.
func (l *Limiter) HTTPMiddleware(keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, remaining := l.Allow(key)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.config.BurstSize))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				l.logger.Warn("client rate limited", logging.String("key", key))
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// IPBasedKey derives the limiter key from the client address, honoring
// proxy headers when present.
func IPBasedKey(r *http.Request) string {
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.Header.Get("X-Real-IP")
	}
	if ip == "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip = host
	}
	return fmt.Sprintf("ip:%s", ip)
}
