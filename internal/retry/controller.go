// Package retry wraps single upstream fetches with a bounded, fixed-delay
// retry policy. Delays never grow between attempts.
package retry

import (
	"context"
	"fmt"
	"time"

	"trends-proxy/internal/common/errors"
	"trends-proxy/internal/common/logging"
	"trends-proxy/internal/trends"
)

// Fetcher performs one opaque call to the external provider for a single
// keyword/timeframe/region triple.
type Fetcher interface {
	Fetch(ctx context.Context, req trends.Request) (trends.Series, error)
}

// Config holds the retry policy.
type Config struct {
	// MaxAttempts caps total attempts, including the first
	MaxAttempts int
	// ThrottleCooldown is the wait after the provider signals throttling
	ThrottleCooldown time.Duration
	// TransientBackoff is the wait after any other transient failure
	TransientBackoff time.Duration
}

// DefaultConfig returns the standard policy: 3 attempts, 30s throttle
// cooldown, 5s transient backoff.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:      3,
		ThrottleCooldown: 30 * time.Second,
		TransientBackoff: 5 * time.Second,
	}
}

// Controller retries upstream fetches according to Config.
type Controller struct {
	fetcher Fetcher
	config  Config
	logger  logging.Logger

	// sleep is injectable so tests never wait wall-clock cooldowns
	sleep func(ctx context.Context, d time.Duration) error
}

// NewController creates a retry controller around the given fetcher.
func NewController(fetcher Fetcher, config Config, logger logging.Logger) *Controller {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Controller{
		fetcher: fetcher,
		config:  config,
		logger:  logger.WithFields(logging.Field{Key: "component", Value: "retry"}),
		sleep:   sleepContext,
	}
}

// FetchWithRetry performs up to MaxAttempts fetches for the request.
// Throttling responses wait the fixed cooldown between attempts; transient
// failures wait the shorter fixed backoff. A successful fetch with an empty
// series is a valid result, not a failure. Non-transient errors abort
// immediately.
func (c *Controller) FetchWithRetry(ctx context.Context, req trends.Request) (trends.Series, error) {
	var lastErr error

	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		series, err := c.fetcher.Fetch(ctx, req)
		if err == nil {
			return series, nil
		}
		lastErr = err

		switch {
		case errors.IsType(err, errors.ErrTypeUpstreamThrottled):
			if attempt == c.config.MaxAttempts {
				return nil, errors.UpstreamRateLimitedError(c.config.ThrottleCooldown, err)
			}
			c.logger.Warn("Upstream throttled, cooling down",
				logging.String("keyword", req.Keyword),
				logging.Int("attempt", attempt),
				logging.Duration("cooldown", c.config.ThrottleCooldown),
			)
			if serr := c.sleep(ctx, c.config.ThrottleCooldown); serr != nil {
				return nil, serr
			}

		case isTransient(err):
			if attempt == c.config.MaxAttempts {
				return nil, errors.UpstreamUnavailableError(
					fmt.Sprintf("upstream fetch failed after %d attempts", c.config.MaxAttempts), err)
			}
			c.logger.Warn("Upstream fetch failed, backing off",
				logging.String("keyword", req.Keyword),
				logging.Int("attempt", attempt),
				logging.Err(err),
			)
			if serr := c.sleep(ctx, c.config.TransientBackoff); serr != nil {
				return nil, serr
			}

		default:
			// Validation and other hard failures are not worth retrying
			return nil, err
		}
	}

	// Unreachable: every exit path above returns
	return nil, lastErr
}

// isTransient reports whether an error kind is worth another attempt.
func isTransient(err error) bool {
	switch errors.GetType(err) {
	case errors.ErrTypeConnection, errors.ErrTypeTimeout, errors.ErrTypeInternal:
		return true
	}
	return false
}

// sleepContext waits for the duration or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("retry cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
