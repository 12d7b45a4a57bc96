package quota

import (
	"context"
	"math/rand"
	"time"

	"trends-proxy/internal/common/logging"
)

// Config holds governor settings.
type Config struct {
	// Capacity is the number of upstream requests permitted per window
	Capacity int
	// Window is the quota window duration
	Window time.Duration
	// DelayMin and DelayMax bound the randomized pacing delay applied to
	// admitted requests
	DelayMin time.Duration
	DelayMax time.Duration
}

// DefaultConfig returns governor defaults matching an hourly budget of 80
// requests with 3-7s pacing between them.
func DefaultConfig() Config {
	return Config{
		Capacity: 80,
		Window:   time.Hour,
		DelayMin: 3 * time.Second,
		DelayMax: 7 * time.Second,
	}
}

// Decision is the outcome of an admission check.
type Decision struct {
	// Allowed reports whether the request may proceed upstream
	Allowed bool
	// Delay is the pacing delay the caller must wait before fetching.
	// Only set on allowed decisions; the governor never sleeps itself.
	Delay time.Duration
	// RetryAfter is how long until the window resets. Only set on rejections.
	RetryAfter time.Duration
	// Used is the consumed count after this decision
	Used int
	// Capacity echoes the window capacity for convenience
	Capacity int
}

// Governor decides, per request, whether the upstream quota admits it.
// It owns no timing itself: pacing delays are returned to the caller so
// the store's critical section never spans a sleep.
type Governor struct {
	store  Store
	config Config
	logger logging.Logger

	// randFloat is injectable so tests can pin the pacing delay
	randFloat func() float64
}

// NewGovernor creates a governor over the given store.
func NewGovernor(store Store, config Config, logger logging.Logger) *Governor {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Governor{
		store:     store,
		config:    config,
		logger:    logger.WithFields(logging.Field{Key: "component", Value: "quota"}),
		randFloat: rng.Float64,
	}
}

// Admit checks the quota window and either admits the request with a pacing
// delay or rejects it with the time until the window resets. Rejection is
// surfaced to the caller as a retryable-later condition, never retried here.
func (g *Governor) Admit(ctx context.Context) (Decision, error) {
	used, allowed, retryAfter, err := g.store.Consume(ctx)
	if err != nil {
		return Decision{}, err
	}

	if !allowed {
		g.logger.Warn("Quota window exhausted",
			logging.Int("used", used),
			logging.Int("capacity", g.config.Capacity),
			logging.Duration("retry_after", retryAfter),
		)
		return Decision{
			Allowed:    false,
			RetryAfter: retryAfter,
			Used:       used,
			Capacity:   g.config.Capacity,
		}, nil
	}

	delay := g.pacingDelay()
	g.logger.Debug("Request admitted",
		logging.Int("used", used),
		logging.Int("capacity", g.config.Capacity),
		logging.Duration("pacing_delay", delay),
	)

	return Decision{
		Allowed:  true,
		Delay:    delay,
		Used:     used,
		Capacity: g.config.Capacity,
	}, nil
}

// Usage reports the current window consumption without consuming a slot.
func (g *Governor) Usage(ctx context.Context) (Usage, error) {
	return g.store.Usage(ctx)
}

// pacingDelay draws a uniform delay from the configured range.
func (g *Governor) pacingDelay() time.Duration {
	if g.config.DelayMax <= g.config.DelayMin {
		return g.config.DelayMin
	}
	spread := g.config.DelayMax - g.config.DelayMin
	return g.config.DelayMin + time.Duration(g.randFloat()*float64(spread))
}
