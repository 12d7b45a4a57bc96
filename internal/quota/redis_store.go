package quota

import (
	"context"
	"time"

	"trends-proxy/internal/redis"
)

// redisStore shares one quota window across process instances through a
// Redis fixed-window counter. Horizontally scaled replicas all draw from
// the same upstream budget.
type redisStore struct {
	client   *redis.Client
	key      string
	capacity int
	window   time.Duration
}

// NewRedisStore creates a Redis-backed quota window store.
func NewRedisStore(client *redis.Client, keyPrefix string, capacity int, window time.Duration) Store {
	if keyPrefix == "" {
		keyPrefix = "quota:"
	}
	return &redisStore{
		client:   client,
		key:      keyPrefix + "upstream_window",
		capacity: capacity,
		window:   window,
	}
}

func (s *redisStore) Consume(ctx context.Context) (int, bool, time.Duration, error) {
	used, allowed, retryAfter, err := s.client.ConsumeWindow(ctx, s.key, s.capacity, s.window)
	if err != nil {
		return 0, false, 0, err
	}
	return used, allowed, retryAfter, nil
}

func (s *redisStore) Usage(ctx context.Context) (Usage, error) {
	used, resetIn, err := s.client.WindowUsage(ctx, s.key, s.capacity, s.window)
	if err != nil {
		return Usage{}, err
	}
	return Usage{
		Used:     used,
		Capacity: s.capacity,
		ResetIn:  resetIn,
	}, nil
}
