package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb    *redis.Client
	config *Config
}

type Config struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	if config.Address == "" {
		config.Address = "localhost:6379"
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{
		rdb:    rdb,
		config: config,
	}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

// RDB exposes the underlying go-redis client for components that need it directly.
func (c *Client) RDB() *redis.Client {
	return c.rdb
}

// Quota window methods

// ConsumeWindow consumes one slot from a fixed quota window shared across
// process instances. It returns the consumed count, whether the request was
// admitted, and on rejection how long until the window expires.
func (c *Client) ConsumeWindow(ctx context.Context, key string, capacity int, window time.Duration) (int, bool, time.Duration, error) {
	used, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, false, 0, fmt.Errorf("failed to consume quota window: %w", err)
	}

	// First consumer of the window owns setting its expiry
	if used == 1 {
		if err := c.rdb.Expire(ctx, key, window).Err(); err != nil {
			return 0, false, 0, fmt.Errorf("failed to set quota window expiry: %w", err)
		}
	}

	if int(used) > capacity {
		retryAfter, err := c.rdb.PTTL(ctx, key).Result()
		if err != nil {
			return capacity, false, 0, fmt.Errorf("failed to read quota window expiry: %w", err)
		}
		if retryAfter <= 0 {
			retryAfter = window
		}
		return capacity, false, retryAfter, nil
	}

	return int(used), true, 0, nil
}

// WindowUsage reports the current consumption of a quota window without mutating it.
func (c *Client) WindowUsage(ctx context.Context, key string, capacity int, window time.Duration) (int, time.Duration, error) {
	used, err := c.rdb.Get(ctx, key).Int()
	if err == redis.Nil {
		return 0, window, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read quota window: %w", err)
	}

	resetIn, err := c.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read quota window expiry: %w", err)
	}
	if resetIn <= 0 {
		resetIn = window
	}

	if used > capacity {
		used = capacity
	}
	return used, resetIn, nil
}
