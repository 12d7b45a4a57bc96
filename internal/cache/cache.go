package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"

	"trends-proxy/internal/trends"
)

// Cache stores analyzed trend results so repeat lookups skip the
// upstream round trip entirely.
type Cache interface {
	Get(ctx context.Context, key string) (trends.Result, bool)
	Set(ctx context.Context, key string, result trends.Result, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Key builds the cache key for a trend request. Keyword casing is
// preserved; two requests differing only in timeframe or geo never
// collide.
func Key(req trends.Request) string {
	return strings.Join([]string{req.Keyword, req.Timeframe, req.Geo}, "|")
}

// LocalCache wraps patrickmn/go-cache for in-memory caching
type LocalCache struct {
	cache *gocache.Cache
}

// NewLocalCache creates a new local cache instance
func NewLocalCache(defaultTTL, cleanupInterval time.Duration) *LocalCache {
	return &LocalCache{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get retrieves a result from the local cache
func (l *LocalCache) Get(ctx context.Context, key string) (trends.Result, bool) {
	val, found := l.cache.Get(key)
	if !found {
		return trends.Result{}, false
	}
	result, ok := val.(trends.Result)
	if !ok {
		return trends.Result{}, false
	}
	return result, true
}

// Set stores a result in the local cache
func (l *LocalCache) Set(ctx context.Context, key string, result trends.Result, ttl time.Duration) error {
	l.cache.Set(key, result, ttl)
	return nil
}

// Delete removes a result from the local cache
func (l *LocalCache) Delete(ctx context.Context, key string) error {
	l.cache.Delete(key)
	return nil
}

// Clear removes all items from the local cache
func (l *LocalCache) Clear(ctx context.Context) error {
	l.cache.Flush()
	return nil
}

// RedisCache wraps go-redis for distributed caching, so multiple proxy
// instances share one result set and one quota budget.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(client *redis.Client, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "trends:"
	}
	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Get retrieves a result from Redis
func (r *RedisCache) Get(ctx context.Context, key string) (trends.Result, bool) {
	val, err := r.client.Get(ctx, r.keyPrefix+key).Result()
	if err != nil {
		return trends.Result{}, false
	}

	var result trends.Result
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return trends.Result{}, false
	}
	return result, true
}

// Set stores a result in Redis
func (r *RedisCache) Set(ctx context.Context, key string, result trends.Result, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.keyPrefix+key, data, ttl).Err()
}

// Delete removes a result from Redis
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.keyPrefix+key).Err()
}

// Clear removes all cached results with the key prefix from Redis
func (r *RedisCache) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.keyPrefix+"*", 0).Iterator()
	var keys []string

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return err
	}

	if len(keys) > 0 {
		return r.client.Del(ctx, keys...).Err()
	}

	return nil
}
