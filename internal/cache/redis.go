package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/neuroscreen-fusion-server/internal/domain"
)

// RedisCache shares outcomes between service replicas.
type RedisCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// cachedOutcome represents a cached outcome with metadata
type cachedOutcome struct {
	Outcome   domain.FusionOutcomeView `json:"outcome"`
	CachedAt  time.Time                `json:"cached_at"`
	ExpiresAt time.Time                `json:"expires_at"`
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(config domain.CacheConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheFromClient(client, config.DefaultTTL), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, defaultTTL time.Duration) *RedisCache {
	return &RedisCache{redis: client, defaultTTL: defaultTTL}
}

// Get retrieves a cached outcome. Corrupt or stale entries are removed and
// reported as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) (*domain.FusionOutcome, bool, error) {
	val, err := c.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached outcome: %w", err)
	}

	var cached cachedOutcome
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}
	if !cached.ExpiresAt.IsZero() && time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Outcome.Outcome(), true, nil
}

// Set caches an outcome. A zero ttl uses the configured default.
func (c *RedisCache) Set(ctx context.Context, key string, outcome *domain.FusionOutcome, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	now := time.Now()
	cached := cachedOutcome{Outcome: outcome.View(), CachedAt: now}
	if ttl > 0 {
		cached.ExpiresAt = now.Add(ttl)
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal cached outcome: %w", err)
	}
	return c.redis.Set(ctx, key, data, ttl).Err()
}

// Ping checks connectivity for health reporting.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.redis.Close()
}
