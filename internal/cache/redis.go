package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Wirlhawk/skillswap-sub000/config"
	"github.com/Wirlhawk/skillswap-sub000/internal/metrics"
	"github.com/Wirlhawk/skillswap-sub000/internal/models"
)

// ErrDisabled is returned by Get when caching is turned off
var ErrDisabled = errors.New("cache is disabled")

// RedisCache provides caching using Redis
type RedisCache struct {
	client   *redis.Client
	enabled  bool
	statsTTL time.Duration
}

// NewRedisCache creates a new Redis cache
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	if !cfg.Enabled {
		return &RedisCache{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	ttl := cfg.StatsTTL
	if ttl <= 0 {
		ttl = time.Minute
	}

	return &RedisCache{
		client:   client,
		enabled:  true,
		statsTTL: ttl,
	}, nil
}

// NewDisabledCache returns a cache that never stores anything
func NewDisabledCache() *RedisCache {
	return &RedisCache{enabled: false}
}

// Enabled reports whether values are actually cached
func (c *RedisCache) Enabled() bool {
	return c != nil && c.enabled
}

// Get retrieves a value from cache. A missing key reports found=false without error.
func (c *RedisCache) Get(ctx context.Context, key string, value interface{}) (bool, error) {
	if !c.Enabled() {
		return false, ErrDisabled
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, errors.Wrap(err, "failed to get value from Redis")
	}

	if err := json.Unmarshal(data, value); err != nil {
		return false, errors.Wrap(err, "failed to unmarshal cached value")
	}

	return true, nil
}

// Set stores a value in cache with optional expiration
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if !c.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to marshal value for caching")
	}

	if err := c.client.Set(ctx, key, data, expiration).Err(); err != nil {
		return errors.Wrap(err, "failed to set value in Redis")
	}

	return nil
}

// Delete removes keys from cache
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if !c.Enabled() || len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "failed to delete keys from Redis")
	}
	return nil
}

// GetStats returns cached order stats for a scope
func (c *RedisCache) GetStats(ctx context.Context, userID *uuid.UUID) (*models.OrderStats, bool, error) {
	if !c.Enabled() {
		return nil, false, nil
	}

	var stats models.OrderStats
	found, err := c.Get(ctx, GetStatsCacheKey(userID), &stats)
	if err != nil {
		return nil, false, err
	}
	metrics.RecordCacheLookup(found)
	if !found {
		return nil, false, nil
	}
	return &stats, true, nil
}

// SetStats caches order stats for a scope
func (c *RedisCache) SetStats(ctx context.Context, userID *uuid.UUID, stats *models.OrderStats) error {
	return c.Set(ctx, GetStatsCacheKey(userID), stats, c.statsTTL)
}

// InvalidateStats drops the global stats and the stats of every given user
func (c *RedisCache) InvalidateStats(ctx context.Context, userIDs ...uuid.UUID) error {
	keys := []string{GetStatsCacheKey(nil)}
	for i := range userIDs {
		if userIDs[i] == uuid.Nil {
			continue
		}
		keys = append(keys, GetStatsCacheKey(&userIDs[i]))
	}
	return c.Delete(ctx, keys...)
}

// GetStatsCacheKey generates a cache key for order stats, global when userID is nil
func GetStatsCacheKey(userID *uuid.UUID) string {
	if userID == nil {
		return "order_stats:all"
	}
	return fmt.Sprintf("order_stats:user:%s", userID.String())
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	if !c.Enabled() || c.client == nil {
		return nil
	}

	return c.client.Close()
}
