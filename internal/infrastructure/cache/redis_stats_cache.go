package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/foncier/backend/internal/domain/geo"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "foncier:geo:district:"

// RedisStatsCache stores district statistics as JSON in Redis, shared across instances
type RedisStatsCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStatsCache creates a Redis-backed cache on an existing client.
// The caller keeps ownership of the client.
func NewRedisStatsCache(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisStatsCache {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStatsCache{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (c *RedisStatsCache) key(districtID uuid.UUID) string {
	return c.keyPrefix + districtID.String()
}

// Get returns the cached entry or nil on a miss
func (c *RedisStatsCache) Get(ctx context.Context, districtID uuid.UUID) (*geo.DistrictStats, error) {
	data, err := c.client.Get(ctx, c.key(districtID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read district stats: %w", err)
	}

	var stats geo.DistrictStats
	if err := json.Unmarshal(data, &stats); err != nil {
		// A corrupt entry is treated as a miss and dropped
		_ = c.client.Del(ctx, c.key(districtID)).Err()
		return nil, nil
	}
	return &stats, nil
}

// Set stores stats under its district id with the configured TTL
func (c *RedisStatsCache) Set(ctx context.Context, stats *geo.DistrictStats) error {
	if stats == nil {
		return nil
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal district stats: %w", err)
	}
	if err := c.client.Set(ctx, c.key(stats.DistrictID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write district stats: %w", err)
	}
	return nil
}

// Invalidate deletes the district entry; DEL on a missing key is a no-op
func (c *RedisStatsCache) Invalidate(ctx context.Context, districtID uuid.UUID) error {
	if err := c.client.Del(ctx, c.key(districtID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate district stats: %w", err)
	}
	return nil
}

// Close is a no-op; the client is shared
func (c *RedisStatsCache) Close() error {
	return nil
}

var _ geo.StatsCache = (*RedisStatsCache)(nil)
