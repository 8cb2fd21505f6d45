package cache

import (
	"context"
	"sync/atomic"

	"github.com/foncier/backend/internal/domain/geo"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TieredStatsCache puts the in-memory cache (L1) in front of Redis (L2).
// Invalidations delete both tiers and are broadcast so peers drop their L1 copy.
type TieredStatsCache struct {
	l1          *MemoryStatsCache
	l2          *RedisStatsCache
	invalidator *RedisInvalidator
	logger      *zap.Logger

	l1Hits   int64
	l2Hits   int64
	l2Misses int64
}

// NewTieredStatsCache assembles the tiers. invalidator may be nil for a single instance.
func NewTieredStatsCache(l1 *MemoryStatsCache, l2 *RedisStatsCache, invalidator *RedisInvalidator, logger *zap.Logger) *TieredStatsCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TieredStatsCache{l1: l1, l2: l2, invalidator: invalidator, logger: logger}
}

// StartInvalidationSubscription listens for peer invalidations until ctx ends
func (c *TieredStatsCache) StartInvalidationSubscription(ctx context.Context) error {
	if c.invalidator == nil {
		return nil
	}
	return c.invalidator.Subscribe(ctx, func(msg InvalidationMessage) {
		_ = c.l1.Invalidate(context.Background(), msg.DistrictID)
	})
}

// Get reads L1 then L2, populating L1 on an L2 hit
func (c *TieredStatsCache) Get(ctx context.Context, districtID uuid.UUID) (*geo.DistrictStats, error) {
	if stats, _ := c.l1.Get(ctx, districtID); stats != nil {
		atomic.AddInt64(&c.l1Hits, 1)
		return stats, nil
	}

	stats, err := c.l2.Get(ctx, districtID)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		atomic.AddInt64(&c.l2Misses, 1)
		return nil, nil
	}
	atomic.AddInt64(&c.l2Hits, 1)
	_ = c.l1.Set(ctx, stats)
	return stats, nil
}

// Set writes L2 then L1
func (c *TieredStatsCache) Set(ctx context.Context, stats *geo.DistrictStats) error {
	if err := c.l2.Set(ctx, stats); err != nil {
		return err
	}
	return c.l1.Set(ctx, stats)
}

// Invalidate deletes the entry from both tiers and notifies peers.
// L1 is always dropped, even when the L2 delete fails. A failed broadcast is
// logged; peers converge when their L1 TTL expires.
func (c *TieredStatsCache) Invalidate(ctx context.Context, districtID uuid.UUID) error {
	_ = c.l1.Invalidate(ctx, districtID)
	if err := c.l2.Invalidate(ctx, districtID); err != nil {
		return err
	}

	if c.invalidator != nil {
		if err := c.invalidator.Publish(ctx, districtID); err != nil {
			c.logger.Warn("Failed to broadcast district invalidation",
				zap.String("district_id", districtID.String()),
				zap.Error(err))
		}
	}
	return nil
}

// Stats returns L1 hits, L2 hits and final misses
func (c *TieredStatsCache) Stats() (l1Hits, l2Hits, misses int64) {
	return atomic.LoadInt64(&c.l1Hits), atomic.LoadInt64(&c.l2Hits), atomic.LoadInt64(&c.l2Misses)
}

// Close stops the subscription and the L1 cleanup goroutine
func (c *TieredStatsCache) Close() error {
	var lastErr error
	if c.invalidator != nil {
		if err := c.invalidator.Close(); err != nil {
			lastErr = err
		}
	}
	if err := c.l1.Close(); err != nil {
		lastErr = err
	}
	return lastErr
}

var _ geo.StatsCache = (*TieredStatsCache)(nil)
