package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foncier/backend/internal/domain/geo"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultTTL             = 15 * time.Minute
	defaultCleanupInterval = 30 * time.Second
)

// MemoryStatsCache keeps district statistics in process memory.
// It is the L1 tier of TieredStatsCache and the whole cache for single-instance deployments.
type MemoryStatsCache struct {
	entries         sync.Map // map[uuid.UUID]*cacheEntry
	ttl             time.Duration
	cleanupInterval time.Duration
	logger          *zap.Logger
	stopCh          chan struct{}
	stopped         int32

	hits   int64
	misses int64
}

type cacheEntry struct {
	value     geo.DistrictStats
	expiresAt time.Time
}

func (e *cacheEntry) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// MemoryStatsCacheOption configures a MemoryStatsCache
type MemoryStatsCacheOption func(*MemoryStatsCache)

// WithMemoryTTL sets the entry lifetime
func WithMemoryTTL(ttl time.Duration) MemoryStatsCacheOption {
	return func(c *MemoryStatsCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCleanupInterval sets how often expired entries are purged
func WithCleanupInterval(d time.Duration) MemoryStatsCacheOption {
	return func(c *MemoryStatsCache) {
		if d > 0 {
			c.cleanupInterval = d
		}
	}
}

// WithMemoryLogger sets the logger
func WithMemoryLogger(logger *zap.Logger) MemoryStatsCacheOption {
	return func(c *MemoryStatsCache) {
		c.logger = logger
	}
}

// NewMemoryStatsCache creates the in-memory cache and starts its cleanup goroutine
func NewMemoryStatsCache(opts ...MemoryStatsCacheOption) *MemoryStatsCache {
	c := &MemoryStatsCache{
		ttl:             defaultTTL,
		cleanupInterval: defaultCleanupInterval,
		logger:          zap.NewNop(),
		stopCh:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.cleanupExpired()
	return c
}

// Get returns a copy of the cached entry, or nil on a miss
func (c *MemoryStatsCache) Get(ctx context.Context, districtID uuid.UUID) (*geo.DistrictStats, error) {
	if value, ok := c.entries.Load(districtID); ok {
		entry := value.(*cacheEntry)
		if !entry.isExpired() {
			atomic.AddInt64(&c.hits, 1)
			stats := entry.value
			return &stats, nil
		}
		c.entries.CompareAndDelete(districtID, value)
	}
	atomic.AddInt64(&c.misses, 1)
	return nil, nil
}

// Set stores a copy of stats under its district id
func (c *MemoryStatsCache) Set(ctx context.Context, stats *geo.DistrictStats) error {
	return c.SetWithTTL(ctx, stats, c.ttl)
}

// SetWithTTL stores stats with an explicit lifetime
func (c *MemoryStatsCache) SetWithTTL(_ context.Context, stats *geo.DistrictStats, ttl time.Duration) error {
	if stats == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.entries.Store(stats.DistrictID, &cacheEntry{
		value:     *stats,
		expiresAt: time.Now().Add(ttl),
	})
	return nil
}

// Invalidate removes the district entry
func (c *MemoryStatsCache) Invalidate(_ context.Context, districtID uuid.UUID) error {
	c.entries.Delete(districtID)
	c.logger.Debug("Invalidated district stats in L1", zap.String("district_id", districtID.String()))
	return nil
}

// InvalidateAll drops every entry
func (c *MemoryStatsCache) InvalidateAll(_ context.Context) error {
	c.entries.Range(func(key, _ any) bool {
		c.entries.Delete(key)
		return true
	})
	return nil
}

// Close stops the cleanup goroutine
func (c *MemoryStatsCache) Close() error {
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.stopCh)
	}
	return nil
}

// GetStats returns hit and miss counters
func (c *MemoryStatsCache) GetStats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Count returns the number of stored entries, expired ones included
func (c *MemoryStatsCache) Count() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (c *MemoryStatsCache) cleanupExpired() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						c.logger.Error("Panic in cache cleanup", zap.Any("panic", r))
					}
				}()
				c.doCleanup()
			}()
		}
	}
}

func (c *MemoryStatsCache) doCleanup() {
	removed := 0
	c.entries.Range(func(key, value any) bool {
		if value.(*cacheEntry).isExpired() {
			c.entries.CompareAndDelete(key, value)
			removed++
		}
		return true
	})
	if removed > 0 {
		c.logger.Debug("Cleaned up expired district stats", zap.Int("removed", removed))
	}
}

var _ geo.StatsCache = (*MemoryStatsCache)(nil)
