package cache

import (
	"context"
	"fmt"

	"github.com/foncier/backend/internal/domain/geo"
	"github.com/foncier/backend/internal/domain/shared"
	"github.com/foncier/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store is a district statistics cache owned by the process
type Store interface {
	geo.StatsCache
	Close() error
}

// Subscriber is implemented by stores that listen for peer invalidations
type Subscriber interface {
	StartInvalidationSubscription(ctx context.Context) error
}

// New builds the store selected by cache.backend. client may be nil for the memory backend.
func New(cfg config.CacheConfig, client *redis.Client, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("cache")

	memory := func() *MemoryStatsCache {
		return NewMemoryStatsCache(
			WithMemoryTTL(cfg.TTL),
			WithCleanupInterval(cfg.CleanupInterval),
			WithMemoryLogger(logger),
		)
	}

	switch cfg.Backend {
	case "", "memory":
		return memory(), nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("cache backend redis requires a redis client")
		}
		return NewRedisStatsCache(client, cfg.KeyPrefix, cfg.TTL), nil
	case "tiered":
		if client == nil {
			return nil, fmt.Errorf("cache backend tiered requires a redis client")
		}
		invalidator := NewRedisInvalidator(client,
			WithChannel(cfg.Channel),
			WithInvalidatorLogger(logger))
		return NewTieredStatsCache(memory(), NewRedisStatsCache(client, cfg.KeyPrefix, cfg.TTL), invalidator, logger), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// NewIdempotencyStore shares processed event ids through Redis when a client
// is available and keeps them in process otherwise
func NewIdempotencyStore(client *redis.Client) shared.IdempotencyStore {
	if client == nil {
		return NewInMemoryIdempotencyStore(0)
	}
	return NewRedisIdempotencyStore(client, "")
}
