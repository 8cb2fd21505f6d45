// Package redisconn opens the shared Redis client used by the keyed lock and
// the district statistics cache.
package redisconn

import (
	"context"
	"fmt"
	"time"

	"github.com/foncier/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// New connects to Redis and verifies the connection with a ping
func New(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Required reports whether any configured backend needs Redis
func Required(cfg *config.Config) bool {
	return cfg.Numbering.LockBackend == "redis" || cfg.Cache.Backend == "redis" || cfg.Cache.Backend == "tiered"
}
