package lock

import (
	"fmt"

	"github.com/foncier/backend/internal/domain/shared"
	"github.com/foncier/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// New builds the keyed locker selected by numbering.lock_backend
func New(cfg config.NumberingConfig, client *redis.Client, logger *zap.Logger) (shared.KeyedLocker, error) {
	switch cfg.LockBackend {
	case "", "local":
		return NewLocalLocker(), nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("lock backend redis requires a redis client")
		}
		return NewRedisLocker(client, cfg.LockTTL, WithLogger(logger.Named("lock"))), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.LockBackend)
	}
}
