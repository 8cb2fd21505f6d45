package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foncier/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultKeyPrefix    = "foncier:lock:"
	defaultPollInterval = 20 * time.Millisecond
	maxPollInterval     = 200 * time.Millisecond
	releaseTimeout      = 2 * time.Second
)

// releaseScript deletes the key only when it still holds our token, so a
// holder whose TTL expired never frees a lock taken over by someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a token lock built on SET NX PX for multi-instance deployments
type RedisLocker struct {
	client       *redis.Client
	keyPrefix    string
	ttl          time.Duration
	pollInterval time.Duration
	logger       *zap.Logger
}

// RedisLockerOption configures a RedisLocker
type RedisLockerOption func(*RedisLocker)

// WithKeyPrefix sets the Redis key prefix
func WithKeyPrefix(prefix string) RedisLockerOption {
	return func(l *RedisLocker) {
		l.keyPrefix = prefix
	}
}

// WithPollInterval sets the initial retry interval while waiting
func WithPollInterval(d time.Duration) RedisLockerOption {
	return func(l *RedisLocker) {
		l.pollInterval = d
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) RedisLockerOption {
	return func(l *RedisLocker) {
		l.logger = logger
	}
}

// NewRedisLocker creates a Redis keyed locker. ttl bounds how long a crashed
// holder can keep a key.
func NewRedisLocker(client *redis.Client, ttl time.Duration, opts ...RedisLockerOption) *RedisLocker {
	l := &RedisLocker{
		client:       client,
		keyPrefix:    defaultKeyPrefix,
		ttl:          ttl,
		pollInterval: defaultPollInterval,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire implements shared.KeyedLocker
func (l *RedisLocker) Acquire(ctx context.Context, key string, wait time.Duration) (func(), error) {
	redisKey := l.keyPrefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(wait)
	interval := l.pollInterval

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("acquire redis lock %s: %w", key, err)
		}
		if ok {
			return l.releaser(redisKey, token), nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, shared.ErrLockTimeout.WithMessage("lock on " + key + " not acquired in time")
		}
		sleep := min(interval, remaining)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		interval = min(interval*2, maxPollInterval)
	}
}

func (l *RedisLocker) releaser(redisKey, token string) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true

		// The caller's context may already be cancelled; release on our own deadline.
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()

		n, err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Int()
		switch {
		case err != nil && !errors.Is(err, redis.Nil):
			l.logger.Warn("Failed to release redis lock",
				zap.String("key", redisKey),
				zap.Error(err))
		case n == 0:
			l.logger.Warn("Redis lock expired before release",
				zap.String("key", redisKey),
				zap.Duration("ttl", l.ttl))
		}
	}
}

var _ shared.KeyedLocker = (*RedisLocker)(nil)
