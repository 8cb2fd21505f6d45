package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/foncier/backend/internal/domain/shared"
	"github.com/foncier/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRedisLocker(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisLocker) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisLocker(client, ttl, WithPollInterval(5*time.Millisecond))
}

func TestRedisLocker_AcquireRelease(t *testing.T) {
	mr, l := setupRedisLocker(t, 30*time.Second)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "doc:SALE_DEED", time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("foncier:lock:doc:SALE_DEED"))
	assert.Greater(t, mr.TTL("foncier:lock:doc:SALE_DEED"), time.Duration(0))

	release()
	assert.False(t, mr.Exists("foncier:lock:doc:SALE_DEED"))
}

func TestRedisLocker_TimesOutWhileHeld(t *testing.T) {
	_, l := setupRedisLocker(t, 30*time.Second)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "property:p1", time.Second)
	require.NoError(t, err)
	defer release()

	_, err = l.Acquire(ctx, "property:p1", 40*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrLockTimeout)
}

func TestRedisLocker_WaiterAcquiresAfterRelease(t *testing.T) {
	_, l := setupRedisLocker(t, 30*time.Second)
	release, err := l.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		release()
	}()

	second, err := l.Acquire(context.Background(), "k", 2*time.Second)
	require.NoError(t, err)
	second()
}

func TestRedisLocker_ExpiredHolderDoesNotReleaseNewOwner(t *testing.T) {
	mr, l := setupRedisLocker(t, time.Second)
	ctx := context.Background()

	stale, err := l.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	fresh, err := l.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)

	stale()
	assert.True(t, mr.Exists("foncier:lock:k"), "stale release must not delete the new owner's key")

	fresh()
	assert.False(t, mr.Exists("foncier:lock:k"))
}

func TestRedisLocker_BackendDown(t *testing.T) {
	mr, l := setupRedisLocker(t, time.Second)
	mr.Close()

	_, err := l.Acquire(context.Background(), "k", 50*time.Millisecond)
	require.Error(t, err)
	assert.NotErrorIs(t, err, shared.ErrLockTimeout)
}

func TestNew(t *testing.T) {
	l, err := New(config.NumberingConfig{LockBackend: "local"}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &LocalLocker{}, l)

	_, err = New(config.NumberingConfig{LockBackend: "redis"}, nil, zap.NewNop())
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	l, err = New(config.NumberingConfig{LockBackend: "redis", LockTTL: time.Second}, client, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &RedisLocker{}, l)

	_, err = New(config.NumberingConfig{LockBackend: "zookeeper"}, nil, zap.NewNop())
	assert.Error(t, err)
}
