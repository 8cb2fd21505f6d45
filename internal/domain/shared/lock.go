package shared

import (
	"context"
	"time"
)

// KeyedLocker serializes work on an arbitrary string key across callers.
// Acquire blocks at most wait and returns ErrLockTimeout when the key stays held.
// Any other error means the lock backend itself failed.
type KeyedLocker interface {
	Acquire(ctx context.Context, key string, wait time.Duration) (release func(), err error)
}
