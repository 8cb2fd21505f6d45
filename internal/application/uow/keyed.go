package uow

import (
	"context"
	"errors"
	"time"

	"github.com/foncier/backend/internal/domain/shared"
	"github.com/foncier/backend/internal/infrastructure/telemetry"
)

// KeyedSection runs work under a keyed lock with a bounded wait.
// With RetryOnce, a run that ends in ErrLockTimeout (on the key or on a row
// lock inside the transaction) is attempted a second time before giving up.
type KeyedSection struct {
	Locker    shared.KeyedLocker
	Wait      time.Duration
	RetryOnce bool
	Scope     string
	Metrics   *telemetry.ConsistencyMetrics
}

// Run executes fn while holding key
func (s KeyedSection) Run(ctx context.Context, key string, fn func() error) error {
	err := s.attempt(ctx, key, fn)
	if s.RetryOnce && errors.Is(err, shared.ErrLockTimeout) {
		err = s.attempt(ctx, key, fn)
	}
	return err
}

func (s KeyedSection) attempt(ctx context.Context, key string, fn func() error) error {
	if s.Locker == nil {
		return fn()
	}
	start := time.Now()
	release, err := s.Locker.Acquire(ctx, key, s.Wait)
	s.Metrics.RecordLockWait(ctx, s.Scope, time.Since(start), errors.Is(err, shared.ErrLockTimeout))
	if err != nil {
		return err
	}
	defer release()
	return fn()
}
