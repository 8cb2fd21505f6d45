// Package lock provides the keyed lockers that serialize document numbering
// and association ranking per scope key.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/foncier/backend/internal/domain/shared"
)

// LocalLocker is an in-process keyed mutex. Entries are reference counted and
// removed once no caller holds or waits on the key.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*localEntry
}

type localEntry struct {
	slot chan struct{}
	refs int
}

// NewLocalLocker creates an in-process keyed locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[string]*localEntry)}
}

// Acquire implements shared.KeyedLocker
func (l *LocalLocker) Acquire(ctx context.Context, key string, wait time.Duration) (func(), error) {
	entry := l.ref(key)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case entry.slot <- struct{}{}:
	case <-timer.C:
		l.unref(key, entry)
		return nil, shared.ErrLockTimeout.WithMessage("lock on " + key + " not acquired in time")
	case <-ctx.Done():
		l.unref(key, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.slot
			l.unref(key, entry)
		})
	}, nil
}

// Held reports how many keys currently have a holder or waiter
func (l *LocalLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *LocalLocker) ref(key string) *localEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &localEntry{slot: make(chan struct{}, 1)}
		l.entries[key] = entry
	}
	entry.refs++
	return entry
}

func (l *LocalLocker) unref(key string, entry *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, key)
	}
}

var _ shared.KeyedLocker = (*LocalLocker)(nil)
