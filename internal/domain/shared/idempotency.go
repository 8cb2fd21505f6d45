package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers which domain events a consumer already handled.
// Replicas sharing one store hand each event to the consumer once.
type IdempotencyStore interface {
	// MarkProcessed records key for ttl and reports true only to the first caller
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	Close() error
}

// IdempotencyConfig scopes and bounds the marks of one consumer
type IdempotencyConfig struct {
	Enabled bool
	// TTL must outlast the publisher's retry window, or a late retry is handled twice
	TTL time.Duration
	// Consumer prefixes the keys, so two consumers of one event keep separate marks
	Consumer string
}

// DefaultIdempotencyConfig marks events for a day under the audit consumer
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		Enabled:  true,
		TTL:      24 * time.Hour,
		Consumer: "audit",
	}
}

// ProcessedKey names event as seen by the configured consumer
func (c IdempotencyConfig) ProcessedKey(event DomainEvent) string {
	return c.Consumer + ":" + event.EventType() + ":" + event.EventID().String()
}
