package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultChannel      = "foncier:geo:invalidate"
	defaultCloseTimeout = 5 * time.Second
)

// InvalidationMessage tells peer instances to drop a district from their L1 tier
type InvalidationMessage struct {
	DistrictID uuid.UUID `json:"district_id"`
	Origin     string    `json:"origin"`
	Timestamp  int64     `json:"timestamp"`
}

// RedisInvalidator broadcasts district invalidations over Redis Pub/Sub
type RedisInvalidator struct {
	client    *redis.Client
	channel   string
	origin    string
	logger    *zap.Logger
	cancelFn  context.CancelFunc
	doneCh    chan struct{}
	doneOnce  sync.Once
	mu        sync.Mutex
	isRunning bool
}

// RedisInvalidatorOption configures a RedisInvalidator
type RedisInvalidatorOption func(*RedisInvalidator)

// WithChannel sets the Pub/Sub channel name
func WithChannel(channel string) RedisInvalidatorOption {
	return func(i *RedisInvalidator) {
		if channel != "" {
			i.channel = channel
		}
	}
}

// WithInvalidatorLogger sets the logger
func WithInvalidatorLogger(logger *zap.Logger) RedisInvalidatorOption {
	return func(i *RedisInvalidator) {
		i.logger = logger
	}
}

// NewRedisInvalidator creates an invalidator on a shared client.
// The caller keeps ownership of the client.
func NewRedisInvalidator(client *redis.Client, opts ...RedisInvalidatorOption) *RedisInvalidator {
	i := &RedisInvalidator{
		client:  client,
		channel: defaultChannel,
		origin:  uuid.NewString(),
		logger:  zap.NewNop(),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Origin identifies this instance in published messages
func (i *RedisInvalidator) Origin() string {
	return i.origin
}

// Publish announces that districtID changed
func (i *RedisInvalidator) Publish(ctx context.Context, districtID uuid.UUID) error {
	data, err := json.Marshal(InvalidationMessage{
		DistrictID: districtID,
		Origin:     i.origin,
		Timestamp:  time.Now().UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation: %w", err)
	}
	if err := i.client.Publish(ctx, i.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}
	return nil
}

// Subscribe blocks and calls fn for every message published by another
// instance. It returns when ctx is cancelled or Close is called.
func (i *RedisInvalidator) Subscribe(ctx context.Context, fn func(InvalidationMessage)) error {
	i.mu.Lock()
	if i.isRunning {
		i.mu.Unlock()
		return fmt.Errorf("subscription already running")
	}
	i.isRunning = true
	subCtx, cancel := context.WithCancel(ctx)
	i.cancelFn = cancel
	i.mu.Unlock()

	stop := func() {
		i.mu.Lock()
		i.isRunning = false
		i.mu.Unlock()
		i.markDone()
	}

	pubsub := i.client.Subscribe(subCtx, i.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(subCtx); err != nil {
		stop()
		return fmt.Errorf("failed to subscribe to channel: %w", err)
	}
	i.logger.Info("Subscribed to district invalidation channel", zap.String("channel", i.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			stop()
			return subCtx.Err()
		case msg, ok := <-ch:
			if !ok {
				i.logger.Warn("District invalidation channel closed")
				stop()
				return nil
			}

			var m InvalidationMessage
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				i.logger.Error("Failed to unmarshal invalidation message",
					zap.String("payload", msg.Payload),
					zap.Error(err))
				continue
			}
			if m.Origin == i.origin {
				continue
			}
			i.dispatch(fn, m)
		}
	}
}

func (i *RedisInvalidator) dispatch(fn func(InvalidationMessage), m InvalidationMessage) {
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("Panic in invalidation callback", zap.Any("panic", r))
		}
	}()
	fn(m)
}

func (i *RedisInvalidator) markDone() {
	i.doneOnce.Do(func() {
		close(i.doneCh)
	})
}

// Close stops a running subscription
func (i *RedisInvalidator) Close() error {
	i.mu.Lock()
	cancelFn := i.cancelFn
	i.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
		select {
		case <-i.doneCh:
		case <-time.After(defaultCloseTimeout):
			i.logger.Warn("Timeout waiting for subscription to stop")
		}
	}
	return nil
}
