package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// IntervalTriggerConfig holds configuration for the interval trigger
type IntervalTriggerConfig struct {
	Interval   time.Duration
	RunOnStart bool // submit once immediately, so flags left by a crash heal at boot
}

// IntervalTrigger periodically submits a job to the scheduler
type IntervalTrigger struct {
	config  IntervalTriggerConfig
	submit  func() error
	name    string
	logger  *zap.Logger
	nowFunc func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastRunAt *time.Time
	nextRunAt *time.Time
}

// NewIntervalTrigger creates a trigger that calls submit every config.Interval
func NewIntervalTrigger(name string, config IntervalTriggerConfig, submit func() error, logger *zap.Logger) *IntervalTrigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntervalTrigger{
		config:  config,
		submit:  submit,
		name:    name,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// NewSweepTrigger submits a stale price sweep to s every interval
func NewSweepTrigger(s *Scheduler, config IntervalTriggerConfig, logger *zap.Logger) *IntervalTrigger {
	return NewIntervalTrigger(string(JobKindPriceSweep), config, s.SubmitSweep, logger)
}

// Start starts the trigger loop
func (t *IntervalTrigger) Start(ctx context.Context) error {
	if t.config.Interval <= 0 {
		return ErrInvalidConfig
	}

	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	if t.config.RunOnStart {
		t.trigger()
	}
	t.setNextRun()

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Interval trigger started",
		zap.String("trigger", t.name),
		zap.Duration("interval", t.config.Interval),
	)

	return nil
}

// Stop stops the trigger
func (t *IntervalTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Interval trigger stopped", zap.String("trigger", t.name))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *IntervalTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.trigger()
			t.setNextRun()
		}
	}
}

func (t *IntervalTrigger) trigger() {
	now := t.nowFunc()
	t.mu.Lock()
	t.lastRunAt = &now
	t.mu.Unlock()

	if err := t.submit(); err != nil {
		// a full queue means the previous run is still pending, the next tick catches up
		t.logger.Warn("Failed to submit scheduled job",
			zap.String("trigger", t.name),
			zap.Error(err),
		)
	}
}

func (t *IntervalTrigger) setNextRun() {
	next := t.nowFunc().Add(t.config.Interval)
	t.mu.Lock()
	t.nextRunAt = &next
	t.mu.Unlock()
}

// GetStatus returns the current status of the trigger
func (t *IntervalTrigger) GetStatus() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()

	return map[string]any{
		"trigger":     t.name,
		"is_running":  t.isRunning,
		"interval":    t.config.Interval.String(),
		"last_run_at": t.lastRunAt,
		"next_run_at": t.nextRunAt,
	}
}

// GetLastRunAt returns when the last submission occurred
func (t *IntervalTrigger) GetLastRunAt() *time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRunAt
}
