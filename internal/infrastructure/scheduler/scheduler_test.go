package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:           true,
		MaxConcurrentJobs: 2,
		QueueSize:         10,
		JobTimeout:        time.Second,
		RetryAttempts:     2,
		RetryDelay:        10 * time.Millisecond,
	}
}

type recordingRecorder struct {
	mu       sync.Mutex
	starts   int
	statuses []JobStatus
}

func (r *recordingRecorder) RecordJobStart(ctx context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	return nil
}

func (r *recordingRecorder) RecordJobComplete(ctx context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, job.Status)
	return errors.New("history table missing")
}

func TestJob_Lifecycle(t *testing.T) {
	job := NewJob(JobKindTariffCascade, uuid.New(), 1)
	assert.Equal(t, JobStatusPending, job.Status)

	job.Start()
	assert.Equal(t, JobStatusRunning, job.Status)
	assert.NotNil(t, job.StartedAt)

	job.Fail("boom")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.True(t, job.ShouldRetry())

	job.PrepareRetry()
	assert.Equal(t, 1, job.RetryCount)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Empty(t, job.Error)

	job.Start()
	job.Fail("boom again")
	assert.False(t, job.ShouldRetry())
}

func TestSchedulerConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultSchedulerConfig().Validate())

	cfg := DefaultSchedulerConfig()
	cfg.MaxConcurrentJobs = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultSchedulerConfig()
	cfg.JobTimeout = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestScheduler_SubmitBeforeStart(t *testing.T) {
	s := NewScheduler(testConfig(), zap.NewNop())
	s.Register(JobKindTariffCascade, JobExecutorFunc(func(ctx context.Context, job *Job) error { return nil }))

	assert.ErrorIs(t, s.SubmitCascade(uuid.New()), ErrSchedulerNotRunning)
}

func TestScheduler_RunsCascadeJob(t *testing.T) {
	recorder := &recordingRecorder{}
	s := NewScheduler(testConfig(), zap.NewNop(), WithJobRecorder(recorder))

	districtID := uuid.New()
	got := make(chan uuid.UUID, 1)
	s.Register(JobKindTariffCascade, JobExecutorFunc(func(ctx context.Context, job *Job) error {
		got <- job.DistrictID
		return nil
	}))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	require.NoError(t, s.SubmitCascade(districtID))

	select {
	case id := <-got:
		assert.Equal(t, districtID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("cascade job did not run")
	}

	// recorder failures are logged, never fatal
	assert.Eventually(t, func() bool {
		recorder.mu.Lock()
		defer recorder.mu.Unlock()
		return len(recorder.statuses) == 1 && recorder.statuses[0] == JobStatusSuccess
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_UnknownKind(t *testing.T) {
	s := NewScheduler(testConfig(), zap.NewNop())
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	assert.ErrorIs(t, s.SubmitSweep(), ErrNoExecutor)
}

func TestScheduler_RetriesFailedJob(t *testing.T) {
	s := NewScheduler(testConfig(), zap.NewNop())

	var attempts atomic.Int32
	done := make(chan struct{})
	s.Register(JobKindTariffCascade, JobExecutorFunc(func(ctx context.Context, job *Job) error {
		if attempts.Add(1) < 3 {
			return errors.New("batch failed")
		}
		close(done)
		return nil
	}))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())
	require.NoError(t, s.SubmitCascade(uuid.New()))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried to success")
	}
	assert.Equal(t, int32(3), attempts.Load())
}

func TestScheduler_RecoversPanic(t *testing.T) {
	cfg := testConfig()
	cfg.RetryAttempts = 0
	s := NewScheduler(cfg, zap.NewNop())

	ran := make(chan struct{}, 2)
	s.Register(JobKindPriceSweep, JobExecutorFunc(func(ctx context.Context, job *Job) error {
		ran <- struct{}{}
		panic("nil tariff")
	}))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	require.NoError(t, s.SubmitSweep())
	require.NoError(t, s.SubmitSweep())
	for i := 0; i < 2; i++ {
		select {
		case <-ran:
		case <-time.After(2 * time.Second):
			t.Fatal("worker died after panic")
		}
	}
}

func TestScheduler_QueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentJobs = 1
	cfg.QueueSize = 1
	s := NewScheduler(cfg, zap.NewNop())

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	s.Register(JobKindTariffCascade, JobExecutorFunc(func(ctx context.Context, job *Job) error {
		started <- struct{}{}
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())
	defer close(block)

	require.NoError(t, s.SubmitCascade(uuid.New()))
	<-started
	require.NoError(t, s.SubmitCascade(uuid.New()))
	assert.ErrorIs(t, s.SubmitCascade(uuid.New()), ErrJobQueueFull)
}

func TestScheduler_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	s := NewScheduler(cfg, nil)
	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
	assert.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_StopCancelsRunningJob(t *testing.T) {
	s := NewScheduler(testConfig(), zap.NewNop())
	started := make(chan struct{})
	cancelled := make(chan struct{})
	s.Register(JobKindTariffCascade, JobExecutorFunc(func(ctx context.Context, job *Job) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}))

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.SubmitCascade(uuid.New()))
	<-started

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))

	select {
	case <-cancelled:
	default:
		t.Fatal("running job was not cancelled")
	}
	assert.ErrorIs(t, s.SubmitCascade(uuid.New()), ErrSchedulerNotRunning)
}
