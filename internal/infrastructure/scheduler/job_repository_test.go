package scheduler

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newJobRepo(t *testing.T) *SchedulerJobRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&SchedulerJobRecord{}))
	return NewSchedulerJobRepository(db)
}

func TestSchedulerJobRepository_Lifecycle(t *testing.T) {
	repo := newJobRepo(t)
	ctx := context.Background()
	districtID := uuid.New()

	job := NewJob(JobKindTariffCascade, districtID, 2)
	job.Start()
	require.NoError(t, repo.RecordJobStart(ctx, job))

	record, err := repo.GetLastJobStatus(ctx, JobKindTariffCascade, &districtID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, record.ID)
	assert.Equal(t, string(JobStatusRunning), record.Status)
	require.NotNil(t, record.DistrictID)
	assert.Equal(t, districtID, *record.DistrictID)

	job.Fail("batch 2 failed")
	require.NoError(t, repo.RecordJobComplete(ctx, job))

	record, err = repo.GetLastJobStatus(ctx, JobKindTariffCascade, &districtID)
	require.NoError(t, err)
	assert.Equal(t, string(JobStatusFailed), record.Status)
	assert.Equal(t, "batch 2 failed", record.Error)
	assert.NotNil(t, record.CompletedAt)
}

func TestSchedulerJobRepository_RetryReusesRow(t *testing.T) {
	repo := newJobRepo(t)
	ctx := context.Background()

	job := NewJob(JobKindPriceSweep, uuid.Nil, 1)
	job.Start()
	require.NoError(t, repo.RecordJobStart(ctx, job))
	job.Fail("db down")
	require.NoError(t, repo.RecordJobComplete(ctx, job))

	job.PrepareRetry()
	job.Start()
	require.NoError(t, repo.RecordJobStart(ctx, job))
	job.Complete()
	require.NoError(t, repo.RecordJobComplete(ctx, job))

	var count int64
	require.NoError(t, repo.db.Model(&SchedulerJobRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	record, err := repo.GetLastJobStatus(ctx, JobKindPriceSweep, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, record.Attempt)
	assert.Equal(t, string(JobStatusSuccess), record.Status)
	assert.Empty(t, record.Error)
	assert.Nil(t, record.DistrictID)
}

func TestSchedulerJobRepository_NotFound(t *testing.T) {
	repo := newJobRepo(t)
	_, err := repo.GetLastJobStatus(context.Background(), JobKindPriceSweep, nil)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
