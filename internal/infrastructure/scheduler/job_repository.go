package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SchedulerJobRecord is one persisted job run
type SchedulerJobRecord struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Kind        string     `gorm:"column:kind;size:50;not null"`
	DistrictID  *uuid.UUID `gorm:"column:district_id;type:uuid"`
	Attempt     int        `gorm:"column:attempt;not null;default:0"`
	Status      string     `gorm:"column:status;size:20;not null"`
	Error       string     `gorm:"column:last_error;type:text"`
	StartedAt   *time.Time `gorm:"column:started_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
}

// TableName returns the table name for GORM
func (SchedulerJobRecord) TableName() string {
	return "scheduler_jobs"
}

// SchedulerJobRepository persists job runs. A retried job keeps its id, so
// the row always reflects the latest attempt.
type SchedulerJobRepository struct {
	db *gorm.DB
}

// NewSchedulerJobRepository creates a new SchedulerJobRepository
func NewSchedulerJobRepository(db *gorm.DB) *SchedulerJobRepository {
	return &SchedulerJobRepository{db: db}
}

// RecordJobStart upserts the job row in RUNNING state
func (r *SchedulerJobRepository) RecordJobStart(ctx context.Context, job *Job) error {
	now := time.Now()
	record := &SchedulerJobRecord{
		ID:        job.ID,
		Kind:      string(job.Kind),
		Attempt:   job.RetryCount,
		Status:    string(JobStatusRunning),
		StartedAt: job.StartedAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if job.DistrictID != uuid.Nil {
		id := job.DistrictID
		record.DistrictID = &id
	}
	return r.db.WithContext(ctx).Save(record).Error
}

// RecordJobComplete records the outcome of the job's current attempt
func (r *SchedulerJobRepository) RecordJobComplete(ctx context.Context, job *Job) error {
	return r.db.WithContext(ctx).
		Model(&SchedulerJobRecord{}).
		Where("id = ?", job.ID).
		Updates(map[string]any{
			"status":       string(job.Status),
			"last_error":   job.Error,
			"completed_at": job.CompletedAt,
			"updated_at":   time.Now(),
		}).Error
}

// GetLastJobStatus returns the most recent run of a kind, optionally for one district
func (r *SchedulerJobRepository) GetLastJobStatus(ctx context.Context, kind JobKind, districtID *uuid.UUID) (*SchedulerJobRecord, error) {
	var record SchedulerJobRecord
	query := r.db.WithContext(ctx).Where("kind = ?", string(kind))
	if districtID != nil {
		query = query.Where("district_id = ?", *districtID)
	}
	if err := query.Order("started_at DESC").First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

var _ JobRecorder = (*SchedulerJobRepository)(nil)
