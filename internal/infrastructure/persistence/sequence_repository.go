package persistence

import (
	"context"
	"time"

	"github.com/foncier/backend/internal/domain/document"
	"github.com/foncier/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSequenceRepository implements SequenceRepository using GORM.
// Both methods must run inside the allocating transaction: the counter row
// stays locked until it commits.
type GormSequenceRepository struct {
	db *gorm.DB
}

// NewGormSequenceRepository creates a new GormSequenceRepository
func NewGormSequenceRepository(db *gorm.DB) *GormSequenceRepository {
	return &GormSequenceRepository{db: db}
}

// ensureRow inserts the counter row of key at 0 unless it exists
func (r *GormSequenceRepository) ensureRow(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.DocumentSequenceModel{Key: key, Value: 0, UpdatedAt: time.Now()}).Error
}

// Next locks the counter row with SELECT ... FOR UPDATE and increments it
func (r *GormSequenceRepository) Next(ctx context.Context, key string) (int64, error) {
	if err := r.ensureRow(ctx, key); err != nil {
		return 0, translateError(err, nil)
	}

	var row models.DocumentSequenceModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&row, "key = ?", key).Error; err != nil {
		return 0, translateError(err, nil)
	}

	row.Value++
	if err := r.db.WithContext(ctx).
		Model(&models.DocumentSequenceModel{}).
		Where("key = ?", key).
		Updates(map[string]any{"value": row.Value, "updated_at": time.Now()}).Error; err != nil {
		return 0, translateError(err, nil)
	}
	return row.Value, nil
}

// Bump raises the counter of key to value when it is lower
func (r *GormSequenceRepository) Bump(ctx context.Context, key string, value int64) error {
	if err := r.ensureRow(ctx, key); err != nil {
		return translateError(err, nil)
	}
	err := r.db.WithContext(ctx).
		Model(&models.DocumentSequenceModel{}).
		Where("key = ? AND value < ?", key, value).
		Updates(map[string]any{"value": value, "updated_at": time.Now()}).Error
	return translateError(err, nil)
}

// Ensure GormSequenceRepository implements SequenceRepository
var _ document.SequenceRepository = (*GormSequenceRepository)(nil)
