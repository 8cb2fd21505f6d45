package persistence

import (
	"context"
	"errors"

	"github.com/foncier/backend/internal/domain/dossier"
	"github.com/foncier/backend/internal/domain/shared"
	"github.com/foncier/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormRequesterRepository implements RequesterRepository using GORM
type GormRequesterRepository struct {
	db *gorm.DB
}

// NewGormRequesterRepository creates a new GormRequesterRepository
func NewGormRequesterRepository(db *gorm.DB) *GormRequesterRepository {
	return &GormRequesterRepository{db: db}
}

// FindByID finds a requester by its ID
func (r *GormRequesterRepository) FindByID(ctx context.Context, id uuid.UUID) (*dossier.Requester, error) {
	var model models.RequesterModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByDossier lists the requesters of a dossier
func (r *GormRequesterRepository) FindByDossier(ctx context.Context, dossierID uuid.UUID) ([]dossier.Requester, error) {
	var rows []models.RequesterModel
	if err := r.db.WithContext(ctx).
		Where("dossier_id = ?", dossierID).
		Order("last_name ASC, first_name ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	requesters := make([]dossier.Requester, len(rows))
	for i := range rows {
		requesters[i] = *rows[i].ToDomain()
	}
	return requesters, nil
}

// CountByDossier counts the requesters of a dossier
func (r *GormRequesterRepository) CountByDossier(ctx context.Context, dossierID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RequesterModel{}).
		Where("dossier_id = ?", dossierID).
		Count(&count).Error
	return count, err
}

// SaveBatch creates multiple requesters
func (r *GormRequesterRepository) SaveBatch(ctx context.Context, requesters []*dossier.Requester) error {
	if len(requesters) == 0 {
		return nil
	}
	rows := make([]*models.RequesterModel, len(requesters))
	for i, req := range requesters {
		rows[i] = models.RequesterModelFromDomain(req)
	}
	return r.db.WithContext(ctx).Create(rows).Error
}

// Save creates or updates a requester
func (r *GormRequesterRepository) Save(ctx context.Context, requester *dossier.Requester) error {
	return r.db.WithContext(ctx).Save(models.RequesterModelFromDomain(requester)).Error
}

// Delete deletes a requester
func (r *GormRequesterRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.RequesterModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormRequesterRepository implements RequesterRepository
var _ dossier.RequesterRepository = (*GormRequesterRepository)(nil)
