package persistence

import (
	"context"

	"github.com/foncier/backend/internal/domain/dossier"
	"github.com/foncier/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPropertyRepository implements PropertyRepository using GORM
type GormPropertyRepository struct {
	db *gorm.DB
}

// NewGormPropertyRepository creates a new GormPropertyRepository
func NewGormPropertyRepository(db *gorm.DB) *GormPropertyRepository {
	return &GormPropertyRepository{db: db}
}

// FindByID finds a property by its ID
func (r *GormPropertyRepository) FindByID(ctx context.Context, id uuid.UUID) (*dossier.Property, error) {
	var model models.PropertyModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, nil)
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate loads the property with SELECT ... FOR UPDATE.
// Must run inside a transaction; the lock is held until it ends.
func (r *GormPropertyRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*dossier.Property, error) {
	var model models.PropertyModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, nil)
	}
	return model.ToDomain(), nil
}

// FindByDossier lists the properties of a dossier
func (r *GormPropertyRepository) FindByDossier(ctx context.Context, dossierID uuid.UUID) ([]dossier.Property, error) {
	var rows []models.PropertyModel
	if err := r.db.WithContext(ctx).
		Where("dossier_id = ?", dossierID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	properties := make([]dossier.Property, len(rows))
	for i := range rows {
		properties[i] = *rows[i].ToDomain()
	}
	return properties, nil
}

// CountByDossier counts the properties of a dossier
func (r *GormPropertyRepository) CountByDossier(ctx context.Context, dossierID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PropertyModel{}).
		Where("dossier_id = ?", dossierID).
		Count(&count).Error
	return count, err
}

// Save creates or updates a property
func (r *GormPropertyRepository) Save(ctx context.Context, property *dossier.Property) error {
	return r.db.WithContext(ctx).Save(models.PropertyModelFromDomain(property)).Error
}

// Delete deletes a property
func (r *GormPropertyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.PropertyModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return translateError(gorm.ErrRecordNotFound, nil)
	}
	return nil
}

// Ensure GormPropertyRepository implements PropertyRepository
var _ dossier.PropertyRepository = (*GormPropertyRepository)(nil)
