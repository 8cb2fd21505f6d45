package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/foncier/backend/internal/domain/dossier"
	"github.com/foncier/backend/internal/domain/shared"
	"github.com/foncier/backend/internal/infrastructure/persistence/datascope"
	"github.com/foncier/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDossierRepository implements DossierRepository using GORM
type GormDossierRepository struct {
	db *gorm.DB
}

// NewGormDossierRepository creates a new GormDossierRepository
func NewGormDossierRepository(db *gorm.DB) *GormDossierRepository {
	return &GormDossierRepository{db: db}
}

// FindByID finds a dossier by its ID
func (r *GormDossierRepository) FindByID(ctx context.Context, id uuid.UUID) (*dossier.Dossier, error) {
	var model models.DossierModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForShare loads the dossier with SELECT ... FOR SHARE.
// Must run inside a transaction.
func (r *GormDossierRepository) FindByIDForShare(ctx context.Context, id uuid.UUID) (*dossier.Dossier, error) {
	return r.findLocked(ctx, id, clause.LockingStrengthShare)
}

// FindByIDForUpdate loads the dossier with SELECT ... FOR UPDATE.
// Must run inside a transaction.
func (r *GormDossierRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*dossier.Dossier, error) {
	return r.findLocked(ctx, id, clause.LockingStrengthUpdate)
}

func (r *GormDossierRepository) findLocked(ctx context.Context, id uuid.UUID, strength string) (*dossier.Dossier, error) {
	var model models.DossierModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: strength}).
		First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, nil)
	}
	return model.ToDomain(), nil
}

// FindByDistricts lists the dossiers of an already resolved district set.
// An empty set returns no rows.
func (r *GormDossierRepository) FindByDistricts(ctx context.Context, districtIDs []uuid.UUID, filter shared.Filter) ([]dossier.Dossier, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.DossierModel{}).
		Scopes(datascope.InDistricts(districtIDs))

	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(number) LIKE ? OR LOWER(label) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.DossierModel
	if err := applyPage(query, filter, DossierSortFields, "created_at").Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	dossiers := make([]dossier.Dossier, len(rows))
	for i := range rows {
		dossiers[i] = *rows[i].ToDomain()
	}
	return dossiers, total, nil
}

// Save creates or updates a dossier
func (r *GormDossierRepository) Save(ctx context.Context, d *dossier.Dossier) error {
	model := models.DossierModelFromDomain(d)
	err := r.db.WithContext(ctx).Save(model).Error
	return translateError(err, shared.ErrAlreadyExists.WithMessage("Dossier number already exists"))
}

// Delete deletes a dossier
func (r *GormDossierRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.DossierModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormDossierRepository implements DossierRepository
var _ dossier.DossierRepository = (*GormDossierRepository)(nil)
