package persistence

import (
	"context"
	"time"

	"github.com/foncier/backend/internal/domain/dossier"
	"github.com/foncier/backend/internal/domain/shared"
	"github.com/foncier/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const activePairIndex = "idx_associations_active_pair"

// GormAssociationRepository implements AssociationRepository using GORM
type GormAssociationRepository struct {
	db *gorm.DB
}

// NewGormAssociationRepository creates a new GormAssociationRepository
func NewGormAssociationRepository(db *gorm.DB) *GormAssociationRepository {
	return &GormAssociationRepository{db: db}
}

// FindByID finds an association by its ID
func (r *GormAssociationRepository) FindByID(ctx context.Context, id uuid.UUID) (*dossier.Association, error) {
	var model models.AssociationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, nil)
	}
	return model.ToDomain(), nil
}

// FindActiveByPair finds the active association of a requester on a property
func (r *GormAssociationRepository) FindActiveByPair(ctx context.Context, requesterID, propertyID uuid.UUID) (*dossier.Association, error) {
	var model models.AssociationModel
	if err := r.db.WithContext(ctx).
		Where("requester_id = ? AND property_id = ? AND status = ?", requesterID, propertyID, dossier.AssociationActive).
		First(&model).Error; err != nil {
		return nil, translateError(err, nil)
	}
	return model.ToDomain(), nil
}

// FindByProperty lists every association of a property ordered by ordre
func (r *GormAssociationRepository) FindByProperty(ctx context.Context, propertyID uuid.UUID) ([]dossier.Association, error) {
	var rows []models.AssociationModel
	if err := r.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("ordre ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	associations := make([]dossier.Association, len(rows))
	for i := range rows {
		associations[i] = *rows[i].ToDomain()
	}
	return associations, nil
}

// MaxOrdre returns the highest ordre of the property across all statuses
func (r *GormAssociationRepository) MaxOrdre(ctx context.Context, propertyID uuid.UUID) (int, error) {
	var maxOrdre int
	err := r.db.WithContext(ctx).
		Model(&models.AssociationModel{}).
		Where("property_id = ?", propertyID).
		Select("COALESCE(MAX(ordre), 0)").
		Scan(&maxOrdre).Error
	return maxOrdre, err
}

// CountActiveByProperty counts the active associations of a property
func (r *GormAssociationRepository) CountActiveByProperty(ctx context.Context, propertyID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AssociationModel{}).
		Where("property_id = ? AND status = ?", propertyID, dossier.AssociationActive).
		Count(&count).Error
	return count, err
}

// CountActiveByRequester counts the active associations of a requester
func (r *GormAssociationRepository) CountActiveByRequester(ctx context.Context, requesterID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AssociationModel{}).
		Where("requester_id = ? AND status = ?", requesterID, dossier.AssociationActive).
		Count(&count).Error
	return count, err
}

// CountActiveByDistrict counts the active associations of a district
func (r *GormAssociationRepository) CountActiveByDistrict(ctx context.Context, districtID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AssociationModel{}).
		Where("district_id = ? AND status = ?", districtID, dossier.AssociationActive).
		Count(&count).Error
	return count, err
}

// Create inserts a new association.
// A violation of the active pair index is ErrAlreadyLinked; any other unique
// violation means a concurrent writer took the ordre.
func (r *GormAssociationRepository) Create(ctx context.Context, association *dossier.Association) error {
	err := r.db.WithContext(ctx).Create(models.AssociationModelFromDomain(association)).Error
	if err != nil && violatedConstraint(err) == activePairIndex {
		return shared.ErrAlreadyLinked
	}
	return translateError(err, shared.ErrConcurrencyConflict)
}

// Save updates an association with optimistic locking
func (r *GormAssociationRepository) Save(ctx context.Context, association *dossier.Association) error {
	model := models.AssociationModelFromDomain(association)
	result := r.db.WithContext(ctx).
		Model(model).
		Select("*").
		Where("id = ? AND version = ?", association.ID, association.Version-1).
		Updates(model)

	if result.Error != nil {
		return translateError(result.Error, shared.ErrConcurrencyConflict)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict.WithMessage("The association has been modified by another transaction")
	}
	return nil
}

func (r *GormAssociationRepository) pricingTargets(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("associations").
		Select("associations.id AS association_id, associations.property_id, associations.district_id, properties.vocation, properties.contenance").
		Joins("JOIN properties ON properties.id = associations.property_id").
		Where("associations.status = ?", dossier.AssociationActive)
}

func scanPricingTargets(query *gorm.DB) ([]dossier.PricingTarget, error) {
	var rows []models.PricingTargetRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	targets := make([]dossier.PricingTarget, len(rows))
	for i, row := range rows {
		targets[i] = row.ToDomain()
	}
	return targets, nil
}

// FindPricingTargetsByProperty returns the active associations of a property with its surface and vocation
func (r *GormAssociationRepository) FindPricingTargetsByProperty(ctx context.Context, propertyID uuid.UUID) ([]dossier.PricingTarget, error) {
	return scanPricingTargets(r.pricingTargets(ctx).
		Where("associations.property_id = ?", propertyID).
		Order("associations.ordre ASC"))
}

// FindPricingTargetsByDistrict returns every active association of a district
func (r *GormAssociationRepository) FindPricingTargetsByDistrict(ctx context.Context, districtID uuid.UUID) ([]dossier.PricingTarget, error) {
	return scanPricingTargets(r.pricingTargets(ctx).
		Where("associations.district_id = ?", districtID).
		Order("associations.property_id ASC, associations.ordre ASC"))
}

// FindStalePricingTargets returns up to limit active associations whose price awaits recompute, oldest first
func (r *GormAssociationRepository) FindStalePricingTargets(ctx context.Context, limit int) ([]dossier.PricingTarget, error) {
	return scanPricingTargets(r.pricingTargets(ctx).
		Where("associations.price_stale = ?", true).
		Order("associations.updated_at ASC").
		Limit(limit))
}

// FindPricingTargetsByIDs reloads the active associations among ids
func (r *GormAssociationRepository) FindPricingTargetsByIDs(ctx context.Context, associationIDs []uuid.UUID) ([]dossier.PricingTarget, error) {
	if len(associationIDs) == 0 {
		return nil, nil
	}
	return scanPricingTargets(r.pricingTargets(ctx).
		Where("associations.id IN ?", associationIDs).
		Order("associations.property_id ASC, associations.ordre ASC"))
}

// UpdatePrices writes recomputed prices and clears the stale flag.
// Each write is guarded by the property vocation and contenance and the
// district rate the price was computed from, checked by the UPDATE itself, so
// a price based on inputs that changed since they were read is never stored.
// Prices are derived data, so the aggregate version is left untouched.
func (r *GormAssociationRepository) UpdatePrices(ctx context.Context, updates []dossier.PriceUpdate) ([]uuid.UUID, error) {
	if len(updates) == 0 {
		return nil, nil
	}
	var moved []uuid.UUID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		moved = moved[:0]
		for _, u := range updates {
			query := tx.Model(&models.AssociationModel{}).
				Where("associations.id = ? AND associations.status = ?", u.AssociationID, dossier.AssociationActive).
				Where("EXISTS (SELECT 1 FROM properties WHERE properties.id = associations.property_id AND properties.vocation = ? AND properties.contenance = ?)",
					u.Vocation, u.Contenance)
			if u.Rate.Valid {
				query = query.Where("EXISTS (SELECT 1 FROM district_tariff_rates WHERE district_tariff_rates.district_id = associations.district_id AND district_tariff_rates.vocation = ? AND district_tariff_rates.rate = ?)",
					u.Vocation, u.Rate.Decimal)
			} else {
				query = query.Where("NOT EXISTS (SELECT 1 FROM district_tariff_rates WHERE district_tariff_rates.district_id = associations.district_id AND district_tariff_rates.vocation = ?)",
					u.Vocation)
			}
			result := query.Updates(map[string]any{
				"total_price":       u.TotalPrice,
				"price_stale":       false,
				"price_computed_at": u.ComputedAt,
				"updated_at":        time.Now(),
			})
			if result.Error != nil {
				return translateError(result.Error, nil)
			}
			if result.RowsAffected == 0 {
				moved = append(moved, u.AssociationID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// MarkStale flags prices as pending recompute
func (r *GormAssociationRepository) MarkStale(ctx context.Context, associationIDs []uuid.UUID) error {
	if len(associationIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.AssociationModel{}).
		Where("id IN ?", associationIDs).
		Updates(map[string]any{
			"price_stale": true,
			"updated_at":  time.Now(),
		}).Error
}

// Ensure GormAssociationRepository implements AssociationRepository
var _ dossier.AssociationRepository = (*GormAssociationRepository)(nil)
