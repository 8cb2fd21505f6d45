package persistence

import (
	"context"

	"github.com/foncier/backend/internal/domain/geo"
	"github.com/foncier/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormTariffRepository implements geo.TariffRepository using GORM.
// A tariff is stored as one row per configured vocation.
type GormTariffRepository struct {
	db *gorm.DB
}

// NewGormTariffRepository creates a new GormTariffRepository
func NewGormTariffRepository(db *gorm.DB) *GormTariffRepository {
	return &GormTariffRepository{db: db}
}

// TariffFor returns the district's tariff; a district without rows yields an empty tariff
func (r *GormTariffRepository) TariffFor(ctx context.Context, districtID uuid.UUID) (*geo.Tariff, error) {
	var rows []models.TariffRateModel
	if err := r.db.WithContext(ctx).
		Where("district_id = ?", districtID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return models.TariffFromRows(districtID, rows), nil
}

// Save replaces the whole rate table of the district
func (r *GormTariffRepository) Save(ctx context.Context, tariff *geo.Tariff) error {
	rows := models.TariffRowsFromDomain(tariff)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("district_id = ?", tariff.DistrictID).Delete(&models.TariffRateModel{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

// Ensure GormTariffRepository implements TariffRepository
var _ geo.TariffRepository = (*GormTariffRepository)(nil)
