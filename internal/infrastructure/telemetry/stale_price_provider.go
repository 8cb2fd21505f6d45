package telemetry

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStalePriceProvider counts stale active associations straight from the database
type GormStalePriceProvider struct {
	db *gorm.DB
}

// NewGormStalePriceProvider creates a provider on db
func NewGormStalePriceProvider(db *gorm.DB) *GormStalePriceProvider {
	return &GormStalePriceProvider{db: db}
}

// CountStaleByDistrict implements StalePriceProvider
func (p *GormStalePriceProvider) CountStaleByDistrict(ctx context.Context) (map[uuid.UUID]int64, error) {
	var rows []struct {
		DistrictID uuid.UUID
		Total      int64
	}
	err := p.db.WithContext(ctx).
		Table("associations").
		Select("district_id, COUNT(*) AS total").
		Where("status = ? AND price_stale = ?", "active", true).
		Group("district_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID]int64, len(rows))
	for _, r := range rows {
		out[r.DistrictID] = r.Total
	}
	return out, nil
}

var _ StalePriceProvider = (*GormStalePriceProvider)(nil)
