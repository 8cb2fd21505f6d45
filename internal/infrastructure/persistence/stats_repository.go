package persistence

import (
	"context"
	"time"

	"github.com/foncier/backend/internal/domain/dossier"
	"github.com/foncier/backend/internal/domain/geo"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormStatsRepository computes district statistics with aggregate queries
type GormStatsRepository struct {
	db *gorm.DB
}

// NewGormStatsRepository creates a new GormStatsRepository
func NewGormStatsRepository(db *gorm.DB) *GormStatsRepository {
	return &GormStatsRepository{db: db}
}

type dossierCounts struct {
	Total     int64
	OpenCount int64
}

type propertyTotals struct {
	Count     int64
	Centiares int64
}

type associationTotals struct {
	Active     int64
	Stale      int64
	TotalPrice decimal.NullDecimal
}

// ComputeDistrictStats recomputes the statistics entry of one district
func (r *GormStatsRepository) ComputeDistrictStats(ctx context.Context, districtID uuid.UUID) (*geo.DistrictStats, error) {
	db := r.db.WithContext(ctx)
	stats := &geo.DistrictStats{DistrictID: districtID, TotalPrice: decimal.Zero}

	var dc dossierCounts
	if err := db.Table("dossiers").
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN is_closed THEN 0 ELSE 1 END), 0) AS open_count").
		Where("district_id = ?", districtID).
		Scan(&dc).Error; err != nil {
		return nil, err
	}
	stats.Dossiers = dc.Total
	stats.OpenDossiers = dc.OpenCount

	var propertyRow propertyTotals
	if err := db.Table("properties").
		Select("COUNT(*) AS count, COALESCE(SUM(contenance), 0) AS centiares").
		Where("district_id = ?", districtID).
		Scan(&propertyRow).Error; err != nil {
		return nil, err
	}
	stats.Properties = propertyRow.Count
	stats.TotalCentiares = propertyRow.Centiares

	if err := db.Table("requesters").
		Where("district_id = ?", districtID).
		Count(&stats.Requesters).Error; err != nil {
		return nil, err
	}

	var at associationTotals
	if err := db.Table("associations").
		Select("COUNT(*) AS active, COALESCE(SUM(CASE WHEN price_stale THEN 1 ELSE 0 END), 0) AS stale, SUM(total_price) AS total_price").
		Where("district_id = ? AND status = ?", districtID, dossier.AssociationActive).
		Scan(&at).Error; err != nil {
		return nil, err
	}
	stats.ActiveAssociations = at.Active
	stats.StalePrices = at.Stale
	if at.TotalPrice.Valid {
		stats.TotalPrice = at.TotalPrice.Decimal
	}

	stats.ComputedAt = time.Now()
	return stats, nil
}

// Ensure GormStatsRepository implements StatsSource
var _ geo.StatsSource = (*GormStatsRepository)(nil)
