package models

import (
	"time"

	"github.com/foncier/backend/internal/domain/geo"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProvinceModel is the persistence model for the Province domain entity.
type ProvinceModel struct {
	BaseModel
	Code string `gorm:"type:varchar(20);not null;uniqueIndex"`
	Name string `gorm:"type:varchar(100);not null"`
}

// TableName returns the table name for GORM
func (ProvinceModel) TableName() string {
	return "provinces"
}

// ToDomain converts the persistence model to a domain Province.
func (m *ProvinceModel) ToDomain() *geo.Province {
	return &geo.Province{BaseEntity: m.BaseModel.ToDomain(), Code: m.Code, Name: m.Name}
}

// ProvinceModelFromDomain creates a persistence model from a domain Province.
func ProvinceModelFromDomain(p *geo.Province) *ProvinceModel {
	m := &ProvinceModel{Code: p.Code, Name: p.Name}
	m.FromDomainBaseEntity(p.BaseEntity)
	return m
}

// RegionModel is the persistence model for the Region domain entity.
type RegionModel struct {
	BaseModel
	ProvinceID uuid.UUID `gorm:"type:uuid;not null;index"`
	Code       string    `gorm:"type:varchar(20);not null;uniqueIndex"`
	Name       string    `gorm:"type:varchar(100);not null"`
}

// TableName returns the table name for GORM
func (RegionModel) TableName() string {
	return "regions"
}

// ToDomain converts the persistence model to a domain Region.
func (m *RegionModel) ToDomain() *geo.Region {
	return &geo.Region{BaseEntity: m.BaseModel.ToDomain(), ProvinceID: m.ProvinceID, Code: m.Code, Name: m.Name}
}

// RegionModelFromDomain creates a persistence model from a domain Region.
func RegionModelFromDomain(r *geo.Region) *RegionModel {
	m := &RegionModel{ProvinceID: r.ProvinceID, Code: r.Code, Name: r.Name}
	m.FromDomainBaseEntity(r.BaseEntity)
	return m
}

// DistrictModel is the persistence model for the District domain entity.
type DistrictModel struct {
	AggregateModel
	RegionID uuid.UUID `gorm:"type:uuid;not null;index"`
	Code     string    `gorm:"type:varchar(20);not null;uniqueIndex"`
	Name     string    `gorm:"type:varchar(100);not null"`
}

// TableName returns the table name for GORM
func (DistrictModel) TableName() string {
	return "districts"
}

// ToDomain converts the persistence model to a domain District.
func (m *DistrictModel) ToDomain() *geo.District {
	return &geo.District{BaseAggregateRoot: m.ToAggregateRoot(), RegionID: m.RegionID, Code: m.Code, Name: m.Name}
}

// DistrictModelFromDomain creates a persistence model from a domain District.
func DistrictModelFromDomain(d *geo.District) *DistrictModel {
	m := &DistrictModel{RegionID: d.RegionID, Code: d.Code, Name: d.Name}
	m.FromDomainAggregateRoot(d.BaseAggregateRoot)
	return m
}

// TariffRateModel is one row of a district's rate table.
// A vocation without a row has no configured rate.
type TariffRateModel struct {
	DistrictID uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Vocation   geo.Vocation    `gorm:"type:varchar(20);primaryKey"`
	Rate       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UpdatedAt  time.Time       `gorm:"not null"`
	UpdatedBy  *uuid.UUID      `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (TariffRateModel) TableName() string {
	return "district_tariff_rates"
}

// TariffFromRows folds rate rows into a domain Tariff. Rows are taken as
// stored: an unknown vocation or negative rate is reported later by Tariff.Check.
func TariffFromRows(districtID uuid.UUID, rows []TariffRateModel) *geo.Tariff {
	t := &geo.Tariff{DistrictID: districtID, Rates: make(map[geo.Vocation]decimal.Decimal, len(rows))}
	for _, row := range rows {
		t.Rates[row.Vocation] = row.Rate
		if row.UpdatedAt.After(t.UpdatedAt) {
			t.UpdatedAt = row.UpdatedAt
			t.UpdatedBy = row.UpdatedBy
		}
	}
	return t
}

// TariffRowsFromDomain flattens a domain Tariff into rate rows in vocation order
func TariffRowsFromDomain(t *geo.Tariff) []TariffRateModel {
	rows := make([]TariffRateModel, 0, len(t.Rates))
	for _, v := range geo.Vocations() {
		rate, ok := t.Rates[v]
		if !ok {
			continue
		}
		rows = append(rows, TariffRateModel{
			DistrictID: t.DistrictID,
			Vocation:   v,
			Rate:       rate,
			UpdatedAt:  t.UpdatedAt,
			UpdatedBy:  t.UpdatedBy,
		})
	}
	return rows
}
