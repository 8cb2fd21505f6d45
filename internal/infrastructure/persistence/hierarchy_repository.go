package persistence

import (
	"context"
	"errors"

	"github.com/foncier/backend/internal/domain/geo"
	"github.com/foncier/backend/internal/domain/shared"
	"github.com/foncier/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormHierarchyRepository implements geo.HierarchyRepository using GORM
type GormHierarchyRepository struct {
	db *gorm.DB
}

// NewGormHierarchyRepository creates a new GormHierarchyRepository
func NewGormHierarchyRepository(db *gorm.DB) *GormHierarchyRepository {
	return &GormHierarchyRepository{db: db}
}

// DistrictIDsByRegion returns the districts under one region ordered by code
func (r *GormHierarchyRepository) DistrictIDsByRegion(ctx context.Context, regionID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.DistrictModel{}).
		Where("region_id = ?", regionID).
		Order("code ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// DistrictIDsByProvince returns the districts under every region of a province
func (r *GormHierarchyRepository) DistrictIDsByProvince(ctx context.Context, provinceID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.DistrictModel{}).
		Joins("JOIN regions ON regions.id = districts.region_id").
		Where("regions.province_id = ?", provinceID).
		Order("districts.code ASC").
		Pluck("districts.id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// AllDistrictIDs returns every district ordered by code
func (r *GormHierarchyRepository) AllDistrictIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.DistrictModel{}).
		Order("code ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// FindProvince finds a province by its ID
func (r *GormHierarchyRepository) FindProvince(ctx context.Context, id uuid.UUID) (*geo.Province, error) {
	var model models.ProvinceModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindRegion finds a region by its ID
func (r *GormHierarchyRepository) FindRegion(ctx context.Context, id uuid.UUID) (*geo.Region, error) {
	var model models.RegionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindDistrict finds a district by its ID
func (r *GormHierarchyRepository) FindDistrict(ctx context.Context, id uuid.UUID) (*geo.District, error) {
	var model models.DistrictModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// SaveProvince creates or updates a province
func (r *GormHierarchyRepository) SaveProvince(ctx context.Context, province *geo.Province) error {
	err := r.db.WithContext(ctx).Save(models.ProvinceModelFromDomain(province)).Error
	return translateError(err, shared.ErrAlreadyExists.WithMessage("Province code already exists"))
}

// SaveRegion creates or updates a region
func (r *GormHierarchyRepository) SaveRegion(ctx context.Context, region *geo.Region) error {
	err := r.db.WithContext(ctx).Save(models.RegionModelFromDomain(region)).Error
	return translateError(err, shared.ErrAlreadyExists.WithMessage("Region code already exists"))
}

// SaveDistrict creates or updates a district
func (r *GormHierarchyRepository) SaveDistrict(ctx context.Context, district *geo.District) error {
	err := r.db.WithContext(ctx).Save(models.DistrictModelFromDomain(district)).Error
	return translateError(err, shared.ErrAlreadyExists.WithMessage("District code already exists"))
}

// Ensure GormHierarchyRepository implements HierarchyRepository
var _ geo.HierarchyRepository = (*GormHierarchyRepository)(nil)
