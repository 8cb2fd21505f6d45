// Package geo holds the Province → Region → District hierarchy, district
// tariffs, the acting user's scope and the district-set resolver.
package geo

import (
	"context"
	"strings"

	"github.com/foncier/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Province is the top level of the administrative hierarchy
type Province struct {
	shared.BaseEntity
	Code string
	Name string
}

// Region belongs to exactly one Province
type Region struct {
	shared.BaseEntity
	ProvinceID uuid.UUID
	Code       string
	Name       string
}

// District is the leaf of the hierarchy and the unit of data ownership
type District struct {
	shared.BaseAggregateRoot
	RegionID uuid.UUID
	Code     string
	Name     string
}

// NewProvince creates a province
func NewProvince(code, name string) (*Province, error) {
	if err := validateCodeAndName(code, name); err != nil {
		return nil, err
	}
	return &Province{BaseEntity: shared.NewBaseEntity(), Code: strings.ToUpper(code), Name: name}, nil
}

// NewRegion creates a region under a province
func NewRegion(provinceID uuid.UUID, code, name string) (*Region, error) {
	if provinceID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PROVINCE", "Province ID cannot be empty")
	}
	if err := validateCodeAndName(code, name); err != nil {
		return nil, err
	}
	return &Region{BaseEntity: shared.NewBaseEntity(), ProvinceID: provinceID, Code: strings.ToUpper(code), Name: name}, nil
}

// NewDistrict creates a district under a region
func NewDistrict(regionID uuid.UUID, code, name string) (*District, error) {
	if regionID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_REGION", "Region ID cannot be empty")
	}
	if err := validateCodeAndName(code, name); err != nil {
		return nil, err
	}
	return &District{BaseAggregateRoot: shared.NewBaseAggregateRoot(), RegionID: regionID, Code: strings.ToUpper(code), Name: name}, nil
}

func validateCodeAndName(code, name string) error {
	if strings.TrimSpace(code) == "" {
		return shared.NewDomainError("INVALID_CODE", "Code cannot be empty")
	}
	if len(code) > 20 {
		return shared.NewDomainError("INVALID_CODE", "Code cannot exceed 20 characters")
	}
	if strings.TrimSpace(name) == "" {
		return shared.NewDomainError("INVALID_NAME", "Name cannot be empty")
	}
	return nil
}

// HierarchyReader answers the lookups the scope resolver needs.
// Implementations return district ids in a stable order.
type HierarchyReader interface {
	// DistrictIDsByRegion returns the districts under one region
	DistrictIDsByRegion(ctx context.Context, regionID uuid.UUID) ([]uuid.UUID, error)

	// DistrictIDsByProvince returns the districts under every region of a province
	DistrictIDsByProvince(ctx context.Context, provinceID uuid.UUID) ([]uuid.UUID, error)

	// AllDistrictIDs returns every district
	AllDistrictIDs(ctx context.Context) ([]uuid.UUID, error)
}

// HierarchyRepository persists the hierarchy
type HierarchyRepository interface {
	HierarchyReader

	FindProvince(ctx context.Context, id uuid.UUID) (*Province, error)
	FindRegion(ctx context.Context, id uuid.UUID) (*Region, error)
	FindDistrict(ctx context.Context, id uuid.UUID) (*District, error)

	SaveProvince(ctx context.Context, province *Province) error
	SaveRegion(ctx context.Context, region *Region) error
	SaveDistrict(ctx context.Context, district *District) error
}
