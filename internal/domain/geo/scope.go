package geo

import (
	"context"

	"github.com/google/uuid"
)

// Filter narrows a query to part of the hierarchy.
// Only the most specific non-nil level is honoured: district, then region, then province.
type Filter struct {
	ProvinceID *uuid.UUID
	RegionID   *uuid.UUID
	DistrictID *uuid.UUID
}

// FilterLevel names the level a filter resolves at
type FilterLevel string

const (
	LevelDistrict FilterLevel = "district"
	LevelRegion   FilterLevel = "region"
	LevelProvince FilterLevel = "province"
	LevelAll      FilterLevel = "all"
)

// Level returns the level that Resolve will use for this filter
func (f Filter) Level() FilterLevel {
	switch {
	case isSet(f.DistrictID):
		return LevelDistrict
	case isSet(f.RegionID):
		return LevelRegion
	case isSet(f.ProvinceID):
		return LevelProvince
	default:
		return LevelAll
	}
}

func isSet(id *uuid.UUID) bool {
	return id != nil && *id != uuid.Nil
}

// Resolve returns the set of districts a request may see.
//
// A district-restricted access always yields exactly the actor's own district,
// whatever the filter says. Otherwise the filter is applied at its most specific level.
// Levels are never combined: a district filter ignores a region or province filter.
func Resolve(ctx context.Context, filter Filter, access Access, hierarchy HierarchyReader) ([]uuid.UUID, error) {
	if access.IsDistrictRestricted() {
		if access.DistrictID == uuid.Nil {
			return []uuid.UUID{}, nil
		}
		return []uuid.UUID{access.DistrictID}, nil
	}

	switch filter.Level() {
	case LevelDistrict:
		return []uuid.UUID{*filter.DistrictID}, nil
	case LevelRegion:
		return hierarchy.DistrictIDsByRegion(ctx, *filter.RegionID)
	case LevelProvince:
		return hierarchy.DistrictIDsByProvince(ctx, *filter.ProvinceID)
	default:
		return hierarchy.AllDistrictIDs(ctx)
	}
}
