// Package datascope provides geographic data-level filtering for GORM queries.
//
// Every district-owned table carries a district_id column. An actor pinned to a
// district only ever sees rows of that district; a national actor sees the
// district set resolved from its filter (or everything).
//
// Usage:
//
//	filter := datascope.NewFilterFromContext(ctx)
//	filter.Apply(db).Find(&dossiers) // WHERE district_id = ? for district actors
package datascope

import (
	"context"

	"github.com/foncier/backend/internal/domain/geo"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Filter applies district scope filtering to GORM queries
type Filter struct {
	actor    geo.Actor
	hasActor bool
}

// NewFilter creates a filter for an explicit actor
func NewFilter(actor geo.Actor) *Filter {
	return &Filter{actor: actor, hasActor: true}
}

// NewFilterFromContext creates a filter from the actor stored in ctx.
// Without an actor every query matches nothing.
func NewFilterFromContext(ctx context.Context) *Filter {
	actor, ok := geo.ActorFromContext(ctx)
	return &Filter{actor: actor, hasActor: ok}
}

// Apply restricts db to the actor's district when the actor is district-restricted
func (f *Filter) Apply(db *gorm.DB) *gorm.DB {
	return f.ApplyColumn(db, "district_id")
}

// ApplyColumn is Apply for a qualified column, e.g. "associations.district_id" in joins
func (f *Filter) ApplyColumn(db *gorm.DB, column string) *gorm.DB {
	if !f.hasActor {
		return db.Where("1 = 0")
	}
	if !f.actor.Access.IsDistrictRestricted() {
		return db
	}
	if f.actor.Access.DistrictID == uuid.Nil {
		// district actor without a district sees nothing
		return db.Where("1 = 0")
	}
	return db.Where(column+" = ?", f.actor.Access.DistrictID)
}

// ApplyToQuery returns the filter as a GORM scope function
func (f *Filter) ApplyToQuery() func(db *gorm.DB) *gorm.DB {
	return f.Apply
}

// CanAccessAll returns true if the actor is not district-restricted
func (f *Filter) CanAccessAll() bool {
	return f.hasActor && !f.actor.Access.IsDistrictRestricted()
}

// CanAccessDistrict reports whether a district is inside the filter's reach
func (f *Filter) CanAccessDistrict(districtID uuid.UUID) bool {
	return f.hasActor && f.actor.CanAccessDistrict(districtID)
}

// ScopeFunc is a GORM scope function type
type ScopeFunc func(*gorm.DB) *gorm.DB

// InDistricts restricts a query to an already resolved district set.
// An empty set matches nothing rather than everything.
func InDistricts(districtIDs []uuid.UUID) ScopeFunc {
	return InDistrictsColumn("district_id", districtIDs)
}

// InDistrictsColumn is InDistricts for a qualified column
func InDistrictsColumn(column string, districtIDs []uuid.UUID) ScopeFunc {
	return func(db *gorm.DB) *gorm.DB {
		if len(districtIDs) == 0 {
			return db.Where("1 = 0")
		}
		return db.Where(column+" IN ?", districtIDs)
	}
}

// DistrictScopeFromContext creates a GORM scope using the actor from context
func DistrictScopeFromContext(ctx context.Context) ScopeFunc {
	return NewFilterFromContext(ctx).Apply
}
