// Package geo serves geographic scoping and the district statistics cache
// to the rest of the application.
package geo

import (
	"context"

	"github.com/foncier/backend/internal/domain/geo"
	"github.com/google/uuid"
)

// Resolver turns a hierarchy filter into the district set the context actor may see
type Resolver struct {
	hierarchy geo.HierarchyReader
}

// NewResolver creates a new Resolver
func NewResolver(hierarchy geo.HierarchyReader) *Resolver {
	return &Resolver{hierarchy: hierarchy}
}

// Resolve applies the actor's access level then the filter precedence
func (r *Resolver) Resolve(ctx context.Context, filter geo.Filter) ([]uuid.UUID, error) {
	actor, err := geo.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	return geo.Resolve(ctx, filter, actor.Access, r.hierarchy)
}

// Level returns the level the actor's view resolves at for a filter
func (r *Resolver) Level(ctx context.Context, filter geo.Filter) geo.FilterLevel {
	if actor, ok := geo.ActorFromContext(ctx); ok && actor.Access.IsDistrictRestricted() {
		return geo.LevelDistrict
	}
	return filter.Level()
}
