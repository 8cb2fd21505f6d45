package geo

import (
	"context"

	"github.com/foncier/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Role is the functional role of an actor
type Role string

const (
	RoleOperator      Role = "operator"
	RoleSupervisor    Role = "supervisor"
	RoleAdministrator Role = "administrator"
)

// AccessLevel says whether an actor is pinned to one district or sees the whole country
type AccessLevel string

const (
	AccessDistrict AccessLevel = "district"
	AccessNational AccessLevel = "national"
)

// Access is the geographic reach of an actor.
// DistrictID is only meaningful when Level is AccessDistrict.
type Access struct {
	Level      AccessLevel
	DistrictID uuid.UUID
}

// IsDistrictRestricted reports whether the access is pinned to one district
func (a Access) IsDistrictRestricted() bool {
	return a.Level != AccessNational
}

// Actor is the identity on whose behalf an operation runs
type Actor struct {
	UserID uuid.UUID
	Role   Role
	Access Access
}

// SystemActor is used by background jobs (cascade batches, maintenance sweep)
var SystemActor = Actor{
	Role:   RoleAdministrator,
	Access: Access{Level: AccessNational},
}

// IsPrivileged reports whether the actor may close dossiers and change tariffs
func (a Actor) IsPrivileged() bool {
	return a.Role == RoleSupervisor || a.Role == RoleAdministrator
}

// CanAccessDistrict reports whether the district is inside the actor's reach
func (a Actor) CanAccessDistrict(districtID uuid.UUID) bool {
	if !a.Access.IsDistrictRestricted() {
		return true
	}
	return a.Access.DistrictID != uuid.Nil && a.Access.DistrictID == districtID
}

// EnsureDistrict returns ErrForbidden when the district is out of reach
func (a Actor) EnsureDistrict(districtID uuid.UUID) error {
	if !a.CanAccessDistrict(districtID) {
		return shared.ErrForbidden.WithMessage("District is outside of your geographic scope")
	}
	return nil
}

// EnsurePrivileged returns ErrForbidden for non-privileged roles
func (a Actor) EnsurePrivileged() error {
	if !a.IsPrivileged() {
		return shared.ErrForbidden.WithMessage("Operation requires a supervisor or administrator role")
	}
	return nil
}

type actorKey struct{}

// WithActor stores the actor in the context
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored in the context
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

// RequireActor returns the context actor or ErrForbidden when none is set
func RequireActor(ctx context.Context) (Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return Actor{}, shared.ErrForbidden.WithMessage("No actor in request context")
	}
	return actor, nil
}
