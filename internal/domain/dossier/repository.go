package dossier

import (
	"context"
	"time"

	"github.com/foncier/backend/internal/domain/geo"
	"github.com/foncier/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DossierRepository defines the interface for dossier persistence
type DossierRepository interface {
	// FindByID finds a dossier by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Dossier, error)

	// FindByIDForShare loads the dossier holding a shared row lock until the
	// transaction ends. Writers gated on the open state read it this way.
	FindByIDForShare(ctx context.Context, id uuid.UUID) (*Dossier, error)

	// FindByIDForUpdate loads the dossier holding an exclusive row lock until
	// the transaction ends. Closing and reopening read it this way.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Dossier, error)

	// FindByDistricts lists dossiers of the given districts
	FindByDistricts(ctx context.Context, districtIDs []uuid.UUID, filter shared.Filter) ([]Dossier, int64, error)

	// Save creates or updates a dossier
	Save(ctx context.Context, dossier *Dossier) error

	// Delete deletes a dossier
	Delete(ctx context.Context, id uuid.UUID) error
}

// PropertyRepository defines the interface for property persistence
type PropertyRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Property, error)

	// FindByIDForUpdate loads the property holding a row lock until the transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Property, error)

	FindByDossier(ctx context.Context, dossierID uuid.UUID) ([]Property, error)
	CountByDossier(ctx context.Context, dossierID uuid.UUID) (int64, error)
	Save(ctx context.Context, property *Property) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// RequesterRepository defines the interface for requester persistence
type RequesterRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Requester, error)
	FindByDossier(ctx context.Context, dossierID uuid.UUID) ([]Requester, error)
	CountByDossier(ctx context.Context, dossierID uuid.UUID) (int64, error)

	// SaveBatch stores one intake in a single statement
	SaveBatch(ctx context.Context, requesters []*Requester) error

	Save(ctx context.Context, requester *Requester) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// PricingTarget is the projection price recomputation works on
type PricingTarget struct {
	AssociationID uuid.UUID
	PropertyID    uuid.UUID
	DistrictID    uuid.UUID
	Vocation      geo.Vocation
	Contenance    int64
}

// PriceUpdate is one recomputed price to persist, with the inputs it was computed from.
// Rate is invalid when the tariff had no rate for the vocation.
type PriceUpdate struct {
	AssociationID uuid.UUID
	TotalPrice    decimal.Decimal
	ComputedAt    time.Time
	Vocation      geo.Vocation
	Contenance    int64
	Rate          decimal.NullDecimal
}

// AssociationRepository defines the interface for association persistence
type AssociationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Association, error)

	// FindActiveByPair returns the active association of a requester on a property, or ErrNotFound
	FindActiveByPair(ctx context.Context, requesterID, propertyID uuid.UUID) (*Association, error)

	// FindByProperty returns every association of the property, archived included, ordered by ordre
	FindByProperty(ctx context.Context, propertyID uuid.UUID) ([]Association, error)

	// MaxOrdre returns the highest ordre ever assigned on the property, 0 when none
	MaxOrdre(ctx context.Context, propertyID uuid.UUID) (int, error)

	CountActiveByProperty(ctx context.Context, propertyID uuid.UUID) (int64, error)
	CountActiveByRequester(ctx context.Context, requesterID uuid.UUID) (int64, error)
	CountActiveByDistrict(ctx context.Context, districtID uuid.UUID) (int64, error)

	// Create inserts a new association; a duplicate (property, ordre) or active pair maps to a conflict
	Create(ctx context.Context, association *Association) error

	// Save updates an existing association with optimistic version check
	Save(ctx context.Context, association *Association) error

	// Pricing targets
	FindPricingTargetsByProperty(ctx context.Context, propertyID uuid.UUID) ([]PricingTarget, error)
	FindPricingTargetsByDistrict(ctx context.Context, districtID uuid.UUID) ([]PricingTarget, error)
	FindStalePricingTargets(ctx context.Context, limit int) ([]PricingTarget, error)
	FindPricingTargetsByIDs(ctx context.Context, associationIDs []uuid.UUID) ([]PricingTarget, error)

	// UpdatePrices writes recomputed prices and clears their stale flag.
	// A price is written only while the property and the tariff rate still hold
	// the values it was computed from; the associations whose inputs moved are
	// returned untouched.
	UpdatePrices(ctx context.Context, updates []PriceUpdate) (moved []uuid.UUID, err error)

	// MarkStale flags prices as pending recompute
	MarkStale(ctx context.Context, associationIDs []uuid.UUID) error
}
