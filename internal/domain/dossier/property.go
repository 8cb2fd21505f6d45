package dossier

import (
	"strings"
	"time"

	"github.com/foncier/backend/internal/domain/geo"
	"github.com/foncier/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// OperationType is the survey operation a property goes through
type OperationType string

const (
	OperationMorcellement    OperationType = "morcellement"
	OperationImmatriculation OperationType = "immatriculation"
)

// IsValid reports whether the operation type is known
func (o OperationType) IsValid() bool {
	return o == OperationMorcellement || o == OperationImmatriculation
}

// Property is a parcel of land tracked in a dossier.
// DistrictID is copied from the owning dossier so scoped queries need no join.
type Property struct {
	shared.DistrictAggregateRoot
	DossierID     uuid.UUID
	Title         string
	Vocation      geo.Vocation
	Contenance    int64 // centiares
	NatureType    string
	OperationType OperationType
}

// PropertyInput carries the mutable attributes of a property
type PropertyInput struct {
	Title         string
	Vocation      geo.Vocation
	Area          Area
	NatureType    string
	OperationType OperationType
}

// NewProperty creates a property inside a dossier
func NewProperty(d *Dossier, in PropertyInput, actorID uuid.UUID) (*Property, error) {
	if d == nil {
		return nil, shared.NewDomainError("INVALID_DOSSIER", "Dossier cannot be empty")
	}
	if err := d.EnsureOpen(); err != nil {
		return nil, err
	}
	if err := validatePropertyInput(in); err != nil {
		return nil, err
	}

	p := &Property{
		DistrictAggregateRoot: shared.NewDistrictAggregateRoot(d.DistrictID),
		DossierID:             d.ID,
		Title:                 strings.TrimSpace(in.Title),
		Vocation:              in.Vocation,
		Contenance:            in.Area.TotalCentiares(),
		NatureType:            strings.TrimSpace(in.NatureType),
		OperationType:         in.OperationType,
	}
	p.SetCreatedBy(actorID)
	p.AddDomainEvent(NewPropertyCreatedEvent(p, actorID))
	return p, nil
}

// Area returns the composite display form of the contenance
func (p *Property) Area() Area {
	return AreaFromCentiares(p.Contenance)
}

// PriceInputs returns the only two attributes that drive the price
func (p *Property) PriceInputs() PriceInputs {
	return PriceInputs{Vocation: p.Vocation, Contenance: p.Contenance}
}

// Update applies new attributes and reports whether a price input changed
func (p *Property) Update(in PropertyInput, actorID uuid.UUID) (priceInputsChanged bool, err error) {
	if err := validatePropertyInput(in); err != nil {
		return false, err
	}

	before := p.PriceInputs()
	p.Title = strings.TrimSpace(in.Title)
	p.Vocation = in.Vocation
	p.Contenance = in.Area.TotalCentiares()
	p.NatureType = strings.TrimSpace(in.NatureType)
	p.OperationType = in.OperationType
	p.UpdatedAt = time.Now()
	p.IncrementVersion()

	changed := before != p.PriceInputs()
	p.AddDomainEvent(NewPropertyUpdatedEvent(p, actorID, before, changed))
	return changed, nil
}

// PriceInputs are the attributes of a property that affect its associations' price
type PriceInputs struct {
	Vocation   geo.Vocation
	Contenance int64
}

func validatePropertyInput(in PropertyInput) error {
	if !in.Vocation.IsValid() {
		return shared.NewDomainError("INVALID_VOCATION", "Vocation must be one of edilitaire, agricole, forestiere, touristique")
	}
	if _, err := NewArea(in.Area.Hectares, in.Area.Ares, in.Area.Centiares); err != nil {
		return err
	}
	if in.OperationType != "" && !in.OperationType.IsValid() {
		return shared.NewDomainError("INVALID_OPERATION_TYPE", "Operation type must be morcellement or immatriculation")
	}
	if len(in.Title) > 200 {
		return shared.NewDomainError("INVALID_TITLE", "Title cannot exceed 200 characters")
	}
	return nil
}
