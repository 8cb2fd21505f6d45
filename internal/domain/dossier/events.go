package dossier

import (
	"github.com/foncier/backend/internal/domain/geo"
	"github.com/foncier/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constants
const (
	AggregateTypeDossier     = "Dossier"
	AggregateTypeProperty    = "Property"
	AggregateTypeRequester   = "Requester"
	AggregateTypeAssociation = "Association"
)

// Event type constants
const (
	EventTypeDossierCreated  = "DossierCreated"
	EventTypeDossierClosed   = "DossierClosed"
	EventTypeDossierReopened = "DossierReopened"
	EventTypeDossierDeleted  = "DossierDeleted"

	EventTypePropertyCreated = "PropertyCreated"
	EventTypePropertyUpdated = "PropertyUpdated"
	EventTypePropertyDeleted = "PropertyDeleted"

	EventTypeRequesterCreated = "RequesterCreated"
	EventTypeRequesterUpdated = "RequesterUpdated"
	EventTypeRequesterDeleted = "RequesterDeleted"

	EventTypeAssociationCreated     = "AssociationCreated"
	EventTypeAssociationDissociated = "AssociationDissociated"
)

// DossierEvent is published on dossier lifecycle changes
type DossierEvent struct {
	shared.BaseDomainEvent
	DossierID uuid.UUID `json:"dossier_id"`
	Number    string    `json:"number"`
	IsClosed  bool      `json:"is_closed"`
}

// NewDossierCreatedEvent creates a DossierCreated event
func NewDossierCreatedEvent(d *Dossier, actorID uuid.UUID) *DossierEvent {
	return NewDossierUpdatedEvent(d, actorID, EventTypeDossierCreated)
}

// NewDossierUpdatedEvent creates a dossier event of the given type
func NewDossierUpdatedEvent(d *Dossier, actorID uuid.UUID, eventType string) *DossierEvent {
	return &DossierEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeDossier, d.ID, d.DistrictID, actorID),
		DossierID:       d.ID,
		Number:          d.Number,
		IsClosed:        d.IsClosed,
	}
}

// PropertyEvent is published on property lifecycle changes
type PropertyEvent struct {
	shared.BaseDomainEvent
	PropertyID         uuid.UUID    `json:"property_id"`
	DossierID          uuid.UUID    `json:"dossier_id"`
	Vocation           geo.Vocation `json:"vocation"`
	Contenance         int64        `json:"contenance"`
	PreviousVocation   geo.Vocation `json:"previous_vocation,omitempty"`
	PreviousContenance int64        `json:"previous_contenance,omitempty"`
	PriceInputsChanged bool         `json:"price_inputs_changed"`
}

// NewPropertyCreatedEvent creates a PropertyCreated event
func NewPropertyCreatedEvent(p *Property, actorID uuid.UUID) *PropertyEvent {
	return &PropertyEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePropertyCreated, AggregateTypeProperty, p.ID, p.DistrictID, actorID),
		PropertyID:      p.ID,
		DossierID:       p.DossierID,
		Vocation:        p.Vocation,
		Contenance:      p.Contenance,
	}
}

// NewPropertyUpdatedEvent creates a PropertyUpdated event
func NewPropertyUpdatedEvent(p *Property, actorID uuid.UUID, before PriceInputs, changed bool) *PropertyEvent {
	return &PropertyEvent{
		BaseDomainEvent:    shared.NewBaseDomainEvent(EventTypePropertyUpdated, AggregateTypeProperty, p.ID, p.DistrictID, actorID),
		PropertyID:         p.ID,
		DossierID:          p.DossierID,
		Vocation:           p.Vocation,
		Contenance:         p.Contenance,
		PreviousVocation:   before.Vocation,
		PreviousContenance: before.Contenance,
		PriceInputsChanged: changed,
	}
}

// NewPropertyDeletedEvent creates a PropertyDeleted event
func NewPropertyDeletedEvent(p *Property, actorID uuid.UUID) *PropertyEvent {
	return &PropertyEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePropertyDeleted, AggregateTypeProperty, p.ID, p.DistrictID, actorID),
		PropertyID:      p.ID,
		DossierID:       p.DossierID,
		Vocation:        p.Vocation,
		Contenance:      p.Contenance,
	}
}

// RequesterEvent is published on requester lifecycle changes
type RequesterEvent struct {
	shared.BaseDomainEvent
	RequesterID uuid.UUID `json:"requester_id"`
	DossierID   uuid.UUID `json:"dossier_id"`
	CIN         string    `json:"cin"`
}

// NewRequesterEvent creates a requester event of the given type
func NewRequesterEvent(r *Requester, actorID uuid.UUID, eventType string) *RequesterEvent {
	return &RequesterEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeRequester, r.ID, r.DistrictID, actorID),
		RequesterID:     r.ID,
		DossierID:       r.DossierID,
		CIN:             r.CIN,
	}
}

// AssociationCreatedEvent is published once a ranked, priced association is stored
type AssociationCreatedEvent struct {
	shared.BaseDomainEvent
	AssociationID uuid.UUID       `json:"association_id"`
	RequesterID   uuid.UUID       `json:"requester_id"`
	PropertyID    uuid.UUID       `json:"property_id"`
	DossierID     uuid.UUID       `json:"dossier_id"`
	Ordre         int             `json:"ordre"`
	TotalPrice    decimal.Decimal `json:"total_price"`
}

// NewAssociationCreatedEvent creates an AssociationCreated event
func NewAssociationCreatedEvent(a *Association, actorID uuid.UUID) *AssociationCreatedEvent {
	return &AssociationCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAssociationCreated, AggregateTypeAssociation, a.ID, a.DistrictID, actorID),
		AssociationID:   a.ID,
		RequesterID:     a.RequesterID,
		PropertyID:      a.PropertyID,
		DossierID:       a.DossierID,
		Ordre:           a.Ordre,
		TotalPrice:      a.TotalPrice,
	}
}

// AssociationDissociatedEvent is published when an association is archived
type AssociationDissociatedEvent struct {
	shared.BaseDomainEvent
	AssociationID uuid.UUID `json:"association_id"`
	RequesterID   uuid.UUID `json:"requester_id"`
	PropertyID    uuid.UUID `json:"property_id"`
	Ordre         int       `json:"ordre"`
	Reason        string    `json:"reason"`
}

// NewAssociationDissociatedEvent creates an AssociationDissociated event
func NewAssociationDissociatedEvent(a *Association, actorID uuid.UUID) *AssociationDissociatedEvent {
	reason := ""
	if a.ArchiveReason != nil {
		reason = *a.ArchiveReason
	}
	return &AssociationDissociatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAssociationDissociated, AggregateTypeAssociation, a.ID, a.DistrictID, actorID),
		AssociationID:   a.ID,
		RequesterID:     a.RequesterID,
		PropertyID:      a.PropertyID,
		Ordre:           a.Ordre,
		Reason:          reason,
	}
}
