package dossier

import (
	"strings"
	"time"

	"github.com/foncier/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AssociationStatus is the lifecycle state of an association
type AssociationStatus string

const (
	AssociationActive   AssociationStatus = "active"
	AssociationArchived AssociationStatus = "archived"
)

// Association ("demander") is the priced, ranked link between a requester and a property.
// Ordre is assigned once and never changes, even after archival.
// TotalPrice is derived and only written through ApplyPrice.
type Association struct {
	shared.DistrictAggregateRoot
	RequesterID     uuid.UUID
	PropertyID      uuid.UUID
	DossierID       uuid.UUID
	Ordre           int
	Status          AssociationStatus
	TotalPrice      decimal.Decimal
	PriceStale      bool
	PriceComputedAt *time.Time
	ArchiveReason   *string
	ArchivedAt      *time.Time
	ArchivedBy      *uuid.UUID
}

// NewAssociation creates an unranked, unpriced active association.
// The ranker assigns Ordre and the creating hook prices it before insert.
func NewAssociation(requester *Requester, property *Property, actorID uuid.UUID) (*Association, error) {
	if requester == nil || property == nil {
		return nil, shared.NewDomainError("INVALID_ASSOCIATION", "Requester and property are required")
	}
	if requester.DossierID != property.DossierID {
		return nil, shared.NewDomainError("INVALID_ASSOCIATION", "Requester and property belong to different dossiers")
	}

	a := &Association{
		DistrictAggregateRoot: shared.NewDistrictAggregateRoot(property.DistrictID),
		RequesterID:           requester.ID,
		PropertyID:            property.ID,
		DossierID:             property.DossierID,
		Status:                AssociationActive,
		TotalPrice:            decimal.Zero,
	}
	a.SetCreatedBy(actorID)
	return a, nil
}

// IsActive reports whether the association is active
func (a *Association) IsActive() bool {
	return a.Status == AssociationActive
}

// AssignOrdre sets the permanent rank; it may only be done once
func (a *Association) AssignOrdre(ordre int) error {
	if a.Ordre != 0 {
		return shared.ErrInvalidState.WithMessage("Ordre is already assigned")
	}
	if ordre < 1 {
		return shared.NewDomainError("INVALID_ORDRE", "Ordre must start at 1")
	}
	a.Ordre = ordre
	return nil
}

// ApplyPrice records a freshly computed price and clears the stale flag
func (a *Association) ApplyPrice(amount decimal.Decimal, at time.Time) {
	a.TotalPrice = amount
	a.PriceStale = false
	a.PriceComputedAt = &at
	a.UpdatedAt = at
}

// MarkPriceStale flags the price as pending recompute
func (a *Association) MarkPriceStale() {
	a.PriceStale = true
	a.UpdatedAt = time.Now()
}

// Archive deactivates the association and records the reason
func (a *Association) Archive(reason string, actorID uuid.UUID) error {
	if !a.IsActive() {
		return shared.ErrInvalidState.WithMessage("Association is already archived")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Archive reason cannot be empty")
	}
	if len(reason) > 500 {
		return shared.NewDomainError("INVALID_REASON", "Archive reason cannot exceed 500 characters")
	}

	now := time.Now()
	a.Status = AssociationArchived
	a.ArchiveReason = &reason
	a.ArchivedAt = &now
	a.ArchivedBy = &actorID
	a.UpdatedAt = now
	a.IncrementVersion()
	a.AddDomainEvent(NewAssociationDissociatedEvent(a, actorID))
	return nil
}

// RecordCreated queues the creation event once the association has a rank and a price
func (a *Association) RecordCreated(actorID uuid.UUID) {
	a.AddDomainEvent(NewAssociationCreatedEvent(a, actorID))
}
