// Package dossier holds the land dossier aggregate and the records it owns:
// properties, requesters and the priced requester↔property associations.
package dossier

import (
	"strings"
	"time"

	"github.com/foncier/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Dossier is the administrative case folder of one land-survey operation
type Dossier struct {
	shared.DistrictAggregateRoot
	Number   string
	Label    string
	IsClosed bool
	ClosedAt *time.Time
	ClosedBy *uuid.UUID
}

// NewDossier creates an open dossier in a district
func NewDossier(districtID uuid.UUID, number, label string, actorID uuid.UUID) (*Dossier, error) {
	if districtID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_DISTRICT", "District ID cannot be empty")
	}
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, shared.NewDomainError("INVALID_DOSSIER_NUMBER", "Dossier number cannot be empty")
	}
	if len(number) > 50 {
		return nil, shared.NewDomainError("INVALID_DOSSIER_NUMBER", "Dossier number cannot exceed 50 characters")
	}

	d := &Dossier{
		DistrictAggregateRoot: shared.NewDistrictAggregateRoot(districtID),
		Number:                number,
		Label:                 strings.TrimSpace(label),
	}
	d.SetCreatedBy(actorID)
	d.AddDomainEvent(NewDossierCreatedEvent(d, actorID))
	return d, nil
}

// EnsureOpen returns ErrDossierClosed when the dossier is closed
func (d *Dossier) EnsureOpen() error {
	if d.IsClosed {
		return shared.ErrDossierClosed.WithMessage("Dossier " + d.Number + " is closed")
	}
	return nil
}

// Close gates the dossier against new associations and documents
func (d *Dossier) Close(actorID uuid.UUID) error {
	if d.IsClosed {
		return shared.ErrInvalidState.WithMessage("Dossier is already closed")
	}
	now := time.Now()
	d.IsClosed = true
	d.ClosedAt = &now
	d.ClosedBy = &actorID
	d.UpdatedAt = now
	d.IncrementVersion()
	d.AddDomainEvent(NewDossierUpdatedEvent(d, actorID, EventTypeDossierClosed))
	return nil
}

// Reopen lifts the closing gate
func (d *Dossier) Reopen(actorID uuid.UUID) error {
	if !d.IsClosed {
		return shared.ErrInvalidState.WithMessage("Dossier is not closed")
	}
	d.IsClosed = false
	d.ClosedAt = nil
	d.ClosedBy = nil
	d.UpdatedAt = time.Now()
	d.IncrementVersion()
	d.AddDomainEvent(NewDossierUpdatedEvent(d, actorID, EventTypeDossierReopened))
	return nil
}
