package document

import (
	"github.com/foncier/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Aggregate type constant for GeneratedDocument
const AggregateTypeDocument = "GeneratedDocument"

// Event type constants for GeneratedDocument
const (
	EventTypeDocumentAllocated = "DocumentAllocated"
)

// DocumentAllocatedEvent is published when a number is handed out
type DocumentAllocatedEvent struct {
	shared.BaseDomainEvent
	DocumentID uuid.UUID  `json:"document_id"`
	DossierID  uuid.UUID  `json:"dossier_id"`
	Type       Type       `json:"type"`
	Number     string     `json:"number"`
	EntityKey  *uuid.UUID `json:"entity_key,omitempty"`
	Supersedes []string   `json:"supersedes,omitempty"`
}

// NewDocumentAllocatedEvent creates a new DocumentAllocatedEvent
func NewDocumentAllocatedEvent(doc *GeneratedDocument, actorID uuid.UUID) *DocumentAllocatedEvent {
	return &DocumentAllocatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDocumentAllocated, AggregateTypeDocument, doc.ID, doc.DistrictID, actorID),
		DocumentID:      doc.ID,
		DossierID:       doc.DossierID,
		Type:            doc.Type,
		Number:          doc.Number,
		EntityKey:       doc.EntityKey,
	}
}
