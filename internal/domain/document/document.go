package document

import (
	"context"
	"time"

	"github.com/foncier/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Status is the lifecycle state of a generated document
type Status string

const (
	StatusActive     Status = "active"
	StatusSuperseded Status = "superseded"
)

// GeneratedDocument is a numbered legal document of a dossier.
// Documents are never deleted: regeneration supersedes the previous one.
type GeneratedDocument struct {
	shared.DistrictAggregateRoot
	DossierID    uuid.UUID
	Type         Type
	Number       string
	Sequence     int64
	ScopeKey     string
	EntityKey    *uuid.UUID // association the document is about
	RequesterID  *uuid.UUID // display reference only
	PropertyID   *uuid.UUID // display reference only
	Status       Status
	StoragePath  string
	SupersededAt *time.Time
	SupersededBy *uuid.UUID
}

// NewGeneratedDocument creates an active document
func NewGeneratedDocument(districtID, dossierID uuid.UUID, spec TypeSpec, number string, sequence int64, entityKey *uuid.UUID, actorID uuid.UUID) *GeneratedDocument {
	doc := &GeneratedDocument{
		DistrictAggregateRoot: shared.NewDistrictAggregateRoot(districtID),
		DossierID:             dossierID,
		Type:                  spec.Type,
		Number:                number,
		Sequence:              sequence,
		ScopeKey:              spec.ScopeKey(dossierID),
		EntityKey:             entityKey,
		Status:                StatusActive,
	}
	doc.SetCreatedBy(actorID)
	return doc
}

// RecordAllocated queues the allocation event with the numbers it replaced
func (d *GeneratedDocument) RecordAllocated(actorID uuid.UUID, supersedes []string) {
	event := NewDocumentAllocatedEvent(d, actorID)
	event.Supersedes = supersedes
	d.AddDomainEvent(event)
}

// IsActive reports whether the document is the current one
func (d *GeneratedDocument) IsActive() bool {
	return d.Status == StatusActive
}

// Supersede retires the document in favour of its replacement
func (d *GeneratedDocument) Supersede(by uuid.UUID) error {
	if !d.IsActive() {
		return shared.ErrInvalidState.WithMessage("Document is already superseded")
	}
	now := time.Now()
	d.Status = StatusSuperseded
	d.SupersededAt = &now
	d.SupersededBy = &by
	d.UpdatedAt = now
	d.IncrementVersion()
	return nil
}

// SetStoragePath records where the rendered artifact was stored
func (d *GeneratedDocument) SetStoragePath(path string) {
	d.StoragePath = path
	d.UpdatedAt = time.Now()
	d.IncrementVersion()
}

// DocumentRepository defines the interface for generated document persistence
type DocumentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*GeneratedDocument, error)

	// FindActive returns the active documents of (dossier, type, entity); entityKey nil matches documents without entity
	FindActive(ctx context.Context, dossierID uuid.UUID, docType Type, entityKey *uuid.UUID) ([]GeneratedDocument, error)

	// FindActiveByNumber returns the active document holding number in a scope, or ErrNotFound
	FindActiveByNumber(ctx context.Context, scopeKey, number string) (*GeneratedDocument, error)

	// FindByDossier lists every document of a dossier, superseded included
	FindByDossier(ctx context.Context, dossierID uuid.UUID) ([]GeneratedDocument, error)

	// Create inserts a document; an active number collision maps to ErrDuplicateNumber
	Create(ctx context.Context, doc *GeneratedDocument) error

	// Save updates status and storage path
	Save(ctx context.Context, doc *GeneratedDocument) error
}

// SequenceRepository hands out per-scope counters
type SequenceRepository interface {
	// Next locks the counter row of key, increments it and returns the new value.
	// A missing row is created starting at 1.
	Next(ctx context.Context, key string) (int64, error)

	// Bump raises the counter to at least value so client-chosen numbers are never reissued
	Bump(ctx context.Context, key string, value int64) error
}
