package models

import (
	"time"

	"github.com/foncier/backend/internal/domain/document"
	"github.com/google/uuid"
)

// GeneratedDocumentModel is the persistence model for the GeneratedDocument aggregate.
// Within one scope, number is unique among active rows; superseded rows keep their number.
type GeneratedDocumentModel struct {
	DistrictAggregateModel
	DossierID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_documents_lookup,priority:1"`
	Type         document.Type   `gorm:"type:varchar(20);not null;index:idx_documents_lookup,priority:2"`
	EntityKey    *uuid.UUID      `gorm:"type:uuid;index:idx_documents_lookup,priority:3"`
	Number       string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_documents_active_number,priority:2,where:status = 'active'"`
	Sequence     int64           `gorm:"not null"`
	ScopeKey     string          `gorm:"type:varchar(120);not null;uniqueIndex:idx_documents_active_number,priority:1,where:status = 'active'"`
	RequesterID  *uuid.UUID      `gorm:"type:uuid"`
	PropertyID   *uuid.UUID      `gorm:"type:uuid"`
	Status       document.Status `gorm:"type:varchar(20);not null;default:'active'"`
	StoragePath  string          `gorm:"type:varchar(500)"`
	SupersededAt *time.Time
	SupersededBy *uuid.UUID      `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (GeneratedDocumentModel) TableName() string {
	return "generated_documents"
}

// ToDomain converts the persistence model to a domain GeneratedDocument.
func (m *GeneratedDocumentModel) ToDomain() *document.GeneratedDocument {
	return &document.GeneratedDocument{
		DistrictAggregateRoot: m.ToDistrictAggregateRoot(),
		DossierID:             m.DossierID,
		Type:                  m.Type,
		Number:                m.Number,
		Sequence:              m.Sequence,
		ScopeKey:              m.ScopeKey,
		EntityKey:             m.EntityKey,
		RequesterID:           m.RequesterID,
		PropertyID:            m.PropertyID,
		Status:                m.Status,
		StoragePath:           m.StoragePath,
		SupersededAt:          m.SupersededAt,
		SupersededBy:          m.SupersededBy,
	}
}

// GeneratedDocumentModelFromDomain creates a persistence model from a domain GeneratedDocument.
func GeneratedDocumentModelFromDomain(d *document.GeneratedDocument) *GeneratedDocumentModel {
	m := &GeneratedDocumentModel{
		DossierID:    d.DossierID,
		Type:         d.Type,
		Number:       d.Number,
		Sequence:     d.Sequence,
		ScopeKey:     d.ScopeKey,
		EntityKey:    d.EntityKey,
		RequesterID:  d.RequesterID,
		PropertyID:   d.PropertyID,
		Status:       d.Status,
		StoragePath:  d.StoragePath,
		SupersededAt: d.SupersededAt,
		SupersededBy: d.SupersededBy,
	}
	m.FromDomainDistrictAggregateRoot(d.DistrictAggregateRoot)
	return m
}

// DocumentSequenceModel is the counter row of one numbering key.
// It is locked with SELECT ... FOR UPDATE for the duration of an allocation.
type DocumentSequenceModel struct {
	Key       string    `gorm:"type:varchar(150);primaryKey"`
	Value     int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DocumentSequenceModel) TableName() string {
	return "document_sequences"
}
