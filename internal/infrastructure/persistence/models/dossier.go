package models

import (
	"time"

	"github.com/foncier/backend/internal/domain/dossier"
	"github.com/foncier/backend/internal/domain/geo"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DossierModel is the persistence model for the Dossier aggregate.
type DossierModel struct {
	DistrictAggregateModel
	Number   string     `gorm:"type:varchar(50);not null;uniqueIndex"`
	Label    string     `gorm:"type:varchar(200)"`
	IsClosed bool       `gorm:"not null;default:false"`
	ClosedAt *time.Time
	ClosedBy *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (DossierModel) TableName() string {
	return "dossiers"
}

// ToDomain converts the persistence model to a domain Dossier.
func (m *DossierModel) ToDomain() *dossier.Dossier {
	return &dossier.Dossier{
		DistrictAggregateRoot: m.ToDistrictAggregateRoot(),
		Number:                m.Number,
		Label:                 m.Label,
		IsClosed:              m.IsClosed,
		ClosedAt:              m.ClosedAt,
		ClosedBy:              m.ClosedBy,
	}
}

// DossierModelFromDomain creates a persistence model from a domain Dossier.
func DossierModelFromDomain(d *dossier.Dossier) *DossierModel {
	m := &DossierModel{
		Number:   d.Number,
		Label:    d.Label,
		IsClosed: d.IsClosed,
		ClosedAt: d.ClosedAt,
		ClosedBy: d.ClosedBy,
	}
	m.FromDomainDistrictAggregateRoot(d.DistrictAggregateRoot)
	return m
}

// PropertyModel is the persistence model for the Property entity.
type PropertyModel struct {
	DistrictAggregateModel
	DossierID     uuid.UUID             `gorm:"type:uuid;not null;index"`
	Title         string                `gorm:"type:varchar(200)"`
	Vocation      geo.Vocation          `gorm:"type:varchar(20);not null"`
	Contenance    int64                 `gorm:"not null;default:0"`
	NatureType    string                `gorm:"type:varchar(100)"`
	OperationType dossier.OperationType `gorm:"type:varchar(20)"`
}

// TableName returns the table name for GORM
func (PropertyModel) TableName() string {
	return "properties"
}

// ToDomain converts the persistence model to a domain Property.
func (m *PropertyModel) ToDomain() *dossier.Property {
	return &dossier.Property{
		DistrictAggregateRoot: m.ToDistrictAggregateRoot(),
		DossierID:             m.DossierID,
		Title:                 m.Title,
		Vocation:              m.Vocation,
		Contenance:            m.Contenance,
		NatureType:            m.NatureType,
		OperationType:         m.OperationType,
	}
}

// PropertyModelFromDomain creates a persistence model from a domain Property.
func PropertyModelFromDomain(p *dossier.Property) *PropertyModel {
	m := &PropertyModel{
		DossierID:     p.DossierID,
		Title:         p.Title,
		Vocation:      p.Vocation,
		Contenance:    p.Contenance,
		NatureType:    p.NatureType,
		OperationType: p.OperationType,
	}
	m.FromDomainDistrictAggregateRoot(p.DistrictAggregateRoot)
	return m
}

// RequesterModel is the persistence model for the Requester entity.
// CIN is indexed but not unique: the same person may appear in many dossiers.
type RequesterModel struct {
	DistrictAggregateModel
	DossierID  uuid.UUID  `gorm:"type:uuid;not null;index"`
	CIN        string     `gorm:"column:cin;type:varchar(12);not null;index"`
	LastName   string     `gorm:"type:varchar(100);not null"`
	FirstName  string     `gorm:"type:varchar(100)"`
	BirthDate  *time.Time `gorm:"type:date"`
	BirthPlace string     `gorm:"type:varchar(100)"`
	Address    string     `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (RequesterModel) TableName() string {
	return "requesters"
}

// ToDomain converts the persistence model to a domain Requester.
func (m *RequesterModel) ToDomain() *dossier.Requester {
	return &dossier.Requester{
		DistrictAggregateRoot: m.ToDistrictAggregateRoot(),
		DossierID:             m.DossierID,
		CIN:                   m.CIN,
		LastName:              m.LastName,
		FirstName:             m.FirstName,
		BirthDate:             m.BirthDate,
		BirthPlace:            m.BirthPlace,
		Address:               m.Address,
	}
}

// RequesterModelFromDomain creates a persistence model from a domain Requester.
func RequesterModelFromDomain(r *dossier.Requester) *RequesterModel {
	m := &RequesterModel{
		DossierID:  r.DossierID,
		CIN:        r.CIN,
		LastName:   r.LastName,
		FirstName:  r.FirstName,
		BirthDate:  r.BirthDate,
		BirthPlace: r.BirthPlace,
		Address:    r.Address,
	}
	m.FromDomainDistrictAggregateRoot(r.DistrictAggregateRoot)
	return m
}

// AssociationModel is the persistence model for the Association entity.
// (property_id, ordre) is unique across all statuses so an ordre is never reused;
// (requester_id, property_id) is unique among active rows only.
type AssociationModel struct {
	DistrictAggregateModel
	RequesterID     uuid.UUID                 `gorm:"type:uuid;not null;uniqueIndex:idx_associations_active_pair,where:status = 'active'"`
	PropertyID      uuid.UUID                 `gorm:"type:uuid;not null;uniqueIndex:idx_associations_property_ordre,priority:1;uniqueIndex:idx_associations_active_pair,where:status = 'active'"`
	DossierID       uuid.UUID                 `gorm:"type:uuid;not null;index"`
	Ordre           int                       `gorm:"not null;uniqueIndex:idx_associations_property_ordre,priority:2"`
	Status          dossier.AssociationStatus `gorm:"type:varchar(20);not null;default:'active'"`
	TotalPrice      decimal.Decimal           `gorm:"type:decimal(18,2);not null;default:0"`
	PriceStale      bool                      `gorm:"not null;default:false;index"`
	PriceComputedAt *time.Time
	ArchiveReason   *string                   `gorm:"type:varchar(500)"`
	ArchivedAt      *time.Time
	ArchivedBy      *uuid.UUID                `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (AssociationModel) TableName() string {
	return "associations"
}

// ToDomain converts the persistence model to a domain Association.
func (m *AssociationModel) ToDomain() *dossier.Association {
	return &dossier.Association{
		DistrictAggregateRoot: m.ToDistrictAggregateRoot(),
		RequesterID:           m.RequesterID,
		PropertyID:            m.PropertyID,
		DossierID:             m.DossierID,
		Ordre:                 m.Ordre,
		Status:                m.Status,
		TotalPrice:            m.TotalPrice,
		PriceStale:            m.PriceStale,
		PriceComputedAt:       m.PriceComputedAt,
		ArchiveReason:         m.ArchiveReason,
		ArchivedAt:            m.ArchivedAt,
		ArchivedBy:            m.ArchivedBy,
	}
}

// AssociationModelFromDomain creates a persistence model from a domain Association.
func AssociationModelFromDomain(a *dossier.Association) *AssociationModel {
	m := &AssociationModel{
		RequesterID:     a.RequesterID,
		PropertyID:      a.PropertyID,
		DossierID:       a.DossierID,
		Ordre:           a.Ordre,
		Status:          a.Status,
		TotalPrice:      a.TotalPrice,
		PriceStale:      a.PriceStale,
		PriceComputedAt: a.PriceComputedAt,
		ArchiveReason:   a.ArchiveReason,
		ArchivedAt:      a.ArchivedAt,
		ArchivedBy:      a.ArchivedBy,
	}
	m.FromDomainDistrictAggregateRoot(a.DistrictAggregateRoot)
	return m
}

// PricingTargetRow is the association ⨝ property projection used by price recomputation
type PricingTargetRow struct {
	AssociationID uuid.UUID
	PropertyID    uuid.UUID
	DistrictID    uuid.UUID
	Vocation      geo.Vocation
	Contenance    int64
}

// ToDomain converts the row to a dossier.PricingTarget
func (r PricingTargetRow) ToDomain() dossier.PricingTarget {
	return dossier.PricingTarget{
		AssociationID: r.AssociationID,
		PropertyID:    r.PropertyID,
		DistrictID:    r.DistrictID,
		Vocation:      r.Vocation,
		Contenance:    r.Contenance,
	}
}
