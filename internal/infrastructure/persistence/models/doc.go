// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
//   - base.go: base persistence models (BaseModel, AggregateModel, DistrictAggregateModel)
//   - geo.go: provinces, regions, districts and district tariff rates
//   - dossier.go: dossiers, properties, requesters and associations
//   - document.go: generated documents and numbering sequences
//
// The unique indexes that carry the concurrency invariants (ordre per
// property, active number per scope) live in the SQL migrations; the tags
// here mirror them for AutoMigrate in tests.
package models

// All returns every model, in dependency order, for AutoMigrate
func All() []any {
	return []any{
		&ProvinceModel{},
		&RegionModel{},
		&DistrictModel{},
		&TariffRateModel{},
		&DossierModel{},
		&PropertyModel{},
		&RequesterModel{},
		&AssociationModel{},
		&GeneratedDocumentModel{},
		&DocumentSequenceModel{},
	}
}
