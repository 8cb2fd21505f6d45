package persistence

import (
	"context"

	"github.com/foncier/backend/internal/domain/document"
	"github.com/foncier/backend/internal/domain/shared"
	"github.com/foncier/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormDocumentRepository implements DocumentRepository using GORM
type GormDocumentRepository struct {
	db *gorm.DB
}

// NewGormDocumentRepository creates a new GormDocumentRepository
func NewGormDocumentRepository(db *gorm.DB) *GormDocumentRepository {
	return &GormDocumentRepository{db: db}
}

// FindByID finds a document by its ID
func (r *GormDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*document.GeneratedDocument, error) {
	var model models.GeneratedDocumentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, nil)
	}
	return model.ToDomain(), nil
}

// FindActive returns the active documents of one (dossier, type, entity) slot
func (r *GormDocumentRepository) FindActive(ctx context.Context, dossierID uuid.UUID, docType document.Type, entityKey *uuid.UUID) ([]document.GeneratedDocument, error) {
	query := r.db.WithContext(ctx).
		Where("dossier_id = ? AND type = ? AND status = ?", dossierID, docType, document.StatusActive)
	if entityKey == nil {
		query = query.Where("entity_key IS NULL")
	} else {
		query = query.Where("entity_key = ?", *entityKey)
	}

	var rows []models.GeneratedDocumentModel
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDocuments(rows), nil
}

// FindActiveByNumber finds the active document holding number within a scope
func (r *GormDocumentRepository) FindActiveByNumber(ctx context.Context, scopeKey, number string) (*document.GeneratedDocument, error) {
	var model models.GeneratedDocumentModel
	if err := r.db.WithContext(ctx).
		Where("scope_key = ? AND number = ? AND status = ?", scopeKey, number, document.StatusActive).
		First(&model).Error; err != nil {
		return nil, translateError(err, nil)
	}
	return model.ToDomain(), nil
}

// FindByDossier lists every document of a dossier, newest first
func (r *GormDocumentRepository) FindByDossier(ctx context.Context, dossierID uuid.UUID) ([]document.GeneratedDocument, error) {
	var rows []models.GeneratedDocumentModel
	if err := r.db.WithContext(ctx).
		Where("dossier_id = ?", dossierID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDocuments(rows), nil
}

// Create inserts a document
func (r *GormDocumentRepository) Create(ctx context.Context, doc *document.GeneratedDocument) error {
	err := r.db.WithContext(ctx).Create(models.GeneratedDocumentModelFromDomain(doc)).Error
	return translateError(err, shared.ErrDuplicateNumber.WithMessage("Number "+doc.Number+" is already used by an active document"))
}

// Save updates a document with optimistic locking
func (r *GormDocumentRepository) Save(ctx context.Context, doc *document.GeneratedDocument) error {
	model := models.GeneratedDocumentModelFromDomain(doc)
	result := r.db.WithContext(ctx).
		Model(model).
		Select("status", "storage_path", "superseded_at", "superseded_by", "version", "updated_at").
		Where("id = ? AND version = ?", doc.ID, doc.Version-1).
		Updates(model)

	if result.Error != nil {
		return translateError(result.Error, shared.ErrDuplicateNumber)
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict.WithMessage("The document has been modified by another transaction")
	}
	return nil
}

func toDocuments(rows []models.GeneratedDocumentModel) []document.GeneratedDocument {
	docs := make([]document.GeneratedDocument, len(rows))
	for i := range rows {
		docs[i] = *rows[i].ToDomain()
	}
	return docs
}

// Ensure GormDocumentRepository implements DocumentRepository
var _ document.DocumentRepository = (*GormDocumentRepository)(nil)
