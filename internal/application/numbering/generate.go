package numbering

import (
	"context"
	"fmt"

	"github.com/foncier/backend/internal/domain/document"
	"github.com/foncier/backend/internal/domain/dossier"
	"github.com/foncier/backend/internal/domain/pricing"
	"github.com/foncier/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// GenerateResult is the outcome of one generation.
// RenderErr is set when the artifact could not be produced; the document stays allocated.
type GenerateResult struct {
	Document  *document.GeneratedDocument
	Rendered  *document.RenderResult
	RenderErr error
}

// DataSource reads the records a document is built from
type DataSource struct {
	Dossiers     dossier.DossierRepository
	Properties   dossier.PropertyRepository
	Requesters   dossier.RequesterRepository
	Associations dossier.AssociationRepository
}

// Generate allocates a number, builds the data bag and renders the document.
// A render failure is reported in the result and does not release the number.
func (s *Service) Generate(ctx context.Context, req AllocateRequest, src DataSource) (*GenerateResult, error) {
	doc, err := s.AllocateNumber(ctx, req)
	if err != nil {
		return nil, err
	}
	result := &GenerateResult{Document: doc}
	if s.renderer == nil {
		return result, nil
	}

	data, err := buildData(ctx, doc, src)
	if err == nil {
		var rendered document.RenderResult
		rendered, err = s.renderer.Render(ctx, document.RenderRequest{Document: doc, Data: data})
		if err == nil {
			result.Rendered = &rendered
		}
	}
	if err != nil {
		result.RenderErr = err
		logger.WithLogger(ctx, s.logger).Warn("Document rendering failed, number stays allocated",
			zap.String("document_id", doc.ID.String()),
			zap.String("number", doc.Number),
			zap.Error(err),
		)
		return result, nil
	}

	doc.SetStoragePath(result.Rendered.StoragePath)
	if err := s.documents.Save(ctx, doc); err != nil {
		return result, fmt.Errorf("record storage path of document %s: %w", doc.ID, err)
	}
	return result, nil
}

// buildData flattens the dossier records into template fields with French formatting
func buildData(ctx context.Context, doc *document.GeneratedDocument, src DataSource) (map[string]string, error) {
	d, err := src.Dossiers.FindByID(ctx, doc.DossierID)
	if err != nil {
		return nil, err
	}
	spec, err := doc.Type.Spec()
	if err != nil {
		return nil, err
	}
	data := map[string]string{
		"document_type":  spec.Label,
		"number":         doc.Number,
		"dossier_number": d.Number,
		"dossier_label":  d.Label,
		"date":           doc.CreatedAt.Format("02/01/2006"),
	}
	if doc.EntityKey == nil {
		return data, nil
	}

	a, err := src.Associations.FindByID(ctx, *doc.EntityKey)
	if err != nil {
		return nil, err
	}
	r, err := src.Requesters.FindByID(ctx, a.RequesterID)
	if err != nil {
		return nil, err
	}
	p, err := src.Properties.FindByID(ctx, a.PropertyID)
	if err != nil {
		return nil, err
	}
	data["ordre"] = pricing.FormatInteger(int64(a.Ordre))
	data["total_price"] = pricing.FormatAmount(a.TotalPrice)
	data["requester_name"] = r.FullName()
	data["requester_cin"] = r.CIN
	data["property_title"] = p.Title
	data["property_vocation"] = p.Vocation.Label()
	data["property_area"] = p.Area().String()
	return data, nil
}
