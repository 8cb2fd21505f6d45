package event

import (
	"context"

	"github.com/foncier/backend/internal/domain/document"
	"github.com/foncier/backend/internal/domain/dossier"
	"github.com/foncier/backend/internal/domain/geo"
	"github.com/foncier/backend/internal/domain/shared"
	"github.com/foncier/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// AuditLogHandler writes one structured audit line per notification
type AuditLogHandler struct {
	logger *zap.Logger
}

// NewAuditLogHandler creates an audit handler writing to the "audit" child logger
func NewAuditLogHandler(base *zap.Logger) *AuditLogHandler {
	if base == nil {
		base = zap.NewNop()
	}
	return &AuditLogHandler{logger: base.Named("audit")}
}

// EventTypes returns the notifications that are audited
func (h *AuditLogHandler) EventTypes() []string {
	return []string{
		dossier.EventTypeAssociationCreated,
		dossier.EventTypeAssociationDissociated,
		document.EventTypeDocumentAllocated,
		geo.EventTypeTariffChanged,
		dossier.EventTypeDossierClosed,
		dossier.EventTypeDossierReopened,
	}
}

// Handle writes the audit line
func (h *AuditLogHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.String("district_id", event.DistrictID().String()),
		zap.String("actor_id", event.ActorID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
	}
	if id := logger.GetCorrelationID(ctx); id != "" {
		fields = append(fields, zap.String("correlation_id", id))
	}

	switch e := event.(type) {
	case *dossier.AssociationCreatedEvent:
		fields = append(fields,
			zap.String("requester_id", e.RequesterID.String()),
			zap.String("property_id", e.PropertyID.String()),
			zap.Int("ordre", e.Ordre),
			zap.String("total_price", e.TotalPrice.String()),
		)
	case *dossier.AssociationDissociatedEvent:
		fields = append(fields,
			zap.String("requester_id", e.RequesterID.String()),
			zap.String("property_id", e.PropertyID.String()),
			zap.Int("ordre", e.Ordre),
			zap.String("reason", e.Reason),
		)
	case *document.DocumentAllocatedEvent:
		fields = append(fields,
			zap.String("document_type", string(e.Type)),
			zap.String("number", e.Number),
			zap.Strings("supersedes", e.Supersedes),
		)
	case *geo.TariffChangedEvent:
		for _, v := range geo.Vocations() {
			if rate, ok := e.NewRates[v]; ok {
				fields = append(fields, zap.String("rate_"+string(v), rate.String()))
			}
		}
	}

	h.logger.Info("Audit", fields...)
	return nil
}

var _ shared.EventHandler = (*AuditLogHandler)(nil)
