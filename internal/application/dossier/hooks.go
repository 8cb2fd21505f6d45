package dossier

import (
	"context"

	"github.com/foncier/backend/internal/application/lifecycle"
	"github.com/foncier/backend/internal/domain/shared"
	"github.com/foncier/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type eventSource interface {
	GetID() uuid.UUID
	GetDomainEvents() []shared.DomainEvent
	ClearDomainEvents()
}

// publish drains the pending events of an aggregate. Publish failures are logged only.
func publish(ctx context.Context, publisher shared.EventPublisher, log *zap.Logger, src eventSource) {
	events := src.GetDomainEvents()
	src.ClearDomainEvents()
	if publisher == nil || len(events) == 0 {
		return
	}
	if err := publisher.Publish(ctx, events...); err != nil {
		logger.WithLogger(ctx, log).Warn("Failed to publish domain events",
			zap.String("aggregate_id", src.GetID().String()),
			zap.Error(err),
		)
	}
}

// dispatch fires post-commit hooks. Those are all Degrade, so the result is dropped.
func dispatch(ctx context.Context, d *lifecycle.Dispatcher, m *lifecycle.Mutation) {
	if d == nil {
		return
	}
	_ = d.Dispatch(ctx, m)
}
