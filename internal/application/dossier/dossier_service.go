// Package dossier manages the dossier records (dossiers, properties and
// requesters) and fires the lifecycle hooks that keep prices and cached
// district statistics in step with them.
package dossier

import (
	"context"
	"fmt"

	"github.com/foncier/backend/internal/application/lifecycle"
	"github.com/foncier/backend/internal/application/uow"
	"github.com/foncier/backend/internal/domain/dossier"
	"github.com/foncier/backend/internal/domain/geo"
	"github.com/foncier/backend/internal/domain/shared"
	"github.com/foncier/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ScopeResolver turns a hierarchy filter into the districts the context actor may see
type ScopeResolver interface {
	Resolve(ctx context.Context, filter geo.Filter) ([]uuid.UUID, error)
}

// CreateDossierRequest represents a request to open a new dossier
type CreateDossierRequest struct {
	DistrictID uuid.UUID
	Number     string
	Label      string
}

// DossierService handles dossier lifecycle operations
type DossierService struct {
	txScope    uow.TransactionScope
	dossiers   dossier.DossierRepository
	hierarchy  geo.HierarchyRepository
	resolver   ScopeResolver
	dispatcher *lifecycle.Dispatcher
	publisher  shared.EventPublisher
	logger     *zap.Logger
}

// NewDossierService creates a new DossierService
func NewDossierService(
	txScope uow.TransactionScope,
	dossiers dossier.DossierRepository,
	hierarchy geo.HierarchyRepository,
	resolver ScopeResolver,
	dispatcher *lifecycle.Dispatcher,
	logger *zap.Logger,
) *DossierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DossierService{
		txScope:    txScope,
		dossiers:   dossiers,
		hierarchy:  hierarchy,
		resolver:   resolver,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *DossierService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// Create opens a dossier in a district inside the actor's scope
func (s *DossierService) Create(ctx context.Context, req CreateDossierRequest) (*dossier.Dossier, error) {
	actor, err := geo.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := actor.EnsureDistrict(req.DistrictID); err != nil {
		return nil, err
	}
	if _, err := s.hierarchy.FindDistrict(ctx, req.DistrictID); err != nil {
		return nil, err
	}

	d, err := dossier.NewDossier(req.DistrictID, req.Number, req.Label, actor.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.dossiers.Save(ctx, d); err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, s.logger, d)
	logger.WithLogger(ctx, s.logger).Info("Dossier created",
		zap.String("dossier_id", d.ID.String()),
		zap.String("number", d.Number),
		zap.String("district_id", d.DistrictID.String()),
	)
	dispatch(ctx, s.dispatcher, &lifecycle.Mutation{
		Entity:     lifecycle.EntityDossier,
		Phase:      lifecycle.PhaseCreated,
		EntityID:   d.ID,
		DistrictID: d.DistrictID,
	})
	return d, nil
}

// Get returns a dossier the actor can see
func (s *DossierService) Get(ctx context.Context, id uuid.UUID) (*dossier.Dossier, error) {
	actor, err := geo.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	d, err := s.dossiers.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := actor.EnsureDistrict(d.DistrictID); err != nil {
		return nil, err
	}
	return d, nil
}

// List returns a page of the dossiers in the actor's resolved scope
func (s *DossierService) List(ctx context.Context, scope geo.Filter, page shared.Filter) (shared.Paginated[dossier.Dossier], error) {
	districtIDs, err := s.resolver.Resolve(ctx, scope)
	if err != nil {
		return shared.Paginated[dossier.Dossier]{}, err
	}
	items, total, err := s.dossiers.FindByDistricts(ctx, districtIDs, page)
	if err != nil {
		return shared.Paginated[dossier.Dossier]{}, err
	}
	return shared.NewPaginated(items, total, page.Page, page.Limit()), nil
}

// Close gates a dossier against new associations and documents. Privileged roles only.
func (s *DossierService) Close(ctx context.Context, id uuid.UUID) (*dossier.Dossier, error) {
	return s.transition(ctx, id, "Dossier closed", func(d *dossier.Dossier, actorID uuid.UUID) error {
		return d.Close(actorID)
	})
}

// Reopen lifts the closing gate. Privileged roles only.
func (s *DossierService) Reopen(ctx context.Context, id uuid.UUID) (*dossier.Dossier, error) {
	return s.transition(ctx, id, "Dossier reopened", func(d *dossier.Dossier, actorID uuid.UUID) error {
		return d.Reopen(actorID)
	})
}

func (s *DossierService) transition(ctx context.Context, id uuid.UUID, msg string, apply func(*dossier.Dossier, uuid.UUID) error) (*dossier.Dossier, error) {
	actor, err := geo.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := actor.EnsurePrivileged(); err != nil {
		return nil, err
	}

	var updated *dossier.Dossier
	err = s.txScope.Execute(ctx, func(tx uow.TransactionalRepositories) error {
		// waits out associations and documents that already passed the open check
		d, err := tx.DossierRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := actor.EnsureDistrict(d.DistrictID); err != nil {
			return err
		}
		if err := apply(d, actor.UserID); err != nil {
			return err
		}
		if err := tx.DossierRepo().Save(ctx, d); err != nil {
			return err
		}
		updated = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, s.logger, updated)
	logger.WithLogger(ctx, s.logger).Info(msg,
		zap.String("dossier_id", updated.ID.String()),
		zap.String("number", updated.Number),
	)
	dispatch(ctx, s.dispatcher, &lifecycle.Mutation{
		Entity:     lifecycle.EntityDossier,
		Phase:      lifecycle.PhaseUpdated,
		EntityID:   updated.ID,
		DistrictID: updated.DistrictID,
	})
	return updated, nil
}

// Delete removes an empty dossier. A dossier still holding properties,
// requesters or issued documents is refused.
func (s *DossierService) Delete(ctx context.Context, id uuid.UUID) error {
	actor, err := geo.RequireActor(ctx)
	if err != nil {
		return err
	}
	if err := actor.EnsurePrivileged(); err != nil {
		return err
	}

	var deleted *dossier.Dossier
	err = s.txScope.Execute(ctx, func(tx uow.TransactionalRepositories) error {
		d, err := tx.DossierRepo().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := actor.EnsureDistrict(d.DistrictID); err != nil {
			return err
		}

		properties, err := tx.PropertyRepo().CountByDossier(ctx, id)
		if err != nil {
			return fmt.Errorf("count properties of dossier %s: %w", id, err)
		}
		requesters, err := tx.RequesterRepo().CountByDossier(ctx, id)
		if err != nil {
			return fmt.Errorf("count requesters of dossier %s: %w", id, err)
		}
		docs, err := tx.DocumentRepo().FindByDossier(ctx, id)
		if err != nil {
			return fmt.Errorf("list documents of dossier %s: %w", id, err)
		}
		if properties > 0 || requesters > 0 || len(docs) > 0 {
			return shared.ErrInvalidState.WithMessage(fmt.Sprintf(
				"Dossier %s still holds %d properties, %d requesters and %d documents",
				d.Number, properties, requesters, len(docs)))
		}

		if err := tx.DossierRepo().Delete(ctx, id); err != nil {
			return err
		}
		d.AddDomainEvent(dossier.NewDossierUpdatedEvent(d, actor.UserID, dossier.EventTypeDossierDeleted))
		deleted = d
		return nil
	})
	if err != nil {
		return err
	}

	publish(ctx, s.publisher, s.logger, deleted)
	logger.WithLogger(ctx, s.logger).Info("Dossier deleted",
		zap.String("dossier_id", deleted.ID.String()),
		zap.String("number", deleted.Number),
	)
	dispatch(ctx, s.dispatcher, &lifecycle.Mutation{
		Entity:     lifecycle.EntityDossier,
		Phase:      lifecycle.PhaseDeleted,
		EntityID:   deleted.ID,
		DistrictID: deleted.DistrictID,
	})
	return nil
}
