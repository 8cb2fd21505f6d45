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

// PropertyService handles property lifecycle operations
type PropertyService struct {
	txScope    uow.TransactionScope
	properties dossier.PropertyRepository
	dispatcher *lifecycle.Dispatcher
	publisher  shared.EventPublisher
	logger     *zap.Logger
}

// NewPropertyService creates a new PropertyService
func NewPropertyService(txScope uow.TransactionScope, properties dossier.PropertyRepository, dispatcher *lifecycle.Dispatcher, logger *zap.Logger) *PropertyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PropertyService{
		txScope:    txScope,
		properties: properties,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *PropertyService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// Create adds a property to an open dossier
func (s *PropertyService) Create(ctx context.Context, dossierID uuid.UUID, in dossier.PropertyInput) (*dossier.Property, error) {
	actor, err := geo.RequireActor(ctx)
	if err != nil {
		return nil, err
	}

	var created *dossier.Property
	err = s.txScope.Execute(ctx, func(tx uow.TransactionalRepositories) error {
		d, err := tx.DossierRepo().FindByID(ctx, dossierID)
		if err != nil {
			return err
		}
		if err := actor.EnsureDistrict(d.DistrictID); err != nil {
			return err
		}
		p, err := dossier.NewProperty(d, in, actor.UserID)
		if err != nil {
			return err
		}
		if err := tx.PropertyRepo().Save(ctx, p); err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, s.logger, created)
	dispatch(ctx, s.dispatcher, &lifecycle.Mutation{
		Entity:     lifecycle.EntityProperty,
		Phase:      lifecycle.PhaseCreated,
		EntityID:   created.ID,
		DistrictID: created.DistrictID,
		Property:   created,
	})
	return created, nil
}

// Get returns a property the actor can see
func (s *PropertyService) Get(ctx context.Context, id uuid.UUID) (*dossier.Property, error) {
	actor, err := geo.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.properties.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := actor.EnsureDistrict(p.DistrictID); err != nil {
		return nil, err
	}
	return p, nil
}

// Update replaces the attributes of a property. When the vocation or the
// contenance changes, the updated hooks reprice its active associations.
func (s *PropertyService) Update(ctx context.Context, id uuid.UUID, in dossier.PropertyInput) (*dossier.Property, error) {
	actor, err := geo.RequireActor(ctx)
	if err != nil {
		return nil, err
	}

	var (
		updated *dossier.Property
		changed bool
	)
	err = s.txScope.Execute(ctx, func(tx uow.TransactionalRepositories) error {
		p, err := tx.PropertyRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := actor.EnsureDistrict(p.DistrictID); err != nil {
			return err
		}
		before := p.PriceInputs()
		if _, err := p.Update(in, actor.UserID); err != nil {
			return err
		}

		m := &lifecycle.Mutation{
			Entity:     lifecycle.EntityProperty,
			Phase:      lifecycle.PhaseUpdating,
			EntityID:   p.ID,
			DistrictID: p.DistrictID,
			Property:   p,
			Before:     &before,
			Tx:         tx,
		}
		if s.dispatcher != nil {
			if err := s.dispatcher.Dispatch(ctx, m); err != nil {
				return err
			}
		}
		if err := tx.PropertyRepo().Save(ctx, p); err != nil {
			return err
		}
		updated, changed = p, m.PriceInputsChanged
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, s.logger, updated)
	if changed {
		logger.WithLogger(ctx, s.logger).Info("Property price inputs changed",
			zap.String("property_id", updated.ID.String()),
			zap.String("vocation", string(updated.Vocation)),
			zap.Int64("contenance", updated.Contenance),
		)
	}
	dispatch(ctx, s.dispatcher, &lifecycle.Mutation{
		Entity:             lifecycle.EntityProperty,
		Phase:              lifecycle.PhaseUpdated,
		EntityID:           updated.ID,
		DistrictID:         updated.DistrictID,
		Property:           updated,
		PriceInputsChanged: changed,
	})
	return updated, nil
}

// Delete removes a property that no active association references
func (s *PropertyService) Delete(ctx context.Context, id uuid.UUID) error {
	actor, err := geo.RequireActor(ctx)
	if err != nil {
		return err
	}

	var deleted *dossier.Property
	err = s.txScope.Execute(ctx, func(tx uow.TransactionalRepositories) error {
		p, err := tx.PropertyRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := actor.EnsureDistrict(p.DistrictID); err != nil {
			return err
		}
		active, err := tx.AssociationRepo().CountActiveByProperty(ctx, id)
		if err != nil {
			return fmt.Errorf("count active associations of property %s: %w", id, err)
		}
		if active > 0 {
			return shared.ErrInvalidState.WithMessage(fmt.Sprintf("Property still has %d active associations", active))
		}
		if err := tx.PropertyRepo().Delete(ctx, id); err != nil {
			return err
		}
		p.AddDomainEvent(dossier.NewPropertyDeletedEvent(p, actor.UserID))
		deleted = p
		return nil
	})
	if err != nil {
		return err
	}

	publish(ctx, s.publisher, s.logger, deleted)
	dispatch(ctx, s.dispatcher, &lifecycle.Mutation{
		Entity:     lifecycle.EntityProperty,
		Phase:      lifecycle.PhaseDeleted,
		EntityID:   deleted.ID,
		DistrictID: deleted.DistrictID,
		Property:   deleted,
	})
	return nil
}

// ListByDossier returns the properties of a dossier the actor can see
func (s *PropertyService) ListByDossier(ctx context.Context, dossierID uuid.UUID) ([]dossier.Property, error) {
	actor, err := geo.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.properties.FindByDossier(ctx, dossierID)
	if err != nil {
		return nil, err
	}
	for _, p := range items {
		if err := actor.EnsureDistrict(p.DistrictID); err != nil {
			return nil, err
		}
	}
	return items, nil
}
