// Package association links requesters to properties, assigning each link
// its permanent rank and initial price.
package association

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foncier/backend/internal/application/lifecycle"
	"github.com/foncier/backend/internal/application/uow"
	"github.com/foncier/backend/internal/domain/dossier"
	"github.com/foncier/backend/internal/domain/geo"
	"github.com/foncier/backend/internal/domain/shared"
	"github.com/foncier/backend/internal/infrastructure/config"
	"github.com/foncier/backend/internal/infrastructure/logger"
	"github.com/foncier/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ranker creates associations with a strictly increasing ordre per property
type Ranker struct {
	txScope     uow.TransactionScope
	section     uow.KeyedSection
	lockTimeout time.Duration
	dispatcher  *lifecycle.Dispatcher
	publisher   shared.EventPublisher
	logger      *zap.Logger
}

// NewRanker creates a new Ranker
func NewRanker(txScope uow.TransactionScope, locker shared.KeyedLocker, dispatcher *lifecycle.Dispatcher, cfg config.NumberingConfig, logger *zap.Logger) *Ranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ranker{
		txScope: txScope,
		section: uow.KeyedSection{
			Locker:    locker,
			Wait:      cfg.LockTimeout,
			RetryOnce: cfg.RetryOnce,
			Scope:     telemetry.LockScopeRanking,
		},
		lockTimeout: cfg.LockTimeout,
		dispatcher:  dispatcher,
		logger:      logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (r *Ranker) SetEventPublisher(publisher shared.EventPublisher) {
	r.publisher = publisher
}

// SetMetrics sets the consistency metrics collector
func (r *Ranker) SetMetrics(m *telemetry.ConsistencyMetrics) {
	r.section.Metrics = m
}

// LinkRequesterToProperty creates the next-ranked association of a property.
// The read of the current maximum ordre and the insert happen under the
// property key and a row lock, so concurrent links never share an ordre.
func (r *Ranker) LinkRequesterToProperty(ctx context.Context, requesterID, propertyID uuid.UUID) (*dossier.Association, error) {
	actor, err := geo.RequireActor(ctx)
	if err != nil {
		return nil, err
	}

	var (
		created  *dossier.Association
		property *dossier.Property
	)
	err = r.section.Run(ctx, "property:"+propertyID.String(), func() error {
		return r.txScope.ExecuteWithLockTimeout(ctx, r.lockTimeout, func(tx uow.TransactionalRepositories) error {
			p, err := tx.PropertyRepo().FindByIDForUpdate(ctx, propertyID)
			if err != nil {
				return err
			}
			if err := actor.EnsureDistrict(p.DistrictID); err != nil {
				return err
			}
			d, err := tx.DossierRepo().FindByIDForShare(ctx, p.DossierID)
			if err != nil {
				return err
			}
			if err := d.EnsureOpen(); err != nil {
				return err
			}
			req, err := tx.RequesterRepo().FindByID(ctx, requesterID)
			if err != nil {
				return err
			}

			existing, err := tx.AssociationRepo().FindActiveByPair(ctx, requesterID, propertyID)
			if err != nil && !errors.Is(err, shared.ErrNotFound) {
				return err
			}
			if existing != nil {
				return shared.ErrAlreadyLinked
			}

			a, err := dossier.NewAssociation(req, p, actor.UserID)
			if err != nil {
				return err
			}
			maxOrdre, err := tx.AssociationRepo().MaxOrdre(ctx, propertyID)
			if err != nil {
				return fmt.Errorf("read max ordre of property %s: %w", propertyID, err)
			}
			if err := a.AssignOrdre(maxOrdre + 1); err != nil {
				return err
			}

			if err := r.dispatch(ctx, &lifecycle.Mutation{
				Entity:      lifecycle.EntityAssociation,
				Phase:       lifecycle.PhaseCreating,
				EntityID:    a.ID,
				DistrictID:  a.DistrictID,
				Property:    p,
				Association: a,
				Tx:          tx,
			}); err != nil {
				return err
			}
			if err := tx.AssociationRepo().Create(ctx, a); err != nil {
				return err
			}
			created, property = a, p
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	created.RecordCreated(actor.UserID)
	r.publish(ctx, created)

	logger.WithLogger(ctx, r.logger).Info("Requester linked to property",
		zap.String("association_id", created.ID.String()),
		zap.String("property_id", propertyID.String()),
		zap.Int("ordre", created.Ordre),
		zap.String("total_price", created.TotalPrice.String()),
	)

	_ = r.dispatch(ctx, &lifecycle.Mutation{
		Entity:      lifecycle.EntityAssociation,
		Phase:       lifecycle.PhaseCreated,
		EntityID:    created.ID,
		DistrictID:  created.DistrictID,
		Property:    property,
		Association: created,
	})
	return created, nil
}

// ArchiveAssociation deactivates an association. Its ordre stays taken.
func (r *Ranker) ArchiveAssociation(ctx context.Context, associationID uuid.UUID, reason string) (*dossier.Association, error) {
	actor, err := geo.RequireActor(ctx)
	if err != nil {
		return nil, err
	}

	var archived *dossier.Association
	err = r.txScope.Execute(ctx, func(tx uow.TransactionalRepositories) error {
		a, err := tx.AssociationRepo().FindByID(ctx, associationID)
		if err != nil {
			return err
		}
		if err := actor.EnsureDistrict(a.DistrictID); err != nil {
			return err
		}
		if err := a.Archive(reason, actor.UserID); err != nil {
			return err
		}
		if err := tx.AssociationRepo().Save(ctx, a); err != nil {
			return err
		}
		archived = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.publish(ctx, archived)
	_ = r.dispatch(ctx, &lifecycle.Mutation{
		Entity:      lifecycle.EntityAssociation,
		Phase:       lifecycle.PhaseUpdated,
		EntityID:    archived.ID,
		DistrictID:  archived.DistrictID,
		Association: archived,
	})
	return archived, nil
}

func (r *Ranker) dispatch(ctx context.Context, m *lifecycle.Mutation) error {
	if r.dispatcher == nil {
		return nil
	}
	return r.dispatcher.Dispatch(ctx, m)
}

func (r *Ranker) publish(ctx context.Context, a *dossier.Association) {
	events := a.GetDomainEvents()
	a.ClearDomainEvents()
	if r.publisher == nil || len(events) == 0 {
		return
	}
	if err := r.publisher.Publish(ctx, events...); err != nil {
		logger.WithLogger(ctx, r.logger).Warn("Failed to publish association events",
			zap.String("association_id", a.ID.String()),
			zap.Error(err),
		)
	}
}
