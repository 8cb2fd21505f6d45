package pricing

import (
	"context"
	"fmt"

	"github.com/foncier/backend/internal/application/lifecycle"
	"github.com/foncier/backend/internal/domain/geo"
	"github.com/foncier/backend/internal/domain/shared"
	"github.com/foncier/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UpdateTariffRequest replaces the whole rate table of a district.
// A vocation absent from Rates has no rate afterwards.
type UpdateTariffRequest struct {
	DistrictID uuid.UUID
	Rates      map[geo.Vocation]decimal.Decimal
}

// TariffService administers district tariffs
type TariffService struct {
	tariffs    geo.TariffRepository
	hierarchy  geo.HierarchyRepository
	dispatcher *lifecycle.Dispatcher
	publisher  shared.EventPublisher
	logger     *zap.Logger
}

// NewTariffService creates a new TariffService
func NewTariffService(tariffs geo.TariffRepository, hierarchy geo.HierarchyRepository, dispatcher *lifecycle.Dispatcher, logger *zap.Logger) *TariffService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TariffService{
		tariffs:    tariffs,
		hierarchy:  hierarchy,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *TariffService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// GetTariff returns the tariff of a district the actor can see
func (s *TariffService) GetTariff(ctx context.Context, districtID uuid.UUID) (*geo.Tariff, error) {
	actor, err := geo.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := actor.EnsureDistrict(districtID); err != nil {
		return nil, err
	}
	return s.tariffs.TariffFor(ctx, districtID)
}

// UpdateTariff replaces a district tariff and cascades the change to the
// prices of the district. Only privileged actors may change tariffs.
func (s *TariffService) UpdateTariff(ctx context.Context, req UpdateTariffRequest) (*geo.Tariff, error) {
	actor, err := geo.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := actor.EnsurePrivileged(); err != nil {
		return nil, err
	}
	if err := actor.EnsureDistrict(req.DistrictID); err != nil {
		return nil, err
	}
	if _, err := s.hierarchy.FindDistrict(ctx, req.DistrictID); err != nil {
		return nil, err
	}

	next := geo.NewTariff(req.DistrictID)
	for v, rate := range req.Rates {
		if err := next.SetRate(v, rate); err != nil {
			return nil, err
		}
	}
	next.UpdatedBy = &actor.UserID

	current, err := s.tariffs.TariffFor(ctx, req.DistrictID)
	if err != nil {
		return nil, fmt.Errorf("load tariff of district %s: %w", req.DistrictID, err)
	}
	if current.Equal(next) {
		return current, nil
	}

	if err := s.tariffs.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("save tariff of district %s: %w", req.DistrictID, err)
	}

	logger.WithLogger(ctx, s.logger).Info("District tariff updated",
		zap.String("district_id", req.DistrictID.String()),
		zap.String("actor_id", actor.UserID.String()),
		zap.Int("rates", len(next.Rates)),
	)

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, geo.NewTariffChangedEvent(current, next, actor.UserID)); err != nil {
			logger.WithLogger(ctx, s.logger).Warn("Failed to publish tariff change", zap.Error(err))
		}
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.Dispatch(ctx, &lifecycle.Mutation{
			Entity:     lifecycle.EntityDistrict,
			Phase:      lifecycle.PhaseUpdated,
			EntityID:   req.DistrictID,
			DistrictID: req.DistrictID,
		})
	}
	return next, nil
}
