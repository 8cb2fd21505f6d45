// Package pricing keeps association prices consistent with property
// attributes and district tariffs: initial pricing, property-driven
// recomputes, tariff cascades and the stale price sweep.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foncier/backend/internal/domain/dossier"
	"github.com/foncier/backend/internal/domain/geo"
	"github.com/foncier/backend/internal/domain/pricing"
	"github.com/foncier/backend/internal/infrastructure/logger"
	"github.com/foncier/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Recomputer computes and persists association prices
type Recomputer struct {
	associations dossier.AssociationRepository
	tariffs      geo.TariffProvider
	logger       *zap.Logger
	metrics      *telemetry.ConsistencyMetrics
	now          func() time.Time
}

// NewRecomputer creates a new Recomputer
func NewRecomputer(associations dossier.AssociationRepository, tariffs geo.TariffProvider, logger *zap.Logger) *Recomputer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recomputer{
		associations: associations,
		tariffs:      tariffs,
		logger:       logger,
		now:          time.Now,
	}
}

// SetMetrics sets the consistency metrics collector
func (r *Recomputer) SetMetrics(m *telemetry.ConsistencyMetrics) {
	r.metrics = m
}

// PriceNew sets the initial price of an association before it is inserted.
// A missing rate prices it at the unpriced sentinel with a warning; a
// corrupted tariff or a failed lookup refuses the creation.
func (r *Recomputer) PriceNew(ctx context.Context, tariffs geo.TariffProvider, a *dossier.Association, p *dossier.Property) error {
	if tariffs == nil {
		tariffs = r.tariffs
	}
	tariff, err := tariffs.TariffFor(ctx, p.DistrictID)
	if err != nil {
		return fmt.Errorf("load tariff of district %s: %w", p.DistrictID, err)
	}
	amount, outcome, err := pricing.Price(p.PriceInputs(), tariff)
	if err != nil {
		return err
	}
	if outcome == pricing.Unpriced {
		logger.WithLogger(ctx, r.logger).Warn("No tariff rate for property vocation, association left unpriced",
			zap.String("property_id", p.ID.String()),
			zap.String("district_id", p.DistrictID.String()),
			zap.String("vocation", string(p.Vocation)),
		)
	}
	a.ApplyPrice(amount, r.now())
	r.metrics.RecordPriceRecomputed(ctx, telemetry.TriggerAssociationCreate, 1, outcome == pricing.Priced)
	return nil
}

// RecomputeProperty reprices every active association of a property
func (r *Recomputer) RecomputeProperty(ctx context.Context, propertyID uuid.UUID) error {
	targets, err := r.associations.FindPricingTargetsByProperty(ctx, propertyID)
	if err != nil {
		return fmt.Errorf("load associations of property %s: %w", propertyID, err)
	}
	return r.Reprice(ctx, telemetry.TriggerPropertyUpdate, targets)
}

// Reprice computes the prices of targets and writes them in one transaction.
// Targets whose property or rate changed after they were read are reloaded
// and repriced once; those still moving are flagged stale for the sweep.
// When the write fails the targets are flagged stale and the error is returned.
func (r *Recomputer) Reprice(ctx context.Context, trigger string, targets []dossier.PricingTarget) error {
	if len(targets) == 0 {
		return nil
	}

	moved, err := r.write(ctx, trigger, targets)
	if err == nil && len(moved) > 0 {
		var fresh []dossier.PricingTarget
		fresh, err = r.associations.FindPricingTargetsByIDs(ctx, moved)
		if err == nil {
			moved, err = r.write(ctx, trigger, fresh)
		}
		if err == nil && len(moved) > 0 {
			logger.WithLogger(ctx, r.logger).Warn("Price inputs kept changing during recompute, associations left stale",
				zap.String("trigger", trigger),
				zap.Int("associations", len(moved)),
			)
			err = r.markStaleIDs(ctx, trigger, moved)
		}
	}
	if err != nil {
		r.metrics.RecordRecomputeFailure(ctx, trigger, int64(len(targets)))
		if markErr := r.MarkStale(ctx, trigger, targets); markErr != nil {
			return errors.Join(err, markErr)
		}
		return err
	}
	return nil
}

func (r *Recomputer) write(ctx context.Context, trigger string, targets []dossier.PricingTarget) ([]uuid.UUID, error) {
	if len(targets) == 0 {
		return nil, nil
	}
	updates, unpriced, err := r.compute(ctx, targets)
	if err != nil {
		return nil, err
	}
	moved, err := r.associations.UpdatePrices(ctx, updates)
	if err != nil {
		return nil, err
	}

	written := int64(len(updates) - len(moved))
	unpriced = min(unpriced, written)
	r.metrics.RecordPriceRecomputed(ctx, trigger, written-unpriced, true)
	r.metrics.RecordPriceRecomputed(ctx, trigger, unpriced, false)
	if unpriced > 0 {
		logger.WithLogger(ctx, r.logger).Warn("Associations left unpriced, tariff has no rate for their vocation",
			zap.String("trigger", trigger),
			zap.Int64("unpriced", unpriced),
		)
	}
	return moved, nil
}

// MarkStale flags targets as pending recompute
func (r *Recomputer) MarkStale(ctx context.Context, trigger string, targets []dossier.PricingTarget) error {
	ids := make([]uuid.UUID, len(targets))
	for i, t := range targets {
		ids[i] = t.AssociationID
	}
	return r.markStaleIDs(ctx, trigger, ids)
}

func (r *Recomputer) markStaleIDs(ctx context.Context, trigger string, ids []uuid.UUID) error {
	if err := r.associations.MarkStale(ctx, ids); err != nil {
		return fmt.Errorf("flag %d associations stale: %w", len(ids), err)
	}
	r.metrics.RecordStaleMarked(ctx, trigger, int64(len(ids)))
	return nil
}

func (r *Recomputer) compute(ctx context.Context, targets []dossier.PricingTarget) ([]dossier.PriceUpdate, int64, error) {
	tariffs := make(map[uuid.UUID]*geo.Tariff)
	now := r.now()
	updates := make([]dossier.PriceUpdate, 0, len(targets))
	var unpriced int64

	for _, t := range targets {
		tariff, ok := tariffs[t.DistrictID]
		if !ok {
			var err error
			tariff, err = r.tariffs.TariffFor(ctx, t.DistrictID)
			if err != nil {
				return nil, 0, fmt.Errorf("load tariff of district %s: %w", t.DistrictID, err)
			}
			if err := pricing.CheckTariff(tariff); err != nil {
				return nil, 0, err
			}
			tariffs[t.DistrictID] = tariff
		}

		amount, outcome := pricing.ComputePrice(dossier.PriceInputs{Vocation: t.Vocation, Contenance: t.Contenance}, tariff)
		if outcome == pricing.Unpriced {
			unpriced++
		}
		rate, ok := tariff.Rate(t.Vocation)
		updates = append(updates, dossier.PriceUpdate{
			AssociationID: t.AssociationID,
			TotalPrice:    amount,
			ComputedAt:    now,
			Vocation:      t.Vocation,
			Contenance:    t.Contenance,
			Rate:          decimal.NullDecimal{Decimal: rate, Valid: ok},
		})
	}
	return updates, unpriced, nil
}
