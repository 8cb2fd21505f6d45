package pricing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/foncier/backend/internal/application/lifecycle"
	"github.com/foncier/backend/internal/domain/dossier"
	"github.com/foncier/backend/internal/infrastructure/config"
	"github.com/foncier/backend/internal/infrastructure/logger"
	"github.com/foncier/backend/internal/infrastructure/scheduler"
	"github.com/foncier/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// JobSubmitter queues background cascades
type JobSubmitter interface {
	SubmitCascade(districtID uuid.UUID) error
}

// Cascade propagates a district tariff change to every active association
// of the district. Small districts are repriced inline; larger ones are
// flagged stale and handed to the scheduler.
type Cascade struct {
	associations dossier.AssociationRepository
	recomputer   *Recomputer
	cache        lifecycle.Invalidator
	submitter    JobSubmitter
	config       config.CascadeConfig
	logger       *zap.Logger
	metrics      *telemetry.ConsistencyMetrics
}

// NewCascade creates a new Cascade
func NewCascade(
	associations dossier.AssociationRepository,
	recomputer *Recomputer,
	cache lifecycle.Invalidator,
	cfg config.CascadeConfig,
	logger *zap.Logger,
) *Cascade {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Cascade{
		associations: associations,
		recomputer:   recomputer,
		cache:        cache,
		config:       cfg,
		logger:       logger,
	}
}

// SetSubmitter sets the background job submitter. Without one every cascade runs inline.
func (c *Cascade) SetSubmitter(s JobSubmitter) {
	c.submitter = s
}

// SetMetrics sets the consistency metrics collector
func (c *Cascade) SetMetrics(m *telemetry.ConsistencyMetrics) {
	c.metrics = m
}

// Cascade applies the sync/async policy to a tariff change of districtID
func (c *Cascade) Cascade(ctx context.Context, districtID uuid.UUID) error {
	count, err := c.associations.CountActiveByDistrict(ctx, districtID)
	if err != nil {
		return fmt.Errorf("count associations of district %s: %w", districtID, err)
	}
	if count == 0 {
		return nil
	}

	targets, err := c.associations.FindPricingTargetsByDistrict(ctx, districtID)
	if err != nil {
		return fmt.Errorf("load associations of district %s: %w", districtID, err)
	}

	if count <= int64(c.config.SyncThreshold) || c.submitter == nil {
		return c.run(ctx, "sync", targets)
	}

	if err := c.recomputer.MarkStale(ctx, telemetry.TriggerTariffCascade, targets); err != nil {
		return err
	}
	if err := c.submitter.SubmitCascade(districtID); err != nil {
		// the prices stay flagged, the sweep picks them up
		return fmt.Errorf("queue cascade of district %s: %w", districtID, err)
	}
	logger.WithLogger(ctx, c.logger).Info("Tariff cascade queued",
		zap.String("district_id", districtID.String()),
		zap.Int64("associations", count),
	)
	return nil
}

// Execute runs a queued cascade job
func (c *Cascade) Execute(ctx context.Context, job *scheduler.Job) error {
	targets, err := c.associations.FindPricingTargetsByDistrict(ctx, job.DistrictID)
	if err != nil {
		return fmt.Errorf("load associations of district %s: %w", job.DistrictID, err)
	}
	return c.run(ctx, "async", targets)
}

// run reprices targets in batches, each in its own transaction. The cascade
// is one logical batch: every district with a repriced batch is invalidated
// once after all batches are done.
func (c *Cascade) run(ctx context.Context, mode string, targets []dossier.PricingTarget) error {
	batches := split(targets, c.config.BatchSize)

	var (
		g       errgroup.Group
		mu      sync.Mutex
		errs    = make([]error, len(batches))
		touched = make(map[uuid.UUID]struct{}, 1)
	)
	g.SetLimit(c.config.Workers)

	for i, batch := range batches {
		g.Go(func() error {
			err := c.recomputer.Reprice(ctx, telemetry.TriggerTariffCascade, batch)
			c.metrics.RecordCascadeBatch(ctx, mode, err != nil)
			if err != nil {
				errs[i] = err
				// a failed batch keeps its stale flags; the others go on
				return nil
			}
			mu.Lock()
			for _, t := range batch {
				touched[t.DistrictID] = struct{}{}
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	c.invalidate(ctx, touched)

	err := errors.Join(errs...)
	if err != nil {
		logger.WithLogger(ctx, c.logger).Warn("Tariff cascade finished with failed batches",
			zap.String("mode", mode),
			zap.Int("batches", len(batches)),
			zap.Error(err),
		)
	}
	return err
}

func (c *Cascade) invalidate(ctx context.Context, districts map[uuid.UUID]struct{}) {
	if c.cache == nil {
		return
	}
	for id := range districts {
		if err := c.cache.Invalidate(ctx, id); err != nil {
			logger.WithLogger(ctx, c.logger).Warn("Failed to invalidate district statistics",
				zap.String("district_id", id.String()),
				zap.Error(err),
			)
		}
	}
}

func split(targets []dossier.PricingTarget, size int) [][]dossier.PricingTarget {
	batches := make([][]dossier.PricingTarget, 0, (len(targets)+size-1)/size)
	for start := 0; start < len(targets); start += size {
		end := min(start+size, len(targets))
		batches = append(batches, targets[start:end])
	}
	return batches
}
