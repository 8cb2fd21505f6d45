package pricing

import (
	"context"
	"fmt"

	"github.com/foncier/backend/internal/application/lifecycle"
	"github.com/foncier/backend/internal/domain/dossier"
	"github.com/foncier/backend/internal/infrastructure/logger"
	"github.com/foncier/backend/internal/infrastructure/scheduler"
	"github.com/foncier/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sweeper recomputes every association whose price is flagged stale
type Sweeper struct {
	associations dossier.AssociationRepository
	recomputer   *Recomputer
	cache        lifecycle.Invalidator
	batchSize    int
	logger       *zap.Logger
}

// NewSweeper creates a new Sweeper
func NewSweeper(associations dossier.AssociationRepository, recomputer *Recomputer, cache lifecycle.Invalidator, batchSize int, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Sweeper{
		associations: associations,
		recomputer:   recomputer,
		cache:        cache,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Execute runs the sweep as a scheduler job
func (s *Sweeper) Execute(ctx context.Context, _ *scheduler.Job) error {
	_, err := s.Sweep(ctx)
	return err
}

// Sweep reprices stale associations batch by batch until none is left.
// It stops at the first failed batch, which stays flagged for the next run.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	var healed int
	touched := make(map[uuid.UUID]struct{})
	defer func() { s.invalidate(ctx, touched) }()

	for {
		if err := ctx.Err(); err != nil {
			return healed, err
		}
		targets, err := s.associations.FindStalePricingTargets(ctx, s.batchSize)
		if err != nil {
			return healed, fmt.Errorf("load stale associations: %w", err)
		}
		if len(targets) == 0 {
			break
		}
		if err := s.recomputer.Reprice(ctx, telemetry.TriggerSweep, targets); err != nil {
			return healed, err
		}
		healed += len(targets)
		for _, t := range targets {
			touched[t.DistrictID] = struct{}{}
		}
		if len(targets) < s.batchSize {
			break
		}
	}

	if healed > 0 {
		logger.WithLogger(ctx, s.logger).Info("Stale prices recomputed",
			zap.Int("associations", healed),
			zap.Int("districts", len(touched)),
		)
	}
	return healed, nil
}

func (s *Sweeper) invalidate(ctx context.Context, districts map[uuid.UUID]struct{}) {
	if s.cache == nil {
		return
	}
	for id := range districts {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			logger.WithLogger(ctx, s.logger).Warn("Failed to invalidate district statistics",
				zap.String("district_id", id.String()),
				zap.Error(err),
			)
		}
	}
}
