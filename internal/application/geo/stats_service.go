package geo

import (
	"context"
	"fmt"
	"sync"

	"github.com/foncier/backend/internal/domain/geo"
	"github.com/foncier/backend/internal/infrastructure/logger"
	"github.com/foncier/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const scopeFanOut = 8

// StatsService reads district statistics through the cache and builds
// region, province and national views by aggregation
type StatsService struct {
	cache    geo.StatsCache
	source   geo.StatsSource
	resolver *Resolver
	group    singleflight.Group
	logger   *zap.Logger
	metrics  *telemetry.ConsistencyMetrics

	mu          sync.Mutex
	generations map[uuid.UUID]uint64
}

// NewStatsService creates a new StatsService
func NewStatsService(cache geo.StatsCache, source geo.StatsSource, resolver *Resolver, logger *zap.Logger) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{
		cache:       cache,
		source:      source,
		resolver:    resolver,
		logger:      logger,
		generations: make(map[uuid.UUID]uint64),
	}
}

// SetMetrics sets the consistency metrics collector
func (s *StatsService) SetMetrics(m *telemetry.ConsistencyMetrics) {
	s.metrics = m
}

// Get returns the statistics of one district the actor can see
func (s *StatsService) Get(ctx context.Context, districtID uuid.UUID) (*geo.DistrictStats, error) {
	actor, err := geo.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := actor.EnsureDistrict(districtID); err != nil {
		return nil, err
	}
	return s.get(ctx, districtID)
}

// get is a read-through lookup. Concurrent misses on one district share a single recompute.
func (s *StatsService) get(ctx context.Context, districtID uuid.UUID) (*geo.DistrictStats, error) {
	cached, err := s.cache.Get(ctx, districtID)
	if err != nil {
		logger.WithLogger(ctx, s.logger).Warn("District statistics cache read failed",
			zap.String("district_id", districtID.String()),
			zap.Error(err),
		)
	}
	if cached != nil {
		s.metrics.RecordCacheRead(ctx, true)
		return cached, nil
	}
	s.metrics.RecordCacheRead(ctx, false)

	v, err, _ := s.group.Do(districtID.String(), func() (any, error) {
		gen := s.generation(districtID)
		stats, err := s.source.ComputeDistrictStats(ctx, districtID)
		if err != nil {
			return nil, fmt.Errorf("compute statistics of district %s: %w", districtID, err)
		}
		// an invalidation during the compute means stats may already be stale
		if gen != s.generation(districtID) {
			return stats, nil
		}
		if err := s.cache.Set(ctx, stats); err != nil {
			logger.WithLogger(ctx, s.logger).Warn("District statistics cache write failed",
				zap.String("district_id", districtID.String()),
				zap.Error(err),
			)
			return stats, nil
		}
		// an invalidation between the check and the write may have run its delete first
		if gen != s.generation(districtID) {
			if err := s.cache.Invalidate(ctx, districtID); err != nil {
				logger.WithLogger(ctx, s.logger).Warn("District statistics cache drop failed",
					zap.String("district_id", districtID.String()),
					zap.Error(err),
				)
			}
		}
		return stats, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*geo.DistrictStats), nil
}

// Invalidate drops the cached entry of a district. Absent entries are a no-op.
func (s *StatsService) Invalidate(ctx context.Context, districtID uuid.UUID) error {
	s.mu.Lock()
	s.generations[districtID]++
	s.mu.Unlock()

	s.metrics.RecordInvalidation(ctx)
	return s.cache.Invalidate(ctx, districtID)
}

func (s *StatsService) generation(districtID uuid.UUID) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[districtID]
}

// ScopeStats aggregates the district entries of the actor's resolved scope
func (s *StatsService) ScopeStats(ctx context.Context, filter geo.Filter) (*geo.ScopeStats, error) {
	districtIDs, err := s.resolver.Resolve(ctx, filter)
	if err != nil {
		return nil, err
	}

	entries := make([]geo.DistrictStats, len(districtIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scopeFanOut)
	for i, id := range districtIDs {
		g.Go(func() error {
			stats, err := s.get(gctx, id)
			if err != nil {
				return err
			}
			entries[i] = *stats
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := geo.Aggregate(s.resolver.Level(ctx, filter), entries)
	return &out, nil
}
