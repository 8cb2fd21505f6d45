package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Recompute triggers
const (
	TriggerAssociationCreate = "association_create"
	TriggerPropertyUpdate    = "property_update"
	TriggerTariffCascade     = "tariff_cascade"
	TriggerSweep             = "sweep"
)

// Lock scopes
const (
	LockScopeNumbering = "numbering"
	LockScopeRanking   = "ranking"
)

// ConsistencyMetrics counts the events that keep derived state (prices,
// ranks, document numbers, cached statistics) consistent. A nil receiver is a
// no-op so services can run without metrics.
type ConsistencyMetrics struct {
	logger *zap.Logger

	priceRecomputed        *Counter
	priceRecomputeFailures *Counter
	priceStaleMarked       *Counter
	numbersAllocated       *Counter
	documentsSuperseded    *Counter
	lockTimeouts           *Counter
	lockWait               *Histogram
	cacheHits              *Counter
	cacheMisses            *Counter
	cacheInvalidations     *Counter
	hookFailures           *Counter
	cascadeBatches         *Counter
	staleAssociations      *Gauge

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once
}

// StalePriceProvider reports how many active associations carry a stale price, per district
type StalePriceProvider interface {
	CountStaleByDistrict(ctx context.Context) (map[uuid.UUID]int64, error)
}

// NewConsistencyMetrics creates the instrument set on meter.
func NewConsistencyMetrics(meter metric.Meter, logger *zap.Logger) (*ConsistencyMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &ConsistencyMetrics{logger: logger, stopChan: make(chan struct{})}

	counters := []struct {
		dst  **Counter
		name string
		desc string
		unit string
	}{
		{&m.priceRecomputed, "foncier_price_recomputed_total", "Association prices recomputed", "{associations}"},
		{&m.priceRecomputeFailures, "foncier_price_recompute_failures_total", "Association price recomputes that failed", "{associations}"},
		{&m.priceStaleMarked, "foncier_price_stale_marked_total", "Associations flagged with a stale price", "{associations}"},
		{&m.numbersAllocated, "foncier_document_number_allocated_total", "Document numbers allocated", "{documents}"},
		{&m.documentsSuperseded, "foncier_document_superseded_total", "Active documents superseded by a regeneration", "{documents}"},
		{&m.lockTimeouts, "foncier_lock_timeout_total", "Keyed lock acquisitions that timed out", "{acquisitions}"},
		{&m.cacheHits, "foncier_geo_cache_hits_total", "District statistics served from cache", "{reads}"},
		{&m.cacheMisses, "foncier_geo_cache_misses_total", "District statistics recomputed on a cache miss", "{reads}"},
		{&m.cacheInvalidations, "foncier_geo_cache_invalidations_total", "District cache invalidations", "{invalidations}"},
		{&m.hookFailures, "foncier_hook_failures_total", "Degraded mutation hook failures", "{failures}"},
		{&m.cascadeBatches, "foncier_cascade_batches_total", "Tariff cascade batches processed", "{batches}"},
	}
	var err error
	for _, c := range counters {
		if *c.dst, err = NewCounter(meter, c.name, c.desc, c.unit); err != nil {
			return nil, err
		}
	}

	m.lockWait, err = NewHistogram(meter, HistogramOpts{
		Name:        "foncier_lock_wait_seconds",
		Description: "Time spent waiting for a keyed lock",
		Unit:        "s",
		Boundaries:  LockWaitBuckets,
	})
	if err != nil {
		return nil, err
	}

	m.staleAssociations, err = NewGauge(meter, "foncier_price_stale_associations", "Active associations currently flagged stale", "{associations}")
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *ConsistencyMetrics) RecordPriceRecomputed(ctx context.Context, trigger string, count int64, priced bool) {
	if m == nil || count == 0 {
		return
	}
	outcome := "priced"
	if !priced {
		outcome = "unpriced"
	}
	m.priceRecomputed.Add(ctx, count, AttrTrigger.String(trigger), AttrOutcome.String(outcome))
}

func (m *ConsistencyMetrics) RecordRecomputeFailure(ctx context.Context, trigger string, count int64) {
	if m == nil || count == 0 {
		return
	}
	m.priceRecomputeFailures.Add(ctx, count, AttrTrigger.String(trigger))
}

func (m *ConsistencyMetrics) RecordStaleMarked(ctx context.Context, trigger string, count int64) {
	if m == nil || count == 0 {
		return
	}
	m.priceStaleMarked.Add(ctx, count, AttrTrigger.String(trigger))
}

func (m *ConsistencyMetrics) RecordNumberAllocated(ctx context.Context, documentType string, superseded int) {
	if m == nil {
		return
	}
	m.numbersAllocated.Inc(ctx, AttrDocumentType.String(documentType))
	if superseded > 0 {
		m.documentsSuperseded.Add(ctx, int64(superseded), AttrDocumentType.String(documentType))
	}
}

// RecordLockWait records the wait of one acquisition; timedOut counts it as a timeout too
func (m *ConsistencyMetrics) RecordLockWait(ctx context.Context, scope string, wait time.Duration, timedOut bool) {
	if m == nil {
		return
	}
	m.lockWait.RecordDuration(ctx, wait, AttrLockScope.String(scope))
	if timedOut {
		m.lockTimeouts.Inc(ctx, AttrLockScope.String(scope))
	}
}

func (m *ConsistencyMetrics) RecordCacheRead(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc(ctx)
		return
	}
	m.cacheMisses.Inc(ctx)
}

func (m *ConsistencyMetrics) RecordInvalidation(ctx context.Context) {
	if m == nil {
		return
	}
	m.cacheInvalidations.Inc(ctx)
}

func (m *ConsistencyMetrics) RecordHookFailure(ctx context.Context, entity, phase, hook string) {
	if m == nil {
		return
	}
	m.hookFailures.Inc(ctx, AttrEntity.String(entity), AttrPhase.String(phase), AttrHook.String(hook))
}

func (m *ConsistencyMetrics) RecordCascadeBatch(ctx context.Context, mode string, failed bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if failed {
		outcome = "failed"
	}
	m.cascadeBatches.Inc(ctx, AttrCascadeMode.String(mode), AttrOutcome.String(outcome))
}

// StartPeriodicCollection samples the stale-price gauge every interval until
// Stop is called or ctx ends. Only the first call starts a collector.
func (m *ConsistencyMetrics) StartPeriodicCollection(ctx context.Context, provider StalePriceProvider, interval time.Duration) {
	if m == nil || provider == nil {
		return
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	m.collectOnce.Do(func() {
		go m.runPeriodicCollection(ctx, provider, interval)
	})
}

func (m *ConsistencyMetrics) runPeriodicCollection(ctx context.Context, provider StalePriceProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.collectStale(ctx, provider)
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.collectStale(ctx, provider)
		}
	}
}

func (m *ConsistencyMetrics) collectStale(ctx context.Context, provider StalePriceProvider) {
	counts, err := provider.CountStaleByDistrict(ctx)
	if err != nil {
		m.logger.Warn("Failed to collect stale price counts", zap.Error(err))
		return
	}
	for districtID, n := range counts {
		m.staleAssociations.Record(ctx, n, AttrDistrictID.String(districtID.String()))
	}
}

// Stop ends periodic collection. Safe to call more than once.
func (m *ConsistencyMetrics) Stop() {
	if m == nil {
		return
	}
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
}
