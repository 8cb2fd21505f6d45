package lifecycle

import (
	"context"

	"github.com/foncier/backend/internal/domain/dossier"
	"github.com/foncier/backend/internal/domain/geo"
	"github.com/google/uuid"
)

// Pricer computes association prices for the hooks
type Pricer interface {
	// PriceNew prices an association that is about to be inserted.
	// tariffs reads through the write transaction; nil means the pricer's own provider.
	PriceNew(ctx context.Context, tariffs geo.TariffProvider, a *dossier.Association, p *dossier.Property) error

	// RecomputeProperty reprices every active association of a property.
	// Associations it could not reprice are left flagged stale.
	RecomputeProperty(ctx context.Context, propertyID uuid.UUID) error
}

// Cascader propagates a district tariff change to the prices under it
type Cascader interface {
	Cascade(ctx context.Context, districtID uuid.UUID) error
}

// Invalidator drops the cached statistics of a district
type Invalidator interface {
	Invalidate(ctx context.Context, districtID uuid.UUID) error
}

// Dependencies are the components the registered hooks call into
type Dependencies struct {
	Pricer   Pricer
	Cascader Cascader
	Cache    Invalidator
}

type tableKey struct {
	entity EntityKind
	phase  Phase
}

// Table maps (entity, phase) to the ordered hooks to run
type Table struct {
	hooks map[tableKey][]Hook
}

// Hooks returns the hooks of one entity and phase
func (t *Table) Hooks(entity EntityKind, phase Phase) []Hook {
	return t.hooks[tableKey{entity, phase}]
}

func (t *Table) add(entity EntityKind, phase Phase, hooks ...Hook) {
	k := tableKey{entity, phase}
	t.hooks[k] = append(t.hooks[k], hooks...)
}

// NewTable builds the hook table. It is called once at startup.
func NewTable(deps Dependencies) *Table {
	t := &Table{hooks: make(map[tableKey][]Hook)}

	invalidate := Hook{
		Name:   "invalidate_district",
		Policy: Degrade,
		Run: func(ctx context.Context, m *Mutation) error {
			if deps.Cache == nil || m.DistrictID == uuid.Nil {
				return nil
			}
			return deps.Cache.Invalidate(ctx, m.DistrictID)
		},
	}

	t.add(EntityProperty, PhaseUpdating, Hook{
		Name:   "detect_price_inputs",
		Policy: Abort,
		Run: func(_ context.Context, m *Mutation) error {
			if m.Before != nil && m.Property != nil {
				m.PriceInputsChanged = *m.Before != m.Property.PriceInputs()
			}
			return nil
		},
	})
	t.add(EntityProperty, PhaseUpdated, Hook{
		Name:   "recompute_prices",
		Policy: Degrade,
		Run: func(ctx context.Context, m *Mutation) error {
			if !m.PriceInputsChanged || deps.Pricer == nil {
				return nil
			}
			return deps.Pricer.RecomputeProperty(ctx, m.EntityID)
		},
	}, invalidate)
	t.add(EntityProperty, PhaseCreated, invalidate)
	t.add(EntityProperty, PhaseDeleted, invalidate)

	t.add(EntityAssociation, PhaseCreating, Hook{
		Name:   "price_association",
		Policy: Abort,
		Run: func(ctx context.Context, m *Mutation) error {
			if deps.Pricer == nil {
				return nil
			}
			var tariffs geo.TariffProvider
			if m.Tx != nil {
				tariffs = m.Tx.TariffRepo()
			}
			return deps.Pricer.PriceNew(ctx, tariffs, m.Association, m.Property)
		},
	})
	t.add(EntityAssociation, PhaseCreated, invalidate)
	t.add(EntityAssociation, PhaseUpdated, invalidate)

	for _, phase := range []Phase{PhaseCreated, PhaseUpdated, PhaseDeleted} {
		t.add(EntityRequester, phase, invalidate)
		t.add(EntityDossier, phase, invalidate)
	}

	// the cascade invalidates once per batch itself
	t.add(EntityDistrict, PhaseUpdated, Hook{
		Name:   "cascade_tariff",
		Policy: Degrade,
		Run: func(ctx context.Context, m *Mutation) error {
			if deps.Cascader == nil {
				return nil
			}
			return deps.Cascader.Cascade(ctx, m.DistrictID)
		},
	})

	return t
}
