// Package lifecycle runs the mutation hooks that keep derived state (prices,
// cached district statistics) in step with writes to dossier records.
//
// Hooks are registered once at startup in a static table keyed by entity kind
// and phase, and are invoked synchronously by the code performing the write.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/foncier/backend/internal/application/uow"
	"github.com/foncier/backend/internal/domain/dossier"
	"github.com/foncier/backend/internal/infrastructure/logger"
	"github.com/foncier/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EntityKind names the record a mutation is about
type EntityKind string

const (
	EntityDossier     EntityKind = "dossier"
	EntityProperty    EntityKind = "property"
	EntityRequester   EntityKind = "requester"
	EntityAssociation EntityKind = "association"
	EntityDistrict    EntityKind = "district"
)

// Phase is the point of the write a hook runs at.
// creating and updating run inside the write transaction, the others after commit.
type Phase string

const (
	PhaseCreating Phase = "creating"
	PhaseCreated  Phase = "created"
	PhaseUpdating Phase = "updating"
	PhaseUpdated  Phase = "updated"
	PhaseDeleted  Phase = "deleted"
)

// Policy decides what a hook failure does to the write
type Policy int

const (
	// Abort propagates the error and the write is refused
	Abort Policy = iota
	// Degrade logs and counts the error; the write stands
	Degrade
)

func (p Policy) String() string {
	if p == Abort {
		return "abort"
	}
	return "degrade"
}

// Mutation describes one write. Only the fields relevant to Entity are set.
type Mutation struct {
	Entity     EntityKind
	Phase      Phase
	EntityID   uuid.UUID
	DistrictID uuid.UUID

	Property    *dossier.Property
	Association *dossier.Association

	// Before holds the price inputs of a property as loaded, for updating hooks
	Before *dossier.PriceInputs

	// PriceInputsChanged is set by the property updating hook
	PriceInputsChanged bool

	// Tx is the write transaction, set for the creating and updating phases only
	Tx uow.TransactionalRepositories
}

// Hook is one registered reaction to a mutation
type Hook struct {
	Name   string
	Policy Policy
	Run    func(ctx context.Context, m *Mutation) error
}

// Dispatcher invokes the hooks of a table
type Dispatcher struct {
	table   *Table
	logger  *zap.Logger
	metrics *telemetry.ConsistencyMetrics
}

// NewDispatcher creates a dispatcher over a hook table
func NewDispatcher(table *Table, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if table == nil {
		table = &Table{hooks: map[tableKey][]Hook{}}
	}
	return &Dispatcher{table: table, logger: logger}
}

// SetMetrics sets the consistency metrics collector
func (d *Dispatcher) SetMetrics(m *telemetry.ConsistencyMetrics) {
	d.metrics = m
}

// Dispatch runs every hook registered for the mutation's entity and phase, in
// registration order. The first Abort failure stops the run and is returned.
// Degrade failures are logged at warn level and swallowed.
func (d *Dispatcher) Dispatch(ctx context.Context, m *Mutation) error {
	for _, h := range d.table.Hooks(m.Entity, m.Phase) {
		err := d.run(ctx, h, m)
		if err == nil {
			continue
		}
		if h.Policy == Abort {
			return err
		}
		d.metrics.RecordHookFailure(ctx, string(m.Entity), string(m.Phase), h.Name)
		logger.WithLogger(ctx, d.logger).Warn("Mutation hook failed, derived state degraded",
			zap.String("entity", string(m.Entity)),
			zap.String("phase", string(m.Phase)),
			zap.String("hook", h.Name),
			zap.String("entity_id", m.EntityID.String()),
			zap.String("district_id", m.DistrictID.String()),
			zap.Error(err),
		)
	}
	return nil
}

func (d *Dispatcher) run(ctx context.Context, h Hook, m *Mutation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook %s panicked: %v", h.Name, r)
		}
	}()
	return h.Run(ctx, m)
}
