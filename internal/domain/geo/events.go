package geo

import (
	"github.com/foncier/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constant for District
const AggregateTypeDistrict = "District"

// Event type constants for District
const (
	EventTypeTariffChanged = "TariffChanged"
)

// TariffChangedEvent is published after a district tariff has been replaced
type TariffChangedEvent struct {
	shared.BaseDomainEvent
	OldRates map[Vocation]decimal.Decimal `json:"old_rates"`
	NewRates map[Vocation]decimal.Decimal `json:"new_rates"`
}

// NewTariffChangedEvent creates a new TariffChangedEvent
func NewTariffChangedEvent(before, after *Tariff, actorID uuid.UUID) *TariffChangedEvent {
	var old map[Vocation]decimal.Decimal
	if before != nil {
		old = before.Clone().Rates
	}
	return &TariffChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTariffChanged, AggregateTypeDistrict, after.DistrictID, after.DistrictID, actorID),
		OldRates:        old,
		NewRates:        after.Clone().Rates,
	}
}
