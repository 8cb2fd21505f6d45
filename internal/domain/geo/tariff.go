package geo

import (
	"context"
	"fmt"
	"time"

	"github.com/foncier/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Vocation is the land-use category that selects the per-area rate
type Vocation string

const (
	VocationEdilitaire  Vocation = "edilitaire"
	VocationAgricole    Vocation = "agricole"
	VocationForestiere  Vocation = "forestiere"
	VocationTouristique Vocation = "touristique"
)

// Vocations lists every vocation in display order
func Vocations() []Vocation {
	return []Vocation{VocationEdilitaire, VocationAgricole, VocationForestiere, VocationTouristique}
}

// IsValid reports whether v is one of the four known vocations
func (v Vocation) IsValid() bool {
	switch v {
	case VocationEdilitaire, VocationAgricole, VocationForestiere, VocationTouristique:
		return true
	}
	return false
}

// Label returns the French display label
func (v Vocation) Label() string {
	switch v {
	case VocationEdilitaire:
		return "Edilitaire"
	case VocationAgricole:
		return "Agricole"
	case VocationForestiere:
		return "Forestière"
	case VocationTouristique:
		return "Touristique"
	}
	return string(v)
}

// Tariff is the per-centiare rate table of one district.
// A tariff may be incomplete: a vocation without a rate is simply absent.
type Tariff struct {
	DistrictID uuid.UUID
	Rates      map[Vocation]decimal.Decimal
	UpdatedAt  time.Time
	UpdatedBy  *uuid.UUID
}

// NewTariff creates an empty tariff for a district
func NewTariff(districtID uuid.UUID) *Tariff {
	return &Tariff{
		DistrictID: districtID,
		Rates:      make(map[Vocation]decimal.Decimal, 4),
		UpdatedAt:  time.Now(),
	}
}

// Rate returns the rate of a vocation and whether it is configured
func (t *Tariff) Rate(v Vocation) (decimal.Decimal, bool) {
	if t == nil || t.Rates == nil {
		return decimal.Zero, false
	}
	rate, ok := t.Rates[v]
	return rate, ok
}

// IsComplete reports whether every vocation has a rate
func (t *Tariff) IsComplete() bool {
	for _, v := range Vocations() {
		if _, ok := t.Rate(v); !ok {
			return false
		}
	}
	return true
}

// SetRate sets the rate of one vocation
func (t *Tariff) SetRate(v Vocation, rate decimal.Decimal) error {
	if !v.IsValid() {
		return shared.NewDomainError("INVALID_VOCATION", fmt.Sprintf("Unknown vocation %q", v))
	}
	if rate.IsNegative() {
		return shared.NewDomainError("INVALID_RATE", "Tariff rate cannot be negative")
	}
	if t.Rates == nil {
		t.Rates = make(map[Vocation]decimal.Decimal, 4)
	}
	t.Rates[v] = rate
	t.UpdatedAt = time.Now()
	return nil
}

// Check verifies the table is physically sound.
// Missing rates are allowed; a negative stored rate or an unknown vocation key is not.
func (t *Tariff) Check() error {
	if t == nil {
		return nil
	}
	for v, rate := range t.Rates {
		if !v.IsValid() {
			return shared.ErrTariffCorrupted.WithMessage(fmt.Sprintf("Tariff of district %s has unknown vocation %q", t.DistrictID, v))
		}
		if rate.IsNegative() {
			return shared.ErrTariffCorrupted.WithMessage(fmt.Sprintf("Tariff of district %s has negative rate for %s", t.DistrictID, v))
		}
	}
	return nil
}

// Equal reports whether two tariffs carry the same rates
func (t *Tariff) Equal(other *Tariff) bool {
	if t == nil || other == nil {
		return t == other
	}
	if len(t.Rates) != len(other.Rates) {
		return false
	}
	for v, rate := range t.Rates {
		o, ok := other.Rates[v]
		if !ok || !o.Equal(rate) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy
func (t *Tariff) Clone() *Tariff {
	if t == nil {
		return nil
	}
	c := &Tariff{DistrictID: t.DistrictID, UpdatedAt: t.UpdatedAt, UpdatedBy: t.UpdatedBy, Rates: make(map[Vocation]decimal.Decimal, len(t.Rates))}
	for v, rate := range t.Rates {
		c.Rates[v] = rate
	}
	return c
}

// TariffProvider is the read-only tariff lookup used by price computation.
// A district without any configured tariff yields an empty, non-nil Tariff.
type TariffProvider interface {
	TariffFor(ctx context.Context, districtID uuid.UUID) (*Tariff, error)
}

// TariffRepository persists district tariffs
type TariffRepository interface {
	TariffProvider

	// Save replaces the whole rate table of the district
	Save(ctx context.Context, tariff *Tariff) error
}
