// Package pricing computes association prices from property attributes and
// district tariffs.
package pricing

import (
	"github.com/foncier/backend/internal/domain/dossier"
	"github.com/foncier/backend/internal/domain/geo"
	"github.com/shopspring/decimal"
)

// Outcome tells whether a computed amount is a real price
type Outcome int

const (
	// Priced means the tariff had a rate for the vocation
	Priced Outcome = iota
	// Unpriced means the vocation is undefined or has no rate; the amount is the zero sentinel
	Unpriced
)

func (o Outcome) String() string {
	if o == Priced {
		return "priced"
	}
	return "unpriced"
}

// UnpricedAmount is the sentinel returned when no rate applies
var UnpricedAmount = decimal.Zero

// ComputePrice returns rate[vocation] × contenance on the flattened centiare count.
// It never fails: a missing rate yields the unpriced sentinel.
func ComputePrice(in dossier.PriceInputs, tariff *geo.Tariff) (decimal.Decimal, Outcome) {
	if !in.Vocation.IsValid() {
		return UnpricedAmount, Unpriced
	}
	rate, ok := tariff.Rate(in.Vocation)
	if !ok {
		return UnpricedAmount, Unpriced
	}
	return rate.Mul(decimal.NewFromInt(in.Contenance)), Priced
}

// CheckTariff reports a physically corrupted tariff table as ErrTariffCorrupted.
// Incomplete tables are not an error.
func CheckTariff(tariff *geo.Tariff) error {
	return tariff.Check()
}

// Price checks the tariff then computes the price
func Price(in dossier.PriceInputs, tariff *geo.Tariff) (decimal.Decimal, Outcome, error) {
	if err := CheckTariff(tariff); err != nil {
		return decimal.Zero, Unpriced, err
	}
	amount, outcome := ComputePrice(in, tariff)
	return amount, outcome, nil
}
