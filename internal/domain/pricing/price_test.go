package pricing

import (
	"testing"

	"github.com/foncier/backend/internal/domain/dossier"
	"github.com/foncier/backend/internal/domain/geo"
	"github.com/foncier/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tariffOf(rates map[geo.Vocation]int64) *geo.Tariff {
	t := geo.NewTariff(uuid.New())
	for v, r := range rates {
		t.Rates[v] = decimal.NewFromInt(r)
	}
	return t
}

func TestComputePrice(t *testing.T) {
	t.Run("agricole 500 per centiare on 1000 centiares", func(t *testing.T) {
		tariff := tariffOf(map[geo.Vocation]int64{geo.VocationAgricole: 500})
		amount, outcome := ComputePrice(dossier.PriceInputs{Vocation: geo.VocationAgricole, Contenance: 1000}, tariff)
		assert.Equal(t, Priced, outcome)
		assert.True(t, amount.Equal(decimal.NewFromInt(500000)), amount.String())
	})

	t.Run("uses the flattened centiare count", func(t *testing.T) {
		area, err := dossier.NewArea(1, 20, 5)
		require.NoError(t, err)
		tariff := &geo.Tariff{Rates: map[geo.Vocation]decimal.Decimal{geo.VocationEdilitaire: decimal.RequireFromString("0.25")}}
		amount, _ := ComputePrice(dossier.PriceInputs{Vocation: geo.VocationEdilitaire, Contenance: area.TotalCentiares()}, tariff)
		assert.Equal(t, "3001.25", amount.StringFixed(2))
	})

	t.Run("missing rate is unpriced, not an error", func(t *testing.T) {
		tariff := tariffOf(map[geo.Vocation]int64{geo.VocationAgricole: 500})
		amount, outcome := ComputePrice(dossier.PriceInputs{Vocation: geo.VocationTouristique, Contenance: 1000}, tariff)
		assert.Equal(t, Unpriced, outcome)
		assert.True(t, amount.IsZero())
	})

	t.Run("undefined vocation is unpriced", func(t *testing.T) {
		amount, outcome := ComputePrice(dossier.PriceInputs{Vocation: "", Contenance: 1000}, tariffOf(nil))
		assert.Equal(t, Unpriced, outcome)
		assert.True(t, amount.IsZero())
	})

	t.Run("nil tariff is unpriced", func(t *testing.T) {
		_, outcome := ComputePrice(dossier.PriceInputs{Vocation: geo.VocationAgricole, Contenance: 1}, nil)
		assert.Equal(t, Unpriced, outcome)
	})

	t.Run("deterministic", func(t *testing.T) {
		tariff := tariffOf(map[geo.Vocation]int64{geo.VocationForestiere: 37})
		in := dossier.PriceInputs{Vocation: geo.VocationForestiere, Contenance: 98765}
		a, _ := ComputePrice(in, tariff)
		b, _ := ComputePrice(in, tariff)
		assert.True(t, a.Equal(b))
	})
}

func TestPrice(t *testing.T) {
	t.Run("corrupted tariff fails", func(t *testing.T) {
		tariff := tariffOf(map[geo.Vocation]int64{geo.VocationAgricole: -1})
		_, _, err := Price(dossier.PriceInputs{Vocation: geo.VocationEdilitaire, Contenance: 1}, tariff)
		assert.ErrorIs(t, err, shared.ErrTariffCorrupted)
	})

	t.Run("sound tariff computes", func(t *testing.T) {
		tariff := tariffOf(map[geo.Vocation]int64{geo.VocationEdilitaire: 100})
		amount, outcome, err := Price(dossier.PriceInputs{Vocation: geo.VocationEdilitaire, Contenance: 3}, tariff)
		require.NoError(t, err)
		assert.Equal(t, Priced, outcome)
		assert.True(t, amount.Equal(decimal.NewFromInt(300)))
	})
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "500 000,00 Ar", FormatAmount(decimal.NewFromInt(500000)))
	assert.Equal(t, "3 001,25 Ar", FormatAmount(decimal.RequireFromString("3001.25")))
	assert.Equal(t, "0,05 Ar", FormatAmount(decimal.RequireFromString("0.049")))
	assert.Equal(t, "-12,50 Ar", FormatAmount(decimal.RequireFromString("-12.5")))
	assert.Equal(t, "1 234 567", FormatInteger(1234567))
}
