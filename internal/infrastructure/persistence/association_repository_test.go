package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/foncier/backend/internal/domain/dossier"
	"github.com/foncier/backend/internal/domain/geo"
	"github.com/foncier/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormAssociationRepository_Ordre(t *testing.T) {
	f := newFixture(t)
	repo := NewGormAssociationRepository(f.db)
	ctx := context.Background()

	maxOrdre, err := repo.MaxOrdre(ctx, f.property.ID)
	require.NoError(t, err)
	assert.Zero(t, maxOrdre)

	first := f.addAssociation(t, f.requester, f.property, 1)
	second := f.addAssociation(t, f.addRequester(t, "300011223344", "RASOA"), f.property, 2)

	maxOrdre, err = repo.MaxOrdre(ctx, f.property.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, maxOrdre)

	t.Run("an ordre is never handed out twice", func(t *testing.T) {
		a, err := dossier.NewAssociation(f.addRequester(t, "400011223344", "RABE"), f.property, f.actorID)
		require.NoError(t, err)
		require.NoError(t, a.AssignOrdre(2))
		err = repo.Create(ctx, a)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})

	t.Run("archived rows keep their ordre", func(t *testing.T) {
		loaded, err := repo.FindByID(ctx, first.ID)
		require.NoError(t, err)
		require.NoError(t, loaded.Archive("Désistement", f.actorID))
		require.NoError(t, repo.Save(ctx, loaded))

		maxOrdre, err := repo.MaxOrdre(ctx, f.property.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, maxOrdre)

		all, err := repo.FindByProperty(ctx, f.property.ID)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, dossier.AssociationArchived, all[0].Status)
		assert.Equal(t, second.ID, all[1].ID)

		active, err := repo.CountActiveByProperty(ctx, f.property.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), active)
	})
}

func TestGormAssociationRepository_ActivePair(t *testing.T) {
	f := newFixture(t)
	repo := NewGormAssociationRepository(f.db)
	ctx := context.Background()

	first := f.addAssociation(t, f.requester, f.property, 1)

	found, err := repo.FindActiveByPair(ctx, f.requester.ID, f.property.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	dup, err := dossier.NewAssociation(f.requester, f.property, f.actorID)
	require.NoError(t, err)
	require.NoError(t, dup.AssignOrdre(2))
	err = repo.Create(ctx, dup)
	require.Error(t, err)
	assert.Equal(t, shared.KindConflict, shared.KindOf(err))

	require.NoError(t, found.Archive("Erreur de saisie", f.actorID))
	require.NoError(t, repo.Save(ctx, found))

	_, err = repo.FindActiveByPair(ctx, f.requester.ID, f.property.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	relink, err := dossier.NewAssociation(f.requester, f.property, f.actorID)
	require.NoError(t, err)
	require.NoError(t, relink.AssignOrdre(2))
	assert.NoError(t, repo.Create(ctx, relink))
}

func TestGormAssociationRepository_StaleSave(t *testing.T) {
	f := newFixture(t)
	repo := NewGormAssociationRepository(f.db)
	ctx := context.Background()
	a := f.addAssociation(t, f.requester, f.property, 1)

	copy1, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	copy2, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)

	require.NoError(t, copy1.Archive("first", f.actorID))
	require.NoError(t, repo.Save(ctx, copy1))

	require.NoError(t, copy2.Archive("second", f.actorID))
	assert.ErrorIs(t, repo.Save(ctx, copy2), shared.ErrConcurrencyConflict)
}

func TestGormAssociationRepository_UpdatePricesChecksInputs(t *testing.T) {
	f := newFixture(t)
	repo := NewGormAssociationRepository(f.db)
	tariffs := NewGormTariffRepository(f.db)
	ctx := context.Background()
	a := f.addAssociation(t, f.requester, f.property, 1)

	rate := func(r string) {
		require.NoError(t, tariffs.Save(ctx, &geo.Tariff{
			DistrictID: f.districtID,
			Rates:      map[geo.Vocation]decimal.Decimal{geo.VocationAgricole: decimal.RequireFromString(r)},
		}))
	}
	priceAt := func(contenance int64, r string) dossier.PriceUpdate {
		u := dossier.PriceUpdate{
			AssociationID: a.ID,
			TotalPrice:    decimal.NewFromInt(contenance).Mul(decimal.RequireFromString(r)),
			ComputedAt:    time.Now(),
			Vocation:      geo.VocationAgricole,
			Contenance:    contenance,
		}
		if r != "0" {
			u.Rate = decimal.NewNullDecimal(decimal.RequireFromString(r))
		}
		return u
	}
	rate("2")

	tests := []struct {
		name   string
		update dossier.PriceUpdate
		moved  bool
	}{
		{"inputs unchanged", priceAt(12005, "2"), false},
		{"contenance changed since read", priceAt(500, "2"), true},
		{"rate changed since read", priceAt(12005, "3"), true},
		{"rate added since read", priceAt(12005, "0"), true},
		{"vocation changed since read", dossier.PriceUpdate{AssociationID: a.ID, Vocation: geo.VocationForestiere, Contenance: 12005}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, repo.MarkStale(ctx, []uuid.UUID{a.ID}))
			moved, err := repo.UpdatePrices(ctx, []dossier.PriceUpdate{tt.update})
			require.NoError(t, err)

			got, err := repo.FindByID(ctx, a.ID)
			require.NoError(t, err)
			if tt.moved {
				assert.Equal(t, []uuid.UUID{a.ID}, moved)
				assert.True(t, got.PriceStale, "a refused write leaves the row as it was")
				return
			}
			assert.Empty(t, moved)
			assert.False(t, got.PriceStale)
			assert.True(t, got.TotalPrice.Equal(decimal.NewFromInt(24010)), got.TotalPrice.String())
		})
	}

	t.Run("archived association is not repriced", func(t *testing.T) {
		require.NoError(t, a.Archive("désistement", f.actorID))
		require.NoError(t, repo.Save(ctx, a))
		moved, err := repo.UpdatePrices(ctx, []dossier.PriceUpdate{priceAt(12005, "2")})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{a.ID}, moved)
	})
}

func TestGormAssociationRepository_Pricing(t *testing.T) {
	f := newFixture(t)
	repo := NewGormAssociationRepository(f.db)
	ctx := context.Background()

	a1 := f.addAssociation(t, f.requester, f.property, 1)
	other := f.addProperty(t, geo.VocationEdilitaire, dossier.Area{Ares: 3})
	a2 := f.addAssociation(t, f.requester, other, 1)

	targets, err := repo.FindPricingTargetsByProperty(ctx, f.property.ID)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, a1.ID, targets[0].AssociationID)
	assert.Equal(t, geo.VocationAgricole, targets[0].Vocation)
	assert.Equal(t, int64(12005), targets[0].Contenance)
	assert.Equal(t, f.districtID, targets[0].DistrictID)

	targets, err = repo.FindPricingTargetsByDistrict(ctx, f.districtID)
	require.NoError(t, err)
	assert.Len(t, targets, 2)

	require.NoError(t, repo.MarkStale(ctx, []uuid.UUID{a1.ID, a2.ID}))
	stale, err := repo.FindStalePricingTargets(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, stale, 1)

	require.NoError(t, NewGormTariffRepository(f.db).Save(ctx, &geo.Tariff{
		DistrictID: f.districtID,
		Rates:      map[geo.Vocation]decimal.Decimal{geo.VocationAgricole: decimal.RequireFromString("0.1")},
	}))
	now := time.Now()
	moved, err := repo.UpdatePrices(ctx, []dossier.PriceUpdate{
		{
			AssociationID: a1.ID,
			TotalPrice:    decimal.RequireFromString("1200.50"),
			ComputedAt:    now,
			Vocation:      geo.VocationAgricole,
			Contenance:    12005,
			Rate:          decimal.NewNullDecimal(decimal.RequireFromString("0.1")),
		},
		{
			AssociationID: a2.ID,
			ComputedAt:    now,
			Vocation:      geo.VocationEdilitaire,
			Contenance:    300,
		},
	})
	require.NoError(t, err)
	assert.Empty(t, moved)

	stale, err = repo.FindStalePricingTargets(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, stale)

	priced, err := repo.FindByID(ctx, a1.ID)
	require.NoError(t, err)
	assert.False(t, priced.PriceStale)
	assert.True(t, decimal.RequireFromString("1200.50").Equal(priced.TotalPrice), priced.TotalPrice.String())
	assert.Equal(t, a1.Version, priced.Version)

	reloaded, err := repo.FindPricingTargetsByIDs(ctx, []uuid.UUID{a2.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, reloaded, 1)
	assert.Equal(t, a2.ID, reloaded[0].AssociationID)

	count, err := repo.CountActiveByDistrict(ctx, f.districtID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
