package persistence

import (
	"context"
	"testing"

	"github.com/foncier/backend/internal/domain/dossier"
	"github.com/foncier/backend/internal/domain/geo"
	"github.com/foncier/backend/internal/domain/shared"
	"github.com/foncier/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormHierarchyRepository(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormHierarchyRepository(db)
	ctx := context.Background()

	province, err := geo.NewProvince("ANT", "Antananarivo")
	require.NoError(t, err)
	require.NoError(t, repo.SaveProvince(ctx, province))

	r1, err := geo.NewRegion(province.ID, "ANA", "Analamanga")
	require.NoError(t, err)
	r2, err := geo.NewRegion(province.ID, "VAK", "Vakinankaratra")
	require.NoError(t, err)
	require.NoError(t, repo.SaveRegion(ctx, r1))
	require.NoError(t, repo.SaveRegion(ctx, r2))

	d1, _ := geo.NewDistrict(r1.ID, "D01", "Antananarivo Renivohitra")
	d2, _ := geo.NewDistrict(r1.ID, "D02", "Ambohidratrimo")
	d3, _ := geo.NewDistrict(r2.ID, "D03", "Antsirabe I")
	for _, d := range []*geo.District{d3, d1, d2} {
		require.NoError(t, repo.SaveDistrict(ctx, d))
	}

	ids, err := repo.DistrictIDsByRegion(ctx, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{d1.ID, d2.ID}, ids)

	ids, err = repo.DistrictIDsByProvince(ctx, province.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{d1.ID, d2.ID, d3.ID}, ids)

	ids, err = repo.AllDistrictIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	ids, err = repo.DistrictIDsByRegion(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, ids)

	found, err := repo.FindDistrict(ctx, d3.ID)
	require.NoError(t, err)
	assert.Equal(t, "D03", found.Code)

	_, err = repo.FindRegion(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)

	dup, _ := geo.NewDistrict(r2.ID, "D01", "Duplicate")
	assert.ErrorIs(t, repo.SaveDistrict(ctx, dup), shared.ErrAlreadyExists)
}

func TestGormTariffRepository(t *testing.T) {
	db := newSQLiteDB(t)
	repo := NewGormTariffRepository(db)
	ctx := context.Background()
	districtID := uuid.New()

	empty, err := repo.TariffFor(ctx, districtID)
	require.NoError(t, err)
	require.NotNil(t, empty)
	assert.Empty(t, empty.Rates)

	tariff := geo.NewTariff(districtID)
	require.NoError(t, tariff.SetRate(geo.VocationAgricole, decimal.RequireFromString("0.10")))
	require.NoError(t, tariff.SetRate(geo.VocationEdilitaire, decimal.RequireFromString("2.50")))
	require.NoError(t, repo.Save(ctx, tariff))

	loaded, err := repo.TariffFor(ctx, districtID)
	require.NoError(t, err)
	assert.True(t, tariff.Equal(loaded))

	replacement := geo.NewTariff(districtID)
	require.NoError(t, replacement.SetRate(geo.VocationForestiere, decimal.RequireFromString("0.05")))
	require.NoError(t, repo.Save(ctx, replacement))

	loaded, err = repo.TariffFor(ctx, districtID)
	require.NoError(t, err)
	_, hasAgricole := loaded.Rate(geo.VocationAgricole)
	assert.False(t, hasAgricole, "save replaces the whole table")
	rate, ok := loaded.Rate(geo.VocationForestiere)
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("0.05").Equal(rate))
}

func TestGormStatsRepository_ComputeDistrictStats(t *testing.T) {
	f := newFixture(t)
	repo := NewGormStatsRepository(f.db)
	ctx := context.Background()

	a := f.addAssociation(t, f.requester, f.property, 1)
	other := f.addProperty(t, geo.VocationEdilitaire, dossier.Area{Ares: 1})
	f.addAssociation(t, f.requester, other, 1)

	require.NoError(t, f.db.Model(&models.AssociationModel{}).
		Where("id = ?", a.ID).
		Update("total_price", decimal.RequireFromString("1200.50")).Error)
	require.NoError(t, NewGormAssociationRepository(f.db).MarkStale(ctx, []uuid.UUID{a.ID}))

	stats, err := repo.ComputeDistrictStats(ctx, f.districtID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Dossiers)
	assert.Equal(t, int64(1), stats.OpenDossiers)
	assert.Equal(t, int64(2), stats.Properties)
	assert.Equal(t, int64(12105), stats.TotalCentiares)
	assert.Equal(t, int64(1), stats.Requesters)
	assert.Equal(t, int64(2), stats.ActiveAssociations)
	assert.Equal(t, int64(1), stats.StalePrices)
	assert.True(t, decimal.RequireFromString("1200.50").Equal(stats.TotalPrice), stats.TotalPrice.String())
	assert.False(t, stats.ComputedAt.IsZero())

	empty, err := repo.ComputeDistrictStats(ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, empty.Dossiers)
	assert.True(t, empty.TotalPrice.IsZero())
}
