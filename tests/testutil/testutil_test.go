package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/foncier/backend/internal/domain/geo"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMockDB(t *testing.T) {
	mockDB := NewMockDB(t)
	defer mockDB.Close()

	assert.NotNil(t, mockDB.DB)
	assert.NotNil(t, mockDB.Mock)
	assert.NotNil(t, mockDB.SqlDB)

	// No expectations set, should pass
	mockDB.ExpectationsWereMet(t)
}

func TestNewFixture(t *testing.T) {
	f := NewFixture(t)

	found, err := f.Repos.Dossiers.FindByID(context.Background(), f.Dossier.ID)
	require.NoError(t, err)
	assert.Equal(t, f.District.ID, found.DistrictID)

	ids, err := f.Hierarchy().DistrictIDsByProvince(context.Background(), f.Province.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.District.ID}, ids)

	tariff := f.SetTariff(t, map[geo.Vocation]string{geo.VocationAgricole: "1"})
	loaded, err := f.Repos.Tariffs.TariffFor(context.Background(), f.District.ID)
	require.NoError(t, err)
	assert.True(t, tariff.Equal(loaded))
}

func TestActorContexts(t *testing.T) {
	districtID := uuid.New()

	actor, ok := geo.ActorFromContext(OperatorContext(districtID))
	require.True(t, ok)
	assert.True(t, actor.Access.IsDistrictRestricted())
	assert.False(t, actor.IsPrivileged())
	assert.True(t, actor.CanAccessDistrict(districtID))

	actor, ok = geo.ActorFromContext(SupervisorContext())
	require.True(t, ok)
	assert.True(t, actor.IsPrivileged())
	assert.True(t, actor.CanAccessDistrict(uuid.New()))
}

func TestNewTestUUID(t *testing.T) {
	assert.Equal(t, NewTestUUID("seed"), NewTestUUID("seed"))
	assert.NotEqual(t, NewTestUUID("seed"), NewTestUUID("other"))
}

func TestCountingInvalidator(t *testing.T) {
	c := &CountingInvalidator{}
	a, b := uuid.New(), uuid.New()
	require.NoError(t, c.Invalidate(context.Background(), a))
	require.NoError(t, c.Invalidate(context.Background(), a))
	require.NoError(t, c.Invalidate(context.Background(), b))

	assert.Equal(t, 2, c.Count(a))
	assert.Equal(t, 1, c.Count(b))
	c.Reset()
	assert.Zero(t, c.Count(a))
}

func TestAssertEventually(t *testing.T) {
	start := time.Now()
	AssertEventually(t, func() bool { return time.Since(start) > 20*time.Millisecond }, time.Second, 5*time.Millisecond)
	AssertNever(t, func() bool { return false }, 20*time.Millisecond, 5*time.Millisecond)
}
