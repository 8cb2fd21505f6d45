package dossier

import (
	"context"
	"testing"

	"github.com/foncier/backend/internal/application/geo"
	"github.com/foncier/backend/internal/application/lifecycle"
	"github.com/foncier/backend/internal/application/pricing"
	"github.com/foncier/backend/internal/domain/document"
	"github.com/foncier/backend/internal/domain/dossier"
	domaingeo "github.com/foncier/backend/internal/domain/geo"
	"github.com/foncier/backend/internal/domain/shared"
	"github.com/foncier/backend/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	f          *testutil.Fixture
	dossiers   *DossierService
	properties *PropertyService
	intake     *IntakeService
	cache      *testutil.CountingInvalidator
	publisher  *testutil.RecordingPublisher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	f := testutil.NewFixture(t)
	cache := &testutil.CountingInvalidator{}
	pricer := pricing.NewRecomputer(f.Repos.Associations, f.Repos.Tariffs, nil)
	dispatcher := lifecycle.NewDispatcher(lifecycle.NewTable(lifecycle.Dependencies{Pricer: pricer, Cache: cache}), nil)
	publisher := &testutil.RecordingPublisher{}

	e := &env{
		f:          f,
		dossiers:   NewDossierService(f.Scope, f.Repos.Dossiers, f.Hierarchy(), geo.NewResolver(f.Hierarchy()), dispatcher, nil),
		properties: NewPropertyService(f.Scope, f.Repos.Properties, dispatcher, nil),
		intake:     NewIntakeService(f.Scope, f.Repos.Requesters, dispatcher, nil),
		cache:      cache,
		publisher:  publisher,
	}
	e.dossiers.SetEventPublisher(publisher)
	e.properties.SetEventPublisher(publisher)
	e.intake.SetEventPublisher(publisher)
	return e
}

func TestDossierService_Create(t *testing.T) {
	e := newEnv(t)
	districtID := e.f.District.ID

	d, err := e.dossiers.Create(testutil.OperatorContext(districtID), CreateDossierRequest{
		DistrictID: districtID,
		Number:     "DOS-002",
		Label:      "Ambatolampy",
	})
	require.NoError(t, err)
	assert.Equal(t, "DOS-002", d.Number)
	assert.False(t, d.IsClosed)
	assert.Len(t, e.publisher.EventsOfType(dossier.EventTypeDossierCreated), 1)
	assert.Equal(t, 1, e.cache.Count(districtID))

	t.Run("number is unique", func(t *testing.T) {
		_, err := e.dossiers.Create(testutil.SupervisorContext(), CreateDossierRequest{DistrictID: districtID, Number: "DOS-002"})
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("district outside operator scope", func(t *testing.T) {
		_, err := e.dossiers.Create(testutil.OperatorContext(uuid.New()), CreateDossierRequest{DistrictID: districtID, Number: "DOS-003"})
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})

	t.Run("unknown district", func(t *testing.T) {
		_, err := e.dossiers.Create(testutil.SupervisorContext(), CreateDossierRequest{DistrictID: uuid.New(), Number: "DOS-004"})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("empty number", func(t *testing.T) {
		_, err := e.dossiers.Create(testutil.SupervisorContext(), CreateDossierRequest{DistrictID: districtID, Number: "  "})
		require.Error(t, err)
		assert.Equal(t, shared.KindValidation, shared.KindOf(err))
	})
}

func TestDossierService_GetAndList(t *testing.T) {
	e := newEnv(t)
	other := e.f.AddDistrict(t, "AMB", "Ambohidratrimo")
	_, err := e.dossiers.Create(testutil.SupervisorContext(), CreateDossierRequest{DistrictID: other.ID, Number: "DOS-100"})
	require.NoError(t, err)

	t.Run("operator sees only its district", func(t *testing.T) {
		page, err := e.dossiers.List(testutil.OperatorContext(e.f.District.ID), domaingeo.Filter{}, shared.DefaultFilter())
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "DOS-001", page.Items[0].Number)
		assert.Equal(t, int64(1), page.Total)
	})

	t.Run("national view lists both", func(t *testing.T) {
		page, err := e.dossiers.List(testutil.SupervisorContext(), domaingeo.Filter{}, shared.DefaultFilter())
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.Total)
	})

	t.Run("district filter", func(t *testing.T) {
		page, err := e.dossiers.List(testutil.SupervisorContext(), domaingeo.Filter{DistrictID: &other.ID}, shared.DefaultFilter())
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "DOS-100", page.Items[0].Number)
	})

	t.Run("get across districts is forbidden", func(t *testing.T) {
		_, err := e.dossiers.Get(testutil.OperatorContext(other.ID), e.f.Dossier.ID)
		assert.ErrorIs(t, err, shared.ErrForbidden)

		got, err := e.dossiers.Get(testutil.OperatorContext(e.f.District.ID), e.f.Dossier.ID)
		require.NoError(t, err)
		assert.Equal(t, e.f.Dossier.ID, got.ID)
	})

	t.Run("no actor", func(t *testing.T) {
		_, err := e.dossiers.List(context.Background(), domaingeo.Filter{}, shared.DefaultFilter())
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})
}

func TestDossierService_CloseReopen(t *testing.T) {
	e := newEnv(t)
	id := e.f.Dossier.ID

	_, err := e.dossiers.Close(testutil.OperatorContext(e.f.District.ID), id)
	assert.ErrorIs(t, err, shared.ErrForbidden, "operators cannot close dossiers")

	closed, err := e.dossiers.Close(testutil.SupervisorContext(), id)
	require.NoError(t, err)
	assert.True(t, closed.IsClosed)
	require.NotNil(t, closed.ClosedBy)

	stored, err := e.f.Repos.Dossiers.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, stored.IsClosed)

	_, err = e.dossiers.Close(testutil.SupervisorContext(), id)
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = e.properties.Create(testutil.OperatorContext(e.f.District.ID), id, dossier.PropertyInput{
		Vocation: domaingeo.VocationAgricole,
		Area:     dossier.Area{Ares: 1},
	})
	assert.ErrorIs(t, err, shared.ErrDossierClosed)

	reopened, err := e.dossiers.Reopen(testutil.SupervisorContext(), id)
	require.NoError(t, err)
	assert.False(t, reopened.IsClosed)

	assert.Len(t, e.publisher.EventsOfType(dossier.EventTypeDossierClosed), 1)
	assert.Len(t, e.publisher.EventsOfType(dossier.EventTypeDossierReopened), 1)
	assert.Equal(t, 2, e.cache.Count(e.f.District.ID))
}

func TestDossierService_Delete(t *testing.T) {
	t.Run("empty dossier is deleted", func(t *testing.T) {
		e := newEnv(t)
		require.NoError(t, e.dossiers.Delete(testutil.SupervisorContext(), e.f.Dossier.ID))

		_, err := e.f.Repos.Dossiers.FindByID(context.Background(), e.f.Dossier.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.Len(t, e.publisher.EventsOfType(dossier.EventTypeDossierDeleted), 1)
		assert.Equal(t, 1, e.cache.Count(e.f.District.ID))
	})

	t.Run("dossier holding records is refused", func(t *testing.T) {
		e := newEnv(t)
		e.f.AddRequester(t, "101011223344", "Rakoto")

		err := e.dossiers.Delete(testutil.SupervisorContext(), e.f.Dossier.ID)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
		assert.Contains(t, err.Error(), "1 requesters")
		assert.Zero(t, e.cache.Count(e.f.District.ID))
	})

	t.Run("dossier with issued documents is refused", func(t *testing.T) {
		e := newEnv(t)
		spec, err := document.TypeFinancialCert.Spec()
		require.NoError(t, err)
		doc := document.NewGeneratedDocument(e.f.District.ID, e.f.Dossier.ID, spec, "CSF-0001/2024", 1, nil, testutil.TestUserID())
		require.NoError(t, e.f.Repos.Documents.Create(context.Background(), doc))

		err = e.dossiers.Delete(testutil.SupervisorContext(), e.f.Dossier.ID)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})

	t.Run("operators cannot delete", func(t *testing.T) {
		e := newEnv(t)
		err := e.dossiers.Delete(testutil.OperatorContext(e.f.District.ID), e.f.Dossier.ID)
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})
}
