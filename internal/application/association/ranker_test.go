package association

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/foncier/backend/internal/application/lifecycle"
	"github.com/foncier/backend/internal/application/pricing"
	"github.com/foncier/backend/internal/domain/dossier"
	"github.com/foncier/backend/internal/domain/geo"
	"github.com/foncier/backend/internal/domain/shared"
	"github.com/foncier/backend/internal/infrastructure/config"
	"github.com/foncier/backend/internal/infrastructure/lock"
	"github.com/foncier/backend/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type refusingPricer struct{ err error }

func (p refusingPricer) PriceNew(context.Context, geo.TariffProvider, *dossier.Association, *dossier.Property) error {
	return p.err
}

func (p refusingPricer) RecomputeProperty(context.Context, uuid.UUID) error { return nil }

type rankerEnv struct {
	f         *testutil.Fixture
	ranker    *Ranker
	cache     *testutil.CountingInvalidator
	publisher *testutil.RecordingPublisher
}

func newRankerEnv(t *testing.T, pricer lifecycle.Pricer) *rankerEnv {
	t.Helper()
	f := testutil.NewFixture(t)
	f.SetTariff(t, map[geo.Vocation]string{geo.VocationAgricole: "500"})
	if pricer == nil {
		pricer = pricing.NewRecomputer(f.Repos.Associations, f.Repos.Tariffs, nil)
	}
	cache := &testutil.CountingInvalidator{}
	dispatcher := lifecycle.NewDispatcher(lifecycle.NewTable(lifecycle.Dependencies{Pricer: pricer, Cache: cache}), nil)
	cfg := config.NumberingConfig{LockTimeout: 5 * time.Second, RetryOnce: true}

	r := NewRanker(f.Scope, lock.NewLocalLocker(), dispatcher, cfg, nil)
	publisher := &testutil.RecordingPublisher{}
	r.SetEventPublisher(publisher)
	return &rankerEnv{f: f, ranker: r, cache: cache, publisher: publisher}
}

func TestRanker_LinkRequesterToProperty(t *testing.T) {
	env := newRankerEnv(t, nil)
	f := env.f
	ctx := testutil.OperatorContext(f.District.ID)
	p := f.AddProperty(t, geo.VocationAgricole, dossier.Area{Ares: 10})
	r := f.AddRequester(t, "101011223344", "Rakoto")

	a, err := env.ranker.LinkRequesterToProperty(ctx, r.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Ordre)
	assert.True(t, a.TotalPrice.Equal(decimal.NewFromInt(500000)), a.TotalPrice.String())

	stored := f.ReloadAssociation(t, a.ID)
	assert.Equal(t, 1, stored.Ordre)
	assert.True(t, stored.TotalPrice.Equal(decimal.NewFromInt(500000)))
	assert.Equal(t, dossier.AssociationActive, stored.Status)

	assert.Len(t, env.publisher.EventsOfType(dossier.EventTypeAssociationCreated), 1)
	assert.Equal(t, 1, env.cache.Count(f.District.ID))

	t.Run("same pair twice is refused", func(t *testing.T) {
		_, err := env.ranker.LinkRequesterToProperty(ctx, r.ID, p.ID)
		assert.ErrorIs(t, err, shared.ErrAlreadyLinked)
	})

	t.Run("next requester gets the next ordre", func(t *testing.T) {
		other := f.AddRequester(t, "101011223355", "Rabe")
		b, err := env.ranker.LinkRequesterToProperty(ctx, other.ID, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, b.Ordre)
	})

	t.Run("archived ordre is never reused", func(t *testing.T) {
		archived, err := env.ranker.ArchiveAssociation(ctx, a.ID, "Désistement")
		require.NoError(t, err)
		assert.Equal(t, dossier.AssociationArchived, archived.Status)
		assert.Len(t, env.publisher.EventsOfType(dossier.EventTypeAssociationDissociated), 1)

		relinked, err := env.ranker.LinkRequesterToProperty(ctx, r.ID, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, relinked.Ordre)
	})

	t.Run("archiving twice is refused", func(t *testing.T) {
		_, err := env.ranker.ArchiveAssociation(ctx, a.ID, "again")
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})
}

func TestRanker_ConcurrentLinksGetUniqueOrdre(t *testing.T) {
	env := newRankerEnv(t, nil)
	f := env.f
	p := f.AddProperty(t, geo.VocationAgricole, dossier.Area{Ares: 10})

	const n = 20
	requesters := make([]*dossier.Requester, n)
	for i := range n {
		requesters[i] = f.AddRequester(t, fmt.Sprintf("1010112233%02d", i), "Rakoto")
	}

	ctx := testutil.OperatorContext(f.District.ID)
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.ranker.LinkRequesterToProperty(ctx, requesters[i].ID, p.ID)
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	associations, err := f.Repos.Associations.FindByProperty(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, associations, n)
	ordres := make([]int, n)
	for i, a := range associations {
		ordres[i] = a.Ordre
	}
	sort.Ints(ordres)
	for i, o := range ordres {
		assert.Equal(t, i+1, o)
	}
}

func TestRanker_Refusals(t *testing.T) {
	t.Run("closed dossier", func(t *testing.T) {
		env := newRankerEnv(t, nil)
		f := env.f
		p := f.AddProperty(t, geo.VocationAgricole, dossier.Area{Ares: 10})
		r := f.AddRequester(t, "101011223344", "Rakoto")
		require.NoError(t, f.Dossier.Close(testutil.TestUserID()))
		require.NoError(t, f.Repos.Dossiers.Save(context.Background(), f.Dossier))

		_, err := env.ranker.LinkRequesterToProperty(testutil.OperatorContext(f.District.ID), r.ID, p.ID)
		assert.ErrorIs(t, err, shared.ErrDossierClosed)
	})

	t.Run("property outside the actor district", func(t *testing.T) {
		env := newRankerEnv(t, nil)
		f := env.f
		p := f.AddProperty(t, geo.VocationAgricole, dossier.Area{Ares: 10})
		r := f.AddRequester(t, "101011223344", "Rakoto")

		_, err := env.ranker.LinkRequesterToProperty(testutil.OperatorContext(uuid.New()), r.ID, p.ID)
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})

	t.Run("no actor", func(t *testing.T) {
		env := newRankerEnv(t, nil)
		_, err := env.ranker.LinkRequesterToProperty(context.Background(), uuid.New(), uuid.New())
		assert.ErrorIs(t, err, shared.ErrForbidden)
	})

	t.Run("unknown property", func(t *testing.T) {
		env := newRankerEnv(t, nil)
		r := env.f.AddRequester(t, "101011223344", "Rakoto")
		_, err := env.ranker.LinkRequesterToProperty(testutil.SupervisorContext(), r.ID, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("corrupted tariff rolls the link back", func(t *testing.T) {
		env := newRankerEnv(t, refusingPricer{err: shared.ErrTariffCorrupted})
		f := env.f
		p := f.AddProperty(t, geo.VocationAgricole, dossier.Area{Ares: 10})
		r := f.AddRequester(t, "101011223344", "Rakoto")

		_, err := env.ranker.LinkRequesterToProperty(testutil.SupervisorContext(), r.ID, p.ID)
		assert.ErrorIs(t, err, shared.ErrTariffCorrupted)

		associations, err := f.Repos.Associations.FindByProperty(context.Background(), p.ID)
		require.NoError(t, err)
		assert.Empty(t, associations)
		assert.Empty(t, env.publisher.EventsOfType(dossier.EventTypeAssociationCreated))
		assert.Zero(t, env.cache.Count(f.District.ID))
	})
}
