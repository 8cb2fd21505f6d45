package integration

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/foncier/backend/internal/application/geo"
	"github.com/foncier/backend/internal/application/numbering"
	"github.com/foncier/backend/internal/domain/document"
	"github.com/foncier/backend/internal/domain/dossier"
	domaingeo "github.com/foncier/backend/internal/domain/geo"
	"github.com/foncier/backend/internal/domain/shared"
	"github.com/foncier/backend/internal/infrastructure/cache"
	"github.com/foncier/backend/internal/infrastructure/config"
	"github.com/foncier/backend/internal/infrastructure/lock"
	"github.com/foncier/backend/internal/infrastructure/persistence"
	"github.com/foncier/backend/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNumbering_ConcurrentAllocation(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewSharedTestDB(t)
	f := testutil.NewFixtureOn(t, testDB.DB, "NB1")
	svc := numbering.NewService(f.Scope, f.Repos.Documents, lock.NewLocalLocker(), config.NumberingConfig{
		LockTimeout:  5 * time.Second,
		RetryOnce:    true,
		YearTimezone: "Indian/Antananarivo",
	}, zaptest.NewLogger(t))
	ctx := testutil.OperatorContext(f.District.ID)

	const n = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []string
		seqs    []int
		errs    []error
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := svc.AllocateNumber(ctx, numbering.AllocateRequest{
				DossierID:     f.Dossier.ID,
				Type:          document.TypeFinancialCert,
				Discriminator: "2026",
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers = append(numbers, doc.Number)
			seqs = append(seqs, int(doc.Sequence))
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	sort.Ints(seqs)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, seqs, "sequences have no gap and no duplicate")
	sort.Strings(numbers)
	assert.Equal(t, "CSF-001/2026", numbers[0])
	assert.Equal(t, "CSF-010/2026", numbers[n-1])

	t.Run("client number already held", func(t *testing.T) {
		_, err := svc.AllocateNumber(ctx, numbering.AllocateRequest{
			DossierID:    f.Dossier.ID,
			Type:         document.TypeFinancialCert,
			ClientNumber: "CSF-003/2026",
		})
		assert.ErrorIs(t, err, shared.ErrDuplicateNumber)
	})
}

func TestSchema_DossierRemoval(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewSharedTestDB(t)
	ctx := context.Background()

	t.Run("records of a dossier are removed with it", func(t *testing.T) {
		f := testutil.NewFixtureOn(t, testDB.DB, "SC1")
		p := f.AddProperty(t, domaingeo.VocationAgricole, dossier.Area{Ares: 3})
		r := f.AddRequester(t, "101211000301", "Rabe")
		a := f.AddAssociation(t, r, p, 1)

		require.NoError(t, f.Repos.Dossiers.Delete(ctx, f.Dossier.ID))

		_, err := f.Repos.Properties.FindByID(ctx, p.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		_, err = f.Repos.Requesters.FindByID(ctx, r.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		_, err = f.Repos.Associations.FindByID(ctx, a.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("issued documents keep their dossier", func(t *testing.T) {
		f := testutil.NewFixtureOn(t, testDB.DB, "SC2")
		spec, err := document.TypeFinancialCert.Spec()
		require.NoError(t, err)
		doc := document.NewGeneratedDocument(f.District.ID, f.Dossier.ID, spec, "CSF-001/2026", 1, nil, testutil.TestUserID())
		require.NoError(t, f.Repos.Documents.Create(ctx, doc))

		assert.Error(t, f.Repos.Dossiers.Delete(ctx, f.Dossier.ID))
		_, err = f.Repos.Dossiers.FindByID(ctx, f.Dossier.ID)
		assert.NoError(t, err)
	})
}

func TestStats_ComputeOnPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewSharedTestDB(t)
	f := testutil.NewFixtureOn(t, testDB.DB, "ST1")
	f.SetTariff(t, map[domaingeo.Vocation]string{domaingeo.VocationAgricole: "100"})
	ranker := newRanker(t, f, 5*time.Second)
	ctx := testutil.OperatorContext(f.District.ID)

	p := f.AddProperty(t, domaingeo.VocationAgricole, dossier.Area{Hectares: 1, Ares: 50})
	r1 := f.AddRequester(t, "101211000401", "Rakoto")
	r2 := f.AddRequester(t, "101211000402", "Rabe")
	_, err := ranker.LinkRequesterToProperty(ctx, r1.ID, p.ID)
	require.NoError(t, err)
	_, err = ranker.LinkRequesterToProperty(ctx, r2.ID, p.ID)
	require.NoError(t, err)

	hierarchy := persistence.NewGormHierarchyRepository(testDB.DB)
	stats := geo.NewStatsService(
		cache.NewMemoryStatsCache(cache.WithMemoryTTL(time.Minute)),
		persistence.NewGormStatsRepository(testDB.DB),
		geo.NewResolver(hierarchy),
		zaptest.NewLogger(t),
	)

	got, err := stats.Get(ctx, f.District.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Dossiers)
	assert.Equal(t, int64(1), got.OpenDossiers)
	assert.Equal(t, int64(1), got.Properties)
	assert.Equal(t, int64(2), got.Requesters)
	assert.Equal(t, int64(2), got.ActiveAssociations)
	assert.Equal(t, int64(15000), got.TotalCentiares)
	assert.True(t, got.TotalPrice.Equal(decimal.NewFromInt(3000000)), got.TotalPrice.String())
}
