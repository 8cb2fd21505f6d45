package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/foncier/backend/internal/application/uow"
	"github.com/foncier/backend/internal/domain/dossier"
	"github.com/foncier/backend/internal/domain/geo"
	"github.com/foncier/backend/internal/infrastructure/persistence"
	"github.com/foncier/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Fixture is one seeded district holding an open dossier
type Fixture struct {
	DB       *gorm.DB
	Repos    uow.Repositories
	Scope    *persistence.GormTransactionScope
	Province *geo.Province
	Region   *geo.Region
	District *geo.District
	Dossier  *dossier.Dossier
}

// NewFixture seeds Province → Region → District and dossier "DOS-001" in a fresh sqlite database
func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	return NewFixtureOn(t, NewSQLiteDB(t), "TNR")
}

// NewFixtureOn seeds the same hierarchy on db. code prefixes every unique
// code and number so several fixtures can share one database.
func NewFixtureOn(t *testing.T, db *gorm.DB, code string) *Fixture {
	t.Helper()
	ctx := context.Background()

	f := &Fixture{
		DB:    db,
		Scope: persistence.NewGormTransactionScope(db),
		Repos: uow.Repositories{
			Dossiers:     persistence.NewGormDossierRepository(db),
			Properties:   persistence.NewGormPropertyRepository(db),
			Requesters:   persistence.NewGormRequesterRepository(db),
			Associations: persistence.NewGormAssociationRepository(db),
			Documents:    persistence.NewGormDocumentRepository(db),
			Sequences:    persistence.NewGormSequenceRepository(db),
			Tariffs:      persistence.NewGormTariffRepository(db),
		},
	}

	hierarchy := persistence.NewGormHierarchyRepository(db)
	var err error
	f.Province, err = geo.NewProvince(code+"-P", "Antananarivo")
	require.NoError(t, err)
	require.NoError(t, hierarchy.SaveProvince(ctx, f.Province))
	f.Region, err = geo.NewRegion(f.Province.ID, code+"-R", "Analamanga")
	require.NoError(t, err)
	require.NoError(t, hierarchy.SaveRegion(ctx, f.Region))
	f.District, err = geo.NewDistrict(f.Region.ID, code, "Antananarivo Renivohitra")
	require.NoError(t, err)
	require.NoError(t, hierarchy.SaveDistrict(ctx, f.District))

	number := "DOS-001"
	if code != "TNR" {
		number = code + "-DOS-001"
	}
	f.Dossier, err = dossier.NewDossier(f.District.ID, number, "Ambohimanga", TestUserID())
	require.NoError(t, err)
	require.NoError(t, f.Repos.Dossiers.Save(ctx, f.Dossier))
	return f
}

// Hierarchy returns a hierarchy repository on the fixture database
func (f *Fixture) Hierarchy() *persistence.GormHierarchyRepository {
	return persistence.NewGormHierarchyRepository(f.DB)
}

// AddDistrict creates another district in the fixture region
func (f *Fixture) AddDistrict(t *testing.T, code, name string) *geo.District {
	t.Helper()
	d, err := geo.NewDistrict(f.Region.ID, code, name)
	require.NoError(t, err)
	require.NoError(t, f.Hierarchy().SaveDistrict(context.Background(), d))
	return d
}

// AddProperty stores a property in the fixture dossier
func (f *Fixture) AddProperty(t *testing.T, vocation geo.Vocation, area dossier.Area) *dossier.Property {
	t.Helper()
	p, err := dossier.NewProperty(f.Dossier, dossier.PropertyInput{Title: "TF 1234", Vocation: vocation, Area: area}, TestUserID())
	require.NoError(t, err)
	require.NoError(t, f.Repos.Properties.Save(context.Background(), p))
	return p
}

// AddRequester stores a requester in the fixture dossier
func (f *Fixture) AddRequester(t *testing.T, cin, lastName string) *dossier.Requester {
	t.Helper()
	r, err := dossier.NewRequester(f.Dossier, dossier.RequesterInput{CIN: cin, LastName: lastName}, TestUserID())
	require.NoError(t, err)
	require.NoError(t, f.Repos.Requesters.Save(context.Background(), r))
	return r
}

// AddAssociation stores a ranked, unpriced association directly
func (f *Fixture) AddAssociation(t *testing.T, r *dossier.Requester, p *dossier.Property, ordre int) *dossier.Association {
	t.Helper()
	a, err := dossier.NewAssociation(r, p, TestUserID())
	require.NoError(t, err)
	require.NoError(t, a.AssignOrdre(ordre))
	require.NoError(t, f.Repos.Associations.Create(context.Background(), a))
	return a
}

// SetTariff replaces the fixture district tariff; rates are decimal strings
func (f *Fixture) SetTariff(t *testing.T, rates map[geo.Vocation]string) *geo.Tariff {
	t.Helper()
	tariff := geo.NewTariff(f.District.ID)
	for v, rate := range rates {
		require.NoError(t, tariff.SetRate(v, decimal.RequireFromString(rate)))
	}
	require.NoError(t, f.Repos.Tariffs.Save(context.Background(), tariff))
	return tariff
}

// SetPrice overwrites a stored price without recomputing it
func (f *Fixture) SetPrice(t *testing.T, associationID uuid.UUID, amount decimal.Decimal) {
	t.Helper()
	require.NoError(t, f.DB.Model(&models.AssociationModel{}).
		Where("id = ?", associationID).
		Updates(map[string]any{"total_price": amount, "price_stale": false, "price_computed_at": time.Now()}).Error)
}

// ReloadAssociation reads an association back from the database
func (f *Fixture) ReloadAssociation(t *testing.T, id uuid.UUID) *dossier.Association {
	t.Helper()
	a, err := f.Repos.Associations.FindByID(context.Background(), id)
	require.NoError(t, err)
	return a
}

// CountingInvalidator records district invalidations
type CountingInvalidator struct {
	mu    sync.Mutex
	calls []uuid.UUID
	Err   error
}

// Invalidate records the call
func (c *CountingInvalidator) Invalidate(_ context.Context, districtID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, districtID)
	return c.Err
}

// Count returns how many invalidations hit districtID
func (c *CountingInvalidator) Count(districtID uuid.UUID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, id := range c.calls {
		if id == districtID {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls
func (c *CountingInvalidator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}
