package persistence

import (
	"context"
	"testing"

	"github.com/foncier/backend/internal/domain/dossier"
	"github.com/foncier/backend/internal/domain/geo"
	"github.com/foncier/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newSQLiteDB opens a private in-memory database with every table migrated.
// One connection keeps the in-memory database alive and serializes writers.
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

type fixture struct {
	db         *gorm.DB
	actorID    uuid.UUID
	districtID uuid.UUID
	dossier    *dossier.Dossier
	property   *dossier.Property
	requester  *dossier.Requester
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := newSQLiteDB(t)
	f := &fixture{db: db, actorID: uuid.New(), districtID: uuid.New()}

	d, err := dossier.NewDossier(f.districtID, "DOS-001", "Ambohimanga", f.actorID)
	require.NoError(t, err)
	require.NoError(t, NewGormDossierRepository(db).Save(ctx, d))
	f.dossier = d

	f.property = f.addProperty(t, geo.VocationAgricole, dossier.Area{Hectares: 1, Ares: 20, Centiares: 5})
	f.requester = f.addRequester(t, "200011223344", "RAKOTO")
	return f
}

func (f *fixture) addProperty(t *testing.T, vocation geo.Vocation, area dossier.Area) *dossier.Property {
	t.Helper()
	p, err := dossier.NewProperty(f.dossier, dossier.PropertyInput{Title: "TF 1234", Vocation: vocation, Area: area}, f.actorID)
	require.NoError(t, err)
	require.NoError(t, NewGormPropertyRepository(f.db).Save(context.Background(), p))
	return p
}

func (f *fixture) addRequester(t *testing.T, cin, lastName string) *dossier.Requester {
	t.Helper()
	r, err := dossier.NewRequester(f.dossier, dossier.RequesterInput{CIN: cin, LastName: lastName}, f.actorID)
	require.NoError(t, err)
	require.NoError(t, NewGormRequesterRepository(f.db).Save(context.Background(), r))
	return r
}

func (f *fixture) addAssociation(t *testing.T, requester *dossier.Requester, property *dossier.Property, ordre int) *dossier.Association {
	t.Helper()
	a, err := dossier.NewAssociation(requester, property, f.actorID)
	require.NoError(t, err)
	require.NoError(t, a.AssignOrdre(ordre))
	require.NoError(t, NewGormAssociationRepository(f.db).Create(context.Background(), a))
	return a
}
