package datascope

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/foncier/backend/internal/domain/geo"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type scopedRow struct {
	ID         uuid.UUID
	DistrictID uuid.UUID
}

func (scopedRow) TableName() string { return "dossiers" }

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return db, mock
}

func TestFilter_Apply(t *testing.T) {
	districtID := uuid.New()

	t.Run("district actor sees own district only", func(t *testing.T) {
		db, mock := newMockDB(t)
		actor := geo.Actor{UserID: uuid.New(), Role: geo.RoleOperator, Access: geo.Access{Level: geo.AccessDistrict, DistrictID: districtID}}

		mock.ExpectQuery(`SELECT \* FROM "dossiers" WHERE district_id = \$1`).
			WithArgs(districtID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "district_id"}).AddRow(uuid.New(), districtID))

		var rows []scopedRow
		require.NoError(t, NewFilter(actor).Apply(db).Find(&rows).Error)
		assert.Len(t, rows, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("national actor is not filtered", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`SELECT \* FROM "dossiers"$`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "district_id"}))

		var rows []scopedRow
		require.NoError(t, NewFilter(geo.SystemActor).Apply(db).Find(&rows).Error)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing actor matches nothing", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`SELECT \* FROM "dossiers" WHERE 1 = 0`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "district_id"}))

		var rows []scopedRow
		require.NoError(t, db.Scopes(DistrictScopeFromContext(context.Background())).Find(&rows).Error)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("district actor without district matches nothing", func(t *testing.T) {
		db, mock := newMockDB(t)
		actor := geo.Actor{Role: geo.RoleOperator, Access: geo.Access{Level: geo.AccessDistrict}}
		mock.ExpectQuery(`SELECT \* FROM "dossiers" WHERE 1 = 0`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "district_id"}))

		var rows []scopedRow
		require.NoError(t, NewFilter(actor).Apply(db).Find(&rows).Error)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFilter_FromContext(t *testing.T) {
	districtID := uuid.New()
	ctx := geo.WithActor(context.Background(), geo.Actor{Access: geo.Access{Level: geo.AccessDistrict, DistrictID: districtID}})

	f := NewFilterFromContext(ctx)
	assert.False(t, f.CanAccessAll())
	assert.True(t, f.CanAccessDistrict(districtID))
	assert.False(t, f.CanAccessDistrict(uuid.New()))

	assert.False(t, NewFilterFromContext(context.Background()).CanAccessDistrict(districtID))
	assert.True(t, NewFilter(geo.SystemActor).CanAccessAll())
}

func TestInDistricts(t *testing.T) {
	d1, d2 := uuid.New(), uuid.New()

	t.Run("filters by resolved set", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`SELECT \* FROM "dossiers" WHERE district_id IN \(\$1,\$2\)`).
			WithArgs(d1, d2).
			WillReturnRows(sqlmock.NewRows([]string{"id", "district_id"}))

		var rows []scopedRow
		require.NoError(t, db.Scopes(InDistricts([]uuid.UUID{d1, d2})).Find(&rows).Error)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty set matches nothing", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`SELECT \* FROM "dossiers" WHERE 1 = 0`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "district_id"}))

		var rows []scopedRow
		require.NoError(t, db.Scopes(InDistricts(nil)).Find(&rows).Error)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
