package telemetry

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type staleRow struct {
	ID         string `gorm:"primaryKey"`
	DistrictID string
	Status     string
	PriceStale bool
}

func (staleRow) TableName() string { return "associations" }

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&staleRow{}))
	return db
}

func TestDBTracingPlugin_RecordsSpans(t *testing.T) {
	recorder := installRecorder(t)
	db := openSQLite(t)

	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, DBSystem: "sqlite", SlowQueryThresh: 1}, zap.NewNop())
	require.NoError(t, plugin.Register(db))

	ctx, span := StartSpan(context.Background(), "test.parent")
	var rows []staleRow
	require.NoError(t, db.WithContext(ctx).Find(&rows).Error)
	span.End()

	var dbSpan bool
	for _, s := range recorder.Ended() {
		if s.Name() == "test.parent" {
			continue
		}
		dbSpan = true
		assert.Equal(t, span.SpanContext().TraceID(), s.SpanContext().TraceID())
	}
	assert.True(t, dbSpan)
	assert.NotNil(t, db.Callback().Query().Get("otel_slow_query:query"))
}

func TestDBTracingPlugin_Disabled(t *testing.T) {
	db := openSQLite(t)
	plugin := NewDBTracingPlugin(DefaultDBTracingConfig(), zap.NewNop())
	require.NoError(t, plugin.Register(db))
	assert.Nil(t, db.Callback().Query().Get("otel_slow_query:query"))
}

func TestGormStalePriceProvider(t *testing.T) {
	db := openSQLite(t)
	d1, d2 := uuid.New(), uuid.New()
	require.NoError(t, db.Create(&[]staleRow{
		{ID: "a", DistrictID: d1.String(), Status: "active", PriceStale: true},
		{ID: "b", DistrictID: d1.String(), Status: "active", PriceStale: true},
		{ID: "c", DistrictID: d1.String(), Status: "active", PriceStale: false},
		{ID: "d", DistrictID: d2.String(), Status: "archived", PriceStale: true},
	}).Error)

	counts, err := NewGormStalePriceProvider(db).CountStaleByDistrict(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]int64{d1: 2}, counts)
}
