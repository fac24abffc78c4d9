package telemetry_test

import (
	"testing"

	"github.com/china-facil/chinafacil-backend-sub000/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type tracedRow struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:100"`
}

func setupTracedDB(t *testing.T, cfg telemetry.DBTracingConfig) (*gorm.DB, *tracetest.SpanRecorder) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedRow{}))

	sr := tracetest.NewSpanRecorder()
	cfg.TracerProvider = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	require.NoError(t, telemetry.InstrumentDB(db, cfg, zap.NewNop()))
	return db, sr
}

func TestInstrumentDB_Disabled(t *testing.T) {
	db, sr := setupTracedDB(t, telemetry.DBTracingConfig{})

	require.NoError(t, db.Create(&tracedRow{Name: "a"}).Error)
	assert.Empty(t, sr.Ended())
}

func TestInstrumentDB_RecordsStatements(t *testing.T) {
	db, sr := setupTracedDB(t, telemetry.DBTracingConfig{Enabled: true, DBSystem: "sqlite"})

	require.NoError(t, db.Create(&tracedRow{Name: "a"}).Error)
	var rows []tracedRow
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)

	assert.GreaterOrEqual(t, len(sr.Ended()), 2)
}

func TestInstrumentDB_MissIsNotAnError(t *testing.T) {
	db, sr := setupTracedDB(t, telemetry.DBTracingConfig{Enabled: true, DBSystem: "sqlite"})

	var row tracedRow
	err := db.First(&row, 42).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	for _, span := range sr.Ended() {
		assert.NotEqual(t, codes.Error, span.Status().Code, span.Name())
	}
}
