package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/anicoll/vevor-integration/internal/pkg/database/migration"
	"github.com/anicoll/vevor-integration/internal/pkg/model"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("vevor"),
		postgres.WithUsername("vevor"),
		postgres.WithPassword("vevor"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(ctr)
	})

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	folder, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migration.Migrate(dsn, folder))
	// a second run finds nothing to do
	require.NoError(t, migration.Migrate(dsn, folder))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	db := NewDatabase(pool)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

var (
	testPower = model.Sensor{
		UniqueID:    "vevor_pv_power",
		Component:   model.ComponentSensor,
		Name:        "PV Power",
		Unit:        "W",
		DeviceClass: "power",
	}
	testCharging = model.Sensor{
		UniqueID:  "vevor_battery_charging",
		Component: model.ComponentBinarySensor,
		Name:      "Battery Charging",
	}
)

func TestDatabase_WriteAndReadLatest(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.RegisterSensor(ctx, testPower))
	require.NoError(t, db.RegisterSensor(ctx, testPower))
	require.NoError(t, db.RegisterSensor(ctx, testCharging))

	older := time.Now().Add(-time.Minute).UTC()
	newer := time.Now().UTC()
	require.NoError(t, db.Write(ctx, []model.Reading{
		{Sensor: testPower, Value: model.Number(120), Timestamp: older},
		{Sensor: testCharging, Value: model.Bool(false), Timestamp: older},
	}))
	require.NoError(t, db.Write(ctx, []model.Reading{
		{Sensor: testPower, Value: model.Number(250.5), Timestamp: newer},
		{Sensor: testCharging, Value: model.Bool(true), Timestamp: newer},
	}))

	latest, err := db.GetLatestProperties(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 2)

	byID := map[string]model.Property{}
	for _, p := range latest {
		byID[p.UniqueID] = p
	}
	assert.Equal(t, "250.5", byID["vevor_pv_power"].Value)
	assert.Equal(t, model.KindNumber, byID["vevor_pv_power"].Kind)
	assert.Equal(t, "W", byID["vevor_pv_power"].Unit)
	assert.Equal(t, model.PayloadOn, byID["vevor_battery_charging"].Value)
	assert.Equal(t, model.KindBool, byID["vevor_battery_charging"].Kind)

	from := older.Add(-time.Second)
	to := newer.Add(time.Second)
	history, err := db.GetProperties(ctx, "vevor_pv_power", &from, &to)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "250.5", history[0].Value)
	assert.Equal(t, "120", history[1].Value)
}

func TestDatabase_Cleanup(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.Write(ctx, []model.Reading{
		{Sensor: testPower, Value: model.Number(1), Timestamp: time.Now().AddDate(0, 0, -10)},
		{Sensor: testPower, Value: model.Number(2), Timestamp: time.Now()},
	}))

	deleted, err := db.Cleanup(ctx, 8*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	latest, err := db.GetLatestProperties(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "2", latest[0].Value)
}

func TestDatabase_EmptyHistory(t *testing.T) {
	db := newTestDatabase(t)

	latest, err := db.GetLatestProperties(context.Background())
	require.NoError(t, err)
	assert.Empty(t, latest)

	history, err := db.GetProperties(context.Background(), "vevor_pv_power", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, history)
}
