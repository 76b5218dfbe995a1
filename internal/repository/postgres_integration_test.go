//go:build integration

package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"lake-balance/internal/models"
	"lake-balance/pkg/database"
	"lake-balance/pkg/logging"
	"lake-balance/pkg/metrics"
)

// newPostgresRepository starts a throwaway Postgres with the schema applied.
func newPostgresRepository(t *testing.T, batchSize int) LakeRepository {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("lake_balance"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.WithInitScripts(filepath.Join("..", "..", "migrations", "001_create_schema.up.sql")),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	logger := logging.NewNopLogger()
	collector := metrics.NewCollectorWithRegistry("test", prometheus.NewRegistry())

	db, err := database.NewPostgresDB(&database.Config{
		Host:         host,
		Port:         port.Int(),
		User:         "postgres",
		Password:     "postgres",
		Database:     "lake_balance",
		SSLMode:      "disable",
		MaxOpenConns: 4,
		MaxIdleConns: 2,
	}, logger, collector)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewLakeRepository(db, logger, collector, batchSize)
}

func TestPostgresRepository_Observations(t *testing.T) {
	repo := newPostgresRepository(t, 2)
	ctx := context.Background()

	series := []*models.Observation{
		{Period: models.String("201407"), Volume: models.Float(100), Area: models.Float(10)},
		{Period: nil, Volume: nil, Rainfall: models.Float(-3)},
		{Period: models.String("201409"), Humidity: models.Float(50)},
		nil,
		{Period: models.String("201411"), WindSpeed: models.Float(1.2)},
	}
	require.NoError(t, repo.SaveObservations(ctx, "george", series))

	stored, err := repo.ListObservations(ctx, "george")
	require.NoError(t, err)
	require.Len(t, stored, 5)
	assert.Equal(t, "201407", *stored[0].Period)
	assert.Nil(t, stored[1].Period)
	assert.Equal(t, -3.0, *stored[1].Rainfall)
	assert.Equal(t, &models.Observation{}, stored[3])
	assert.Equal(t, 1.2, *stored[4].WindSpeed)

	// Saving again replaces the series.
	require.NoError(t, repo.SaveObservations(ctx, "george", series[:1]))
	stored, err = repo.ListObservations(ctx, "george")
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	lakes, err := repo.ListLakes(ctx)
	require.NoError(t, err)
	require.Len(t, lakes, 1)
	assert.Equal(t, 1, lakes[0].ObservationCount)

	_, err = repo.ListObservations(ctx, "nowhere")
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)

	assert.NoError(t, repo.HealthCheck(ctx))
}

func TestPostgresRepository_ModelRuns(t *testing.T) {
	repo := newPostgresRepository(t, DefaultBatchSize)
	ctx := context.Background()

	require.NoError(t, repo.SaveObservations(ctx, "george", []*models.Observation{
		{Period: models.String("201407"), Volume: models.Float(100)},
	}))

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	rate := 55.0
	runs := []*models.ModelRun{
		{ID: "6f1c2b1e-0000-4000-8000-000000000001", LakeID: "george", Model: models.SimpleModel,
			EvaporationRate: &rate, MeanAbsoluteError: 12.5, PredictedVolumes: []float64{100, 90}, CreatedAt: base},
		{ID: "6f1c2b1e-0000-4000-8000-000000000002", LakeID: "george", Model: models.ComplexModel,
			MeanAbsoluteError: 7.25, PredictedVolumes: []float64{100, 95}, CreatedAt: base.Add(time.Minute)},
	}
	for _, run := range runs {
		require.NoError(t, repo.CreateModelRun(ctx, run))
	}

	lakeID := "george"
	got, total, err := repo.GetModelRuns(ctx, ModelRunFilter{LakeID: &lakeID})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, got, 2)
	assert.Equal(t, models.ComplexModel, got[0].Model)
	assert.Nil(t, got[0].EvaporationRate)
	assert.Equal(t, []float64{100, 95}, got[0].PredictedVolumes)
	require.NotNil(t, got[1].EvaporationRate)
	assert.Equal(t, 55.0, *got[1].EvaporationRate)

	simple := models.SimpleModel
	got, total, err = repo.GetModelRuns(ctx, ModelRunFilter{Model: &simple, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, got, 1)
	assert.Equal(t, 12.5, got[0].MeanAbsoluteError)

	got, total, err = repo.GetModelRuns(ctx, ModelRunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, got, 1)
	assert.Equal(t, models.SimpleModel, got[0].Model)
}

func TestPostgresRepository_OversizedBatch(t *testing.T) {
	repo := newPostgresRepository(t, 10000)
	ctx := context.Background()

	series := make([]*models.Observation, MaxBatchSize+10)
	for i := range series {
		series[i] = &models.Observation{Volume: models.Float(float64(i))}
	}
	require.NoError(t, repo.SaveObservations(ctx, "long", series))

	stored, err := repo.ListObservations(ctx, "long")
	require.NoError(t, err)
	require.Len(t, stored, len(series))
	assert.Equal(t, float64(MaxBatchSize+9), *stored[len(stored)-1].Volume)
}
