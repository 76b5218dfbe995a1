package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lake-balance/internal/models"
)

func TestMemoryRepository_SaveAndListObservations(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	repo := NewMemoryRepository(clock)

	series := []*models.Observation{
		{Period: models.String("201407"), Volume: models.Float(10)},
		nil,
		{Period: models.String("20149"), Volume: nil},
	}
	require.NoError(t, repo.SaveObservations(ctx, "george", series))

	// The caller's series is not shared with the store.
	*series[0].Volume = 99

	got, err := repo.ListObservations(ctx, "george")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 10.0, *got[0].Volume)
	assert.NotNil(t, got[1])
	assert.Equal(t, "20149", *got[2].Period)
	assert.Nil(t, got[2].Volume)

	// Nor is the returned one.
	*got[0].Volume = 7
	again, err := repo.ListObservations(ctx, "george")
	require.NoError(t, err)
	assert.Equal(t, 10.0, *again[0].Volume)

	lakes, err := repo.ListLakes(ctx)
	require.NoError(t, err)
	require.Len(t, lakes, 1)
	assert.Equal(t, "george", lakes[0].LakeID)
	assert.Equal(t, 3, lakes[0].ObservationCount)
	assert.Equal(t, clock.Now(), lakes[0].UpdatedAt)
}

func TestMemoryRepository_SaveReplacesSeries(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(clockwork.NewFakeClock())

	require.NoError(t, repo.SaveObservations(ctx, "george", []*models.Observation{{}, {}, {}}))
	require.NoError(t, repo.SaveObservations(ctx, "george", []*models.Observation{{}}))

	got, err := repo.ListObservations(ctx, "george")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryRepository_ListObservationsNotFound(t *testing.T) {
	repo := NewMemoryRepository(nil)

	_, err := repo.ListObservations(context.Background(), "missing")

	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "lake", notFound.Resource)
	assert.Equal(t, "missing", notFound.ID)
	assert.False(t, notFound.IsTransient())
	assert.Equal(t, "lake not found: missing", err.Error())
}

func TestMemoryRepository_GetModelRuns(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(nil)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	runs := []*models.ModelRun{
		{ID: "a", LakeID: "george", Model: models.SimpleModel, EvaporationRate: models.Float(55), CreatedAt: base},
		{ID: "b", LakeID: "george", Model: models.ComplexModel, CreatedAt: base.Add(time.Hour)},
		{ID: "c", LakeID: "eyre", Model: models.SimpleModel, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "d", LakeID: "george", Model: models.SimpleModel, CreatedAt: base.Add(3 * time.Hour), PredictedVolumes: []float64{1, 2}},
	}
	for _, run := range runs {
		require.NoError(t, repo.CreateModelRun(ctx, run))
	}

	george := "george"
	simple := models.SimpleModel

	tests := []struct {
		name      string
		filter    ModelRunFilter
		wantIDs   []string
		wantTotal int
	}{
		{name: "all newest first", filter: ModelRunFilter{}, wantIDs: []string{"d", "c", "b", "a"}, wantTotal: 4},
		{name: "by lake", filter: ModelRunFilter{LakeID: &george}, wantIDs: []string{"d", "b", "a"}, wantTotal: 3},
		{name: "by lake and model", filter: ModelRunFilter{LakeID: &george, Model: &simple}, wantIDs: []string{"d", "a"}, wantTotal: 2},
		{name: "paged", filter: ModelRunFilter{Limit: 2, Offset: 1}, wantIDs: []string{"c", "b"}, wantTotal: 4},
		{name: "offset past end", filter: ModelRunFilter{Limit: 2, Offset: 10}, wantIDs: []string{}, wantTotal: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := repo.GetModelRuns(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)

			ids := make([]string, 0, len(got))
			for _, run := range got {
				ids = append(ids, run.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}

	got, _, err := repo.GetModelRuns(ctx, ModelRunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, got[0].PredictedVolumes)
}

func TestMemoryRepository_CancelledContext(t *testing.T) {
	repo := NewMemoryRepository(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, repo.SaveObservations(ctx, "george", nil), context.Canceled)
	assert.ErrorIs(t, repo.HealthCheck(ctx), context.Canceled)
}
