package services

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lake-balance/internal/config"
	"lake-balance/internal/models"
	"lake-balance/internal/repository"
	"lake-balance/internal/waterbalance"
	"lake-balance/pkg/logging"
)

func relTolerance(want float64) float64 {
	if want < 0 {
		want = -want
	}
	if want < 1 {
		return 1e-9
	}
	return want * 1e-9
}

func TestModelService_RunSimple(t *testing.T) {
	env := newTestEnv(t)
	env.loadSample(t)
	ctx := context.Background()

	result, err := env.models.RunSimple(ctx, "george", 55)
	require.NoError(t, err)

	run := result.Run
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "george", run.LakeID)
	assert.Equal(t, models.SimpleModel, run.Model)
	require.NotNil(t, run.EvaporationRate)
	assert.Equal(t, 55.0, *run.EvaporationRate)
	assert.Equal(t, env.clock.Now(), run.CreatedAt)
	assert.InDelta(t, 9259739749.216822, run.MeanAbsoluteError, relTolerance(9259739749.216822))

	require.Len(t, run.PredictedVolumes, 12)
	assert.Equal(t, 5657697449.14, run.PredictedVolumes[0])
	assert.InDelta(t, 6691008761.64, run.PredictedVolumes[1], relTolerance(6691008761.64))
	assert.InDelta(t, 22137527233.35751, run.PredictedVolumes[11], relTolerance(22137527233.35751))

	assert.Len(t, result.Observed, 12)
	assert.Equal(t, 17, result.Imputation.Total())

	runs, total, err := env.models.GetRuns(ctx, repository.ModelRunFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, run.ID, runs[0].ID)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.ModelRunsTotal.WithLabelValues("simple", "success")))
}

func TestModelService_RunComplex(t *testing.T) {
	env := newTestEnv(t)
	env.loadSample(t)

	result, err := env.models.RunComplex(context.Background(), "george")
	require.NoError(t, err)

	assert.Equal(t, models.ComplexModel, result.Run.Model)
	assert.Nil(t, result.Run.EvaporationRate)
	assert.InDelta(t, 6460676164.310454, result.Run.PredictedVolumes[1], relTolerance(6460676164.310454))
	assert.InDelta(t, 21589821478.19046, result.Run.PredictedVolumes[11], relTolerance(21589821478.19046))
}

func TestModelService_Compare(t *testing.T) {
	env := newTestEnv(t)
	env.loadSample(t)
	ctx := context.Background()

	cmp, err := env.models.Compare(ctx, "george", env.models.DefaultEvaporationRate())
	require.NoError(t, err)

	assert.Equal(t, "george", cmp.LakeID)
	assert.Equal(t, models.SimpleModel, cmp.Simple.Run.Model)
	assert.Equal(t, models.ComplexModel, cmp.Complex.Run.Model)

	wantBetter := models.SimpleModel
	if cmp.Complex.Run.MeanAbsoluteError < cmp.Simple.Run.MeanAbsoluteError {
		wantBetter = models.ComplexModel
	}
	assert.Equal(t, wantBetter, cmp.Better)

	_, total, err := env.models.GetRuns(ctx, repository.ModelRunFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestModelService_ConcurrentRuns(t *testing.T) {
	env := newTestEnv(t)
	env.loadSample(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.models.Compare(ctx, "george", 55)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	_, total, err := env.models.GetRuns(ctx, repository.ModelRunFilter{})
	require.NoError(t, err)
	assert.Equal(t, 16, total)
}

func TestModelService_UnknownLake(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.models.RunSimple(context.Background(), "nowhere", 55)

	var notFound *repository.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestModelService_ObservedAreaRelation(t *testing.T) {
	env := newTestEnv(t)
	env.loadSample(t)

	settings := config.ModelConfig{EvaporationRate: 55, AreaRelation: waterbalance.ObservedAreaRelation}
	svc := NewModelService(env.repo, settings, env.clock, logging.NewNopLogger(), env.metrics)

	result, err := svc.RunSimple(context.Background(), "george", 55)
	require.NoError(t, err)

	// Month 1 evaporates over the observed initial area.
	sim := result.Simulation
	assert.InDelta(t, 55*22363375.0, sim.Evaporated[1], relTolerance(55*22363375.0))
	assert.InDelta(t, 56.2*40272187.5, sim.RainfallReceived[1], relTolerance(56.2*40272187.5))
}

func TestModelService_BadAreaRelation(t *testing.T) {
	env := newTestEnv(t)
	env.loadSample(t)

	settings := config.ModelConfig{AreaRelation: waterbalance.LinearAreaRelation, MeanDepth: 0}
	svc := NewModelService(env.repo, settings, nil, logging.NewNopLogger(), env.metrics)

	_, err := svc.RunComplex(context.Background(), "george")
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}
