package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"lake-balance/internal/cleaning"
	"lake-balance/internal/config"
	"lake-balance/internal/models"
	"lake-balance/internal/repository"
	"lake-balance/internal/waterbalance"
	"lake-balance/pkg/logging"
	"lake-balance/pkg/metrics"
)

const sampleFile = "testdata/lake_george_sample.csv"

type testEnv struct {
	repo      repository.LakeRepository
	clock     *clockwork.FakeClock
	metrics   *metrics.Collector
	ingestion *IngestionService
	stats     *StatisticsService
	models    *ModelService
}

// newTestEnv wires the services over an in-memory repository. Models convert
// volume to area by dividing by 1000.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	repo := repository.NewMemoryRepository(clock)
	logger := logging.NewNopLogger()
	collector := metrics.NewCollectorWithRegistry("test", prometheus.NewRegistry())

	settings := config.ModelConfig{
		EvaporationRate: 55,
		AreaRelation:    waterbalance.LinearAreaRelation,
		MeanDepth:       1000,
	}

	return &testEnv{
		repo:      repo,
		clock:     clock,
		metrics:   collector,
		ingestion: NewIngestionService(repo, logger, collector),
		stats:     NewStatisticsService(repo, logger, collector),
		models:    NewModelService(repo, settings, clock, logger, collector),
	}
}

// loadSample stores the sample file as lake "george".
func (e *testEnv) loadSample(t *testing.T) {
	t.Helper()

	f, err := os.Open(sampleFile)
	require.NoError(t, err)
	defer f.Close()

	_, err = e.ingestion.IngestReader(context.Background(), "george", f)
	require.NoError(t, err)
}

// cleanedSample parses and cleans the sample file.
func cleanedSample(t *testing.T) []*models.Observation {
	t.Helper()

	f, err := os.Open(sampleFile)
	require.NoError(t, err)
	defer f.Close()

	series, err := ParseObservationsCSV(f)
	require.NoError(t, err)
	return cleaning.ValidateAndImpute(series)
}
