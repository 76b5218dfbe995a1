package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"lake-balance/internal/cleaning"
	"lake-balance/internal/config"
	"lake-balance/internal/models"
	"lake-balance/internal/repository"
	"lake-balance/internal/waterbalance"
	"lake-balance/pkg/logging"
	"lake-balance/pkg/metrics"
)

// ModelService cleans a lake's series, runs the water-balance models over it
// and records each evaluated run
type ModelService struct {
	repo     repository.LakeRepository
	settings config.ModelConfig
	clock    clockwork.Clock
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
}

// ModelResult is one evaluated run with the trace behind it
type ModelResult struct {
	Run        *models.ModelRun          `json:"run"`
	Observed   []float64                 `json:"observed_volumes"`
	Simulation *waterbalance.Simulation  `json:"simulation"`
	Imputation cleaning.ImputationReport `json:"imputation"`
}

// Comparison holds both models run over the same cleaned series. Better names
// the model with the lower mean absolute error.
type Comparison struct {
	LakeID  string           `json:"lake_id"`
	Simple  *ModelResult     `json:"simple"`
	Complex *ModelResult     `json:"complex"`
	Better  models.ModelKind `json:"better"`
}

// NewModelService creates a new model service. A nil clock uses the real clock.
func NewModelService(repo repository.LakeRepository, settings config.ModelConfig, clock clockwork.Clock, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ModelService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ModelService{
		repo:     repo,
		settings: settings,
		clock:    clock,
		logger:   logger,
		metrics:  metricsCollector,
	}
}

// DefaultEvaporationRate is the configured constant rate for the simple model
func (s *ModelService) DefaultEvaporationRate() float64 {
	return s.settings.EvaporationRate
}

// preparedLake is a cleaned copy of a stored series and its area relation.
type preparedLake struct {
	series   []*models.Observation
	observed []float64
	toArea   waterbalance.VolumeToArea
	report   cleaning.ImputationReport
}

func (s *ModelService) prepare(ctx context.Context, lakeID string) (*preparedLake, error) {
	stored, err := s.repo.ListObservations(ctx, lakeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lake %s: %w", lakeID, err)
	}

	series, report := cleaning.ValidateAndImputeReport(models.CloneSeries(stored))
	s.metrics.RecordImputations(report.Imputed)

	if report.Total() > 0 {
		s.logger.Info(ctx, "[MODEL_CLEAN] Series repaired before modelling", logging.Fields{
			"lake_id":           lakeID,
			"records":           report.Records,
			"temperature_swaps": report.TemperatureSwaps,
			"periods_padded":    report.PeriodsPadded,
			"periods_replaced":  report.PeriodsReplaced,
			"imputed":           report.Imputed,
		})
	}

	toArea, err := waterbalance.NewAreaRelation(s.settings.AreaRelation, series, s.settings.MeanDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to build area relation: %w", err)
	}

	observed, err := waterbalance.ObservedVolumes(series)
	if err != nil {
		return nil, err
	}

	return &preparedLake{series: series, observed: observed, toArea: toArea, report: report}, nil
}

// RunSimple runs the constant-rate model for a lake and records the run
func (s *ModelService) RunSimple(ctx context.Context, lakeID string, evaporationRate float64) (*ModelResult, error) {
	lake, err := s.prepare(ctx, lakeID)
	if err != nil {
		return nil, err
	}
	return s.runSimple(ctx, lakeID, lake, evaporationRate)
}

// RunComplex runs the weather-driven model for a lake and records the run
func (s *ModelService) RunComplex(ctx context.Context, lakeID string) (*ModelResult, error) {
	lake, err := s.prepare(ctx, lakeID)
	if err != nil {
		return nil, err
	}
	return s.runComplex(ctx, lakeID, lake)
}

// Compare runs both models concurrently over one cleaned series
func (s *ModelService) Compare(ctx context.Context, lakeID string, evaporationRate float64) (*Comparison, error) {
	lake, err := s.prepare(ctx, lakeID)
	if err != nil {
		return nil, err
	}

	var (
		wg                    sync.WaitGroup
		simple, complexResult *ModelResult
		simpleErr, complexErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		simple, simpleErr = s.runSimple(ctx, lakeID, lake, evaporationRate)
	}()
	go func() {
		defer wg.Done()
		complexResult, complexErr = s.runComplex(ctx, lakeID, lake)
	}()
	wg.Wait()

	if simpleErr != nil {
		return nil, simpleErr
	}
	if complexErr != nil {
		return nil, complexErr
	}

	better := models.SimpleModel
	if complexResult.Run.MeanAbsoluteError < simple.Run.MeanAbsoluteError {
		better = models.ComplexModel
	}

	s.logger.Info(ctx, "[MODEL_COMPARE] Models compared", logging.Fields{
		"lake_id":     lakeID,
		"simple_mae":  simple.Run.MeanAbsoluteError,
		"complex_mae": complexResult.Run.MeanAbsoluteError,
		"better":      better,
	})

	return &Comparison{LakeID: lakeID, Simple: simple, Complex: complexResult, Better: better}, nil
}

// GetRuns returns recorded runs for a lake, newest first
func (s *ModelService) GetRuns(ctx context.Context, filter repository.ModelRunFilter) ([]*models.ModelRun, int, error) {
	return s.repo.GetModelRuns(ctx, filter)
}

func (s *ModelService) runSimple(ctx context.Context, lakeID string, lake *preparedLake, rate float64) (*ModelResult, error) {
	return s.run(ctx, lakeID, models.SimpleModel, &rate, lake, func() (*waterbalance.Simulation, error) {
		return waterbalance.SimulateSimple(lake.series, rate, lake.toArea)
	})
}

func (s *ModelService) runComplex(ctx context.Context, lakeID string, lake *preparedLake) (*ModelResult, error) {
	return s.run(ctx, lakeID, models.ComplexModel, nil, lake, func() (*waterbalance.Simulation, error) {
		return waterbalance.SimulateComplex(lake.series, lake.toArea)
	})
}

// run simulates, evaluates and persists one model run. The prepared series is
// only read, so runs over the same lake may proceed in parallel.
func (s *ModelService) run(ctx context.Context, lakeID string, kind models.ModelKind, rate *float64, lake *preparedLake, simulate func() (*waterbalance.Simulation, error)) (result *ModelResult, err error) {
	timer := s.metrics.NewTimer(s.metrics.ModelRunDuration.WithLabelValues(string(kind)))
	var mae float64
	defer func() {
		s.metrics.RecordModelRun(lakeID, string(kind), mae, err)
	}()

	sim, err := simulate()
	if err != nil {
		return nil, fmt.Errorf("failed to run %s model: %w", kind, err)
	}

	mae, err = waterbalance.Evaluate(lake.observed, sim.Volumes)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate %s model: %w", kind, err)
	}

	run := &models.ModelRun{
		ID:                uuid.NewString(),
		LakeID:            lakeID,
		Model:             kind,
		EvaporationRate:   rate,
		MeanAbsoluteError: mae,
		PredictedVolumes:  sim.Volumes,
		CreatedAt:         s.clock.Now().UTC(),
	}
	if err = s.repo.CreateModelRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record %s model run: %w", kind, err)
	}

	duration := timer.ObserveDuration()
	s.logger.Info(ctx, "[MODEL_RUN] Model evaluated", logging.Fields{
		"lake_id":             lakeID,
		"run_id":              run.ID,
		"model":               kind,
		"mean_absolute_error": mae,
		"months":              len(sim.Volumes),
		"duration_ms":         duration.Milliseconds(),
	})

	return &ModelResult{
		Run:        run,
		Observed:   lake.observed,
		Simulation: sim,
		Imputation: lake.report,
	}, nil
}
