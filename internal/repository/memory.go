package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"

	"lake-balance/internal/models"
)

// memoryRepository keeps lakes in process memory. Reads and writes copy, so
// callers never share observations with the store.
type memoryRepository struct {
	mu     sync.RWMutex
	clock  clockwork.Clock
	series map[string][]*models.Observation
	lakes  map[string]*models.Lake
	runs   []*models.ModelRun
}

// NewMemoryRepository creates an in-memory LakeRepository for tests and the
// offline CLI.
func NewMemoryRepository(clock clockwork.Clock) LakeRepository {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &memoryRepository{
		clock:  clock,
		series: make(map[string][]*models.Observation),
		lakes:  make(map[string]*models.Lake),
	}
}

func (r *memoryRepository) SaveObservations(ctx context.Context, lakeID string, series []*models.Observation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := models.CloneSeries(series)
	for i, obs := range stored {
		if obs == nil {
			stored[i] = &models.Observation{}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.series[lakeID] = stored
	r.lakes[lakeID] = &models.Lake{
		LakeID:           lakeID,
		ObservationCount: len(stored),
		UpdatedAt:        r.clock.Now().UTC(),
	}
	return nil
}

func (r *memoryRepository) ListObservations(ctx context.Context, lakeID string) ([]*models.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	series, ok := r.series[lakeID]
	if !ok || len(series) == 0 {
		return nil, &NotFoundError{Resource: "lake", ID: lakeID}
	}
	return models.CloneSeries(series), nil
}

func (r *memoryRepository) ListLakes(ctx context.Context) ([]*models.Lake, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	lakes := make([]*models.Lake, 0, len(r.lakes))
	for _, lake := range r.lakes {
		cp := *lake
		lakes = append(lakes, &cp)
	}
	sort.Slice(lakes, func(i, j int) bool { return lakes[i].LakeID < lakes[j].LakeID })
	return lakes, nil
}

func (r *memoryRepository) CreateModelRun(ctx context.Context, run *models.ModelRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs = append(r.runs, copyRun(run))
	return nil
}

func (r *memoryRepository) GetModelRuns(ctx context.Context, filter ModelRunFilter) ([]*models.ModelRun, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	r.mu.RLock()
	var matched []*models.ModelRun
	for _, run := range r.runs {
		if filter.LakeID != nil && run.LakeID != *filter.LakeID {
			continue
		}
		if filter.Model != nil && run.Model != *filter.Model {
			continue
		}
		matched = append(matched, copyRun(run))
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	start := min(max(filter.Offset, 0), total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	return matched[start:end], total, nil
}

func (r *memoryRepository) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}

func copyRun(run *models.ModelRun) *models.ModelRun {
	cp := *run
	cp.PredictedVolumes = append([]float64(nil), run.PredictedVolumes...)
	if run.EvaporationRate != nil {
		rate := *run.EvaporationRate
		cp.EvaporationRate = &rate
	}
	return &cp
}
