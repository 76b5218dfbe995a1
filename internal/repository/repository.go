package repository

import (
	"context"
	"fmt"

	"lake-balance/internal/models"
)

// LakeRepository provides data access for lake observation series and model runs
type LakeRepository interface {
	// Observation operations
	SaveObservations(ctx context.Context, lakeID string, series []*models.Observation) error
	ListObservations(ctx context.Context, lakeID string) ([]*models.Observation, error)
	ListLakes(ctx context.Context) ([]*models.Lake, error)

	// Model run operations
	CreateModelRun(ctx context.Context, run *models.ModelRun) error
	GetModelRuns(ctx context.Context, filter ModelRunFilter) ([]*models.ModelRun, int, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// ModelRunFilter defines filters for querying model runs. Runs are returned
// newest first.
type ModelRunFilter struct {
	LakeID *string
	Model  *models.ModelKind
	Limit  int
	Offset int
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// IsTransient returns false; retrying will not make the resource appear.
func (e *NotFoundError) IsTransient() bool {
	return false
}
