package waterbalance

import (
	"fmt"
	"math"

	"lake-balance/internal/models"
)

// Evaluate returns the mean absolute error between observed and predicted
// volumes. Two empty sequences agree perfectly and score 0.
func Evaluate(observed, predicted []float64) (float64, error) {
	if len(observed) != len(predicted) {
		return 0, fmt.Errorf("%w: %d observed volumes but %d predicted",
			models.ErrInvalidArgument, len(observed), len(predicted))
	}
	if len(observed) == 0 {
		return 0, nil
	}

	var total float64
	for i := range observed {
		total += math.Abs(observed[i] - predicted[i])
	}
	return total / float64(len(observed)), nil
}

// ObservedVolumes extracts the volume column of a cleaned series.
func ObservedVolumes(series []*models.Observation) ([]float64, error) {
	volumes := make([]float64, len(series))
	for i, obs := range series {
		if obs == nil || obs.Volume == nil {
			return nil, fmt.Errorf("%w: record %d has no volume", models.ErrInvalidArgument, i)
		}
		volumes[i] = *obs.Volume
	}
	return volumes, nil
}
