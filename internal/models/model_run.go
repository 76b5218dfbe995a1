package models

import "time"

// ModelKind names one of the two water-balance recurrences.
type ModelKind string

const (
	SimpleModel  ModelKind = "simple"
	ComplexModel ModelKind = "complex"
)

// Valid reports whether k is a known model.
func (k ModelKind) Valid() bool {
	return k == SimpleModel || k == ComplexModel
}

// ModelRun is one evaluated prediction of a lake's volume series.
// EvaporationRate is nil for the complex model, which derives its rate monthly.
type ModelRun struct {
	ID                string    `json:"id" db:"id"`
	LakeID            string    `json:"lake_id" db:"lake_id"`
	Model             ModelKind `json:"model" db:"model"`
	EvaporationRate   *float64  `json:"evaporation_rate,omitempty" db:"evaporation_rate"`
	MeanAbsoluteError float64   `json:"mean_absolute_error" db:"mean_absolute_error"`
	PredictedVolumes  []float64 `json:"predicted_volumes" db:"-"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// Lake summarizes a stored observation series.
type Lake struct {
	LakeID           string    `json:"lake_id" db:"lake_id"`
	ObservationCount int       `json:"observation_count" db:"observation_count"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}
