// Package waterbalance predicts a lake's monthly volume from rainfall inflow
// and evaporative loss, and scores predictions against observed volumes.
package waterbalance

import (
	"fmt"

	"lake-balance/internal/models"
)

// VolumeToArea converts a lake volume into its surface area.
type VolumeToArea func(volume float64) float64

// Simulation is the month-by-month trace of one model run. Every slice has the
// length of the input series. Volumes[0] and SurfaceArea[0] are observed; the
// month-0 inflow and loss are reported but never applied.
type Simulation struct {
	Volumes          []float64 `json:"volumes"`
	SurfaceArea      []float64 `json:"surface_area"`
	RainfallReceived []float64 `json:"rainfall_received"`
	Evaporated       []float64 `json:"evaporated"`
}

// Complex model weather coefficients.
const (
	maxTemperatureWeight = 1.6
	minTemperatureWeight = -3
	windSpeedWeight      = -2.5
	solarExposureWeight  = 4.5
	humidityWeight       = -0.4
)

// SimpleModel predicts volumes with a constant evaporation rate.
func SimpleModel(series []*models.Observation, evaporationRate float64, toArea VolumeToArea) ([]float64, error) {
	sim, err := SimulateSimple(series, evaporationRate, toArea)
	if err != nil {
		return nil, err
	}
	return sim.Volumes, nil
}

// SimulateSimple runs the constant-rate model and returns the full trace.
func SimulateSimple(series []*models.Observation, evaporationRate float64, toArea VolumeToArea) (*Simulation, error) {
	if err := checkSeries(series, toArea, simpleFields); err != nil {
		return nil, err
	}
	return simulate(series, toArea, func(int) float64 { return evaporationRate }), nil
}

// ComplexModel predicts volumes with an evaporation rate derived from each
// month's weather.
func ComplexModel(series []*models.Observation, toArea VolumeToArea) ([]float64, error) {
	sim, err := SimulateComplex(series, toArea)
	if err != nil {
		return nil, err
	}
	return sim.Volumes, nil
}

// SimulateComplex runs the weather-driven model and returns the full trace.
func SimulateComplex(series []*models.Observation, toArea VolumeToArea) (*Simulation, error) {
	if err := checkSeries(series, toArea, complexFields); err != nil {
		return nil, err
	}
	rate := func(i int) float64 { return EvaporationRate(series[i]) }
	return simulate(series, toArea, rate), nil
}

// EvaporationRate is the complex model's monthly evaporation per unit area.
// It is negative when the weather favours condensation.
func EvaporationRate(obs *models.Observation) float64 {
	return maxTemperatureWeight*(*obs.MaxTemperature) +
		minTemperatureWeight*(*obs.MinTemperature) +
		windSpeedWeight*(*obs.WindSpeed) +
		solarExposureWeight*(*obs.SolarExposure) +
		humidityWeight*(*obs.Humidity)
}

// CatchmentArea is the largest surface area anywhere in the series.
func CatchmentArea(series []*models.Observation) float64 {
	catchment := *series[0].Area
	for _, obs := range series[1:] {
		if *obs.Area > catchment {
			catchment = *obs.Area
		}
	}
	return catchment
}

// simulate folds the series left to right. Month i evaporates at rate(i) over
// the surface area carried from month i-1; month 0 over its own observed area.
func simulate(series []*models.Observation, toArea VolumeToArea, rate func(int) float64) *Simulation {
	n := len(series)
	sim := &Simulation{
		Volumes:          make([]float64, n),
		SurfaceArea:      make([]float64, n),
		RainfallReceived: make([]float64, n),
		Evaporated:       make([]float64, n),
	}

	catchment := CatchmentArea(series)

	sim.Volumes[0] = *series[0].Volume
	sim.SurfaceArea[0] = *series[0].Area
	sim.RainfallReceived[0] = *series[0].Rainfall * catchment
	sim.Evaporated[0] = rate(0) * sim.SurfaceArea[0]

	for i := 1; i < n; i++ {
		sim.RainfallReceived[i] = *series[i].Rainfall * catchment
		sim.Evaporated[i] = rate(i) * sim.SurfaceArea[i-1]
		sim.Volumes[i] = sim.Volumes[i-1] + sim.RainfallReceived[i] - sim.Evaporated[i]
		sim.SurfaceArea[i] = toArea(sim.Volumes[i])
	}

	return sim
}

type requiredField struct {
	name  string
	value func(*models.Observation) *float64
}

var simpleFields = []requiredField{
	{"volume", func(o *models.Observation) *float64 { return o.Volume }},
	{"area", func(o *models.Observation) *float64 { return o.Area }},
	{"rainfall", func(o *models.Observation) *float64 { return o.Rainfall }},
}

var complexFields = append(append([]requiredField(nil), simpleFields...),
	requiredField{"max_temperature", func(o *models.Observation) *float64 { return o.MaxTemperature }},
	requiredField{"min_temperature", func(o *models.Observation) *float64 { return o.MinTemperature }},
	requiredField{"wind_speed", func(o *models.Observation) *float64 { return o.WindSpeed }},
	requiredField{"solar_exposure", func(o *models.Observation) *float64 { return o.SolarExposure }},
	requiredField{"humidity", func(o *models.Observation) *float64 { return o.Humidity }},
)

// checkSeries rejects input the recurrence cannot start from. Models expect a
// series that has been through cleaning.ValidateAndImpute.
func checkSeries(series []*models.Observation, toArea VolumeToArea, fields []requiredField) error {
	if len(series) == 0 {
		return fmt.Errorf("%w: empty observation series", models.ErrInvalidArgument)
	}
	if toArea == nil {
		return fmt.Errorf("%w: no volume to area conversion", models.ErrInvalidArgument)
	}
	for i, obs := range series {
		if obs == nil {
			return fmt.Errorf("%w: record %d is nil", models.ErrInvalidArgument, i)
		}
		for _, f := range fields {
			if f.value(obs) == nil {
				return fmt.Errorf("%w: record %d has no %s", models.ErrInvalidArgument, i, f.name)
			}
		}
	}
	return nil
}
