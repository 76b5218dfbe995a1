package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidArgument marks caller-contract violations such as an empty series
// handed to a model or mismatched sequence lengths.
var ErrInvalidArgument = errors.New("invalid argument")

// Observation represents one calendar month of lake and climate measurements.
// NULL values are represented as nil pointers until the cleaning pass fills them.
type Observation struct {
	Period         *string  `json:"period" db:"period"`
	Volume         *float64 `json:"volume" db:"volume"`                   // litres
	Area           *float64 `json:"area" db:"area"`                       // square metres
	SolarExposure  *float64 `json:"solar_exposure" db:"solar_exposure"`   // MJ/m²
	Rainfall       *float64 `json:"rainfall" db:"rainfall"`               // mm
	MaxTemperature *float64 `json:"max_temperature" db:"max_temperature"` // °C
	MinTemperature *float64 `json:"min_temperature" db:"min_temperature"` // °C
	Humidity       *float64 `json:"humidity" db:"humidity"`               // %
	WindSpeed      *float64 `json:"wind_speed" db:"wind_speed"`           // m/s
}

// Clone returns a deep copy so callers can clean a series without touching the stored one.
func (o *Observation) Clone() *Observation {
	if o == nil {
		return nil
	}
	return &Observation{
		Period:         cloneString(o.Period),
		Volume:         cloneFloat(o.Volume),
		Area:           cloneFloat(o.Area),
		SolarExposure:  cloneFloat(o.SolarExposure),
		Rainfall:       cloneFloat(o.Rainfall),
		MaxTemperature: cloneFloat(o.MaxTemperature),
		MinTemperature: cloneFloat(o.MinTemperature),
		Humidity:       cloneFloat(o.Humidity),
		WindSpeed:      cloneFloat(o.WindSpeed),
	}
}

// YearMonth parses the record's period. A missing period is reported the same
// way as a malformed one.
func (o *Observation) YearMonth() (int, time.Month, error) {
	if o.Period == nil {
		return 0, 0, &InvalidPeriodError{Message: "period is missing"}
	}
	return ParsePeriod(*o.Period)
}

// CloneSeries deep-copies an ordered series, preserving nil entries.
func CloneSeries(series []*Observation) []*Observation {
	out := make([]*Observation, len(series))
	for i, obs := range series {
		out[i] = obs.Clone()
	}
	return out
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// String returns a pointer to s.
func String(s string) *string {
	return &s
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// RawObservation represents a single row from a delimited input file.
// Every cell is kept as text; blank cells mean "not observed".
type RawObservation struct {
	Row            int
	Date           string
	Volume         string
	Area           string
	SolarExposure  string
	Rainfall       string
	MaxTemperature string
	MinTemperature string
	Humidity       string
	WindSpeed      string
}

// ToObservation converts RawObservation to Observation.
// Blank cells become nil. Cells that are not numbers also become nil and are
// reported as ValidationErrors; the observation is always returned so that row
// order is preserved for the monthly recurrence.
func (r *RawObservation) ToObservation() (*Observation, error) {
	obs := &Observation{}

	if date := strings.TrimSpace(r.Date); date != "" {
		obs.Period = &date
	}

	var errs []error
	cells := []struct {
		field string
		value string
		dest  **float64
	}{
		{"volume", r.Volume, &obs.Volume},
		{"area", r.Area, &obs.Area},
		{"solar_exposure", r.SolarExposure, &obs.SolarExposure},
		{"rainfall", r.Rainfall, &obs.Rainfall},
		{"max_temperature", r.MaxTemperature, &obs.MaxTemperature},
		{"min_temperature", r.MinTemperature, &obs.MinTemperature},
		{"humidity", r.Humidity, &obs.Humidity},
		{"wind_speed", r.WindSpeed, &obs.WindSpeed},
	}
	for _, c := range cells {
		v, err := parseCell(c.value)
		if err != nil {
			errs = append(errs, &ValidationError{
				Field:   c.field,
				Value:   c.value,
				Message: fmt.Sprintf("row %d: invalid %s %q", r.Row, c.field, c.value),
			})
			continue
		}
		*c.dest = v
	}

	return obs, errors.Join(errs...)
}

// parseCell returns nil for blank and NaN cells.
func parseCell(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(v) {
		return nil, nil
	}
	if math.IsInf(v, 0) {
		return nil, fmt.Errorf("infinite value %q", s)
	}
	return &v, nil
}

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
