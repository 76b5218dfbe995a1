// Package cleaning repairs a monthly observation series so that every field
// satisfies its invariant before a water-balance model reads it.
package cleaning

import (
	"math"

	"lake-balance/internal/models"
)

// Column names used in ImputationReport.
const (
	ColumnMaxTemperature = "max_temperature"
	ColumnMinTemperature = "min_temperature"
	ColumnVolume         = "volume"
	ColumnArea           = "area"
	ColumnHumidity       = "humidity"
	ColumnWindSpeed      = "wind_speed"
	ColumnSolarExposure  = "solar_exposure"
	ColumnRainfall       = "rainfall"
)

// ImputationReport counts the repairs made by one cleaning pass.
type ImputationReport struct {
	Records          int            `json:"records"`
	TemperatureSwaps int            `json:"temperature_swaps"`
	PeriodsPadded    int            `json:"periods_padded"`
	PeriodsReplaced  int            `json:"periods_replaced"`
	Imputed          map[string]int `json:"imputed"`
}

// Total returns the number of values that were replaced or reordered.
func (r ImputationReport) Total() int {
	n := r.TemperatureSwaps + r.PeriodsPadded + r.PeriodsReplaced
	for _, c := range r.Imputed {
		n += c
	}
	return n
}

type column struct {
	name  string
	field func(*models.Observation) **float64
}

var (
	maxTemperature = column{ColumnMaxTemperature, func(o *models.Observation) **float64 { return &o.MaxTemperature }}
	minTemperature = column{ColumnMinTemperature, func(o *models.Observation) **float64 { return &o.MinTemperature }}

	// Non-negative columns, in repair order.
	magnitudes = []column{
		{ColumnVolume, func(o *models.Observation) **float64 { return &o.Volume }},
		{ColumnArea, func(o *models.Observation) **float64 { return &o.Area }},
		{ColumnHumidity, func(o *models.Observation) **float64 { return &o.Humidity }},
		{ColumnWindSpeed, func(o *models.Observation) **float64 { return &o.WindSpeed }},
		{ColumnSolarExposure, func(o *models.Observation) **float64 { return &o.SolarExposure }},
		{ColumnRainfall, func(o *models.Observation) **float64 { return &o.Rainfall }},
	}
)

// ValidateAndImpute repairs series in place and returns it.
//
// Records are visited in index order. Missing temperatures and missing or
// negative magnitudes are replaced by the mean of their column as it stands at
// the moment of replacement, so earlier repairs feed later ones. Nil records
// are replaced by empty observations and repaired like any other.
func ValidateAndImpute(series []*models.Observation) []*models.Observation {
	series, _ = ValidateAndImputeReport(series)
	return series
}

// ValidateAndImputeReport is ValidateAndImpute that also reports what changed.
func ValidateAndImputeReport(series []*models.Observation) ([]*models.Observation, ImputationReport) {
	report := ImputationReport{
		Records: len(series),
		Imputed: make(map[string]int),
	}

	for i := range series {
		if series[i] == nil {
			series[i] = &models.Observation{}
		}
		obs := series[i]

		if orderTemperatures(obs) {
			report.TemperatureSwaps++
		}
		for _, col := range []column{maxTemperature, minTemperature} {
			if p := col.field(obs); missing(*p) {
				*p = models.Float(columnMean(series, col))
				report.Imputed[col.name]++
			}
		}
		// An imputed temperature can land on the wrong side of its partner.
		if orderTemperatures(obs) {
			report.TemperatureSwaps++
		}

		switch repairPeriod(obs) {
		case periodPadded:
			report.PeriodsPadded++
		case periodReplaced:
			report.PeriodsReplaced++
		}

		for _, col := range magnitudes {
			if p := col.field(obs); missing(*p) || **p < 0 {
				*p = models.Float(columnMean(series, col))
				report.Imputed[col.name]++
			}
		}
	}

	return series, report
}

// orderTemperatures swaps a max below its min. A missing side is left for
// imputation.
func orderTemperatures(obs *models.Observation) bool {
	if missing(obs.MaxTemperature) || missing(obs.MinTemperature) {
		return false
	}
	if *obs.MaxTemperature >= *obs.MinTemperature {
		return false
	}
	obs.MaxTemperature, obs.MinTemperature = obs.MinTemperature, obs.MaxTemperature
	return true
}

type periodRepair int

const (
	periodKept periodRepair = iota
	periodPadded
	periodReplaced
)

// repairPeriod restores a dropped leading month zero ("20149" -> "201409") and
// replaces anything else that is not six characters with the sentinel.
func repairPeriod(obs *models.Observation) periodRepair {
	if obs.Period == nil {
		obs.Period = models.String(models.SentinelPeriod)
		return periodReplaced
	}

	p := *obs.Period
	switch {
	case len(p) == models.PeriodLength:
		return periodKept
	case len(p) == models.PeriodLength-1:
		obs.Period = models.String(p[:4] + "0" + p[4:])
		return periodPadded
	default:
		obs.Period = models.String(models.SentinelPeriod)
		return periodReplaced
	}
}

// missing treats NaN like an absent value.
func missing(v *float64) bool {
	return v == nil || math.IsNaN(*v)
}

// columnMean averages the non-missing values currently stored in col.
// An empty column averages to zero.
func columnMean(series []*models.Observation, col column) float64 {
	var sum float64
	var n int
	for _, obs := range series {
		if obs == nil {
			continue
		}
		if v := *col.field(obs); !missing(v) {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
