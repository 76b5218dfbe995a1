package services

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"

	"lake-balance/internal/cleaning"
	"lake-balance/internal/models"
	"lake-balance/internal/repository"
	"lake-balance/pkg/logging"
	"lake-balance/pkg/metrics"
)

// StatisticsService computes one-shot aggregates over a cleaned series
type StatisticsService struct {
	repo    repository.LakeRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// LakeSummary bundles every aggregate for one lake
type LakeSummary struct {
	LakeID              string                    `json:"lake_id"`
	Months              int                       `json:"months"`
	LargestArea         float64                   `json:"largest_area"`
	AverageVolume       float64                   `json:"average_volume"`
	MostAverageRainfall string                    `json:"most_average_rainfall"`
	HottestMonth        string                    `json:"hottest_month"`
	Changes             []AreaVolumeChange        `json:"changes"`
	Imputation          cleaning.ImputationReport `json:"imputation"`
}

// AreaVolumeChange is the percentage change of one month's area and volume
// against the first month and against the month before. Changes from a zero
// base are reported as 0.
type AreaVolumeChange struct {
	Period             string  `json:"period"`
	AreaFromInitial    float64 `json:"area_from_initial_pct"`
	VolumeFromInitial  float64 `json:"volume_from_initial_pct"`
	AreaFromPrevious   float64 `json:"area_from_previous_pct"`
	VolumeFromPrevious float64 `json:"volume_from_previous_pct"`
}

// NewStatisticsService creates a new statistics service
func NewStatisticsService(repo repository.LakeRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *StatisticsService {
	return &StatisticsService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// LakeSummary loads a lake, cleans a copy of its series and summarizes it
func (s *StatisticsService) LakeSummary(ctx context.Context, lakeID string) (*LakeSummary, error) {
	timer := s.metrics.NewTimer(s.metrics.StatsCalculationDuration)

	stored, err := s.repo.ListObservations(ctx, lakeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lake %s: %w", lakeID, err)
	}

	series, report := cleaning.ValidateAndImputeReport(models.CloneSeries(stored))
	s.metrics.RecordImputations(report.Imputed)

	summary, err := s.Summary(series)
	if err != nil {
		return nil, err
	}
	summary.LakeID = lakeID
	summary.Imputation = report

	duration := timer.ObserveDuration()
	s.logger.Info(ctx, "[STATS_CALC_COMPLETE] Lake statistics calculated", logging.Fields{
		"lake_id":     lakeID,
		"months":      summary.Months,
		"imputed":     report.Total(),
		"duration_ms": duration.Milliseconds(),
	})

	return summary, nil
}

// Summary computes every aggregate over a cleaned series
func (s *StatisticsService) Summary(series []*models.Observation) (*LakeSummary, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: empty observation series", models.ErrInvalidArgument)
	}

	largest, err := LargestArea(series)
	if err != nil {
		return nil, err
	}
	average, err := AverageVolume(series)
	if err != nil {
		return nil, err
	}
	rainfall, err := MostAverageRainfall(series)
	if err != nil {
		return nil, fmt.Errorf("failed to find most average rainfall: %w", err)
	}
	hottest, err := HottestMonth(series)
	if err != nil {
		return nil, fmt.Errorf("failed to find hottest month: %w", err)
	}
	changes, err := AreaVolumeChanges(series)
	if err != nil {
		return nil, err
	}

	return &LakeSummary{
		Months:              len(series),
		LargestArea:         largest,
		AverageVolume:       average,
		MostAverageRainfall: rainfall,
		HottestMonth:        hottest,
		Changes:             changes,
	}, nil
}

// LargestArea returns the largest surface area in the series
func LargestArea(series []*models.Observation) (float64, error) {
	values, err := columnValues(series, "area", func(o *models.Observation) *float64 { return o.Area })
	if err != nil {
		return 0, err
	}
	largest := values[0]
	for _, v := range values[1:] {
		largest = math.Max(largest, v)
	}
	return largest, nil
}

// AverageVolume returns the mean volume rounded to two decimal places
func AverageVolume(series []*models.Observation) (float64, error) {
	values, err := columnValues(series, "volume", func(o *models.Observation) *float64 { return o.Volume })
	if err != nil {
		return 0, err
	}
	return roundTo2(mean(values)), nil
}

// MostAverageRainfall names the first month whose rainfall is closest to the
// series mean rounded to two decimals, as "<Month>, <YYYY>". The search is
// seeded with the largest rainfall, so a candidate must be strictly closer
// than that.
func MostAverageRainfall(series []*models.Observation) (string, error) {
	values, err := columnValues(series, "rainfall", func(o *models.Observation) *float64 { return o.Rainfall })
	if err != nil {
		return "", err
	}

	target := roundTo2(mean(values))
	minDifference := values[0]
	for _, v := range values[1:] {
		minDifference = math.Max(minDifference, v)
	}

	found := -1
	for i, v := range values {
		if diff := math.Abs(v - target); diff < minDifference {
			minDifference = diff
			found = i
		}
	}
	if found < 0 {
		return "", fmt.Errorf("%w: no month is closer to the mean rainfall than the largest rainfall", models.ErrInvalidArgument)
	}

	year, month, err := series[found].YearMonth()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s, %04d", month, year), nil
}

// HottestMonth names the calendar month with the highest mean maximum
// temperature across all years. Months with no records are not candidates;
// ties go to the earlier month.
func HottestMonth(series []*models.Observation) (string, error) {
	if len(series) == 0 {
		return "", fmt.Errorf("%w: empty observation series", models.ErrInvalidArgument)
	}

	var sums [12]float64
	var counts [12]int
	for i, obs := range series {
		if obs == nil || obs.MaxTemperature == nil {
			return "", fmt.Errorf("%w: record %d has no max_temperature", models.ErrInvalidArgument, i)
		}
		_, month, err := obs.YearMonth()
		if err != nil {
			return "", err
		}
		sums[month-1] += *obs.MaxTemperature
		counts[month-1]++
	}

	hottest := -1
	var hottestMean float64
	for m := 0; m < 12; m++ {
		if counts[m] == 0 {
			continue
		}
		avg := sums[m] / float64(counts[m])
		if hottest < 0 || avg > hottestMean {
			hottest, hottestMean = m, avg
		}
	}

	name, _ := models.MonthName(hottest)
	return name, nil
}

// AreaVolumeChanges returns the month-by-month percentage changes of area and
// volume. The first month is all zeros.
func AreaVolumeChanges(series []*models.Observation) ([]AreaVolumeChange, error) {
	areas, err := columnValues(series, "area", func(o *models.Observation) *float64 { return o.Area })
	if err != nil {
		return nil, err
	}
	volumes, err := columnValues(series, "volume", func(o *models.Observation) *float64 { return o.Volume })
	if err != nil {
		return nil, err
	}

	changes := make([]AreaVolumeChange, len(series))
	for i := range series {
		if series[i].Period != nil {
			changes[i].Period = *series[i].Period
		}
		if i == 0 {
			continue
		}
		changes[i].AreaFromInitial = percentChange(areas[i], areas[0])
		changes[i].VolumeFromInitial = percentChange(volumes[i], volumes[0])
		changes[i].AreaFromPrevious = percentChange(areas[i], areas[i-1])
		changes[i].VolumeFromPrevious = percentChange(volumes[i], volumes[i-1])
	}
	return changes, nil
}

func percentChange(value, base float64) float64 {
	if base == 0 {
		return 0
	}
	return (value/base - 1) * 100
}

func columnValues(series []*models.Observation, name string, field func(*models.Observation) *float64) ([]float64, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: empty observation series", models.ErrInvalidArgument)
	}
	values := make([]float64, len(series))
	for i, obs := range series {
		if obs == nil || field(obs) == nil {
			return nil, fmt.Errorf("%w: record %d has no %s", models.ErrInvalidArgument, i, name)
		}
		values[i] = *field(obs)
	}
	return values, nil
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// roundTo2 rounds the exact binary value of v to two decimals, ties to even.
// 2.675 is stored as 2.67499999... and so rounds down.
func roundTo2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	// 1074 fractional digits spell out any float64 exactly.
	exact := decimal.RequireFromString(strconv.FormatFloat(v, 'f', 1074, 64))
	rounded, _ := exact.RoundBank(2).Float64()
	return rounded
}
