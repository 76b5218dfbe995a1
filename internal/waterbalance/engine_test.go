package waterbalance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lake-balance/internal/models"
)

func relTolerance(want float64) float64 {
	return 1e-9 * math.Max(1, math.Abs(want))
}

func tenthOf(v float64) float64 { return v / 10 }

// threeMonths is a hand-checked case: catchment 20, volumes 100 -> 90 -> 105.
func threeMonths() []*models.Observation {
	return []*models.Observation{
		{Volume: models.Float(100), Area: models.Float(10), Rainfall: models.Float(1)},
		{Volume: models.Float(0), Area: models.Float(20), Rainfall: models.Float(2)},
		{Volume: models.Float(0), Area: models.Float(15), Rainfall: models.Float(3)},
	}
}

// cleanedSample is the twelve-month Lake George series after cleaning.
func cleanedSample() []*models.Observation {
	periods := []string{"201407", "201408", "201409", "201410", "201411", "201412",
		"000001", "201502", "201503", "201504", "201505", "201506"}
	volume := []float64{5657697449.14, 6975301986.76, 8059054929.9, 6554638526.69, 6815030704.04,
		4973112835.068183, 6584181053.81, 3443037970.08, 301894886.35, 7025003908.26,
		6068434263.837108, 10363822652.11}
	area := []float64{22363375, 27934375, 39915625, 20761457.386363637, 23045000, 30988750,
		16002500, 8032187.5, 61875, 24021703.512396693, 34861406.25, 40272187.5}
	solar := []float64{9.2, 14.154545454545456, 16.4, 20.7, 15.895867768595041, 25.1, 22.9,
		19.5, 18.2, 9.7, 10.3, 8.7}
	rain := []float64{52.57272727272727, 56.2, 33.3, 58.64297520661157, 34, 141.6, 148.3,
		21, 12.5, 92.2, 9.1, 44.3}
	maxT := []float64{12.2, 12.7, 16.8, 21.3, 25.2, 25.3, 25.2, 18.9, 23.5, 17.6, 15.4, 12.7}
	minT := []float64{0.5, 0.1, 3.8, 6, 9.2, 12.1, 5.536363636363636, 12, 8.8, 6.9, 2.8, -1.3}
	humidity := []float64{58, 39.72727272727273, 49, 47, 41, 37, 39.72727272727273, 40, 42, 46, 54, 60}
	wind := []float64{1.13, 1.01, 1.2, 1.32, 1.45, 1.57, 1.51, 1.052727272727273, 1.32, 1.26,
		1.2684297520661156, 1.13}

	series := make([]*models.Observation, len(periods))
	for i := range series {
		series[i] = &models.Observation{
			Period:         models.String(periods[i]),
			Volume:         models.Float(volume[i]),
			Area:           models.Float(area[i]),
			SolarExposure:  models.Float(solar[i]),
			Rainfall:       models.Float(rain[i]),
			MaxTemperature: models.Float(maxT[i]),
			MinTemperature: models.Float(minT[i]),
			Humidity:       models.Float(humidity[i]),
			WindSpeed:      models.Float(wind[i]),
		}
	}
	return series
}

func thousandth(v float64) float64 { return v / 1000 }

func TestSimulateSimple_ThreeMonths(t *testing.T) {
	sim, err := SimulateSimple(threeMonths(), 5, tenthOf)
	require.NoError(t, err)

	assert.Equal(t, []float64{100, 90, 105}, sim.Volumes)
	assert.Equal(t, []float64{20, 40, 60}, sim.RainfallReceived)
	assert.Equal(t, []float64{50, 50, 45}, sim.Evaporated)
	assert.Equal(t, []float64{10, 9, 10.5}, sim.SurfaceArea)
}

func TestSimpleModel_SampleSeries(t *testing.T) {
	want := []float64{5657697449.14, 6691008761.64, 7664067123.499801, 9604224324.785824,
		10445246361.922604, 15573299562.016861, 20689133492.355934, 20396947087.77636,
		19778517341.69866, 22403794575.405235, 21538062780.007946, 22137527233.35751}

	got, err := SimpleModel(cleanedSample(), 55, thousandth)
	require.NoError(t, err)
	require.Len(t, got, len(want))

	for i := range want {
		assert.InDelta(t, want[i], got[i], relTolerance(want[i]), "index %d", i)
	}
}

func TestComplexModel_SampleSeries(t *testing.T) {
	want := []float64{5657697449.14, 6460676164.310454, 7370942121.424233, 9090392827.463053,
		9875803951.492952, 14606517213.646288, 19014597658.900837, 18655583260.728622,
		17797128026.445435, 20984140609.483707, 20557019862.82749, 21589821478.19046}

	got, err := ComplexModel(cleanedSample(), thousandth)
	require.NoError(t, err)
	require.Len(t, got, len(want))

	for i := range want {
		assert.InDelta(t, want[i], got[i], relTolerance(want[i]), "index %d", i)
	}
}

func TestSimulateComplex_InitialMonth(t *testing.T) {
	series := cleanedSample()

	sim, err := SimulateComplex(series, thousandth)
	require.NoError(t, err)

	rate0 := 1.6*12.2 - 3*0.5 - 2.5*1.13 + 4.5*9.2 - 0.4*58
	assert.InDelta(t, rate0*22363375, sim.Evaporated[0], relTolerance(rate0*22363375))
	assert.Equal(t, *series[0].Volume, sim.Volumes[0])
	assert.InDelta(t, 52.57272727272727*40272187.5, sim.RainfallReceived[0], relTolerance(52.57272727272727*40272187.5))
}

func TestSimulateSimple_InitialMonth(t *testing.T) {
	series := cleanedSample()

	sim, err := SimulateSimple(series, 55, thousandth)
	require.NoError(t, err)

	assert.InDelta(t, 55*22363375.0, sim.Evaporated[0], relTolerance(55*22363375.0))
	assert.InDelta(t, 52.57272727272727*40272187.5, sim.RainfallReceived[0], relTolerance(52.57272727272727*40272187.5))
	// Month 0 flows are reported only.
	assert.Equal(t, *series[0].Volume, sim.Volumes[0])
	assert.Equal(t, *series[0].Area, sim.SurfaceArea[0])
}

func TestEvaporationRate(t *testing.T) {
	obs := &models.Observation{
		MaxTemperature: models.Float(10),
		MinTemperature: models.Float(2),
		WindSpeed:      models.Float(4),
		SolarExposure:  models.Float(3),
		Humidity:       models.Float(5),
	}

	// 16 - 6 - 10 + 13.5 - 2
	assert.InDelta(t, 11.5, EvaporationRate(obs), 1e-12)
}

func TestComplexModel_NegativeRateGainsVolume(t *testing.T) {
	series := []*models.Observation{
		{
			Volume: models.Float(100), Area: models.Float(10), Rainfall: models.Float(0),
			MaxTemperature: models.Float(0), MinTemperature: models.Float(0),
			WindSpeed: models.Float(0), SolarExposure: models.Float(0), Humidity: models.Float(0),
		},
		{
			Volume: models.Float(0), Area: models.Float(10), Rainfall: models.Float(0),
			MaxTemperature: models.Float(1), MinTemperature: models.Float(1),
			WindSpeed: models.Float(2), SolarExposure: models.Float(0), Humidity: models.Float(50),
		},
	}

	rate := EvaporationRate(series[1])
	require.Less(t, rate, 0.0)

	volumes, err := ComplexModel(series, tenthOf)
	require.NoError(t, err)

	assert.Greater(t, volumes[1], volumes[0])
	assert.InDelta(t, 100-rate*10, volumes[1], 1e-9)
}

func TestModels_PassThroughAndLength(t *testing.T) {
	series := cleanedSample()

	simple, err := SimpleModel(series, 55, thousandth)
	require.NoError(t, err)
	complexVolumes, err := ComplexModel(series, thousandth)
	require.NoError(t, err)

	for _, volumes := range [][]float64{simple, complexVolumes} {
		assert.Len(t, volumes, len(series))
		assert.Equal(t, *series[0].Volume, volumes[0])
	}
}

func TestModels_SingleMonth(t *testing.T) {
	series := cleanedSample()[:1]

	volumes, err := SimpleModel(series, 55, thousandth)
	require.NoError(t, err)
	assert.Equal(t, []float64{*series[0].Volume}, volumes)

	volumes, err = ComplexModel(series, thousandth)
	require.NoError(t, err)
	assert.Equal(t, []float64{*series[0].Volume}, volumes)
}

func TestModels_DoNotMutateSeries(t *testing.T) {
	series := cleanedSample()
	before := models.CloneSeries(series)

	_, err := SimpleModel(series, 55, thousandth)
	require.NoError(t, err)
	_, err = ComplexModel(series, thousandth)
	require.NoError(t, err)

	assert.Equal(t, before, series)
}

func TestModels_RejectInvalidInput(t *testing.T) {
	missingWind := threeMonths()
	for _, obs := range missingWind {
		obs.MaxTemperature = models.Float(1)
		obs.MinTemperature = models.Float(0)
		obs.SolarExposure = models.Float(1)
		obs.Humidity = models.Float(1)
	}

	missingRain := threeMonths()
	missingRain[2].Rainfall = nil

	tests := []struct {
		name string
		run  func() error
	}{
		{"simple empty", func() error { _, err := SimpleModel(nil, 5, tenthOf); return err }},
		{"complex empty", func() error { _, err := ComplexModel([]*models.Observation{}, tenthOf); return err }},
		{"simple nil conversion", func() error { _, err := SimpleModel(threeMonths(), 5, nil); return err }},
		{"complex nil conversion", func() error { _, err := ComplexModel(cleanedSample(), nil); return err }},
		{"simple missing rainfall", func() error { _, err := SimpleModel(missingRain, 5, tenthOf); return err }},
		{"simple nil record", func() error {
			_, err := SimpleModel([]*models.Observation{threeMonths()[0], nil}, 5, tenthOf)
			return err
		}},
		{"complex missing wind", func() error { _, err := ComplexModel(missingWind, tenthOf); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), models.ErrInvalidArgument)
		})
	}
}

func TestCatchmentArea_LooksAhead(t *testing.T) {
	assert.Equal(t, 20.0, CatchmentArea(threeMonths()))
	assert.Equal(t, 40272187.5, CatchmentArea(cleanedSample()))
}
