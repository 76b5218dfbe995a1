package waterbalance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lake-balance/internal/models"
)

func TestNewObservedAreaRelation(t *testing.T) {
	series := []*models.Observation{
		{Volume: models.Float(300), Area: models.Float(30)},
		{Volume: models.Float(100), Area: models.Float(10)},
		{Volume: models.Float(200), Area: models.Float(16)},
		{Volume: models.Float(200), Area: models.Float(24)},
		{Volume: nil, Area: models.Float(99)},
	}

	toArea, err := NewObservedAreaRelation(series)
	require.NoError(t, err)

	tests := []struct {
		volume float64
		want   float64
	}{
		{volume: 0, want: 10},
		{volume: 100, want: 10},
		{volume: 150, want: 15},
		{volume: 200, want: 20},
		{volume: 250, want: 25},
		{volume: 300, want: 30},
		{volume: 1e9, want: 30},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, toArea(tt.volume), 1e-9, "volume %v", tt.volume)
	}
}

func TestNewObservedAreaRelation_SinglePoint(t *testing.T) {
	toArea, err := NewObservedAreaRelation([]*models.Observation{
		{Volume: models.Float(50), Area: models.Float(5)},
	})
	require.NoError(t, err)

	assert.Equal(t, 5.0, toArea(0))
	assert.Equal(t, 5.0, toArea(50))
	assert.Equal(t, 5.0, toArea(500))
}

func TestNewObservedAreaRelation_NoPairs(t *testing.T) {
	_, err := NewObservedAreaRelation([]*models.Observation{{Area: models.Float(1)}, nil})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestNewLinearAreaRelation(t *testing.T) {
	toArea, err := NewLinearAreaRelation(10)
	require.NoError(t, err)
	assert.Equal(t, 9.0, toArea(90))

	_, err = NewLinearAreaRelation(0)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestNewAreaRelation(t *testing.T) {
	toArea, err := NewAreaRelation(LinearAreaRelation, nil, 1000)
	require.NoError(t, err)
	assert.Equal(t, 5.0, toArea(5000))

	toArea, err = NewAreaRelation(ObservedAreaRelation, cleanedSample(), 0)
	require.NoError(t, err)
	assert.Equal(t, 61875.0, toArea(0))

	_, err = NewAreaRelation("cubic", nil, 1)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	assert.True(t, ObservedAreaRelation.Valid())
	assert.False(t, AreaRelation("cubic").Valid())
}

func TestSimpleModel_ThreeMonthsWithLinearRelation(t *testing.T) {
	toArea, err := NewLinearAreaRelation(10)
	require.NoError(t, err)

	volumes, err := SimpleModel(threeMonths(), 5, toArea)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 90, 105}, volumes)
}
