package carbon

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert(t *testing.T) {
	est, err := Convert([]float64{1, 2.5, 0}, DefaultFactor)
	require.NoError(t, err)
	assert.Equal(t, []float64{220, 550, 0}, est.PerHour)
	assert.Equal(t, 770.0, est.Total)
	assert.Equal(t, 220.0, est.FactorGPerKWh)

	est, err = Convert(nil, 100)
	require.NoError(t, err)
	assert.Empty(t, est.PerHour)
	assert.Zero(t, est.Total)
}

func TestConvert_Linear(t *testing.T) {
	points := []float64{120.5, 98.25, 143}
	a, err := Convert(points, 100)
	require.NoError(t, err)
	b, err := Convert(points, 300)
	require.NoError(t, err)
	for i := range points {
		assert.InDelta(t, 3*a.PerHour[i], b.PerHour[i], 1e-9)
	}
	assert.InDelta(t, 3*a.Total, b.Total, 1e-9)

	zero, err := Convert(points, 0)
	require.NoError(t, err)
	assert.Zero(t, zero.Total)
}

func TestConvert_InvalidFactor(t *testing.T) {
	for _, f := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := Convert([]float64{1}, f)
		assert.ErrorIs(t, err, ErrInvalidFactor)
	}
}
