package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energy_forecast/internal/model"
)

// Monday midnight, so index i is hour i%24 and weekday (i/24)%7.
var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func ramp(n int) []model.Measurement {
	ms := make([]model.Measurement, n)
	for i := range ms {
		ms[i] = model.Measurement{
			BuildingID:  "B-1",
			Timestamp:   start.Add(time.Duration(i) * time.Hour),
			Energy:      float64(i),
			Temperature: model.Temp(float64(i % 24)),
		}
	}
	return ms
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{
		"hour_sin", "hour_cos", "dow_sin", "dow_cos",
		"lag_1", "lag_24", "roll_3", "roll_6", "roll_24", "temperature",
	}, Names())

	n := Names()
	n[0] = "mutated"
	assert.Equal(t, "hour_sin", Names()[0])

	assert.True(t, SameOrder(Names()))
	swapped := Names()
	swapped[4], swapped[5] = swapped[5], swapped[4]
	assert.False(t, SameOrder(swapped))
	assert.False(t, SameOrder(Names()[:9]))
}

func TestEncodeHour(t *testing.T) {
	s, c := EncodeHour(0)
	assert.InDelta(t, 0.0, s, 1e-10, "sin(hour=0)")
	assert.InDelta(t, 1.0, c, 1e-10, "cos(hour=0)")

	s, c = EncodeHour(12)
	assert.InDelta(t, 0.0, s, 1e-10, "sin(hour=12)")
	assert.InDelta(t, -1.0, c, 1e-10, "cos(hour=12)")

	// 23:00 and 00:00 are neighbours on the circle.
	s23, c23 := EncodeHour(23)
	s0, c0 := EncodeHour(0)
	assert.Less(t, math.Hypot(s23-s0, c23-c0), 0.3)
}

func TestWeekday(t *testing.T) {
	assert.Equal(t, 0, Weekday(start))                     // Monday
	assert.Equal(t, 6, Weekday(start.Add(6*24*time.Hour))) // Sunday
	assert.Equal(t, 0, Weekday(start.Add(7*24*time.Hour))) // next Monday

	s, c := EncodeWeekday(0)
	assert.InDelta(t, 0.0, s, 1e-10)
	assert.InDelta(t, 1.0, c, 1e-10)
}

func TestBuild_DropsRowsWithoutFullLookback(t *testing.T) {
	rows, err := Build(ramp(30), DefaultTemperature)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, start.Add(24*time.Hour), rows[0].Timestamp)

	rows, err = Build(ramp(24), DefaultTemperature)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestBuild_LagAndRollingValues(t *testing.T) {
	rows, err := Build(ramp(30), DefaultTemperature)
	require.NoError(t, err)

	// Row for index 26: energy[i] = i.
	r := rows[2]
	assert.Equal(t, 26.0, r.Label)
	assert.Equal(t, 25.0, r.X[Lag1])
	assert.Equal(t, 2.0, r.X[Lag24])
	assert.InDelta(t, (23.0+24+25)/3, r.X[Roll3], 1e-12)
	assert.InDelta(t, (20.0+21+22+23+24+25)/6, r.X[Roll6], 1e-12)
	assert.InDelta(t, 13.5, r.X[Roll24], 1e-12) // mean of 2..25
	assert.Equal(t, 2.0, r.X[Temperature])

	hs, hc := EncodeHour(2)
	assert.Equal(t, hs, r.X[HourSin])
	assert.Equal(t, hc, r.X[HourCos])
	ds, dc := EncodeWeekday(1)
	assert.Equal(t, ds, r.X[DowSin])
	assert.Equal(t, dc, r.X[DowCos])

	v, ok := r.X.Get("lag_24")
	require.True(t, ok)
	assert.Equal(t, 2.0, v)
	_, ok = r.X.Get("hour")
	assert.False(t, ok)
}

func TestBuild_NoLookAhead(t *testing.T) {
	base := ramp(48)
	rowsA, err := Build(base, DefaultTemperature)
	require.NoError(t, err)

	// Changing the label of index 40 must not change its own vector,
	// only vectors of later rows.
	changed := ramp(48)
	changed[40].Energy = 1e6
	rowsB, err := Build(changed, DefaultTemperature)
	require.NoError(t, err)

	for i := range rowsA {
		idx := i + MinLookback
		switch {
		case idx <= 40:
			assert.Equal(t, rowsA[i].X, rowsB[i].X, "index %d", idx)
		default:
			assert.NotEqual(t, rowsA[i].X, rowsB[i].X, "index %d", idx)
		}
	}
}

func TestBuild_Deterministic(t *testing.T) {
	a, err := Build(ramp(100), DefaultTemperature)
	require.NoError(t, err)
	b, err := Build(ramp(100), DefaultTemperature)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuild_RejectsGaps(t *testing.T) {
	ms := ramp(60)
	ms = append(ms[:30], ms[31:]...)
	_, err := Build(ms, DefaultTemperature)
	assert.ErrorIs(t, err, model.ErrHistoryGap)

	_, err = Build(nil, DefaultTemperature)
	assert.ErrorIs(t, err, model.ErrInsufficientData)
}

func TestNewSeries_TemperatureFill(t *testing.T) {
	ms := ramp(6)
	ms[0].Temperature = nil
	ms[1].Temperature = nil
	ms[3].Temperature = nil
	ms[5].Temperature = nil

	s, err := NewSeries(ms, DefaultTemperature)
	require.NoError(t, err)

	// Leading gap is back-filled from index 2, the rest forward-filled.
	want := []float64{2, 2, 2, 2, 4, 4}
	for i, w := range want {
		assert.Equal(t, w, s.TemperatureAt(i), "index %d", i)
	}
}

func TestNewSeries_NoTemperatureUsesFallback(t *testing.T) {
	ms := ramp(5)
	for i := range ms {
		ms[i].Temperature = nil
	}
	s, err := NewSeries(ms, 17.5)
	require.NoError(t, err)
	for i := 0; i < s.Len(); i++ {
		assert.Equal(t, 17.5, s.TemperatureAt(i))
	}
}

func TestSeries_NextMatchesVectorAt(t *testing.T) {
	full, err := NewSeries(ramp(50), DefaultTemperature)
	require.NoError(t, err)
	want, err := full.VectorAt(49)
	require.NoError(t, err)

	partial, err := NewSeries(ramp(49), DefaultTemperature)
	require.NoError(t, err)
	got, err := partial.Next(full.TemperatureAt(49))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	partial.Append(49, full.TemperatureAt(49))
	assert.Equal(t, 50, partial.Len())
	assert.Equal(t, full.Last(), partial.Last())
	again, err := partial.VectorAt(49)
	require.NoError(t, err)
	assert.Equal(t, want, again)
}

func TestSeries_Bounds(t *testing.T) {
	s, err := NewSeries(ramp(10), DefaultTemperature)
	require.NoError(t, err)
	_, err = s.Next(0)
	assert.Error(t, err)
	_, err = s.VectorAt(5)
	assert.Error(t, err)
	assert.Equal(t, "B-1", s.BuildingID())
	assert.Equal(t, start.Add(9*time.Hour), s.Last())
}
