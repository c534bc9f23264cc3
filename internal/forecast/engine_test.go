package forecast

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energy_forecast/internal/features"
	"energy_forecast/internal/model"
	"energy_forecast/internal/predictor"
)

var start = time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

func history(n int) []model.Measurement {
	ms := make([]model.Measurement, n)
	for i := range ms {
		a := 2 * math.Pi * float64(i%24) / 24
		ms[i] = model.Measurement{
			BuildingID:  "B-1",
			Timestamp:   start.Add(time.Duration(i) * time.Hour),
			Energy:      100 + 20*math.Sin(a),
			Temperature: model.Temp(float64(i)),
		}
	}
	return ms
}

// column echoes one feature so tests can observe the vectors the engine built.
type column int

func (c column) Predict(x []float64) float64 { return x[c] }
func (c column) Algorithm() string           { return "echo" }

func echo(feature int, sigma float64) *predictor.Artifact {
	return &predictor.Artifact{
		BuildingID:   "B-1",
		Version:      "v1",
		FeatureOrder: features.Names(),
		ResidualStd:  sigma,
		TrainedAt:    start,
		Regressor:    column(feature),
	}
}

func TestForecast_EndToEnd(t *testing.T) {
	cfg := predictor.DefaultConfig()
	cfg.Forest.Trees = 30
	a, err := predictor.NewTrainer(cfg).Train(context.Background(), history(200), 0)
	require.NoError(t, err)

	res, err := NewEngine().Forecast(a, history(200), 24)
	require.NoError(t, err)

	assert.Equal(t, "B-1", res.BuildingID)
	assert.Equal(t, 24, res.Horizon)
	assert.Equal(t, a.Version, res.ModelVersion)
	require.Len(t, res.Timestamps, 24)
	require.Len(t, res.PointForecast, 24)
	require.Len(t, res.PILow, 24)
	require.Len(t, res.PIHigh, 24)

	last := start.Add(199 * time.Hour)
	for i, ts := range res.Timestamps {
		assert.Equal(t, last.Add(time.Duration(i+1)*time.Hour), ts)
		assert.LessOrEqual(t, res.PILow[i], res.PointForecast[i])
		assert.LessOrEqual(t, res.PointForecast[i], res.PIHigh[i])
		assert.InDelta(t, 1.96*a.ResidualStd, res.PIHigh[i]-res.PointForecast[i], 1e-9)
		assert.InDelta(t, 1.96*a.ResidualStd, res.PointForecast[i]-res.PILow[i], 1e-9)
		assert.False(t, math.IsNaN(res.PointForecast[i]))
	}
}

func TestForecast_HorizonBounds(t *testing.T) {
	e := NewEngine()
	for _, h := range []int{0, -1, 169, 1000} {
		_, err := e.Forecast(echo(features.Lag1, 1), history(48), h)
		var invalid *model.InvalidHorizonError
		require.ErrorAs(t, err, &invalid, "h=%d", h)
		assert.Equal(t, 168, invalid.Max)
	}

	res, err := e.Forecast(echo(features.Lag1, 1), history(48), 168)
	require.NoError(t, err)
	assert.Len(t, res.PointForecast, 168)
}

func TestForecast_InsufficientHistory(t *testing.T) {
	_, err := NewEngine().Forecast(echo(features.Lag1, 1), history(47), 1)
	var short *model.InsufficientHistoryError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 48, short.Required)
	assert.Equal(t, 47, short.Got)
}

func TestForecast_NoArtifact(t *testing.T) {
	_, err := NewEngine().Forecast(nil, history(48), 1)
	assert.ErrorIs(t, err, model.ErrArtifactNotFound)
}

func TestForecast_SchemaMismatch(t *testing.T) {
	a := echo(features.Lag1, 1)
	a.FeatureOrder = append(features.Names()[1:], "hour_sin")
	_, err := NewEngine().Forecast(a, history(48), 1)
	var mismatch *model.FeatureSchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, features.Names(), mismatch.Builder)
}

func TestForecast_RejectsOtherBuildingsHistory(t *testing.T) {
	h := history(48)
	for i := range h {
		h[i].BuildingID = "B-2"
	}
	_, err := NewEngine().Forecast(echo(features.Lag1, 1), h, 1)
	var mismatch *model.BuildingMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "B-1", mismatch.Artifact)
	assert.Equal(t, "B-2", mismatch.History)
}

func TestForecast_TemperatureRepeatsLastDay(t *testing.T) {
	h := history(60) // temperature at index i is i
	res, err := NewEngine().Forecast(echo(features.Temperature, 0), h, 72)
	require.NoError(t, err)

	for i, p := range res.PointForecast {
		assert.Equal(t, float64(36+i%24), p, "step %d", i)
	}
}

func TestForecast_UsesOwnPredictionsAsLags(t *testing.T) {
	h := history(48)
	res, err := NewEngine().Forecast(echo(features.Lag1, 0), h, 5)
	require.NoError(t, err)
	for _, p := range res.PointForecast {
		assert.Equal(t, h[47].Energy, p)
	}

	res, err = NewEngine().Forecast(echo(features.Lag24, 0), h, 30)
	require.NoError(t, err)
	for i, p := range res.PointForecast {
		assert.Equal(t, h[24+i%24].Energy, p, "step %d", i)
	}
}

func TestForecast_DoesNotMutateHistory(t *testing.T) {
	h := history(48)
	before := append([]model.Measurement(nil), h...)
	_, err := NewEngine().Forecast(echo(features.Roll3, 0), h, 10)
	require.NoError(t, err)
	assert.Equal(t, before, h)
}

func TestInterval(t *testing.T) {
	low, high := Interval([]float64{10, -5, 0}, 2, 1.96)
	assert.InDeltaSlice(t, []float64{6.08, -8.92, -3.92}, low, 1e-12)
	assert.InDeltaSlice(t, []float64{13.92, -1.08, 3.92}, high, 1e-12)

	low, high = Interval([]float64{4}, 0, DefaultZ)
	assert.Equal(t, []float64{4}, low)
	assert.Equal(t, []float64{4}, high)
}
