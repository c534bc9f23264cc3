package predictor

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energy_forecast/internal/features"
	"energy_forecast/internal/model"
)

var monday = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func sinusoid(building string, n int) []model.Measurement {
	ms := make([]model.Measurement, n)
	for i := range ms {
		a := 2 * math.Pi * float64(i%24) / 24
		ms[i] = model.Measurement{
			BuildingID:  building,
			Timestamp:   monday.Add(time.Duration(i) * time.Hour),
			Energy:      100 + 20*math.Sin(a),
			Temperature: model.Temp(15 + 5*math.Cos(a)),
		}
	}
	return ms
}

func sinusoidMatrix(n int) ([][]float64, []float64) {
	rows, err := features.Build(sinusoid("B-1", n+features.MinLookback), features.DefaultTemperature)
	if err != nil {
		panic(err)
	}
	return matrix(rows)
}

func testTrainer(alg string) *Trainer {
	cfg := DefaultConfig()
	cfg.Algorithm = alg
	cfg.Forest.Trees = 20
	cfg.MLP.Epochs = 50
	tr := NewTrainer(cfg)
	tr.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	tr.newVersion = func() string { return "v-test" }
	return tr
}

func TestTrainer_ForestOnSinusoid(t *testing.T) {
	a, err := testTrainer(AlgorithmForest).Train(context.Background(), sinusoid("B-1", 200), 0)
	require.NoError(t, err)

	assert.Equal(t, "B-1", a.BuildingID)
	assert.Equal(t, "v-test", a.Version)
	assert.Equal(t, AlgorithmForest, a.Algorithm)
	assert.Equal(t, features.Names(), a.FeatureOrder)
	assert.Equal(t, 176, a.Metrics.Rows)
	assert.Equal(t, 158, a.Metrics.TrainRows)
	assert.Equal(t, 18, a.Metrics.ValidationRows)
	assert.GreaterOrEqual(t, a.ResidualStd, 0.0)
	assert.Less(t, a.Metrics.MAE, 2.0)
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), a.TrainedAt)
}

func TestTrainer_MLP(t *testing.T) {
	a, err := testTrainer(AlgorithmMLP).Train(context.Background(), sinusoid("B-2", 120), 0)
	require.NoError(t, err)
	assert.Equal(t, AlgorithmMLP, a.Algorithm)
	assert.IsType(t, &MLP{}, a.Regressor)
	assert.False(t, math.IsNaN(a.Metrics.MAE))
}

func TestTrainer_Reproducible(t *testing.T) {
	history := sinusoid("B-1", 150)
	history[100].Energy += 30

	a, err := testTrainer(AlgorithmForest).Train(context.Background(), history, 0)
	require.NoError(t, err)
	b, err := testTrainer(AlgorithmForest).Train(context.Background(), history, 0)
	require.NoError(t, err)

	assert.Equal(t, a.ResidualStd, b.ResidualStd)
	assert.Equal(t, a.Metrics, b.Metrics)
	assert.Equal(t, a.Regressor, b.Regressor)
}

func TestTrainer_InsufficientData(t *testing.T) {
	tr := testTrainer(AlgorithmForest)

	_, err := tr.Train(context.Background(), sinusoid("B-1", 20), 24)
	var insufficient *model.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 24, insufficient.Required)
	assert.Equal(t, 20, insufficient.Got)
	assert.ErrorIs(t, err, model.ErrInsufficientData)

	// Below-floor minimums are raised to 24.
	_, err = tr.Train(context.Background(), sinusoid("B-1", 20), 5)
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 24, insufficient.Required)

	// Default minimum is 72.
	_, err = tr.Train(context.Background(), sinusoid("B-1", 60), 0)
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, DefaultMinRows, insufficient.Required)

	// 24 rows pass the minimum but leave no feature rows to split.
	_, err = tr.Train(context.Background(), sinusoid("B-1", 24), 24)
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "split", insufficient.Stage)
}

func TestTrainer_RejectsGapsAndUnknownAlgorithm(t *testing.T) {
	history := sinusoid("B-1", 100)
	history = append(history[:50], history[51:]...)
	_, err := testTrainer(AlgorithmForest).Train(context.Background(), history, 0)
	assert.ErrorIs(t, err, model.ErrHistoryGap)

	_, err = testTrainer("svm").Train(context.Background(), sinusoid("B-1", 100), 0)
	assert.ErrorContains(t, err, "svm")
}

func TestSplit(t *testing.T) {
	rows := make([]features.Row, 100)
	for i := range rows {
		rows[i].Timestamp = monday.Add(time.Duration(i) * time.Hour)
	}

	p, err := Split(rows)
	require.NoError(t, err)
	assert.Len(t, p.Train, 90)
	assert.Len(t, p.Validation, 10)
	assert.True(t, p.Train[len(p.Train)-1].Timestamp.Before(p.Validation[0].Timestamp))

	p, err = Split(rows[:11])
	require.NoError(t, err)
	assert.Len(t, p.Train, 9)
	assert.Len(t, p.Validation, 2)

	p, err = Split(rows[:2])
	require.NoError(t, err)
	assert.Len(t, p.Train, 1)
	assert.Len(t, p.Validation, 1)

	for _, n := range []int{0, 1} {
		_, err = Split(rows[:n])
		assert.ErrorIs(t, err, model.ErrInsufficientData, "n=%d", n)
	}
}

func TestZscoreParams_PopulationStd(t *testing.T) {
	mean, std := zscoreParams([]float64{1, 2, 3, 4})
	assert.InDelta(t, 2.5, mean, 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), std, 1e-12)

	mean, std = zscoreParams([]float64{7, 7, 7})
	assert.InDelta(t, 7.0, mean, 1e-12)
	assert.Equal(t, 1.0, std)
}
