package predictor

import (
	"energy_forecast/internal/features"
	"energy_forecast/internal/model"
)

// TrainFraction is the chronological share of rows used for fitting.
const TrainFraction = 0.9

// Partition holds the chronological train and validation rows.
type Partition struct {
	Train      []features.Row
	Validation []features.Row
}

// Split cuts rows at floor(0.9·n) without shuffling, so every validation
// row is later than every training row.
func Split(rows []features.Row) (Partition, error) {
	n := len(rows)
	cut := n * 9 / 10
	if cut == 0 || cut == n {
		return Partition{}, &model.InsufficientDataError{Required: 2, Got: n, Stage: "split"}
	}
	return Partition{Train: rows[:cut], Validation: rows[cut:]}, nil
}

func matrix(rows []features.Row) (X [][]float64, y []float64) {
	X = make([][]float64, len(rows))
	y = make([]float64, len(rows))
	for i, r := range rows {
		X[i] = r.X.Slice()
		y[i] = r.Label
	}
	return X, y
}
