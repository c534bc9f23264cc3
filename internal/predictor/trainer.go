package predictor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"energy_forecast/internal/features"
	"energy_forecast/internal/model"
)

const (
	// DefaultMinRows is the history length a training request needs unless
	// the caller asks otherwise.
	DefaultMinRows = 72
	// MinRowsFloor is the smallest accepted minimum; lower requests are raised.
	MinRowsFloor = features.MinLookback
)

// Config selects the algorithm and its hyperparameters.
type Config struct {
	Algorithm           string
	MinRows             int
	Forest              ForestConfig
	MLP                 MLPConfig
	TemperatureFallback float64
}

func DefaultConfig() Config {
	return Config{
		Algorithm:           AlgorithmForest,
		MinRows:             DefaultMinRows,
		Forest:              DefaultForestConfig(),
		MLP:                 DefaultMLPConfig(),
		TemperatureFallback: features.DefaultTemperature,
	}
}

// Trainer fits artifacts from measurement histories. It holds no per-building
// state and may be shared.
type Trainer struct {
	cfg        Config
	now        func() time.Time
	newVersion func() string
}

func NewTrainer(cfg Config) *Trainer {
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmForest
	}
	if cfg.MinRows <= 0 {
		cfg.MinRows = DefaultMinRows
	}
	return &Trainer{
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
		newVersion: func() string { return uuid.NewString() },
	}
}

// Config returns the trainer's effective configuration.
func (t *Trainer) Config() Config { return t.cfg }

// Train builds features from history, splits them chronologically, fits the
// configured regressor on the training part and scores it on the validation
// part. minRows <= 0 uses the configured default; values below 24 are raised.
func (t *Trainer) Train(ctx context.Context, history []model.Measurement, minRows int) (*Artifact, error) {
	if minRows <= 0 {
		minRows = t.cfg.MinRows
	}
	minRows = max(minRows, MinRowsFloor)
	if len(history) < minRows {
		return nil, &model.InsufficientDataError{Required: minRows, Got: len(history), Stage: "history"}
	}

	rows, err := features.Build(history, t.cfg.TemperatureFallback)
	if err != nil {
		return nil, fmt.Errorf("build features: %w", err)
	}
	part, err := Split(rows)
	if err != nil {
		return nil, err
	}

	trainX, trainY := matrix(part.Train)
	reg, err := t.fit(ctx, trainX, trainY)
	if err != nil {
		return nil, err
	}

	valX, valY := matrix(part.Validation)
	residuals := make([]float64, len(valX))
	var absSum float64
	for i := range valX {
		residuals[i] = valY[i] - reg.Predict(valX[i])
		absSum += math.Abs(residuals[i])
	}
	_, residStd := stat.PopMeanStdDev(residuals, nil)

	return &Artifact{
		BuildingID:   history[0].BuildingID,
		Version:      t.newVersion(),
		Algorithm:    reg.Algorithm(),
		FeatureOrder: features.Names(),
		ResidualStd:  residStd,
		Metrics: Metrics{
			MAE:            absSum / float64(len(valX)),
			Rows:           len(rows),
			TrainRows:      len(part.Train),
			ValidationRows: len(part.Validation),
		},
		TrainedAt: t.now(),
		Regressor: reg,
	}, nil
}

func (t *Trainer) fit(ctx context.Context, X [][]float64, y []float64) (Regressor, error) {
	switch t.cfg.Algorithm {
	case AlgorithmForest:
		f, err := FitForest(ctx, X, y, t.cfg.Forest)
		if err != nil {
			return nil, err
		}
		return f, nil
	case AlgorithmMLP:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, _, err := FitMLP(X, y, t.cfg.MLP)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown algorithm %q", t.cfg.Algorithm)
	}
}
