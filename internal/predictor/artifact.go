package predictor

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"energy_forecast/internal/features"
)

// Metrics are computed on the validation partition.
type Metrics struct {
	MAE            float64 `json:"mae"`
	Rows           int     `json:"rows"`
	TrainRows      int     `json:"train_rows"`
	ValidationRows int     `json:"validation_rows"`
}

// Artifact is a fitted model for one building. It is never mutated after
// Train returns; retraining produces a new artifact with a new Version.
type Artifact struct {
	BuildingID   string    `json:"building_id"`
	Version      string    `json:"version"`
	Algorithm    string    `json:"algorithm"`
	FeatureOrder []string  `json:"feature_order"`
	ResidualStd  float64   `json:"resid_std"`
	Metrics      Metrics   `json:"metrics"`
	TrainedAt    time.Time `json:"trained_at"`
	Regressor    Regressor `json:"-"`
}

// Predict evaluates the regressor on one feature vector.
func (a *Artifact) Predict(x features.Vector) float64 {
	return a.Regressor.Predict(x[:])
}

type artifactAlias Artifact

type artifactJSON struct {
	*artifactAlias
	Model json.RawMessage `json:"model"`
}

// MarshalJSON writes the metadata plus the regressor under "model".
func (a *Artifact) MarshalJSON() ([]byte, error) {
	if a.Regressor == nil {
		return nil, errors.New("artifact has no regressor")
	}
	m, err := json.Marshal(a.Regressor)
	if err != nil {
		return nil, fmt.Errorf("marshal %s regressor: %w", a.Algorithm, err)
	}
	return json.Marshal(artifactJSON{artifactAlias: (*artifactAlias)(a), Model: m})
}

// UnmarshalJSON restores the regressor type named by "algorithm".
func (a *Artifact) UnmarshalJSON(data []byte) error {
	raw := artifactJSON{artifactAlias: (*artifactAlias)(a)}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var reg interface {
		Regressor
		validate(nf int) error
	}
	switch a.Algorithm {
	case AlgorithmForest:
		reg = &Forest{}
	case AlgorithmMLP:
		reg = &MLP{}
	default:
		return fmt.Errorf("unknown algorithm %q", a.Algorithm)
	}
	if len(raw.Model) == 0 {
		return fmt.Errorf("artifact %s/%s has no model", a.BuildingID, a.Version)
	}
	if err := json.Unmarshal(raw.Model, reg); err != nil {
		return fmt.Errorf("unmarshal %s regressor: %w", a.Algorithm, err)
	}
	if err := reg.validate(features.NumFeatures); err != nil {
		return fmt.Errorf("artifact %s/%s: %w", a.BuildingID, a.Version, err)
	}
	if a.ResidualStd < 0 {
		return fmt.Errorf("artifact %s/%s: negative residual std %v", a.BuildingID, a.Version, a.ResidualStd)
	}
	a.Regressor = reg
	return nil
}
