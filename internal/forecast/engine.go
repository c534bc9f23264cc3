// Package forecast rolls a trained artifact forward hour by hour and attaches
// residual-based prediction intervals.
package forecast

import (
	"fmt"
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"

	"energy_forecast/internal/features"
	"energy_forecast/internal/model"
	"energy_forecast/internal/predictor"
)

const (
	DefaultMaxHorizon = 168
	DefaultMinHistory = 48
	// DefaultZ is the two-sided 95% normal quantile.
	DefaultZ = 1.96
)

// Result is a multi-step forecast. All slices have length Horizon and
// Timestamps continue hourly from the last observed hour.
type Result struct {
	BuildingID    string      `json:"building_id"`
	Horizon       int         `json:"horizon"`
	Timestamps    []time.Time `json:"timestamps"`
	PointForecast []float64   `json:"point_forecast"`
	PILow         []float64   `json:"pi_low"`
	PIHigh        []float64   `json:"pi_high"`
	ModelVersion  string      `json:"model_version"`
	TrainedAt     time.Time   `json:"trained_at"`
}

// Engine is stateless apart from its limits and is safe for concurrent use.
type Engine struct {
	MaxHorizon          int
	MinHistory          int
	Z                   float64
	TemperatureFallback float64
}

func NewEngine() *Engine {
	return &Engine{
		MaxHorizon:          DefaultMaxHorizon,
		MinHistory:          DefaultMinHistory,
		Z:                   DefaultZ,
		TemperatureFallback: features.DefaultTemperature,
	}
}

// Forecast predicts the horizon hours after the last entry of history.
//
// The artifact's feature order is checked once against the builder; every
// step then uses the same builder. Each step builds its vector from a working copy of the history that already
// contains the earlier predicted steps, so lags and rolling means beyond the
// first hour are partly model output. The future temperature of a step is the
// working-series temperature 24 h earlier; past the first day that value was
// itself carried forward, so the last observed day repeats.
func (e *Engine) Forecast(a *predictor.Artifact, history []model.Measurement, horizon int) (*Result, error) {
	if a == nil {
		return nil, model.ErrArtifactNotFound
	}
	if horizon < 1 || horizon > e.MaxHorizon {
		return nil, &model.InvalidHorizonError{Horizon: horizon, Max: e.MaxHorizon}
	}
	need := max(e.MinHistory, features.MinLookback)
	if len(history) < need {
		return nil, &model.InsufficientHistoryError{Required: need, Got: len(history)}
	}
	if !features.SameOrder(a.FeatureOrder) {
		return nil, &model.FeatureSchemaMismatchError{Artifact: a.FeatureOrder, Builder: features.Names()}
	}
	if got := history[0].BuildingID; got != a.BuildingID {
		return nil, &model.BuildingMismatchError{Artifact: a.BuildingID, History: got}
	}

	working, err := features.NewSeries(history, e.TemperatureFallback)
	if err != nil {
		return nil, fmt.Errorf("forecast history: %w", err)
	}

	res := &Result{
		BuildingID:    a.BuildingID,
		Horizon:       horizon,
		Timestamps:    make([]time.Time, 0, horizon),
		PointForecast: make([]float64, 0, horizon),
		ModelVersion:  a.Version,
		TrainedAt:     a.TrainedAt,
	}
	for step := 0; step < horizon; step++ {
		ts := working.Last().Add(time.Hour)
		temp := working.TemperatureAt(working.Len() - 24)
		x, err := working.Next(temp)
		if err != nil {
			return nil, err
		}
		p := a.Predict(x)
		working.Append(p, temp)

		res.Timestamps = append(res.Timestamps, ts)
		res.PointForecast = append(res.PointForecast, p)
	}
	res.PILow, res.PIHigh = Interval(res.PointForecast, a.ResidualStd, e.Z)
	return res, nil
}

// Interval returns p ± z·sigma for every point. The bounds are not clipped,
// so each half-width is exactly z·sigma.
func Interval(points []float64, sigma, z float64) (low, high []float64) {
	w := z * sigma
	low = slices.Clone(points)
	floats.AddConst(-w, low)
	high = slices.Clone(points)
	floats.AddConst(w, high)
	return low, high
}
