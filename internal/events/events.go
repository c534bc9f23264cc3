// Package events announces published models and finished forecasts to
// downstream consumers.
package events

import (
	"context"
	"errors"
	"time"
)

const (
	TypeModelTrained  = "model:trained"
	TypeForecastReady = "forecast:ready"
)

// ModelTrained is emitted after an artifact has been published.
type ModelTrained struct {
	BuildingID  string    `json:"building_id"`
	Version     string    `json:"version"`
	Algorithm   string    `json:"algorithm"`
	MAE         float64   `json:"mae"`
	ResidualStd float64   `json:"resid_std"`
	Rows        int       `json:"rows"`
	TrainedAt   time.Time `json:"trained_at"`
}

// ForecastReady summarises a computed forecast.
type ForecastReady struct {
	BuildingID   string    `json:"building_id"`
	ModelVersion string    `json:"model_version"`
	Horizon      int       `json:"horizon"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	TotalEnergy  float64   `json:"total_energy"`
	CO2TotalG    *float64  `json:"co2_total_g,omitempty"`
}

// Notifier receives service events. Implementations must be safe for
// concurrent use.
type Notifier interface {
	ModelTrained(ctx context.Context, e ModelTrained) error
	ForecastReady(ctx context.Context, e ForecastReady) error
}

// Multi fans out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) ModelTrained(ctx context.Context, e ModelTrained) error {
	var errs []error
	for _, n := range m {
		if err := n.ModelTrained(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) ForecastReady(ctx context.Context, e ForecastReady) error {
	var errs []error
	for _, n := range m {
		if err := n.ForecastReady(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every event.
type Nop struct{}

func (Nop) ModelTrained(context.Context, ModelTrained) error   { return nil }
func (Nop) ForecastReady(context.Context, ForecastReady) error { return nil }
