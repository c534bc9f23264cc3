// Package metrics exposes Prometheus collectors for ingest, training and
// forecasting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service collectors.
type Metrics struct {
	IngestedRows     *prometheus.CounterVec
	Trainings        *prometheus.CounterVec
	TrainingDuration *prometheus.HistogramVec
	Forecasts        *prometheus.CounterVec
	ForecastErrors   *prometheus.CounterVec
	ResidualStd      *prometheus.GaugeVec
	ValidationMAE    *prometheus.GaugeVec
}

// New registers the collectors with reg. Passing prometheus.DefaultRegisterer
// exposes them on the default /metrics handler.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		IngestedRows: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecast_ingested_rows_total",
				Help: "Measurements upserted per building",
			},
			[]string{"building_id"},
		),
		Trainings: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecast_trainings_total",
				Help: "Training runs by algorithm and outcome",
			},
			[]string{"algorithm", "status"},
		),
		TrainingDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forecast_training_duration_seconds",
				Help:    "Wall time of a training run",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"algorithm"},
		),
		Forecasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecast_requests_total",
				Help: "Forecasts produced",
			},
			[]string{"kind"},
		),
		ForecastErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecast_errors_total",
				Help: "Failed forecast requests by reason",
			},
			[]string{"reason"},
		),
		ResidualStd: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "forecast_model_residual_std",
				Help: "Validation residual std of the published model",
			},
			[]string{"building_id"},
		),
		ValidationMAE: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "forecast_model_validation_mae",
				Help: "Validation MAE of the published model",
			},
			[]string{"building_id"},
		),
	}
}

// NewNop registers into a private registry; handy in tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
