// Package service ties the store, the artifact registry, the trainer and the
// forecast engine together behind the operations the API and CLI expose.
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"energy_forecast/internal/artifact"
	"energy_forecast/internal/carbon"
	"energy_forecast/internal/events"
	"energy_forecast/internal/forecast"
	"energy_forecast/internal/metrics"
	"energy_forecast/internal/model"
	"energy_forecast/internal/predictor"
	"energy_forecast/internal/store"
	"energy_forecast/internal/tracing"
)

const (
	DefaultHistoryWindow = 14 * 24
	DefaultHistoryHours  = 48
	MaxHistoryHours      = 720
)

var (
	ErrNoData       = errors.New("no data for building")
	ErrInvalidHours = errors.New("invalid hours")
)

type Options struct {
	Store         store.Store
	Registry      *artifact.Registry
	Trainer       *predictor.Trainer
	Engine        *forecast.Engine
	Notifier      events.Notifier
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
	HistoryWindow int           // trailing hours handed to the forecast engine
	TrainTimeout  time.Duration // 0 disables the deadline
	CarbonFactor  float64
	AppName       string
	Version       string
}

type Service struct {
	store         store.Store
	registry      *artifact.Registry
	trainer       *predictor.Trainer
	engine        *forecast.Engine
	notifier      events.Notifier
	metrics       *metrics.Metrics
	log           *zap.Logger
	historyWindow int
	trainTimeout  time.Duration
	carbonFactor  float64
	appName       string
	version       string
}

func New(opts Options) *Service {
	s := &Service{
		store:         opts.Store,
		registry:      opts.Registry,
		trainer:       opts.Trainer,
		engine:        opts.Engine,
		notifier:      opts.Notifier,
		metrics:       opts.Metrics,
		log:           opts.Logger,
		historyWindow: opts.HistoryWindow,
		trainTimeout:  opts.TrainTimeout,
		carbonFactor:  opts.CarbonFactor,
		appName:       opts.AppName,
		version:       opts.Version,
	}
	if s.trainer == nil {
		s.trainer = predictor.NewTrainer(predictor.DefaultConfig())
	}
	if s.engine == nil {
		s.engine = forecast.NewEngine()
	}
	if s.notifier == nil {
		s.notifier = events.Nop{}
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNop()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.historyWindow <= 0 {
		s.historyWindow = DefaultHistoryWindow
	}
	s.historyWindow = max(s.historyWindow, s.engine.MinHistory)
	if s.carbonFactor == 0 {
		s.carbonFactor = carbon.DefaultFactor
	}
	return s
}

// Ingest upserts measurements for one building and returns how many were
// written. Timestamps are stored in UTC; a record that is not hour aligned or
// has invalid values rejects the whole batch.
func (s *Service) Ingest(ctx context.Context, buildingID string, ms []model.Measurement) (int, error) {
	if len(ms) == 0 {
		return 0, fmt.Errorf("%w: no records provided", model.ErrInvalidMeasurement)
	}
	clean := make([]model.Measurement, len(ms))
	for i, m := range ms {
		if m.BuildingID != buildingID {
			return 0, fmt.Errorf("%w: record %d belongs to %q, not %q",
				model.ErrInvalidMeasurement, i, m.BuildingID, buildingID)
		}
		nm, err := m.Normalize()
		if err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
		clean[i] = nm
	}
	n, err := s.store.Upsert(ctx, clean)
	if err != nil {
		return 0, fmt.Errorf("store measurements: %w", err)
	}
	s.metrics.IngestedRows.WithLabelValues(buildingID).Add(float64(n))
	s.log.Info("measurements ingested", zap.String("building_id", buildingID), zap.Int("rows", n))
	return n, nil
}

// Train fits a new artifact on the building's full history and publishes it.
// A second call for the same building fails with model.ErrTrainingInProgress
// while the first is running.
func (s *Service) Train(ctx context.Context, buildingID string, minRows int) (a *predictor.Artifact, err error) {
	ctx, span := tracing.Start(ctx, "service.Train",
		attribute.String("building_id", buildingID), attribute.Int("min_rows", minRows))
	defer func() { tracing.End(span, err) }()

	release, err := s.registry.BeginTraining(buildingID)
	if err != nil {
		return nil, err
	}
	defer release()

	if s.trainTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.trainTimeout)
		defer cancel()
	}

	algorithm := s.trainer.Config().Algorithm
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.metrics.Trainings.WithLabelValues(algorithm, status).Inc()
		s.metrics.TrainingDuration.WithLabelValues(algorithm).Observe(time.Since(start).Seconds())
	}()

	history, err := s.store.Since(ctx, buildingID, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	a, err = s.trainer.Train(ctx, history, minRows)
	if err != nil {
		return nil, err
	}
	if err := s.registry.Publish(ctx, a); err != nil {
		return nil, fmt.Errorf("publish artifact: %w", err)
	}

	s.metrics.ResidualStd.WithLabelValues(buildingID).Set(a.ResidualStd)
	s.metrics.ValidationMAE.WithLabelValues(buildingID).Set(a.Metrics.MAE)
	s.log.Info("model trained",
		zap.String("building_id", buildingID),
		zap.String("version", a.Version),
		zap.String("algorithm", a.Algorithm),
		zap.Float64("mae", a.Metrics.MAE),
		zap.Float64("resid_std", a.ResidualStd),
		zap.Int("rows", a.Metrics.Rows),
		zap.Duration("took", time.Since(start)),
	)
	s.notify(ctx, func(ctx context.Context) error {
		return s.notifier.ModelTrained(ctx, events.ModelTrained{
			BuildingID:  a.BuildingID,
			Version:     a.Version,
			Algorithm:   a.Algorithm,
			MAE:         a.Metrics.MAE,
			ResidualStd: a.ResidualStd,
			Rows:        a.Metrics.Rows,
			TrainedAt:   a.TrainedAt,
		})
	})
	return a, nil
}

// Forecast predicts the next hours for a building from its current artifact
// and the trailing history window.
func (s *Service) Forecast(ctx context.Context, buildingID string, hours int) (*forecast.Result, error) {
	res, err := s.forecast(ctx, buildingID, hours)
	if err != nil {
		return nil, err
	}
	s.metrics.Forecasts.WithLabelValues("energy").Inc()
	s.announce(ctx, res, nil)
	return res, nil
}

// CarbonResult is a forecast converted to CO₂.
type CarbonResult struct {
	BuildingID   string      `json:"building_id"`
	Horizon      int         `json:"horizon"`
	Timestamps   []time.Time `json:"timestamps"`
	ModelVersion string      `json:"model_version"`
	carbon.Estimate
}

// Carbon forecasts the building and applies factor in g/kWh. A nil factor
// uses the configured default.
func (s *Service) Carbon(ctx context.Context, buildingID string, hours int, factor *float64) (*CarbonResult, error) {
	f := s.carbonFactor
	if factor != nil {
		f = *factor
	}
	// Reject a bad factor before paying for the rollout.
	if _, err := carbon.Convert(nil, f); err != nil {
		return nil, err
	}
	res, err := s.forecast(ctx, buildingID, hours)
	if err != nil {
		return nil, err
	}
	est, err := carbon.Convert(res.PointForecast, f)
	if err != nil {
		return nil, err
	}
	s.metrics.Forecasts.WithLabelValues("carbon").Inc()
	s.announce(ctx, res, &est.Total)
	return &CarbonResult{
		BuildingID:   res.BuildingID,
		Horizon:      res.Horizon,
		Timestamps:   res.Timestamps,
		ModelVersion: res.ModelVersion,
		Estimate:     est,
	}, nil
}

func (s *Service) forecast(ctx context.Context, buildingID string, hours int) (res *forecast.Result, err error) {
	ctx, span := tracing.Start(ctx, "service.Forecast",
		attribute.String("building_id", buildingID), attribute.Int("hours", hours))
	defer func() {
		if err != nil {
			s.metrics.ForecastErrors.WithLabelValues(reason(err)).Inc()
		}
		tracing.End(span, err)
	}()

	if hours < 1 || hours > s.engine.MaxHorizon {
		return nil, &model.InvalidHorizonError{Horizon: hours, Max: s.engine.MaxHorizon}
	}
	a, err := s.registry.Get(ctx, buildingID)
	if err != nil {
		return nil, err
	}
	history, err := s.store.Tail(ctx, buildingID, s.historyWindow)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return s.engine.Forecast(a, history, hours)
}

func (s *Service) announce(ctx context.Context, res *forecast.Result, co2 *float64) {
	var total float64
	for _, p := range res.PointForecast {
		total += p
	}
	s.notify(ctx, func(ctx context.Context) error {
		return s.notifier.ForecastReady(ctx, events.ForecastReady{
			BuildingID:   res.BuildingID,
			ModelVersion: res.ModelVersion,
			Horizon:      res.Horizon,
			Start:        res.Timestamps[0],
			End:          res.Timestamps[len(res.Timestamps)-1],
			TotalEnergy:  total,
			CO2TotalG:    co2,
		})
	})
}

// notify delivers an event without letting a slow or failing consumer fail
// the request that produced it.
func (s *Service) notify(ctx context.Context, send func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := send(ctx); err != nil {
		s.log.Warn("event delivery failed", zap.Error(err))
	}
}

// History returns the newest hours of stored measurements for a building.
func (s *Service) History(ctx context.Context, buildingID string, hours int) ([]model.Measurement, error) {
	if hours < 1 || hours > MaxHistoryHours {
		return nil, fmt.Errorf("%w: %d outside [1, %d]", ErrInvalidHours, hours, MaxHistoryHours)
	}
	ms, err := s.store.Tail(ctx, buildingID, hours)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if len(ms) == 0 {
		return nil, fmt.Errorf("%w %q", ErrNoData, buildingID)
	}
	return ms, nil
}

type Health struct {
	Status       string `json:"status"`
	Rows         int    `json:"rows"`
	CachedModels int    `json:"cached_models"`
	App          string `json:"app"`
	Version      string `json:"version"`
}

func (s *Service) Health(ctx context.Context) (Health, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return Health{}, fmt.Errorf("count measurements: %w", err)
	}
	return Health{
		Status:       "ok",
		Rows:         n,
		CachedModels: s.registry.Cached(),
		App:          s.appName,
		Version:      s.version,
	}, nil
}

// Models lists the artifacts currently held in memory, by building.
func (s *Service) Models() []*predictor.Artifact {
	out := s.registry.Snapshot()
	slices.SortFunc(out, func(a, b *predictor.Artifact) int {
		return strings.Compare(a.BuildingID, b.BuildingID)
	})
	return out
}

func (s *Service) AppName() string { return s.appName }
func (s *Service) Version() string { return s.version }

func reason(err error) string {
	switch {
	case errors.Is(err, model.ErrArtifactNotFound):
		return "no_model"
	case errors.Is(err, model.ErrInvalidHorizon):
		return "horizon"
	case errors.Is(err, model.ErrInsufficientHistory):
		return "history"
	case errors.Is(err, model.ErrHistoryGap), errors.Is(err, model.ErrUnorderedHistory):
		return "gap"
	case errors.Is(err, model.ErrFeatureSchemaMismatch):
		return "schema"
	default:
		return "internal"
	}
}
