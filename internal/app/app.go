// Package app assembles the service from configuration. Both the server and
// the CLI build their dependencies through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"energy_forecast/internal/artifact"
	"energy_forecast/internal/config"
	"energy_forecast/internal/events"
	"energy_forecast/internal/metrics"
	"energy_forecast/internal/predictor"
	"energy_forecast/internal/service"
	"energy_forecast/internal/store"
	"energy_forecast/internal/ws"
)

type App struct {
	Service *service.Service
	Hub     *ws.Hub
	Metrics *metrics.Metrics

	closers []func() error
}

// New opens the configured backends. Close releases them.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, reg prometheus.Registerer) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			a.Close() //nolint:errcheck
		}
	}()

	measurements, err := a.openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	artifacts, err := a.openArtifacts(ctx, cfg.Artifacts)
	if err != nil {
		return nil, err
	}
	registry, err := artifact.NewRegistry(artifacts, cfg.Artifacts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create artifact registry: %w", err)
	}

	a.Hub = ws.NewHub(log.Named("ws"))
	notifiers := events.Multi{ws.NewBridge(a.Hub)}
	if cfg.Events.Kafka.Enabled {
		pub := events.NewKafkaPublisher(cfg.Events.Kafka.Brokers, cfg.Events.Kafka.Topic, log)
		a.closers = append(a.closers, pub.Close)
		notifiers = append(notifiers, pub)
		log.Info("kafka events enabled", zap.Strings("brokers", cfg.Events.Kafka.Brokers), zap.String("topic", cfg.Events.Kafka.Topic))
	}

	a.Metrics = metrics.New(reg)
	a.Service = service.New(service.Options{
		Store:         measurements,
		Registry:      registry,
		Trainer:       predictor.NewTrainer(cfg.Training.Predictor(cfg.Forecast.TemperatureFallback)),
		Engine:        cfg.Forecast.Engine(),
		Notifier:      notifiers,
		Metrics:       a.Metrics,
		Logger:        log.Named("service"),
		HistoryWindow: cfg.Forecast.HistoryWindow,
		TrainTimeout:  cfg.Training.Timeout,
		CarbonFactor:  cfg.Carbon.DefaultFactor,
		AppName:       cfg.App.Name,
		Version:       cfg.App.Version,
	})
	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemory(), nil
	case "postgres":
		pg, err := store.NewPostgres(cfg.Postgres.Store())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func (a *App) openArtifacts(ctx context.Context, cfg config.ArtifactsConfig) (artifact.Store, error) {
	switch cfg.Backend {
	case "file":
		return artifact.NewFileStore(cfg.Dir)
	case "redis":
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Address},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		return artifact.NewRedisStore(client, cfg.Redis.Prefix), nil
	case "s3":
		client, err := artifact.NewS3Client(ctx, cfg.S3.Artifact())
		if err != nil {
			return nil, err
		}
		return artifact.NewS3Store(client, cfg.S3.Bucket, cfg.S3.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown artifacts backend %q", cfg.Backend)
	}
}

// Status is what a dashboard receives when it connects.
func (a *App) Status() ws.StatusPayload {
	arts := a.Service.Models()
	models := make([]ws.ModelInfo, len(arts))
	for i, m := range arts {
		models[i] = modelInfo(m)
	}
	return ws.StatusPayload{App: a.Service.AppName(), Version: a.Service.Version(), Models: models}
}

func modelInfo(m *predictor.Artifact) ws.ModelInfo {
	return ws.ModelInfo{
		BuildingID: m.BuildingID,
		Version:    m.Version,
		Algorithm:  m.Algorithm,
		TrainedAt:  m.TrainedAt.UTC().Format(time.RFC3339),
	}
}

// Close releases backends in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
