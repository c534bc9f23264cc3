package config

import (
	"fmt"
	"slices"
	"time"

	"energy_forecast/internal/artifact"
	"energy_forecast/internal/forecast"
	"energy_forecast/internal/logger"
	"energy_forecast/internal/predictor"
	"energy_forecast/internal/store"
)

// Config is the service configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Store     StoreConfig     `mapstructure:"store"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Training  TrainingConfig  `mapstructure:"training"`
	Forecast  ForecastConfig  `mapstructure:"forecast"`
	Carbon    CarbonConfig    `mapstructure:"carbon"`
	Events    EventsConfig    `mapstructure:"events"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Addr               string        `mapstructure:"addr"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins        []string      `mapstructure:"cors_origins"`
	TrainRatePerMinute float64       `mapstructure:"train_rate_per_minute"`
	TrainBurst         int           `mapstructure:"train_burst"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

func (l LoggingConfig) Options() logger.Options {
	return logger.Options{
		Level:      l.Level,
		Format:     l.Format,
		Output:     l.Output,
		MaxSizeMB:  l.MaxSizeMB,
		MaxAgeDays: l.MaxAgeDays,
	}
}

type StoreConfig struct {
	Backend  string         `mapstructure:"backend"` // memory | postgres
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	DSN            string `mapstructure:"dsn"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
}

func (p PostgresConfig) Store() store.PostgresConfig {
	return store.PostgresConfig{DSN: p.DSN, MaxConnections: p.MaxConnections, MaxIdle: p.MaxIdle}
}

type ArtifactsConfig struct {
	Backend   string      `mapstructure:"backend"` // file | redis | s3
	Dir       string      `mapstructure:"dir"`
	CacheSize int         `mapstructure:"cache_size"`
	Redis     RedisConfig `mapstructure:"redis"`
	S3        S3Config    `mapstructure:"s3"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PathStyle       bool   `mapstructure:"path_style"`
}

func (s S3Config) Artifact() artifact.S3Config {
	return artifact.S3Config{
		Bucket:          s.Bucket,
		Prefix:          s.Prefix,
		Region:          s.Region,
		Endpoint:        s.Endpoint,
		AccessKeyID:     s.AccessKeyID,
		SecretAccessKey: s.SecretAccessKey,
		PathStyle:       s.PathStyle,
	}
}

type TrainingConfig struct {
	Algorithm      string        `mapstructure:"algorithm"`
	MinRows        int           `mapstructure:"min_rows"`
	Trees          int           `mapstructure:"trees"`
	MaxDepth       int           `mapstructure:"max_depth"`
	MinSamplesLeaf int           `mapstructure:"min_samples_leaf"`
	MaxFeatures    int           `mapstructure:"max_features"`
	Workers        int           `mapstructure:"workers"`
	Seed           uint64        `mapstructure:"seed"`
	MLPHidden      []int         `mapstructure:"mlp_hidden"`
	MLPEpochs      int           `mapstructure:"mlp_epochs"`
	MLPBatchSize   int           `mapstructure:"mlp_batch_size"`
	MLPLearnRate   float64       `mapstructure:"mlp_learning_rate"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// Predictor converts the section into a trainer configuration.
func (t TrainingConfig) Predictor(fallback float64) predictor.Config {
	cfg := predictor.DefaultConfig()
	cfg.Algorithm = t.Algorithm
	cfg.MinRows = t.MinRows
	cfg.TemperatureFallback = fallback

	cfg.Forest.Trees = t.Trees
	cfg.Forest.MaxDepth = t.MaxDepth
	cfg.Forest.MinSamplesLeaf = t.MinSamplesLeaf
	cfg.Forest.MaxFeatures = t.MaxFeatures
	cfg.Forest.Workers = t.Workers
	cfg.Forest.Seed = t.Seed

	if len(t.MLPHidden) > 0 {
		cfg.MLP.Hidden = slices.Clone(t.MLPHidden)
	}
	cfg.MLP.Epochs = t.MLPEpochs
	cfg.MLP.BatchSize = t.MLPBatchSize
	cfg.MLP.LearningRate = t.MLPLearnRate
	cfg.MLP.Seed = t.Seed
	return cfg
}

type ForecastConfig struct {
	MaxHorizon          int     `mapstructure:"max_horizon"`
	MinHistory          int     `mapstructure:"min_history"`
	Z                   float64 `mapstructure:"z"`
	TemperatureFallback float64 `mapstructure:"temperature_fallback"`
	HistoryWindow       int     `mapstructure:"history_window"` // hours read from the store per forecast
}

func (f ForecastConfig) Engine() *forecast.Engine {
	return &forecast.Engine{
		MaxHorizon:          f.MaxHorizon,
		MinHistory:          f.MinHistory,
		Z:                   f.Z,
		TemperatureFallback: f.TemperatureFallback,
	}
}

type CarbonConfig struct {
	DefaultFactor float64 `mapstructure:"default_factor"`
}

type EventsConfig struct {
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Validate checks cross-field constraints after defaults are applied.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory":
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}

	switch c.Artifacts.Backend {
	case "file":
		if c.Artifacts.Dir == "" {
			return fmt.Errorf("artifacts.dir is required for the file backend")
		}
	case "redis":
		if c.Artifacts.Redis.Address == "" {
			return fmt.Errorf("artifacts.redis.address is required for the redis backend")
		}
	case "s3":
		if c.Artifacts.S3.Bucket == "" {
			return fmt.Errorf("artifacts.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown artifacts.backend %q", c.Artifacts.Backend)
	}

	switch c.Training.Algorithm {
	case predictor.AlgorithmForest, predictor.AlgorithmMLP:
	default:
		return fmt.Errorf("unknown training.algorithm %q", c.Training.Algorithm)
	}
	if c.Training.Trees < 1 {
		return fmt.Errorf("training.trees must be positive, got %d", c.Training.Trees)
	}
	if c.Forecast.MaxHorizon < 1 {
		return fmt.Errorf("forecast.max_horizon must be positive, got %d", c.Forecast.MaxHorizon)
	}
	if c.Forecast.HistoryWindow < c.Forecast.MinHistory {
		return fmt.Errorf("forecast.history_window %d is shorter than forecast.min_history %d",
			c.Forecast.HistoryWindow, c.Forecast.MinHistory)
	}
	if c.Carbon.DefaultFactor < 0 {
		return fmt.Errorf("carbon.default_factor must not be negative")
	}
	if c.Events.Kafka.Enabled && (len(c.Events.Kafka.Brokers) == 0 || c.Events.Kafka.Topic == "") {
		return fmt.Errorf("events.kafka needs brokers and a topic when enabled")
	}
	return nil
}
