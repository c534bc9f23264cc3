package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"energy_forecast/internal/artifact"
	"energy_forecast/internal/carbon"
	"energy_forecast/internal/features"
	"energy_forecast/internal/forecast"
	"energy_forecast/internal/predictor"
)

// EnvPrefix prefixes environment overrides: forecast.max_horizon is read
// from FORECAST_FORECAST_MAX_HORIZON.
const EnvPrefix = "FORECAST"

// Load reads path, or config.yaml from ./configs or the working directory
// when path is empty. A missing file is not an error. Values from .env and
// the environment override the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Energy Forecast & CO2")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.environment", "development")

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.train_rate_per_minute", 6.0)
	v.SetDefault("server.train_burst", 2)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_age_days", 7)

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.max_connections", 10)
	v.SetDefault("store.postgres.max_idle", 5)

	v.SetDefault("artifacts.backend", "file")
	v.SetDefault("artifacts.dir", "./models")
	v.SetDefault("artifacts.cache_size", artifact.DefaultCacheSize)
	v.SetDefault("artifacts.redis.address", "")
	v.SetDefault("artifacts.redis.password", "")
	v.SetDefault("artifacts.redis.db", 0)
	v.SetDefault("artifacts.redis.prefix", "forecast:artifact:")
	v.SetDefault("artifacts.s3.bucket", "")
	v.SetDefault("artifacts.s3.prefix", "artifacts")
	v.SetDefault("artifacts.s3.region", "eu-central-1")
	v.SetDefault("artifacts.s3.endpoint", "")
	v.SetDefault("artifacts.s3.access_key_id", "")
	v.SetDefault("artifacts.s3.secret_access_key", "")
	v.SetDefault("artifacts.s3.path_style", false)

	forest := predictor.DefaultForestConfig()
	mlp := predictor.DefaultMLPConfig()
	v.SetDefault("training.algorithm", predictor.AlgorithmForest)
	v.SetDefault("training.min_rows", predictor.DefaultMinRows)
	v.SetDefault("training.trees", forest.Trees)
	v.SetDefault("training.max_depth", forest.MaxDepth)
	v.SetDefault("training.min_samples_leaf", forest.MinSamplesLeaf)
	v.SetDefault("training.max_features", forest.MaxFeatures)
	v.SetDefault("training.workers", 0)
	v.SetDefault("training.seed", forest.Seed)
	v.SetDefault("training.mlp_hidden", mlp.Hidden)
	v.SetDefault("training.mlp_epochs", mlp.Epochs)
	v.SetDefault("training.mlp_batch_size", mlp.BatchSize)
	v.SetDefault("training.mlp_learning_rate", mlp.LearningRate)
	v.SetDefault("training.timeout", "5m")

	v.SetDefault("forecast.max_horizon", forecast.DefaultMaxHorizon)
	v.SetDefault("forecast.min_history", forecast.DefaultMinHistory)
	v.SetDefault("forecast.z", forecast.DefaultZ)
	v.SetDefault("forecast.temperature_fallback", features.DefaultTemperature)
	v.SetDefault("forecast.history_window", 14*24)

	v.SetDefault("carbon.default_factor", carbon.DefaultFactor)

	v.SetDefault("events.kafka.enabled", false)
	v.SetDefault("events.kafka.brokers", []string{})
	v.SetDefault("events.kafka.topic", "forecast-events")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.sample_ratio", 1.0)
}
