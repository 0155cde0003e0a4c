// Package config loads pipeline configuration from environment variables
// (and an optional .env / config.yaml), following the viper + godotenv
// pattern used across the Universal AI Tools Go services.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the complete pipeline configuration, shared by all four
// binaries. Each binary only reads the sections it needs.
type Config struct {
	Environment string         `mapstructure:"environment"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	NATS        NATSConfig     `mapstructure:"nats"`
	Server      ServerConfig   `mapstructure:"server"`
	Drift       DriftConfig    `mapstructure:"drift"`
	Retrain     RetrainConfig  `mapstructure:"retrain"`
	Logging     LoggingConfig  `mapstructure:"logging"`
	Metrics     MetricsConfig  `mapstructure:"metrics"`
}

// DatabaseConfig selects and configures the persistent store.
type DatabaseConfig struct {
	UsePostgres bool   `mapstructure:"use_postgres"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Name        string `mapstructure:"name"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	SSLMode     string `mapstructure:"ssl_mode"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	MaxConns    int32  `mapstructure:"max_connections"`
}

// DSN returns the postgres connection string built from the discrete
// DB_HOST/DB_PORT/... environment variables (spec.md §6).
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// RedisConfig configures the queue/cache substrate.
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	DB   int    `mapstructure:"db"`
}

// Addr returns host:port for redis.Options.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// NATSConfig configures the optional model-update nudge (SPEC_FULL.md §4.2a).
// Left empty, no nudges are sent or received; Prediction then picks up a
// new model only on POST /reload_model or a restart.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	MaxReconnects int    `mapstructure:"max_reconnects"`
}

// ServerConfig holds per-service HTTP ports and timeouts.
type ServerConfig struct {
	IngestionPort          int `mapstructure:"ingestion_port"`
	PredictionPort         int `mapstructure:"prediction_port"`
	DriftMonitorPort       int `mapstructure:"drift_monitor_port"`
	RetrainingWorkerPort   int `mapstructure:"retraining_worker_port"`
	ReadTimeoutSeconds     int `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds    int `mapstructure:"write_timeout_seconds"`
	RequestDeadlineSeconds int `mapstructure:"request_deadline_seconds"`
}

// ReadTimeout/WriteTimeout convert the configured seconds to a Duration.
func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSeconds) * time.Second
}

func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSeconds) * time.Second
}

// RequestDeadline is the per-request context deadline (spec.md §5 recommends
// 10s for batches).
func (s ServerConfig) RequestDeadline() time.Duration {
	return time.Duration(s.RequestDeadlineSeconds) * time.Second
}

// DriftConfig configures DriftMonitor's periodic tick (spec.md §4.3).
type DriftConfig struct {
	CheckIntervalSeconds int     `mapstructure:"check_interval_seconds"`
	WindowSize           int     `mapstructure:"window_size"`
	MinSamples           int     `mapstructure:"min_samples"`
	Threshold            float64 `mapstructure:"threshold"`
}

func (d DriftConfig) CheckInterval() time.Duration {
	return time.Duration(d.CheckIntervalSeconds) * time.Second
}

// RetrainConfig configures RetrainingWorker's poll loop (spec.md §4.4).
type RetrainConfig struct {
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
	CVFolds             int `mapstructure:"cv_folds"`
	Seed                int64 `mapstructure:"seed"`
}

func (r RetrainConfig) PollInterval() time.Duration {
	return time.Duration(r.PollIntervalSeconds) * time.Second
}

// LoggingConfig controls the zap logger construction.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// MetricsConfig toggles the /metrics Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads configuration from environment variables (prefixed PIPELINE_),
// an optional .env file, and an optional config.yaml, applying defaults for
// anything unset.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("PIPELINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindLegacyEnvVars()

	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}

	if err := viper.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// bindLegacyEnvVars wires the plain (non-prefixed) environment variables
// named in spec.md §6 — DB_HOST, REDIS_HOST, USE_POSTGRES, etc. — alongside
// the PIPELINE_-prefixed viper convention, so the service honours the
// spec's documented environment directly.
func bindLegacyEnvVars() {
	bindings := map[string]string{
		"database.host":         "DB_HOST",
		"database.port":         "DB_PORT",
		"database.name":         "DB_NAME",
		"database.user":         "DB_USER",
		"database.password":     "DB_PASSWORD",
		"database.use_postgres": "USE_POSTGRES",
		"redis.host":            "REDIS_HOST",
		"redis.port":            "REDIS_PORT",
		"redis.db":              "REDIS_DB",
		"nats.url":              "NATS_URL",
		"server.ingestion_port":         "INGESTION_PORT",
		"server.prediction_port":        "PREDICTION_PORT",
		"server.drift_monitor_port":     "DRIFT_MONITOR_PORT",
		"server.retraining_worker_port": "RETRAINING_WORKER_PORT",
	}
	for key, env := range bindings {
		_ = viper.BindEnv(key, env)
	}
}

func setDefaults() {
	viper.SetDefault("environment", "development")

	viper.SetDefault("database.use_postgres", true)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "ml_pipeline")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.sqlite_path", "data/pipeline.db")
	viper.SetDefault("database.max_connections", 25)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("nats.url", "")
	viper.SetDefault("nats.max_reconnects", 10)

	viper.SetDefault("server.ingestion_port", 8001)
	viper.SetDefault("server.prediction_port", 8002)
	viper.SetDefault("server.drift_monitor_port", 8003)
	viper.SetDefault("server.retraining_worker_port", 8004)
	viper.SetDefault("server.read_timeout_seconds", 15)
	viper.SetDefault("server.write_timeout_seconds", 15)
	viper.SetDefault("server.request_deadline_seconds", 10)

	viper.SetDefault("drift.check_interval_seconds", 300)
	viper.SetDefault("drift.window_size", 1000)
	viper.SetDefault("drift.min_samples", 100)
	viper.SetDefault("drift.threshold", 0.05)

	viper.SetDefault("retrain.poll_interval_seconds", 10)
	viper.SetDefault("retrain.cv_folds", 5)
	viper.SetDefault("retrain.seed", 42)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("metrics.enabled", true)
}
