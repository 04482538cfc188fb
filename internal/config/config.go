// Package config defines the backtest-lab configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the root configuration. Fields come from a TOML file and are
// then overridden by BACKTEST_* environment variables.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
	Storage  StorageConfig  `toml:"storage"`
	Progress ProgressConfig `toml:"progress"`
	Archive  ArchiveConfig  `toml:"archive"`
	Jobs     JobsConfig     `toml:"jobs"`
	Backtest BacktestConfig `toml:"backtest"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string   `toml:"addr"`
	CORSOrigins     []string `toml:"cors_origins"`
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// LogConfig selects the zap level and encoder.
type LogConfig struct {
	Level  string `toml:"level"`  // debug | info | warn | error
	Format string `toml:"format"` // json | console
}

// StorageConfig selects the bar and result backends.
type StorageConfig struct {
	BarBackend       string `toml:"bar_backend"`    // memory | csv | clickhouse
	ResultBackend    string `toml:"result_backend"` // memory | postgres
	CSVDir           string `toml:"csv_dir"`
	PostgresDSN      string `toml:"postgres_dsn"`
	PostgresMaxConns int    `toml:"postgres_max_conns"`
	ClickhouseDSN    string `toml:"clickhouse_dsn"`
	RunMigrations    bool   `toml:"run_migrations"`
}

// ProgressConfig selects where progress updates are published.
type ProgressConfig struct {
	Backend       string  `toml:"backend"` // memory | redis
	Step          float64 `toml:"step"`
	RedisAddr     string  `toml:"redis_addr"`
	RedisPassword string  `toml:"redis_password"`
	RedisDB       int     `toml:"redis_db"`
	ChannelPrefix string  `toml:"channel_prefix"`
}

// ArchiveConfig holds the S3 archive settings.
type ArchiveConfig struct {
	Enabled   bool   `toml:"enabled"`
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Prefix    string `toml:"prefix"`
	PathStyle bool   `toml:"path_style"`
	UseSSL    bool   `toml:"use_ssl"`
}

// JobsConfig holds job registry settings.
type JobsConfig struct {
	Retention        Duration `toml:"retention"` // 0 keeps terminal jobs until deleted
	CleanupInterval  Duration `toml:"cleanup_interval"`
	DefaultQuantity  float64  `toml:"default_quantity"`
	DefaultTimeframe string   `toml:"default_timeframe"`
	MaxConcurrent    int      `toml:"max_concurrent"`
}

// BacktestConfig holds CLI defaults.
type BacktestConfig struct {
	DefaultSymbol string `toml:"default_symbol"`
}

// Duration decodes TOML strings like "5m" or "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config that runs fully in memory.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			CORSOrigins:     []string{"*"},
			ReadTimeout:     Duration{15 * time.Second},
			WriteTimeout:    Duration{60 * time.Second},
			ShutdownTimeout: Duration{30 * time.Second},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageConfig{
			BarBackend:       "memory",
			ResultBackend:    "memory",
			CSVDir:           "data",
			PostgresMaxConns: 10,
			RunMigrations:    true,
		},
		Progress: ProgressConfig{
			Backend:       "memory",
			Step:          0.01,
			RedisAddr:     "localhost:6379",
			ChannelPrefix: "backtest:progress:",
		},
		Archive: ArchiveConfig{
			Region: "us-east-1",
			Prefix: "backtests/",
			UseSSL: true,
		},
		Jobs: JobsConfig{
			Retention:       Duration{time.Hour},
			CleanupInterval: Duration{5 * time.Minute},
			DefaultQuantity: 1,
		},
		Backtest: BacktestConfig{
			DefaultSymbol: "BTCUSDT",
		},
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate returns one error listing every invalid setting.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Addr == "" {
		errs = append(errs, "server: addr must not be empty")
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log: unknown level %q (valid: debug, info, warn, error)", c.Log.Level))
	}
	if f := strings.ToLower(c.Log.Format); f != "json" && f != "console" {
		errs = append(errs, fmt.Sprintf("log: unknown format %q (valid: json, console)", c.Log.Format))
	}

	switch c.Storage.BarBackend {
	case "memory":
	case "csv":
		if c.Storage.CSVDir == "" {
			errs = append(errs, "storage: csv_dir is required for bar_backend csv")
		}
	case "clickhouse":
		if c.Storage.ClickhouseDSN == "" {
			errs = append(errs, "storage: clickhouse_dsn is required for bar_backend clickhouse")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage: unknown bar_backend %q (valid: memory, csv, clickhouse)", c.Storage.BarBackend))
	}
	switch c.Storage.ResultBackend {
	case "memory":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, "storage: postgres_dsn is required for result_backend postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage: unknown result_backend %q (valid: memory, postgres)", c.Storage.ResultBackend))
	}

	switch c.Progress.Backend {
	case "memory":
	case "redis":
		if c.Progress.RedisAddr == "" {
			errs = append(errs, "progress: redis_addr is required for backend redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("progress: unknown backend %q (valid: memory, redis)", c.Progress.Backend))
	}
	if c.Progress.Step <= 0 || c.Progress.Step > 1 {
		errs = append(errs, fmt.Sprintf("progress: step must be in (0, 1], got %v", c.Progress.Step))
	}

	if c.Archive.Enabled {
		if c.Archive.Bucket == "" {
			errs = append(errs, "archive: bucket is required when enabled")
		}
		if c.Archive.Region == "" {
			errs = append(errs, "archive: region is required when enabled")
		}
		if (c.Archive.AccessKey == "") != (c.Archive.SecretKey == "") {
			errs = append(errs, "archive: access_key and secret_key must be set together")
		}
	}

	if c.Jobs.Retention.Duration < 0 {
		errs = append(errs, "jobs: retention must not be negative")
	}
	if c.Jobs.MaxConcurrent < 0 {
		errs = append(errs, "jobs: max_concurrent must not be negative")
	}
	if c.Jobs.DefaultQuantity <= 0 {
		errs = append(errs, "jobs: default_quantity must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// NewLogger builds the process logger from the log section.
func (c LogConfig) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(c.Level))
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if strings.EqualFold(c.Format, "console") {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
