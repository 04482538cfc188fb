package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load builds the configuration: defaults, then the TOML file at path (skipped
// when path is empty or the file does not exist), then .env, then BACKTEST_*
// environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	// .env is optional.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides overwrites fields whose BACKTEST_* variable is set and non-empty.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Server.Addr, "BACKTEST_SERVER_ADDR")
	setStringSlice(&cfg.Server.CORSOrigins, "BACKTEST_SERVER_CORS_ORIGINS")
	setDuration(&cfg.Server.ReadTimeout, "BACKTEST_SERVER_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "BACKTEST_SERVER_WRITE_TIMEOUT")
	setDuration(&cfg.Server.ShutdownTimeout, "BACKTEST_SERVER_SHUTDOWN_TIMEOUT")

	setStr(&cfg.Log.Level, "BACKTEST_LOG_LEVEL")
	setStr(&cfg.Log.Format, "BACKTEST_LOG_FORMAT")

	setStr(&cfg.Storage.BarBackend, "BACKTEST_STORAGE_BAR_BACKEND")
	setStr(&cfg.Storage.ResultBackend, "BACKTEST_STORAGE_RESULT_BACKEND")
	setStr(&cfg.Storage.CSVDir, "BACKTEST_STORAGE_CSV_DIR")
	setStr(&cfg.Storage.PostgresDSN, "BACKTEST_STORAGE_POSTGRES_DSN")
	setInt(&cfg.Storage.PostgresMaxConns, "BACKTEST_STORAGE_POSTGRES_MAX_CONNS")
	setStr(&cfg.Storage.ClickhouseDSN, "BACKTEST_STORAGE_CLICKHOUSE_DSN")
	setBool(&cfg.Storage.RunMigrations, "BACKTEST_STORAGE_RUN_MIGRATIONS")

	setStr(&cfg.Progress.Backend, "BACKTEST_PROGRESS_BACKEND")
	setFloat64(&cfg.Progress.Step, "BACKTEST_PROGRESS_STEP")
	setStr(&cfg.Progress.RedisAddr, "BACKTEST_PROGRESS_REDIS_ADDR")
	setStr(&cfg.Progress.RedisPassword, "BACKTEST_PROGRESS_REDIS_PASSWORD")
	setInt(&cfg.Progress.RedisDB, "BACKTEST_PROGRESS_REDIS_DB")
	setStr(&cfg.Progress.ChannelPrefix, "BACKTEST_PROGRESS_CHANNEL_PREFIX")

	setBool(&cfg.Archive.Enabled, "BACKTEST_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Bucket, "BACKTEST_ARCHIVE_BUCKET")
	setStr(&cfg.Archive.Region, "BACKTEST_ARCHIVE_REGION")
	setStr(&cfg.Archive.Endpoint, "BACKTEST_ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.AccessKey, "BACKTEST_ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "BACKTEST_ARCHIVE_SECRET_KEY")
	setStr(&cfg.Archive.Prefix, "BACKTEST_ARCHIVE_PREFIX")
	setBool(&cfg.Archive.PathStyle, "BACKTEST_ARCHIVE_PATH_STYLE")
	setBool(&cfg.Archive.UseSSL, "BACKTEST_ARCHIVE_USE_SSL")

	setDuration(&cfg.Jobs.Retention, "BACKTEST_JOBS_RETENTION")
	setDuration(&cfg.Jobs.CleanupInterval, "BACKTEST_JOBS_CLEANUP_INTERVAL")
	setFloat64(&cfg.Jobs.DefaultQuantity, "BACKTEST_JOBS_DEFAULT_QUANTITY")
	setStr(&cfg.Jobs.DefaultTimeframe, "BACKTEST_JOBS_DEFAULT_TIMEFRAME")
	setInt(&cfg.Jobs.MaxConcurrent, "BACKTEST_JOBS_MAX_CONCURRENT")

	setStr(&cfg.Backtest.DefaultSymbol, "BACKTEST_DEFAULT_SYMBOL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
