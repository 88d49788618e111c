// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	// ENV override like EDITOR_URL or SCHEDULER_MAX_JOBS_IN_PROGRESS
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	// 1. base config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// 2. environment overlay, optional
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// AutomaticEnv only applies to keys viper already knows about, so the
// settings most often injected by deployments are bound explicitly.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"editor.url",
		"cache.backend",
		"database.redis.address",
		"database.redis.password",
		"database.postgres.host",
		"database.postgres.user",
		"database.postgres.password",
		"notifications.sns.topic_arn",
		"logging.level",
	} {
		_ = v.BindEnv(key)
	}
}

// loadEnvFile loads .env from the working directory or any parent up to the module root.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "designgen"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}

	// Scheduler defaults
	if cfg.Scheduler.MaxJobsInProgress <= 0 {
		cfg.Scheduler.MaxJobsInProgress = 5
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 60000
	}
	if cfg.Scheduler.SnapshotTick == 0 {
		cfg.Scheduler.SnapshotTick = 250
	}
	if cfg.Scheduler.CacheOpTimeout == 0 {
		cfg.Scheduler.CacheOpTimeout = 3000
	}

	// Editor defaults
	if cfg.Editor.ConnectTimeout == 0 {
		cfg.Editor.ConnectTimeout = 15000
	}
	if cfg.Editor.IdleTimeout == 0 {
		cfg.Editor.IdleTimeout = 5000
	}
	if cfg.Editor.ProbeInterval == 0 {
		cfg.Editor.ProbeInterval = 500
	}
	if len(cfg.Editor.ExportFormats) == 0 {
		cfg.Editor.ExportFormats = []string{"png", "psd"}
	}

	// Cache defaults
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.MaxDesignsInCache <= 0 {
		cfg.Cache.MaxDesignsInCache = 50
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "designgen"
	}

	// Database defaults
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 2
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	// Fetch defaults
	if cfg.Assets.Timeout == 0 {
		cfg.Assets.Timeout = 10000
	}
	if cfg.Assets.MaxCached == 0 {
		cfg.Assets.MaxCached = 256
	}
	if cfg.Assets.Concurrency == 0 {
		cfg.Assets.Concurrency = 4
	}
	if cfg.Templates.Timeout == 0 {
		cfg.Templates.Timeout = 15000
	}
	if cfg.Templates.CacheTTL == 0 {
		cfg.Templates.CacheTTL = 300000
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Editor.URL == "" {
		return fmt.Errorf("editor.url is required")
	}

	switch cfg.Cache.Backend {
	case "memory":
	case "redis":
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required when cache.backend is redis")
		}
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", cfg.Cache.Backend)
	}

	if cfg.Database.Postgres.Enabled {
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required")
		}
	}

	if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
		return fmt.Errorf("notifications.sns.topic_arn is required when sns is enabled")
	}

	if cfg.Editor.IdleTimeout < cfg.Editor.ProbeInterval {
		return fmt.Errorf("editor.idle_timeout (%dms) must not be shorter than editor.probe_interval (%dms)",
			cfg.Editor.IdleTimeout, cfg.Editor.ProbeInterval)
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
