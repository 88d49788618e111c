// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	HTTP          HTTPConfig         `mapstructure:"http"`
	Scheduler     SchedulerConfig    `mapstructure:"scheduler"`
	Editor        EditorConfig       `mapstructure:"editor"`
	Cache         CacheConfig        `mapstructure:"cache"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Assets        AssetsConfig       `mapstructure:"assets"`
	Templates     TemplatesConfig    `mapstructure:"templates"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// SchedulerConfig bounds the job queue.
type SchedulerConfig struct {
	MaxJobsInProgress int `mapstructure:"max_jobs_in_progress"`
	JobTimeout        int `mapstructure:"job_timeout"`   // milliseconds
	SnapshotTick      int `mapstructure:"snapshot_tick"` // milliseconds
	CacheOpTimeout    int `mapstructure:"cache_op_timeout"`
}

// EditorConfig describes how headless editor instances are reached and supervised.
type EditorConfig struct {
	URL            string   `mapstructure:"url"`
	ConnectTimeout int      `mapstructure:"connect_timeout"` // milliseconds
	IdleTimeout    int      `mapstructure:"idle_timeout"`    // milliseconds
	ProbeInterval  int      `mapstructure:"probe_interval"`  // milliseconds
	ExportFormats  []string `mapstructure:"export_formats"`
}

type CacheConfig struct {
	Backend           string `mapstructure:"backend"` // "memory" or "redis"
	MaxDesignsInCache int    `mapstructure:"max_designs_in_cache"`
	KeyPrefix         string `mapstructure:"key_prefix"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AssetsConfig struct {
	Timeout     int `mapstructure:"timeout"` // milliseconds
	MaxCached   int `mapstructure:"max_cached"`
	Concurrency int `mapstructure:"concurrency"`
}

type TemplatesConfig struct {
	Timeout  int `mapstructure:"timeout"`   // milliseconds
	CacheTTL int `mapstructure:"cache_ttl"` // milliseconds
}

// NotificationConfig holds settings for terminal-outcome notifications.
type NotificationConfig struct {
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		Region   string `mapstructure:"region"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
