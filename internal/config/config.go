package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when no path is given.
const DefaultPath = "configs/config.yaml"

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Backup   BackupConfig   `yaml:"backup"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
		PubSubEnabled   bool   `yaml:"pubsub_enabled"`
		PubSubChannel   string `yaml:"pubsub_channel"`
	} `yaml:"redis"`

	HTTP struct {
		Port           int     `yaml:"port"`
		RateLimitRPS   float64 `yaml:"rate_limit_rps"`
		RateLimitBurst int     `yaml:"rate_limit_burst"`
	} `yaml:"http"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Scheduling struct {
		Timezone             string `yaml:"timezone"`
		RecurrenceHardCap    int    `yaml:"recurrence_hard_cap"`
		InviteTTLHours       int    `yaml:"invite_ttl_hours"`
		SweepIntervalSeconds int    `yaml:"sweep_interval_seconds"`
		SweepBatchSize       int    `yaml:"sweep_batch_size"`
		CalendarFirstHour    int    `yaml:"calendar_first_hour"`
		CalendarLastHour     int    `yaml:"calendar_last_hour"`
	} `yaml:"scheduling"`

	Telegram struct {
		Enabled  bool   `yaml:"enabled"`
		BotToken string `yaml:"bot_token"`
		Debug    bool   `yaml:"debug"`
	} `yaml:"telegram"`

	Logging struct {
		Level   string `yaml:"level"`
		Console bool   `yaml:"console"`
	} `yaml:"logging"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	StoragePath   string `yaml:"storage_path"`
	RetentionDays int    `yaml:"retention_days"`
}

// Load reads the YAML config at path. A .env file next to the working
// directory is loaded first so ${ENV_VAR} placeholders can refer to it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/courtside.db"
	}
	if cfg.Backup.StoragePath == "" {
		cfg.Backup.StoragePath = filepath.Join(filepath.Dir(cfg.Database.Path), "backups")
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	if cfg.Monitoring.PrometheusPort == 0 {
		cfg.Monitoring.PrometheusPort = 9090
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Location is the zone "now" is read in when comparing against naive dates.
func (c *Config) Location() (*time.Location, error) {
	if c.Scheduling.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Scheduling.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduling.timezone: %w", err)
	}
	return loc, nil
}

func (c *Config) RecurrenceHardCap() int {
	if c.Scheduling.RecurrenceHardCap <= 0 {
		return 366
	}
	return c.Scheduling.RecurrenceHardCap
}

func (c *Config) InviteTTL() time.Duration {
	if c.Scheduling.InviteTTLHours <= 0 {
		return 48 * time.Hour
	}
	return time.Duration(c.Scheduling.InviteTTLHours) * time.Hour
}

func (c *Config) SweepInterval() time.Duration {
	if c.Scheduling.SweepIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.Scheduling.SweepIntervalSeconds) * time.Second
}

func (c *Config) SweepBatchSize() int {
	if c.Scheduling.SweepBatchSize <= 0 {
		return 100
	}
	return c.Scheduling.SweepBatchSize
}

// CalendarHours returns the first and last rendered hour.
func (c *Config) CalendarHours() (first, last int) {
	first, last = c.Scheduling.CalendarFirstHour, c.Scheduling.CalendarLastHour
	if first < 0 || first > 23 {
		first = 0
	}
	if last <= 0 || last > 23 || last < first {
		last = 23
	}
	return first, last
}

func (c *Config) ProfileCacheTTL() time.Duration {
	if c.Redis.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

// RateLimit returns requests per second and burst per user. Zero rps disables
// limiting.
func (c *Config) RateLimit() (rps float64, burst int) {
	rps, burst = c.HTTP.RateLimitRPS, c.HTTP.RateLimitBurst
	if rps > 0 && burst <= 0 {
		burst = int(rps*2) + 1
	}
	return rps, burst
}
