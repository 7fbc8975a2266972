// Package config loads the application configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hsliang/redboard/internal/infrastructure/db"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// RedisConfig holds the sector cache settings.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
	Enabled  bool          `yaml:"enabled"`
}

// SourceConfig holds upstream aggregator client settings.
type SourceConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
	EndpointsFile string        `yaml:"endpoints_file"`
}

// ScheduleConfig holds the daily review trigger.
type ScheduleConfig struct {
	Enabled         bool   `yaml:"enabled"`
	DailyReviewTime string `yaml:"daily_review_time"` // HH:MM local
}

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database db.Config      `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Source   SourceConfig   `yaml:"source"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: db.DefaultConfig(),
		Redis: RedisConfig{
			Addr:    "127.0.0.1:6379",
			TTL:     5 * time.Minute,
			Enabled: false,
		},
		Source: SourceConfig{
			Timeout:       30 * time.Second,
			RatePerSecond: 4,
			Burst:         2,
		},
		Schedule: ScheduleConfig{
			Enabled:         false,
			DailyReviewTime: "15:30",
		},
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return cfg, nil
}
