package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iopps/iopps-sync/pkg/logger"
	"github.com/iopps/iopps-sync/pkg/models"
)

// Config holds all iopps-sync configuration.
type Config struct {
	Store    StoreConfig          `yaml:"store"`
	Sweep    SweepConfig          `yaml:"sweep"`
	Read     ReadConfig           `yaml:"read"`
	Mutation MutationConfig       `yaml:"mutation"`
	Journal  models.JournalConfig `yaml:"journal"`
	Remote   RemoteConfig         `yaml:"remote"`
	User     UserConfig           `yaml:"user"`
	Log      logger.Config        `yaml:"log"`
}

// StoreConfig selects the cache backend.
// Backend is "sqlite" (default), "memory" or "redis".
type StoreConfig struct {
	Backend string      `yaml:"backend"`
	DBPath  string      `yaml:"db_path"`
	Prefix  string      `yaml:"prefix"`
	Redis   RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SweepConfig controls periodic eviction of expired entries.
type SweepConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// ReadConfig controls the read coordinator.
type ReadConfig struct {
	Coalesce       bool          `yaml:"coalesce"`
	RefreshTimeout time.Duration `yaml:"refresh_timeout"`
}

// MutationConfig controls optimistic writes. A commit slower than Timeout
// is rolled back.
type MutationConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// RemoteConfig points at the document service. BaseURLs are tried in order.
type RemoteConfig struct {
	BaseURLs []string      `yaml:"base_urls"`
	Token    string        `yaml:"token"`
	Timeout  time.Duration `yaml:"timeout"`
}

// UserConfig identifies the signed-in member for per-user screens.
type UserConfig struct {
	ID string `yaml:"id"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: "sqlite",
			DBPath:  "iopps-cache.db",
			Prefix:  "@iopps:",
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Sweep: SweepConfig{
			Enabled:  true,
			Interval: 10 * time.Minute,
		},
		Read: ReadConfig{
			RefreshTimeout: 30 * time.Second,
		},
		Mutation: MutationConfig{
			Timeout: 15 * time.Second,
		},
		Journal: models.JournalConfig{
			Enabled:       true,
			DBPath:        "iopps-journal.db",
			RetentionDays: 30,
			MaxErrorSize:  1024,
		},
		Remote: RemoteConfig{
			Timeout: 15 * time.Second,
		},
		Log: logger.Config{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite":
		if c.Store.DBPath == "" {
			return fmt.Errorf("invalid config: store.db_path is required for sqlite")
		}
	case "memory":
	case "redis":
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("invalid config: store.redis.addr is required for redis")
		}
	default:
		return fmt.Errorf("invalid config: unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Prefix == "" {
		return fmt.Errorf("invalid config: store.prefix must not be empty")
	}
	if c.Sweep.Interval <= 0 {
		return fmt.Errorf("invalid config: sweep.interval must be positive")
	}
	return nil
}
