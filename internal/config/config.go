// Package config loads the suggester's YAML configuration and applies
// SUGGEST_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Popularity backends.
const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
	BackendRedis  = "redis"
)

// Config is the top-level configuration.
type Config struct {
	Index      IndexConfig      `yaml:"index"`
	Suggest    SuggestConfig    `yaml:"suggest"`
	Popularity PopularityConfig `yaml:"popularity"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// IndexConfig locates the index and sets its flush policy.
type IndexConfig struct {
	Dir            string `yaml:"dir"`
	FlushThreshold int    `yaml:"flushThreshold"`
}

// SuggestConfig controls suggestion ranking.
type SuggestConfig struct {
	Field                string `yaml:"field"`
	ResultSize           int    `yaml:"resultSize"`
	PopularityMultiplier uint64 `yaml:"popularityMultiplier"`
	Workers              int    `yaml:"workers"`
	Source               string `yaml:"source"`
}

// PopularityConfig selects where search counts live.
type PopularityConfig struct {
	Backend string      `yaml:"backend"`
	Path    string      `yaml:"path"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds the redis connection and hash key for counts.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
	Key      string `yaml:"key"`
}

// LoggingConfig controls log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Values missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used for local development.
func Default() *Config {
	return &Config{
		Index: IndexConfig{
			Dir:            ".history",
			FlushThreshold: 1000,
		},
		Suggest: SuggestConfig{
			Field:                "body",
			ResultSize:           10,
			PopularityMultiplier: 1000,
			Source:               "default",
		},
		Popularity: PopularityConfig{
			Backend: BackendBolt,
			Path:    ".history/popularity.db",
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
				Key:      "suggest:popularity",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
	}
}

// Validate rejects settings the suggester cannot run with.
func (c *Config) Validate() error {
	if c.Index.Dir == "" {
		return fmt.Errorf("index.dir is required")
	}
	if c.Index.FlushThreshold <= 0 {
		return fmt.Errorf("index.flushThreshold must be positive, got %d", c.Index.FlushThreshold)
	}
	if c.Suggest.Field == "" {
		return fmt.Errorf("suggest.field is required")
	}
	if c.Suggest.ResultSize < 0 {
		return fmt.Errorf("suggest.resultSize must not be negative, got %d", c.Suggest.ResultSize)
	}
	if c.Suggest.Workers < 0 {
		return fmt.Errorf("suggest.workers must not be negative, got %d", c.Suggest.Workers)
	}

	switch c.Popularity.Backend {
	case BackendMemory:
	case BackendBolt:
		if c.Popularity.Path == "" {
			return fmt.Errorf("popularity.path is required for the bolt backend")
		}
	case BackendRedis:
		if c.Popularity.Redis.Addr == "" || c.Popularity.Redis.Key == "" {
			return fmt.Errorf("popularity.redis.addr and key are required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown popularity backend %q", c.Popularity.Backend)
	}
	return nil
}

// applyEnvOverrides reads SUGGEST_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("SUGGEST_INDEX_DIR"); v != "" {
		cfg.Index.Dir = v
	}
	if v := os.Getenv("SUGGEST_FIELD"); v != "" {
		cfg.Suggest.Field = v
	}
	if v := os.Getenv("SUGGEST_RESULT_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SUGGEST_RESULT_SIZE: %w", err)
		}
		cfg.Suggest.ResultSize = n
	}
	if v := os.Getenv("SUGGEST_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SUGGEST_WORKERS: %w", err)
		}
		cfg.Suggest.Workers = n
	}
	if v := os.Getenv("SUGGEST_POPULARITY_BACKEND"); v != "" {
		cfg.Popularity.Backend = v
	}
	if v := os.Getenv("SUGGEST_REDIS_ADDR"); v != "" {
		cfg.Popularity.Redis.Addr = v
	}
	if v := os.Getenv("SUGGEST_REDIS_PASSWORD"); v != "" {
		cfg.Popularity.Redis.Password = v
	}
	if v := os.Getenv("SUGGEST_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SUGGEST_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SUGGEST_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
		cfg.Metrics.Enabled = true
	}
	return nil
}
