// Package config loads SeqScout configuration from YAML with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete SeqScout configuration.
type Config struct {
	Search   SearchConfig   `yaml:"search"`
	Cache    CacheConfig    `yaml:"pagination_cache"`
	Backends BackendsConfig `yaml:"backends"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SearchConfig tunes the orchestrator.
type SearchConfig struct {
	// MaxResultsLimit is the validation upper bound for max_results.
	MaxResultsLimit int `yaml:"max_results_limit"`

	// BackendTimeout wraps each backend call independently.
	BackendTimeout time.Duration `yaml:"backend_timeout"`

	// Buffer sizing bounds for paginated searches.
	DefaultBufferSize int `yaml:"default_buffer_size"`
	MinBufferSize     int `yaml:"min_buffer_size"`
	MaxBufferSize     int `yaml:"max_buffer_size"`
}

// CacheConfig tunes the pagination-state cache.
type CacheConfig struct {
	MaxEntries         int           `yaml:"max_entries"`
	TTL                time.Duration `yaml:"ttl"`
	CleanupProbability float64       `yaml:"cleanup_probability"`
}

// BackendsConfig enables and locates the storage backends. An empty
// path (or root list) leaves that backend disabled.
type BackendsConfig struct {
	SQLite     SQLiteBackendConfig     `yaml:"sqlite"`
	Bleve      BleveBackendConfig      `yaml:"bleve"`
	Filesystem FilesystemBackendConfig `yaml:"filesystem"`

	// ResultCacheSize enables the LRU result cache decorator on every
	// backend when positive.
	ResultCacheSize int `yaml:"result_cache_size"`
}

// SQLiteBackendConfig locates the SQLite catalog.
type SQLiteBackendConfig struct {
	Path string `yaml:"path"`
}

// BleveBackendConfig locates the bleve metadata index.
type BleveBackendConfig struct {
	Path string `yaml:"path"`
}

// FilesystemBackendConfig lists local directory roots to search.
type FilesystemBackendConfig struct {
	Roots []string `yaml:"roots"`
	Watch bool     `yaml:"watch"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			MaxResultsLimit:   100,
			BackendTimeout:    30 * time.Second,
			DefaultBufferSize: 100,
			MinBufferSize:     50,
			MaxBufferSize:     1000,
		},
		Cache: CacheConfig{
			MaxEntries:         1000,
			TTL:                time.Hour,
			CleanupProbability: 0.1,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a config file, merges it over the defaults and applies
// environment overrides. A missing file is not an error; the defaults
// plus env apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies SEQSCOUT_* overrides. Env always wins over file
// values.
func (c *Config) applyEnv() {
	if v := os.Getenv("SEQSCOUT_MAX_RESULTS_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.MaxResultsLimit = n
		}
	}
	if v := os.Getenv("SEQSCOUT_BACKEND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Search.BackendTimeout = d
		}
	}
	if v := os.Getenv("SEQSCOUT_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Cache.TTL = d
		}
	}
	if v := os.Getenv("SEQSCOUT_SQLITE_PATH"); v != "" {
		c.Backends.SQLite.Path = v
	}
	if v := os.Getenv("SEQSCOUT_BLEVE_PATH"); v != "" {
		c.Backends.Bleve.Path = v
	}
	if v := os.Getenv("SEQSCOUT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) validate() error {
	if c.Search.MaxResultsLimit <= 0 {
		return fmt.Errorf("search.max_results_limit must be positive, got %d", c.Search.MaxResultsLimit)
	}
	if c.Search.MinBufferSize > c.Search.MaxBufferSize {
		return fmt.Errorf("search.min_buffer_size %d exceeds max_buffer_size %d",
			c.Search.MinBufferSize, c.Search.MaxBufferSize)
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("pagination_cache.max_entries must be positive, got %d", c.Cache.MaxEntries)
	}
	if c.Cache.CleanupProbability < 0 || c.Cache.CleanupProbability > 1 {
		return fmt.Errorf("pagination_cache.cleanup_probability must be in [0,1], got %g", c.Cache.CleanupProbability)
	}
	return nil
}
