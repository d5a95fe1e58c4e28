// SPDX-License-Identifier: MIT

// Package config provides configuration for the ingestion engine. A
// YAML file sets the base; STREAMHAVEN_* environment variables overlay
// it; Validate fills defaults and clamps out-of-range values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the engine configuration.
type Config struct {
	DataDir  string `yaml:"dataDir,omitempty"`
	LogLevel string `yaml:"logLevel,omitempty"`

	Store   StoreConfig   `yaml:"store,omitempty"`
	Fetch   FetchConfig   `yaml:"fetch,omitempty"`
	EPG     EPGConfig     `yaml:"epg,omitempty"`
	Cache   CacheConfig   `yaml:"cache,omitempty"`
	Redis   RedisConfig   `yaml:"redis,omitempty"`
	Refresh RefreshConfig `yaml:"refresh,omitempty"`
}

// StoreConfig selects and tunes the catalog store backend.
type StoreConfig struct {
	Backend     string `yaml:"backend,omitempty"` // sqlite (default) or memory
	BusyTimeout string `yaml:"busyTimeout,omitempty"`
}

// FetchConfig tunes the HTTP fetch collaborator.
type FetchConfig struct {
	UserAgent  string `yaml:"userAgent,omitempty"`
	Timeout    string `yaml:"timeout,omitempty"`
	Retries    int    `yaml:"retries,omitempty"`
	Backoff    string `yaml:"backoff,omitempty"`
	MaxBackoff string `yaml:"maxBackoff,omitempty"`
}

// EPGConfig tunes guide handling. The pointer distinguishes "not set"
// from an explicit false.
type EPGConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`
}

// CacheConfig sizes the byte caches.
type CacheConfig struct {
	StreamBackend   string `yaml:"streamBackend,omitempty"` // sqlite or memory
	HTTPMemoryBytes int64  `yaml:"httpMemoryBytes,omitempty"`
	HTTPDiskBytes   int64  `yaml:"httpDiskBytes,omitempty"`
}

// RedisConfig, when Addr is set, moves the guide hot cache to Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// RefreshConfig bounds the refresh orchestration.
type RefreshConfig struct {
	MaxConcurrent int `yaml:"maxConcurrent,omitempty"`
}

const (
	defaultUserAgent     = "StreamHaven/1.0"
	defaultRetries       = 3
	maxRetries           = 10
	defaultMaxConcurrent = 4
	maxConcurrentCap     = 16
)

// Load reads path (when non-empty), applies the environment overlay and
// validates. An empty path yields pure defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString(&c.DataDir, "STREAMHAVEN_DATA_DIR")
	setString(&c.LogLevel, "STREAMHAVEN_LOG_LEVEL")
	setString(&c.Store.Backend, "STREAMHAVEN_STORE_BACKEND")
	setString(&c.Fetch.UserAgent, "STREAMHAVEN_USER_AGENT")
	setString(&c.Cache.StreamBackend, "STREAMHAVEN_STREAM_CACHE_BACKEND")
	setString(&c.Redis.Addr, "STREAMHAVEN_REDIS_ADDR")
	setString(&c.Redis.Password, "STREAMHAVEN_REDIS_PASSWORD")

	if v, ok := os.LookupEnv("STREAMHAVEN_FETCH_RETRIES"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Fetch.Retries = n
		}
	}
	if v, ok := os.LookupEnv("STREAMHAVEN_REFRESH_CONCURRENCY"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Refresh.MaxConcurrent = n
		}
	}
	if v, ok := os.LookupEnv("STREAMHAVEN_EPG_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.EPG.Enabled = &b
		}
	}
}

// Validate fills defaults and clamps values into their safe ranges.
func (c *Config) Validate() error {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}

	switch c.Store.Backend {
	case "":
		c.Store.Backend = "sqlite"
	case "sqlite", "memory":
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == "sqlite" && c.DataDir == "" {
		return fmt.Errorf("config: sqlite store requires dataDir")
	}

	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaultUserAgent
	}
	if c.Fetch.Retries <= 0 {
		c.Fetch.Retries = defaultRetries
	}
	if c.Fetch.Retries > maxRetries {
		c.Fetch.Retries = maxRetries
	}
	for _, d := range []struct {
		name  string
		value string
	}{
		{"fetch.timeout", c.Fetch.Timeout},
		{"fetch.backoff", c.Fetch.Backoff},
		{"fetch.maxBackoff", c.Fetch.MaxBackoff},
		{"store.busyTimeout", c.Store.BusyTimeout},
	} {
		if d.value == "" {
			continue
		}
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("config: %s: %w", d.name, err)
		}
	}

	switch c.Cache.StreamBackend {
	case "":
		c.Cache.StreamBackend = "sqlite"
	case "sqlite", "memory":
	default:
		return fmt.Errorf("config: unknown stream cache backend %q", c.Cache.StreamBackend)
	}
	if c.Cache.HTTPMemoryBytes <= 0 {
		c.Cache.HTTPMemoryBytes = 50 << 20
	}
	if c.Cache.HTTPDiskBytes <= 0 {
		c.Cache.HTTPDiskBytes = 200 << 20
	}

	if c.Refresh.MaxConcurrent <= 0 {
		c.Refresh.MaxConcurrent = defaultMaxConcurrent
	}
	if c.Refresh.MaxConcurrent > maxConcurrentCap {
		c.Refresh.MaxConcurrent = maxConcurrentCap
	}
	return nil
}

// FetchTimeout returns the parsed fetch timeout, defaulting to 30s.
func (c *Config) FetchTimeout() time.Duration {
	return durationOr(c.Fetch.Timeout, 30*time.Second)
}

// FetchBackoff returns the parsed initial backoff, defaulting to 500ms.
func (c *Config) FetchBackoff() time.Duration {
	return durationOr(c.Fetch.Backoff, 500*time.Millisecond)
}

// FetchMaxBackoff returns the parsed backoff cap, defaulting to 30s.
func (c *Config) FetchMaxBackoff() time.Duration {
	return durationOr(c.Fetch.MaxBackoff, 30*time.Second)
}

// StoreBusyTimeout returns the parsed sqlite busy timeout, defaulting to 5s.
func (c *Config) StoreBusyTimeout() time.Duration {
	return durationOr(c.Store.BusyTimeout, 5*time.Second)
}

// EPGEnabled reports whether guide refreshes run. Default on.
func (c *Config) EPGEnabled() bool {
	if c.EPG.Enabled == nil {
		return true
	}
	return *c.EPG.Enabled
}

func durationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
