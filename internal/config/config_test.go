// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STREAMHAVEN_DATA_DIR", "/var/lib/streamhaven")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, defaultUserAgent, cfg.Fetch.UserAgent)
	assert.Equal(t, 3, cfg.Fetch.Retries)
	assert.Equal(t, 4, cfg.Refresh.MaxConcurrent)
	assert.Equal(t, int64(50<<20), cfg.Cache.HTTPMemoryBytes)
	assert.True(t, cfg.EPGEnabled())
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout())
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
dataDir: /data
logLevel: debug
store:
  backend: sqlite
  busyTimeout: 2s
fetch:
  userAgent: custom/2.0
  retries: 5
  timeout: 10s
epg:
  enabled: false
refresh:
  maxConcurrent: 8
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "custom/2.0", cfg.Fetch.UserAgent)
	assert.Equal(t, 5, cfg.Fetch.Retries)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout())
	assert.Equal(t, 2*time.Second, cfg.StoreBusyTimeout())
	assert.Equal(t, 8, cfg.Refresh.MaxConcurrent)
	assert.False(t, cfg.EPGEnabled())
}

func TestEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dataDir: /data\nlogLevel: info\n"), 0o600))

	t.Setenv("STREAMHAVEN_LOG_LEVEL", "warn")
	t.Setenv("STREAMHAVEN_FETCH_RETRIES", "7")
	t.Setenv("STREAMHAVEN_EPG_ENABLED", "false")
	t.Setenv("STREAMHAVEN_REDIS_ADDR", "localhost:6379")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 7, cfg.Fetch.Retries)
	assert.False(t, cfg.EPGEnabled())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestValidateClamps(t *testing.T) {
	cfg := &Config{
		DataDir: "/data",
		Fetch:   FetchConfig{Retries: 50},
		Refresh: RefreshConfig{MaxConcurrent: 99},
	}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, maxRetries, cfg.Fetch.Retries)
	assert.Equal(t, maxConcurrentCap, cfg.Refresh.MaxConcurrent)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]*Config{
		"bad log level":         {DataDir: "/d", LogLevel: "verbose"},
		"bad store backend":     {DataDir: "/d", Store: StoreConfig{Backend: "bolt"}},
		"sqlite needs data dir": {},
		"bad duration":          {DataDir: "/d", Fetch: FetchConfig{Timeout: "soon"}},
		"bad stream backend":    {DataDir: "/d", Cache: CacheConfig{StreamBackend: "badger"}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
