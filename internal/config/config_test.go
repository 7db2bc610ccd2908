package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "http://www.ivoox.com", cfg.Scraper.BaseURL)
	require.Equal(t, 10*time.Second, cfg.FetchTimeout())
	require.Equal(t, 4, cfg.Worker.Concurrency)
	require.Equal(t, 64, cfg.Worker.QueueDepth)
	require.True(t, cfg.Logging.Development)

	ttl := cfg.TTLPolicy()
	require.Equal(t, 720*time.Hour, ttl.Search)
	require.Equal(t, 24*time.Hour, ttl.Listing)
	require.Equal(t, 10*time.Minute, ttl.Pending)
	require.Equal(t, time.Hour, ttl.JobRecord)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
scraper:
  timeout_seconds: 30
redis:
  address: "localhost:6379"
worker:
  concurrency: 8
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 30*time.Second, cfg.FetchTimeout())
	require.Equal(t, "localhost:6379", cfg.Redis.Address)
	require.Equal(t, 8, cfg.Worker.Concurrency)
	// Untouched sections keep their defaults.
	require.Equal(t, "http://www.ivoox.com", cfg.Scraper.BaseURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("IVOOX_SERVER_PORT", "7070")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := Config{
		Server:  ServerConfig{Port: 8080},
		Scraper: ScraperConfig{BaseURL: "http://www.ivoox.com", TimeoutSeconds: 10},
		Cache:   CacheConfig{PendingTTLSeconds: 600},
		Worker:  WorkerConfig{Concurrency: 1},
	}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"empty base url", func(c *Config) { c.Scraper.BaseURL = "" }},
		{"zero timeout", func(c *Config) { c.Scraper.TimeoutSeconds = 0 }},
		{"zero concurrency", func(c *Config) { c.Worker.Concurrency = 0 }},
		{"zero pending ttl", func(c *Config) { c.Cache.PendingTTLSeconds = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
