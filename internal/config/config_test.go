package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadWithFileOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  run_timeout_seconds: 60
auth:
  enabled: true
  api_key: secret
logging:
  development: true
  level: debug
metrics:
  path: /prom
output:
  work_dir: /tmp/scrapes
crawl:
  domain: https://shop.example
  max_depth: 2
  include_keywords: [shoes]
  proxy:
    type: list
    proxies: ["p1.example:8080"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.RunTimeout())
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "secret", cfg.Auth.APIKey)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/prom", cfg.Metrics.Path)
	assert.Equal(t, "/tmp/scrapes", cfg.Output.WorkDir)
	assert.Equal(t, "https://shop.example", cfg.Crawl["domain"])
	assert.EqualValues(t, 2, cfg.Crawl["max_depth"])
	assert.Contains(t, cfg.Crawl, "proxy")
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.RunTimeout())
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout())
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NotNil(t, cfg.Crawl)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SCRAPER_SERVER_PORT", "7070")
	t.Setenv("SCRAPER_CRAWL_DOMAIN", "https://env.example")
	t.Setenv("SCRAPER_AUTH_ENABLED", "true")
	t.Setenv("SCRAPER_AUTH_API_KEY", "from-env")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "https://env.example", cfg.Crawl["domain"])
	assert.Equal(t, "from-env", cfg.Auth.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		return Config{
			Server:  ServerConfig{Port: 8080, MaxBodyBytes: 1024},
			Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
		}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "port", mutate: func(c *Config) { c.Server.Port = 0 }, errMsg: "server.port"},
		{name: "timeouts", mutate: func(c *Config) { c.Server.ReadTimeoutSeconds = -1 }, errMsg: "timeouts"},
		{name: "run timeout", mutate: func(c *Config) { c.Server.RunTimeoutSeconds = -1 }, errMsg: "run_timeout"},
		{name: "body limit", mutate: func(c *Config) { c.Server.MaxBodyBytes = 0 }, errMsg: "max_body_bytes"},
		{name: "auth key", mutate: func(c *Config) { c.Auth.Enabled = true }, errMsg: "auth.api_key"},
		{name: "metrics path", mutate: func(c *Config) { c.Metrics.Path = "metrics" }, errMsg: "metrics.path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestCrawlMapAppliesOverrides(t *testing.T) {
	t.Parallel()

	cfg := Config{Crawl: map[string]any{"domain": "https://a.example", "max_depth": 3}}
	got := cfg.CrawlMap(map[string]any{"max_depth": 1})
	assert.Equal(t, map[string]any{"domain": "https://a.example", "max_depth": 1}, got)
	assert.Equal(t, 3, cfg.Crawl["max_depth"])
}
