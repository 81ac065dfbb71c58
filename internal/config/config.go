// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/sitescraper/internal/logging"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig   `mapstructure:"server"`
	Auth    AuthConfig     `mapstructure:"auth"`
	Logging logging.Config `mapstructure:"logging"`
	Metrics MetricsConfig  `mapstructure:"metrics"`
	Output  OutputConfig   `mapstructure:"output"`
	// Crawl is the raw crawl mapping; crawler.ConfigFromMap validates it.
	Crawl map[string]any `mapstructure:"crawl"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	ReadTimeoutSeconds     int `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds    int `mapstructure:"write_timeout_seconds"`
	RunTimeoutSeconds      int `mapstructure:"run_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
	MaxBodyBytes           int `mapstructure:"max_body_bytes"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// OutputConfig chooses where run directories are created.
type OutputConfig struct {
	// WorkDir is the base directory; empty means the process working directory.
	WorkDir string `mapstructure:"work_dir"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	// AutomaticEnv only sees keys viper already knows about.
	for _, key := range []string{"crawl.domain", "crawl.max_depth", "crawl.requests_per_second", "auth.api_key"} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Crawl == nil {
		cfg.Crawl = map[string]any{}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 0)
	v.SetDefault("server.run_timeout_seconds", 1800)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("output.work_dir", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.ReadTimeoutSeconds < 0 || c.Server.WriteTimeoutSeconds < 0 {
		return fmt.Errorf("server timeouts must be >= 0")
	}
	if c.Server.RunTimeoutSeconds < 0 {
		return fmt.Errorf("server.run_timeout_seconds must be >= 0")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}
	return nil
}

// RunTimeout bounds one crawl started through the API. Zero means no bound.
func (c Config) RunTimeout() time.Duration {
	return time.Duration(c.Server.RunTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful server shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// CrawlMap returns a copy of the crawl mapping with overrides applied on top.
func (c Config) CrawlMap(overrides map[string]any) map[string]any {
	out := make(map[string]any, len(c.Crawl)+len(overrides))
	for k, v := range c.Crawl {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
