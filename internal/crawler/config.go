package crawler

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/JakeFAU/sitescraper/internal/breaker"
	"github.com/JakeFAU/sitescraper/internal/proxy"
)

// UnlimitedDepth marks a crawl without a depth bound.
const UnlimitedDepth = -1

const (
	defaultMaxDepth           = 3
	defaultSplitLength        = 2000
	defaultMaxRetries         = 5
	defaultBaseDelay          = time.Second
	defaultConcurrentRequests = 10
	defaultConnectionsPerHost = 5
	defaultDelay              = 500 * time.Millisecond
	defaultTimeout            = 30 * time.Second
	defaultMaxPageBytes       = 5 << 20
	dnsCheckTimeout           = 5 * time.Second
)

// DefaultExcludedProtocols lists the URL prefixes never followed.
var DefaultExcludedProtocols = []string{"mailto:", "tel:", "whatsapp:"}

// Config is the validated, read-only crawl configuration. Build it with
// ConfigFromMap; the zero value is not usable.
type Config struct {
	Domain   string
	SeedHost string
	// MaxDepth is UnlimitedDepth when the crawl has no depth bound.
	MaxDepth             int
	IncludeKeywords      []string
	ExcludeKeywords      []string
	StartWith            string
	SplitLength          int
	ExcludedProtocols    []string
	MaxRetries           int
	BaseDelay            time.Duration
	ConcurrentRequests   int
	ConnectionsPerHost   int
	DelayBetweenRequests time.Duration
	Timeout              time.Duration
	RequestsPerSecond    float64
	MaxPageBytes         int64
	TargetSelector       string
	Proxy                proxy.Router
	BreakerEnabled       bool
	Breaker              breaker.Settings
}

// rawConfig mirrors the accepted mapping keys. Pointers distinguish an
// absent key from an explicit zero.
type rawConfig struct {
	Domain                         string         `mapstructure:"domain"`
	MaxDepth                       *int           `mapstructure:"max_depth"`
	IncludeKeywords                []string       `mapstructure:"include_keywords"`
	ExcludeKeywords                []string       `mapstructure:"exclude_keywords"`
	StartWith                      string         `mapstructure:"start_with"`
	SplitLength                    *int           `mapstructure:"split_length"`
	ExcludedProtocols              []string       `mapstructure:"excluded_protocols"`
	MaxRetries                     *int           `mapstructure:"max_retries"`
	BaseDelay                      *float64       `mapstructure:"base_delay"`
	ConcurrentRequests             *int           `mapstructure:"concurrent_requests"`
	ConnectionsPerHost             *int           `mapstructure:"connections_per_host"`
	DelayBetweenRequests           *float64       `mapstructure:"delay_between_requests"`
	Timeout                        *float64       `mapstructure:"timeout"`
	RequestsPerSecond              *float64       `mapstructure:"requests_per_second"`
	MaxPageBytes                   *int64         `mapstructure:"max_page_bytes"`
	TargetSelector                 string         `mapstructure:"target_selector"`
	Proxy                          map[string]any `mapstructure:"proxy"`
	CircuitBreakerEnabled          *bool          `mapstructure:"circuit_breaker_enabled"`
	CircuitBreakerThreshold        *int           `mapstructure:"circuit_breaker_threshold"`
	CircuitBreakerRate             *float64       `mapstructure:"circuit_breaker_rate"`
	CircuitBreakerSuccessThreshold *int           `mapstructure:"circuit_breaker_success_threshold"`
	CircuitBreakerRecoveryTimeout  *float64       `mapstructure:"circuit_breaker_recovery_timeout"`
	CircuitBreakerMinRequests      *int           `mapstructure:"circuit_breaker_min_requests"`
}

// ConfigFromMap validates a loosely-typed configuration mapping.
//
// Checks run in order: domain present, http(s) scheme, host present, numeric
// bounds, proxy descriptor, and finally the private-address guard, which is
// skipped when a proxy is configured. resolver may be nil to use the system
// resolver. Errors are *ConfigurationError or *SecurityError.
func ConfigFromMap(ctx context.Context, raw map[string]any, resolver Resolver) (Config, error) {
	var rc rawConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &rc,
	})
	if err != nil {
		return Config{}, &ConfigurationError{Reason: "build decoder", Err: err}
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, &ConfigurationError{Reason: "decode", Err: err}
	}

	domain := strings.TrimSpace(rc.Domain)
	if domain == "" {
		return Config{}, configErr("domain", "is required")
	}
	seed, err := url.Parse(domain)
	if err != nil {
		return Config{}, &ConfigurationError{Field: "domain", Reason: "is not a valid URL", Err: err}
	}
	scheme := strings.ToLower(seed.Scheme)
	if scheme != "http" && scheme != "https" {
		return Config{}, configErr("domain", fmt.Sprintf("scheme must be http or https, got %q", seed.Scheme))
	}
	seedHost := strings.TrimSuffix(strings.ToLower(seed.Hostname()), ".")
	if seedHost == "" {
		return Config{}, configErr("domain", "must include a host")
	}

	cfg := Config{
		Domain:               domain,
		SeedHost:             seedHost,
		MaxDepth:             defaultMaxDepth,
		IncludeKeywords:      cleanList(rc.IncludeKeywords),
		ExcludeKeywords:      cleanList(rc.ExcludeKeywords),
		StartWith:            strings.TrimSpace(rc.StartWith),
		SplitLength:          defaultSplitLength,
		ExcludedProtocols:    append([]string(nil), DefaultExcludedProtocols...),
		MaxRetries:           defaultMaxRetries,
		BaseDelay:            defaultBaseDelay,
		ConcurrentRequests:   defaultConcurrentRequests,
		ConnectionsPerHost:   defaultConnectionsPerHost,
		DelayBetweenRequests: defaultDelay,
		Timeout:              defaultTimeout,
		MaxPageBytes:         defaultMaxPageBytes,
		TargetSelector:       strings.TrimSpace(rc.TargetSelector),
		BreakerEnabled:       true,
		Breaker:              breaker.DefaultSettings(),
	}
	if _, ok := raw["excluded_protocols"]; ok {
		cfg.ExcludedProtocols = cleanList(rc.ExcludedProtocols)
	}

	if err := applyNumbers(&cfg, rc, raw); err != nil {
		return Config{}, err
	}

	router, err := proxy.FromMap(rc.Proxy)
	if err != nil {
		return Config{}, &ConfigurationError{Field: "proxy", Reason: "invalid proxy settings", Err: err}
	}
	cfg.Proxy = router

	if proxy.IsDirect(router) {
		if resolver == nil {
			resolver = net.DefaultResolver
		}
		if err := guardHost(ctx, cfg.SeedHost, resolver); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

func applyNumbers(cfg *Config, rc rawConfig, raw map[string]any) error {
	if v, ok := raw["max_depth"]; ok && v == nil {
		cfg.MaxDepth = UnlimitedDepth
	} else if rc.MaxDepth != nil {
		if *rc.MaxDepth < 0 {
			return configErr("max_depth", "must be >= 0")
		}
		cfg.MaxDepth = *rc.MaxDepth
	}

	if v, ok := raw["split_length"]; ok && v == nil {
		cfg.SplitLength = 0
	} else if rc.SplitLength != nil {
		if *rc.SplitLength < 0 {
			return configErr("split_length", "must be >= 0")
		}
		cfg.SplitLength = *rc.SplitLength
	}

	if rc.MaxRetries != nil {
		if *rc.MaxRetries < 0 {
			return configErr("max_retries", "must be >= 0")
		}
		cfg.MaxRetries = *rc.MaxRetries
	}
	if rc.ConcurrentRequests != nil {
		if *rc.ConcurrentRequests < 1 {
			return configErr("concurrent_requests", "must be >= 1")
		}
		cfg.ConcurrentRequests = *rc.ConcurrentRequests
	}
	if rc.ConnectionsPerHost != nil {
		if *rc.ConnectionsPerHost < 1 {
			return configErr("connections_per_host", "must be >= 1")
		}
		cfg.ConnectionsPerHost = *rc.ConnectionsPerHost
	}

	durations := []struct {
		field string
		src   *float64
		dst   *time.Duration
	}{
		{"base_delay", rc.BaseDelay, &cfg.BaseDelay},
		{"delay_between_requests", rc.DelayBetweenRequests, &cfg.DelayBetweenRequests},
		{"timeout", rc.Timeout, &cfg.Timeout},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		if *d.src < 0 {
			return configErr(d.field, "must be >= 0")
		}
		*d.dst = seconds(*d.src)
	}

	if rc.RequestsPerSecond != nil {
		if *rc.RequestsPerSecond < 0 {
			return configErr("requests_per_second", "must be >= 0")
		}
		cfg.RequestsPerSecond = *rc.RequestsPerSecond
	}
	if rc.MaxPageBytes != nil {
		if *rc.MaxPageBytes < 0 {
			return configErr("max_page_bytes", "must be >= 0")
		}
		cfg.MaxPageBytes = *rc.MaxPageBytes
	}

	if rc.CircuitBreakerEnabled != nil {
		cfg.BreakerEnabled = *rc.CircuitBreakerEnabled
	}
	ints := []struct {
		field string
		src   *int
		dst   *int
	}{
		{"circuit_breaker_threshold", rc.CircuitBreakerThreshold, &cfg.Breaker.FailureThreshold},
		{"circuit_breaker_success_threshold", rc.CircuitBreakerSuccessThreshold, &cfg.Breaker.SuccessThreshold},
		{"circuit_breaker_min_requests", rc.CircuitBreakerMinRequests, &cfg.Breaker.MinRequests},
	}
	for _, n := range ints {
		if n.src == nil {
			continue
		}
		if *n.src < 1 {
			return configErr(n.field, "must be >= 1")
		}
		*n.dst = *n.src
	}
	if rc.CircuitBreakerRate != nil {
		if *rc.CircuitBreakerRate < 0 || *rc.CircuitBreakerRate > 1 {
			return configErr("circuit_breaker_rate", "must be between 0 and 1")
		}
		cfg.Breaker.FailureRateThreshold = *rc.CircuitBreakerRate
	}
	if rc.CircuitBreakerRecoveryTimeout != nil {
		if *rc.CircuitBreakerRecoveryTimeout < 0 {
			return configErr("circuit_breaker_recovery_timeout", "must be >= 0")
		}
		cfg.Breaker.RecoveryTimeout = seconds(*rc.CircuitBreakerRecoveryTimeout)
	}
	return nil
}

// Unbounded reports whether the crawl has no depth limit.
func (c Config) Unbounded() bool {
	return c.MaxDepth == UnlimitedDepth
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
