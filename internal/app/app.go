// Package app holds the long-lived services shared by the CLI and the HTTP
// front-end and turns a crawl mapping into a finished run.
package app

import (
	"context"
	"net"
	"net/url"
	"os"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitescraper/internal/clock/system"
	"github.com/JakeFAU/sitescraper/internal/crawler"
	httpfetcher "github.com/JakeFAU/sitescraper/internal/fetcher/http"
	"github.com/JakeFAU/sitescraper/internal/logging"
	goqueryparser "github.com/JakeFAU/sitescraper/internal/parser/goquery"
	"github.com/JakeFAU/sitescraper/internal/proxy"
	"github.com/JakeFAU/sitescraper/internal/ratelimit"
)

// TransportFactory builds the HTTP transport for one validated run.
type TransportFactory func(cfg crawler.Config) crawler.Transport

// App wires validated configuration to the crawl engine.
type App struct {
	logger     *zap.Logger
	workDir    string
	parser     crawler.Parser
	resolver   crawler.Resolver
	transports TransportFactory
	runs       *keyedLock
}

// Option customizes an App.
type Option func(*App)

// WithWorkDir sets the directory run output directories are created under.
func WithWorkDir(dir string) Option {
	return func(a *App) { a.workDir = dir }
}

// WithResolver replaces the resolver used by the private-address guard.
func WithResolver(r crawler.Resolver) Option {
	return func(a *App) {
		if r != nil {
			a.resolver = r
		}
	}
}

// WithTransportFactory replaces the net/http transport.
func WithTransportFactory(f TransportFactory) Option {
	return func(a *App) {
		if f != nil {
			a.transports = f
		}
	}
}

// New creates an App.
func New(logger *zap.Logger, opts ...Option) *App {
	a := &App{
		logger:     logging.OrNop(logger),
		parser:     goqueryparser.New(),
		resolver:   net.DefaultResolver,
		transports: defaultTransport,
		runs:       newKeyedLock(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Scrape validates raw and runs one crawl. Validation failures come back as
// *crawler.ConfigurationError or *crawler.SecurityError before any request
// is sent or any file is created. Runs that write to the same output
// directory are serialized; a waiting run gives up when ctx ends.
func (a *App) Scrape(ctx context.Context, raw map[string]any) (crawler.Summary, error) {
	cfg, err := crawler.ConfigFromMap(ctx, raw, a.resolver)
	if err != nil {
		a.logger.Warn("crawl config rejected", zap.Error(err))
		return crawler.Summary{}, err
	}

	key := a.outputKey(cfg)
	unlock, err := a.runs.acquire(ctx, key)
	if err != nil {
		a.logger.Warn("gave up waiting for active run on same output", zap.String("output", key), zap.Error(err))
		return crawler.Summary{}, err
	}
	defer unlock()

	transport := a.transports(cfg)
	if closer, ok := transport.(interface{ CloseIdleConnections() }); ok {
		defer closer.CloseIdleConnections()
	}
	limiter := ratelimit.New(ratelimit.Config{RPS: cfg.RequestsPerSecond, Burst: 1})

	engine := crawler.NewEngine(cfg, transport, a.parser,
		crawler.WithLogger(a.logger),
		crawler.WithWorkDir(a.workDir),
		crawler.WithEngineRateLimiter(limiter),
		crawler.WithClock(system.New().Now),
	)
	return engine.Run(ctx)
}

// outputKey names the directory a run for cfg writes to. When the directory
// cannot be derived the engine rejects the run itself, so the seed host is a
// good enough key.
func (a *App) outputKey(cfg crawler.Config) string {
	seed, err := url.Parse(cfg.Domain)
	if err != nil {
		return cfg.Domain
	}
	workDir := a.workDir
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			return seed.Host
		}
	}
	dir, err := crawler.OutputDir(workDir, seed.Host)
	if err != nil {
		return seed.Host
	}
	return dir
}

// Close flushes the logger.
func (a *App) Close() {
	_ = a.logger.Sync()
}

func defaultTransport(cfg crawler.Config) crawler.Transport {
	return httpfetcher.New(httpfetcher.Config{
		MaxConnsPerHost: cfg.ConnectionsPerHost,
		// Proxied runs skip the private-address guard for the seed too.
		GuardRedirects: proxy.IsDirect(cfg.Proxy),
	})
}
