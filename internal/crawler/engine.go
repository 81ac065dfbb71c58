package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitescraper/internal/breaker"
	"github.com/JakeFAU/sitescraper/internal/hash/sha256"
	"github.com/JakeFAU/sitescraper/internal/id/uuid"
	"github.com/JakeFAU/sitescraper/internal/metrics"
)

// Engine runs one crawl: discovery followed by content extraction.
// Every piece of mutable state is created inside Run, so one Engine value may
// be run repeatedly and separate Engines never share state.
type Engine struct {
	cfg       Config
	transport Transport
	parser    Parser
	hasher    Hasher
	limiter   RateLimiter
	logger    *zap.Logger
	workDir   string
	runID     string
	clock     func() time.Time
	pauser    pauser
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithLogger sets the base logger; run-scoped fields are added to it.
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithWorkDir sets the directory the output directory is created under.
// It defaults to the process working directory.
func WithWorkDir(dir string) EngineOption {
	return func(e *Engine) { e.workDir = dir }
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) EngineOption {
	return func(e *Engine) { e.runID = id }
}

// WithHasher replaces the SHA-256 content hasher.
func WithHasher(h Hasher) EngineOption {
	return func(e *Engine) {
		if h != nil {
			e.hasher = h
		}
	}
}

// WithEngineRateLimiter sets the per-host limiter used by the fetch pipeline.
func WithEngineRateLimiter(l RateLimiter) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.limiter = l
		}
	}
}

// WithClock overrides the time source of the circuit breaker.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.clock = now
		}
	}
}

// NewEngine wires a validated Config to its collaborators.
func NewEngine(cfg Config, transport Transport, parser Parser, opts ...EngineOption) *Engine {
	e := &Engine{
		cfg:       cfg,
		transport: transport,
		parser:    parser,
		hasher:    sha256.New(),
		logger:    zap.NewNop(),
		clock:     time.Now,
		pauser:    timerPauser{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run crawls the site and writes the CSV. It returns a *SecurityError before
// touching the filesystem when the output path is unsafe. Otherwise it
// returns the summary, including after the circuit breaker cut the run short.
// A canceled ctx stops the run and is returned alongside the partial summary.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	runID := e.runID
	if runID == "" {
		runID = uuid.NewRunID()
	}
	logger := e.logger.With(zap.String("run_id", runID), zap.String("seed", e.cfg.Domain))
	summary := Summary{RunID: runID}

	seed, err := url.Parse(e.cfg.Domain)
	if err != nil {
		return summary, &ConfigurationError{Field: "domain", Reason: "is not a valid URL", Err: err}
	}
	workDir := e.workDir
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			return summary, fmt.Errorf("get working directory: %w", err)
		}
	}
	dir, err := OutputDir(workDir, seed.Host)
	if err != nil {
		metrics.ObserveRun("rejected")
		return summary, err
	}

	var cb CircuitBreaker = noopBreaker{}
	var stats func() breaker.Stats
	if e.cfg.BreakerEnabled {
		b := breaker.New(e.cfg.Breaker,
			breaker.WithClock(e.clock),
			breaker.WithLogger(logger.Named("breaker")),
			breaker.WithStateHook(func(_, to breaker.State) { metrics.SetCircuitState(string(to)) }),
		)
		metrics.SetCircuitState(string(breaker.Closed))
		cb, stats = b, b.Stats
	}

	fetcher := NewFetcher(e.cfg, e.transport,
		WithBreaker(cb),
		WithRateLimiter(e.limiter),
		WithFetchLogger(logger.Named("fetch")),
	)
	fetcher.pauser = e.pauser

	sink, err := NewCSVSink(dir)
	if err != nil {
		metrics.ObserveRun("failed")
		return summary, err
	}
	summary.OutputPath = sink.Path()

	start := time.Now()
	logger.Info("crawl started",
		zap.Int("max_depth", e.cfg.MaxDepth),
		zap.Int("concurrent_requests", e.cfg.ConcurrentRequests),
		zap.String("proxy", routerName(e.cfg)),
		zap.String("output", sink.Path()),
	)

	front := &frontier{
		cfg:     e.cfg,
		fetcher: fetcher,
		parser:  e.parser,
		filter:  newURLFilter(e.cfg),
		visited: newVisitedSet(),
		breaker: cb,
		pauser:  e.pauser,
		logger:  logger.Named("frontier"),
	}
	found, runErr := front.run(ctx)
	summary.Discovered = len(found.URLs)
	summary.PagesFailed = found.Failed
	summary.CircuitOpened = found.CircuitOpened
	if len(found.URLs) == 0 {
		logger.Warn("no URLs discovered")
	}

	if runErr == nil {
		content := &contentPipeline{
			fetcher:     fetcher,
			parser:      e.parser,
			hashes:      newContentHashSet(e.hasher),
			out:         sink,
			breaker:     cb,
			pauser:      e.pauser,
			splitLength: e.cfg.SplitLength,
			selector:    e.cfg.TargetSelector,
			delay:       e.cfg.DelayBetweenRequests,
			logger:      logger.Named("content"),
		}
		var cs contentStats
		cs, runErr = content.run(ctx, found.URLs)
		summary.PagesFetched = cs.Fetched
		summary.PagesFailed += cs.Failed
		summary.DuplicateRows = cs.Duplicates
		summary.CircuitOpened = summary.CircuitOpened || cs.CircuitOpened
	}

	closeErr := sink.Close()
	summary.RowsWritten = sink.Rows()
	if runErr == nil {
		runErr = closeErr
	}

	fields := []zap.Field{
		zap.Int("discovered", summary.Discovered),
		zap.Int("pages_fetched", summary.PagesFetched),
		zap.Int("pages_failed", summary.PagesFailed),
		zap.Int("rows_written", summary.RowsWritten),
		zap.Int("duplicate_chunks", summary.DuplicateRows),
		zap.Bool("circuit_opened", summary.CircuitOpened),
		zap.Duration("elapsed", time.Since(start)),
	}
	if stats != nil {
		fields = append(fields, zap.Any("breaker", stats()))
	}
	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		metrics.ObserveRun("canceled")
		logger.Warn("crawl canceled", append(fields, zap.Error(runErr))...)
	case runErr != nil:
		metrics.ObserveRun("failed")
		logger.Error("crawl failed", append(fields, zap.Error(runErr))...)
	case summary.CircuitOpened:
		metrics.ObserveRun("partial")
		logger.Warn("crawl finished early, circuit breaker opened", fields...)
	default:
		metrics.ObserveRun("ok")
		logger.Info("crawl finished", fields...)
	}
	return summary, runErr
}

func routerName(cfg Config) string {
	if cfg.Proxy == nil {
		return "direct"
	}
	return cfg.Proxy.Name()
}
