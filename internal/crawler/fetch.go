package crawler

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitescraper/internal/charset"
	"github.com/JakeFAU/sitescraper/internal/metrics"
	"github.com/JakeFAU/sitescraper/internal/proxy"
)

// DefaultUserAgents is the browser User-Agent pool drawn from on every attempt.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_2) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
}

// Fetcher is the retrying fetch pipeline shared by both crawl phases.
type Fetcher struct {
	transport  Transport
	router     proxy.Router
	breaker    CircuitBreaker
	limiter    RateLimiter
	pauser     pauser
	backoff    backoffPolicy
	logger     *zap.Logger
	userAgents []string
	now        func() time.Time

	maxRetries int
	baseDelay  time.Duration
	timeout    time.Duration
	maxBytes   int64
}

// FetcherOption customizes a Fetcher.
type FetcherOption func(*Fetcher)

// WithBreaker sets the circuit breaker consulted before every attempt.
func WithBreaker(b CircuitBreaker) FetcherOption {
	return func(f *Fetcher) {
		if b != nil {
			f.breaker = b
		}
	}
}

// WithRateLimiter sets the per-host pacing applied before every attempt.
func WithRateLimiter(l RateLimiter) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.limiter = l
		}
	}
}

// WithFetchLogger sets the fetcher logger.
func WithFetchLogger(logger *zap.Logger) FetcherOption {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithUserAgents replaces the User-Agent pool.
func WithUserAgents(agents []string) FetcherOption {
	return func(f *Fetcher) {
		if len(agents) > 0 {
			f.userAgents = append([]string(nil), agents...)
		}
	}
}

// NewFetcher builds the pipeline for one run.
func NewFetcher(cfg Config, transport Transport, opts ...FetcherOption) *Fetcher {
	router := cfg.Proxy
	if router == nil {
		router = proxy.Direct{}
	}
	f := &Fetcher{
		transport:  transport,
		router:     router,
		breaker:    noopBreaker{},
		limiter:    noopLimiter{},
		pauser:     timerPauser{},
		backoff:    newBackoffPolicy(cfg.BaseDelay),
		logger:     zap.NewNop(),
		userAgents: DefaultUserAgents,
		now:        time.Now,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		timeout:    cfg.Timeout,
		maxBytes:   cfg.MaxPageBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves target and returns its decoded text.
//
// It returns an error wrapping ErrCircuitOpen when the breaker rejects an
// attempt, and a *FetchError once every attempt failed. Both mean "no content
// for this URL"; only ErrCircuitOpen should stop the caller's phase.
func (f *Fetcher) Fetch(ctx context.Context, target string) (Page, error) {
	logger := f.logger.With(zap.String("url", target))
	var (
		lastErr    error
		lastStatus int
		attempts   int
	)
	for attempt := 0; attempt < f.maxRetries; attempt++ {
		if f.breaker.IsOpen() {
			return Page{}, fmt.Errorf("fetch %s: %w", target, ErrCircuitOpen)
		}
		route, err := f.router.Route(target)
		if err != nil {
			return Page{}, &FetchError{URL: target, Attempts: attempts, Err: fmt.Errorf("route: %w", err)}
		}
		if err := f.limiter.Wait(ctx, route.URL); err != nil {
			return Page{}, &FetchError{URL: target, Attempts: attempts, Err: err}
		}

		attempts++
		resp, err := f.transport.Do(ctx, FetchRequest{
			URL:      route.URL,
			Header:   f.headers(),
			Proxy:    route.Proxy,
			Timeout:  f.timeout,
			MaxBytes: f.maxBytes,
		})
		last := attempt+1 >= f.maxRetries

		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Page{}, &FetchError{URL: target, Attempts: attempts, Err: ctxErr}
			}
			metrics.ObserveFetchAttempt("transport_error")
			f.breaker.RecordFailure()
			lastErr, lastStatus = err, 0
			logger.Warn("fetch attempt failed", zap.Int("attempt", attempt+1), zap.Error(err))
			if !last {
				f.wait(ctx, f.backoff.Delay(attempt))
			}

		case resp.StatusCode == http.StatusTooManyRequests:
			metrics.ObserveFetchAttempt(metrics.StatusOutcome(resp.StatusCode))
			f.breaker.RecordFailure()
			lastErr, lastStatus = nil, resp.StatusCode
			delay := retryAfter(resp.Header, f.now(), f.baseDelay)
			logger.Warn("rate limited", zap.Int("attempt", attempt+1), zap.Duration("retry_after", delay))
			if !last {
				f.wait(ctx, delay)
			}

		case resp.StatusCode >= http.StatusBadRequest:
			metrics.ObserveFetchAttempt(metrics.StatusOutcome(resp.StatusCode))
			f.breaker.RecordFailure()
			lastErr, lastStatus = nil, resp.StatusCode
			logger.Warn("fetch attempt returned error status",
				zap.Int("attempt", attempt+1), zap.Int("status", resp.StatusCode))
			if !last {
				f.wait(ctx, f.backoff.Delay(attempt))
			}

		default:
			metrics.ObserveFetchAttempt(metrics.StatusOutcome(resp.StatusCode))
			f.breaker.RecordSuccess()
			decoded := charset.Decode(resp.Body, resp.Header.Get("Content-Type"))
			finalURL := resp.FinalURL
			if finalURL == "" {
				finalURL = route.URL
			}
			logger.Debug("fetched",
				zap.Int("status", resp.StatusCode),
				zap.Int("bytes", len(resp.Body)),
				zap.String("encoding", decoded.Encoding),
				zap.String("encoding_source", decoded.Source),
			)
			return Page{
				URL:      target,
				FinalURL: finalURL,
				Status:   resp.StatusCode,
				Text:     decoded.Text,
				Encoding: decoded.Encoding,
			}, nil
		}
	}
	return Page{}, &FetchError{URL: target, Attempts: attempts, StatusCode: lastStatus, Err: lastErr}
}

func (f *Fetcher) wait(ctx context.Context, d time.Duration) {
	metrics.ObserveRetry()
	f.pauser.Pause(ctx, d)
}

func (f *Fetcher) headers() http.Header {
	h := make(http.Header, 3)
	h.Set("User-Agent", f.userAgents[rand.IntN(len(f.userAgents))])
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.5")
	return h
}

// isCircuitOpen reports whether err means the breaker stopped the phase.
func isCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

type noopBreaker struct{}

func (noopBreaker) IsOpen() bool   { return false }
func (noopBreaker) RecordSuccess() {}
func (noopBreaker) RecordFailure() {}

type noopLimiter struct{}

func (noopLimiter) Wait(context.Context, string) error { return nil }
