package crawler

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/sitescraper/internal/metrics"
)

// pageFetcher is the part of Fetcher the crawl phases depend on.
type pageFetcher interface {
	Fetch(ctx context.Context, target string) (Page, error)
}

// discovery is the outcome of the link-discovery phase.
type discovery struct {
	// URLs holds every accepted link in first-seen order.
	URLs          []string
	Fetched       int
	Failed        int
	CircuitOpened bool
}

// frontier walks the site breadth-first, one depth level at a time.
type frontier struct {
	cfg     Config
	fetcher pageFetcher
	parser  Parser
	filter  urlFilter
	visited *visitedSet
	breaker CircuitBreaker
	pauser  pauser
	logger  *zap.Logger
}

// discoveredSet keeps accepted links unique and in first-seen order.
type discoveredSet struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
}

func (d *discoveredSet) add(u string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[u]; ok {
		return false
	}
	d.seen[u] = struct{}{}
	d.order = append(d.order, u)
	return true
}

// run fetches levels 0..MaxDepth-1. Links found on level N sit at distance
// N+1 from the seed, so the deepest level is never fetched here: its links
// would exceed the bound. The returned error is non-nil only when ctx ends.
func (f *frontier) run(ctx context.Context) (discovery, error) {
	found := &discoveredSet{seen: make(map[string]struct{})}
	var (
		fetched, failed atomic.Int64
		opened          atomic.Bool
	)
	level := []string{stripFragment(f.cfg.Domain)}

	for depth := 0; len(level) > 0; depth++ {
		if !f.cfg.Unbounded() && depth >= f.cfg.MaxDepth {
			break
		}
		if depth > 0 {
			f.pauser.Pause(ctx, f.cfg.DelayBetweenRequests)
		}
		if err := ctx.Err(); err != nil {
			return f.result(found, &fetched, &failed, &opened), err
		}
		if f.breaker.IsOpen() {
			opened.Store(true)
			f.logger.Warn("circuit open, stopping discovery", zap.Int("depth", depth))
			break
		}

		f.logger.Info("crawling depth level", zap.Int("depth", depth), zap.Int("frontier", len(level)))
		var (
			nextMu sync.Mutex
			next   []string
		)
		var g errgroup.Group
		g.SetLimit(max(1, f.cfg.ConcurrentRequests))
		for _, target := range level {
			if !f.visited.MarkIfNew(target) {
				continue
			}
			if opened.Load() || f.breaker.IsOpen() {
				opened.Store(true)
				break
			}
			g.Go(func() error {
				links, err := f.visit(ctx, target, depth)
				switch {
				case isCircuitOpen(err):
					opened.Store(true)
					return nil
				case err != nil:
					failed.Add(1)
					return nil
				}
				fetched.Add(1)
				var fresh []string
				for _, link := range links {
					if found.add(link) {
						fresh = append(fresh, link)
					}
				}
				nextMu.Lock()
				next = append(next, fresh...)
				nextMu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
		if opened.Load() {
			f.logger.Warn("circuit opened during discovery, returning partial result", zap.Int("depth", depth))
			break
		}
		level = next
	}
	return f.result(found, &fetched, &failed, &opened), nil
}

// visit fetches one page and returns the accepted links on it.
func (f *frontier) visit(ctx context.Context, target string, depth int) ([]string, error) {
	logger := f.logger.With(zap.String("url", target), zap.Int("depth", depth))
	page, err := f.fetcher.Fetch(ctx, target)
	if err != nil {
		if !isCircuitOpen(err) {
			metrics.ObservePage(metrics.PhaseDiscovery, "failed")
			logger.Warn("discovery fetch failed", zap.Error(err))
		}
		return nil, err
	}
	metrics.ObservePage(metrics.PhaseDiscovery, "ok")

	hrefs, err := f.parser.Links(page.Text)
	if err != nil {
		logger.Warn("parse links failed", zap.Error(err))
		return nil, nil
	}
	base, err := url.Parse(target)
	if err != nil {
		return nil, nil
	}
	accepted := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		abs := resolveLink(base, href)
		if abs == "" {
			continue
		}
		if ok, rule := f.filter.check(abs); !ok {
			logger.Debug("link rejected", zap.String("link", abs), zap.String("rule", rule))
			continue
		}
		accepted = append(accepted, abs)
	}
	logger.Debug("links extracted", zap.Int("found", len(hrefs)), zap.Int("accepted", len(accepted)))
	return accepted, nil
}

func (f *frontier) result(found *discoveredSet, fetched, failed *atomic.Int64, opened *atomic.Bool) discovery {
	found.mu.Lock()
	urls := append([]string(nil), found.order...)
	found.mu.Unlock()
	return discovery{
		URLs:          urls,
		Fetched:       int(fetched.Load()),
		Failed:        int(failed.Load()),
		CircuitOpened: opened.Load(),
	}
}

func stripFragment(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}
