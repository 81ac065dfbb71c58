package crawler

import (
	"context"
	"net/http"
	"net/netip"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeResponse is one scripted reply of fakeSite.
type fakeResponse struct {
	status int
	body   string
	header http.Header
	err    error
}

// fakeSite serves scripted responses per URL. The last response of a
// sequence repeats once the earlier ones are used up; unknown URLs get 404.
type fakeSite struct {
	mu        sync.Mutex
	responses map[string][]fakeResponse
	calls     map[string]int
	requests  []FetchRequest
	onRequest func(url string)
}

func newFakeSite() *fakeSite {
	return &fakeSite{responses: make(map[string][]fakeResponse), calls: make(map[string]int)}
}

func (s *fakeSite) page(url, body string) *fakeSite {
	return s.script(url, fakeResponse{status: http.StatusOK, body: body})
}

func (s *fakeSite) script(url string, seq ...fakeResponse) *fakeSite {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[url] = seq
	return s
}

func (s *fakeSite) Do(_ context.Context, req FetchRequest) (FetchResponse, error) {
	s.mu.Lock()
	n := s.calls[req.URL]
	s.calls[req.URL] = n + 1
	s.requests = append(s.requests, req)
	seq := s.responses[req.URL]
	hook := s.onRequest
	s.mu.Unlock()

	if hook != nil {
		hook(req.URL)
	}
	if len(seq) == 0 {
		return FetchResponse{StatusCode: http.StatusNotFound}, nil
	}
	r := seq[min(n, len(seq)-1)]
	if r.err != nil {
		return FetchResponse{}, r.err
	}
	header := r.header
	if header == nil {
		header = http.Header{"Content-Type": {"text/html; charset=utf-8"}}
	}
	return FetchResponse{StatusCode: r.status, Header: header, Body: []byte(r.body), FinalURL: req.URL}, nil
}

func (s *fakeSite) callsFor(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[url]
}

func (s *fakeSite) allRequests() []FetchRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FetchRequest(nil), s.requests...)
}

var hrefPattern = regexp.MustCompile(`href="([^"]*)"`)

// fakeParser pulls href attributes with a regexp and returns bodies as text.
type fakeParser struct{}

func (fakeParser) Links(body string) ([]string, error) {
	var out []string
	for _, m := range hrefPattern.FindAllStringSubmatch(body, -1) {
		out = append(out, m[1])
	}
	return out, nil
}

func (fakeParser) Text(body, _ string) (string, error) { return body, nil }

// recordingPauser returns immediately and remembers every requested delay.
type recordingPauser struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (p *recordingPauser) Pause(_ context.Context, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delays = append(p.delays, d)
}

func (p *recordingPauser) recorded() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.delays...)
}

// switchBreaker is open while its flag is set and counts what it is told.
type switchBreaker struct {
	open      atomic.Bool
	openAfter int64
	failures  atomic.Int64
	successes atomic.Int64
}

func (b *switchBreaker) IsOpen() bool { return b.open.Load() }

func (b *switchBreaker) RecordSuccess() { b.successes.Add(1) }

func (b *switchBreaker) RecordFailure() {
	if n := b.failures.Add(1); b.openAfter > 0 && n >= b.openAfter {
		b.open.Store(true)
	}
}

type staticResolver struct {
	addrs []netip.Addr
	err   error
	calls atomic.Int64
}

func (r *staticResolver) LookupNetIP(context.Context, string, string) ([]netip.Addr, error) {
	r.calls.Add(1)
	return r.addrs, r.err
}

func publicResolver() *staticResolver {
	return &staticResolver{addrs: []netip.Addr{netip.MustParseAddr("93.184.216.34")}}
}

const testSeed = "http://shop.example/"

// testConfig validates a config for testSeed with no pacing, applying overrides.
func testConfig(t *testing.T, overrides map[string]any) Config {
	t.Helper()
	raw := map[string]any{
		"domain":                 testSeed,
		"base_delay":             0,
		"delay_between_requests": 0,
		"max_retries":            1,
	}
	for k, v := range overrides {
		raw[k] = v
	}
	cfg, err := ConfigFromMap(context.Background(), raw, publicResolver())
	require.NoError(t, err)
	return cfg
}

func testFetcher(t *testing.T, cfg Config, site *fakeSite, cb CircuitBreaker) (*Fetcher, *recordingPauser) {
	t.Helper()
	p := &recordingPauser{}
	f := NewFetcher(cfg, site, WithBreaker(cb), WithFetchLogger(zaptest.NewLogger(t)))
	f.pauser = p
	f.backoff.jitter = nil
	return f, p
}
