// Package httpfetcher implements crawler.Transport on net/http.
package httpfetcher

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/JakeFAU/sitescraper/internal/crawler"
)

// Config controls the connection pool.
type Config struct {
	// MaxConnsPerHost caps concurrent connections to any single host.
	MaxConnsPerHost int
	// MaxRedirects bounds redirect chains. Zero uses the net/http default of 10.
	MaxRedirects int
	// GuardRedirects refuses redirects to localhost or private IP literals.
	GuardRedirects bool
}

const defaultMaxRedirects = 10

var _ crawler.Transport = (*Transport)(nil)

// Transport performs GET requests, dialing the per-request proxy when one is set.
type Transport struct {
	client *http.Client
}

type proxyKey struct{}

// New builds a Transport with its own pooled http.Transport.
func New(cfg Config) *Transport {
	rt := newHTTPTransport(cfg.MaxConnsPerHost)
	limit := cfg.MaxRedirects
	if limit <= 0 {
		limit = defaultMaxRedirects
	}
	guard := cfg.GuardRedirects
	client := &http.Client{
		Transport: rt,
		CheckRedirect: func(r *http.Request, via []*http.Request) error {
			if len(via) >= limit {
				return fmt.Errorf("stopped after %d redirects", limit)
			}
			if guard {
				return crawler.CheckRedirectTarget(r.URL)
			}
			return nil
		},
	}
	return &Transport{client: client}
}

// Do issues the GET and reads up to req.MaxBytes of the body.
func (t *Transport) Do(ctx context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	if req.Proxy != nil {
		ctx = context.WithValue(ctx, proxyKey{}, req.Proxy)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return crawler.FetchResponse{}, fmt.Errorf("build request: %w", err)
	}
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return crawler.FetchResponse{}, fmt.Errorf("get %s: %w", req.URL, err)
	}
	defer resp.Body.Close() //nolint:errcheck // body fully consumed or abandoned

	var body io.Reader = resp.Body
	if req.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, req.MaxBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return crawler.FetchResponse{}, fmt.Errorf("read body %s: %w", req.URL, err)
	}
	return crawler.FetchResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		FinalURL:   resp.Request.URL.String(),
	}, nil
}

// CloseIdleConnections releases pooled connections at the end of a run.
func (t *Transport) CloseIdleConnections() {
	t.client.CloseIdleConnections()
}

func newHTTPTransport(maxConnsPerHost int) *http.Transport {
	return &http.Transport{
		Proxy: proxyFromContext,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxConnsPerHost:       maxConnsPerHost,
		MaxIdleConnsPerHost:   maxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
	}
}

// proxyFromContext prefers the proxy the router chose for this request and
// otherwise honours the usual proxy environment variables.
func proxyFromContext(r *http.Request) (*url.URL, error) {
	if p, ok := r.Context().Value(proxyKey{}).(*url.URL); ok && p != nil {
		return p, nil
	}
	return http.ProxyFromEnvironment(r)
}
