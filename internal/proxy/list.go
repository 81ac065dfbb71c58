package proxy

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
)

// ErrEmptyProxyList is returned when a list router is built without proxies.
var ErrEmptyProxyList = errors.New("proxy list cannot be empty")

// StaticList rotates through a fixed set of forward proxies.
type StaticList struct {
	proxies []*url.URL
	next    atomic.Uint64
}

// NewStaticList parses the proxy URLs and returns a round-robin router.
// Entries without a scheme are treated as http proxies.
func NewStaticList(proxies []string) (*StaticList, error) {
	parsed := make([]*url.URL, 0, len(proxies))
	for _, raw := range proxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse proxy %q: %w", raw, err)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("proxy %q has no host", raw)
		}
		parsed = append(parsed, u)
	}
	if len(parsed) == 0 {
		return nil, ErrEmptyProxyList
	}
	return &StaticList{proxies: parsed}, nil
}

// Route keeps the target URL and picks the next proxy in the rotation.
func (l *StaticList) Route(target string) (Route, error) {
	idx := (l.next.Add(1) - 1) % uint64(len(l.proxies))
	return Route{URL: target, Proxy: l.proxies[idx]}, nil
}

// Name identifies the router in logs.
func (l *StaticList) Name() string { return TypeList }
