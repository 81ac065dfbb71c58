// Package proxy shapes outgoing crawl requests for the configured proxy
// provider. A Router never performs network I/O: it only decides which URL is
// requested and which forward proxy, if any, the transport should dial.
package proxy

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Route is the request a Router produced for one target URL.
type Route struct {
	// URL is the effective URL to request. Services that proxy through an
	// API endpoint rewrite it; everything else returns the target unchanged.
	URL string
	// Proxy is the forward proxy to dial, or nil for a direct connection.
	Proxy *url.URL
}

// Router maps a target URL to the request that should actually be sent.
type Router interface {
	Route(target string) (Route, error)
	Name() string
}

// Provider type discriminators accepted by New.
const (
	TypeList       = "list"
	TypeScraperAPI = "scraperapi"
	TypeBrightData = "brightdata"
	TypeOxylabs    = "oxylabs"
)

// Descriptor is the decoded form of the crawl config "proxy" mapping.
type Descriptor struct {
	Type      string   `mapstructure:"type"`
	Proxies   []string `mapstructure:"proxies"`
	APIKey    string   `mapstructure:"api_key"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Zone      string   `mapstructure:"zone"`
	Country   string   `mapstructure:"country"`
	SessionID string   `mapstructure:"session_id"`
	Render    bool     `mapstructure:"render"`
	RenderJS  bool     `mapstructure:"render_js"`
	Premium   bool     `mapstructure:"premium"`
}

// FromMap decodes a loosely-typed proxy mapping and builds the matching Router.
// A nil or empty mapping yields a Direct router.
func FromMap(raw map[string]any) (Router, error) {
	if len(raw) == 0 {
		return Direct{}, nil
	}
	var desc Descriptor
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &desc,
	})
	if err != nil {
		return nil, fmt.Errorf("proxy decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode proxy settings: %w", err)
	}
	return New(desc)
}

// New builds the Router selected by desc.Type.
func New(desc Descriptor) (Router, error) {
	switch strings.ToLower(strings.TrimSpace(desc.Type)) {
	case "", "none", "direct":
		return Direct{}, nil
	case TypeList:
		return NewStaticList(desc.Proxies)
	case TypeScraperAPI:
		return NewScraperAPI(ScraperAPIOptions{
			APIKey:  desc.APIKey,
			Render:  desc.Render || desc.RenderJS,
			Country: desc.Country,
			Premium: desc.Premium,
		})
	case TypeBrightData:
		return NewBrightData(BrightDataOptions{
			Username:  desc.Username,
			Password:  desc.Password,
			Zone:      desc.Zone,
			Country:   desc.Country,
			SessionID: desc.SessionID,
		})
	case TypeOxylabs:
		return NewOxylabs(OxylabsOptions{
			Username: desc.Username,
			Password: desc.Password,
			Country:  desc.Country,
		})
	default:
		return nil, fmt.Errorf("unknown proxy type %q", desc.Type)
	}
}

// Direct sends every request straight to the target.
type Direct struct{}

// Route returns the target unchanged.
func (Direct) Route(target string) (Route, error) {
	return Route{URL: target}, nil
}

// Name identifies the router in logs.
func (Direct) Name() string { return "direct" }

// IsDirect reports whether r routes requests without any proxy.
func IsDirect(r Router) bool {
	if r == nil {
		return true
	}
	_, ok := r.(Direct)
	return ok
}
