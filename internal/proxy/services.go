package proxy

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"
)

const (
	scraperAPIEndpoint = "http://api.scraperapi.com"
	brightDataHost     = "brd.superproxy.io:22225"
	oxylabsHost        = "pr.oxylabs.io:7777"
	defaultBrightZone  = "residential"
)

// ErrMissingCredentials is returned when a service router lacks its credentials.
var ErrMissingCredentials = errors.New("missing proxy credentials")

// ScraperAPIOptions configures the ScraperAPI router.
type ScraperAPIOptions struct {
	APIKey  string
	Render  bool
	Country string
	Premium bool
}

// ScraperAPI rewrites each request into a call to the ScraperAPI endpoint.
type ScraperAPI struct {
	opts ScraperAPIOptions
}

// NewScraperAPI validates the API key and returns the router.
func NewScraperAPI(opts ScraperAPIOptions) (*ScraperAPI, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("scraperapi requires api_key: %w", ErrMissingCredentials)
	}
	return &ScraperAPI{opts: opts}, nil
}

// Route encodes the target as the url query parameter of the API endpoint.
func (s *ScraperAPI) Route(target string) (Route, error) {
	var b strings.Builder
	b.WriteString(scraperAPIEndpoint)
	b.WriteString("?api_key=")
	b.WriteString(url.QueryEscape(s.opts.APIKey))
	b.WriteString("&url=")
	b.WriteString(url.QueryEscape(target))
	if s.opts.Render {
		b.WriteString("&render=true")
	}
	if s.opts.Country != "" {
		b.WriteString("&country_code=")
		b.WriteString(url.QueryEscape(s.opts.Country))
	}
	if s.opts.Premium {
		b.WriteString("&premium=true")
	}
	return Route{URL: b.String()}, nil
}

// Name identifies the router in logs.
func (s *ScraperAPI) Name() string { return TypeScraperAPI }

// BrightDataOptions configures the Bright Data router.
type BrightDataOptions struct {
	Username  string
	Password  string
	Zone      string
	Country   string
	SessionID string
}

// BrightData routes through the Bright Data super proxy with a sticky session.
type BrightData struct {
	proxy *url.URL
}

// NewBrightData composes the zone/country/session username once so every
// request of the run shares one exit session.
func NewBrightData(opts BrightDataOptions) (*BrightData, error) {
	if opts.Username == "" || opts.Password == "" {
		return nil, fmt.Errorf("brightdata requires username and password: %w", ErrMissingCredentials)
	}
	zone := opts.Zone
	if zone == "" {
		zone = defaultBrightZone
	}
	session := opts.SessionID
	if session == "" {
		session = strconv.Itoa(1_000_000 + rand.IntN(9_000_000))
	}
	user := opts.Username + "-zone-" + zone
	if opts.Country != "" {
		user += "-country-" + opts.Country
	}
	user += "-session-" + session
	return &BrightData{proxy: &url.URL{
		Scheme: "http",
		User:   url.UserPassword(user, opts.Password),
		Host:   brightDataHost,
	}}, nil
}

// Route keeps the target URL and attaches the authenticated proxy.
func (b *BrightData) Route(target string) (Route, error) {
	return Route{URL: target, Proxy: b.proxy}, nil
}

// Name identifies the router in logs.
func (b *BrightData) Name() string { return TypeBrightData }

// OxylabsOptions configures the Oxylabs router.
type OxylabsOptions struct {
	Username string
	Password string
	Country  string
}

// Oxylabs routes through the Oxylabs residential proxy.
type Oxylabs struct {
	proxy *url.URL
}

// NewOxylabs validates credentials and composes the country-scoped username.
func NewOxylabs(opts OxylabsOptions) (*Oxylabs, error) {
	if opts.Username == "" || opts.Password == "" {
		return nil, fmt.Errorf("oxylabs requires username and password: %w", ErrMissingCredentials)
	}
	user := opts.Username
	if opts.Country != "" {
		user += "-country-" + opts.Country
	}
	return &Oxylabs{proxy: &url.URL{
		Scheme: "http",
		User:   url.UserPassword(user, opts.Password),
		Host:   oxylabsHost,
	}}, nil
}

// Route keeps the target URL and attaches the authenticated proxy.
func (o *Oxylabs) Route(target string) (Route, error) {
	return Route{URL: target, Proxy: o.proxy}, nil
}

// Name identifies the router in logs.
func (o *Oxylabs) Name() string { return TypeOxylabs }
