package crawler

import (
	"net/url"
	"strings"
)

// urlFilter decides which discovered links join the frontier.
type urlFilter struct {
	seedHost          string
	startWith         string
	include           []string
	exclude           []string
	excludedProtocols []string
}

func newURLFilter(cfg Config) urlFilter {
	return urlFilter{
		seedHost:          strings.ToLower(cfg.SeedHost),
		startWith:         cfg.StartWith,
		include:           cfg.IncludeKeywords,
		exclude:           cfg.ExcludeKeywords,
		excludedProtocols: cfg.ExcludedProtocols,
	}
}

// shouldFollow reports whether rawURL passes every filter rule.
func (f urlFilter) shouldFollow(rawURL string) bool {
	ok, _ := f.check(rawURL)
	return ok
}

// check applies the rules in order and names the first one that rejects.
func (f urlFilter) check(rawURL string) (bool, string) {
	if f.startWith != "" && !strings.HasPrefix(rawURL, f.startWith) {
		return false, "start_with"
	}
	for _, kw := range f.exclude {
		if containsLower(rawURL, kw) {
			return false, "exclude_keywords"
		}
	}
	if len(f.include) > 0 {
		matched := false
		for _, kw := range f.include {
			if containsLower(rawURL, kw) {
				matched = true
				break
			}
		}
		if !matched {
			return false, "include_keywords"
		}
	}
	lowered := strings.ToLower(rawURL)
	for _, proto := range f.excludedProtocols {
		if strings.HasPrefix(lowered, strings.ToLower(proto)) {
			return false, "excluded_protocols"
		}
	}
	if !f.sameSite(rawURL) {
		return false, "host"
	}
	return true, ""
}

// sameSite accepts the seed host itself and any of its subdomains.
func (f urlFilter) sameSite(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" || f.seedHost == "" {
		return false
	}
	return host == f.seedHost || strings.HasSuffix(host, "."+f.seedHost)
}

// resolveLink turns an href into an absolute URL without its fragment.
// It returns "" for hrefs that cannot be resolved.
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String()
}

func containsLower(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
