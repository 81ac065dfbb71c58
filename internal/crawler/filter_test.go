package crawler

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLFilter_Check(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		overrides map[string]any
		link      string
		ok        bool
		rule      string
	}{
		{name: "same host", link: "http://shop.example/a", ok: true},
		{name: "subdomain", link: "https://blog.shop.example/post", ok: true},
		{name: "host case", link: "http://SHOP.example/a", ok: true},
		{name: "other host", link: "http://other.example/a", rule: "host"},
		{name: "suffix lookalike", link: "http://evilshop.example/a", rule: "host"},
		{name: "mailto", link: "mailto:sales@shop.example", rule: "excluded_protocols"},
		{name: "tel", link: "TEL:+15555550100", rule: "excluded_protocols"},
		{name: "ftp", link: "ftp://shop.example/file", rule: "host"},
		{
			name:      "exclude keyword",
			overrides: map[string]any{"exclude_keywords": []string{"Draft"}},
			link:      "http://shop.example/blog/draft-1",
			rule:      "exclude_keywords",
		},
		{
			name:      "include keyword matches",
			overrides: map[string]any{"include_keywords": []string{"shoes", "boots"}},
			link:      "http://shop.example/BOOTS/1",
			ok:        true,
		},
		{
			name:      "include keyword misses",
			overrides: map[string]any{"include_keywords": []string{"shoes"}},
			link:      "http://shop.example/hats",
			rule:      "include_keywords",
		},
		{
			name:      "exclude wins over include",
			overrides: map[string]any{"include_keywords": []string{"blog"}, "exclude_keywords": []string{"draft"}},
			link:      "http://shop.example/blog/draft",
			rule:      "exclude_keywords",
		},
		{
			name:      "start with",
			overrides: map[string]any{"start_with": "http://shop.example/products"},
			link:      "http://shop.example/about",
			rule:      "start_with",
		},
		{
			name:      "start with matches",
			overrides: map[string]any{"start_with": "http://shop.example/products"},
			link:      "http://shop.example/products/9",
			ok:        true,
		},
		{
			name:      "fully qualified seed",
			overrides: map[string]any{"domain": "http://shop.example./"},
			link:      "http://shop.example/a",
			ok:        true,
		},
		{
			name:      "fully qualified seed and link",
			overrides: map[string]any{"domain": "http://Shop.Example./"},
			link:      "http://blog.shop.example./post",
			ok:        true,
		},
		{
			name:      "no excluded protocols",
			overrides: map[string]any{"excluded_protocols": []string{}},
			link:      "mailto:sales@shop.example",
			rule:      "host",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newURLFilter(testConfig(t, tt.overrides))
			ok, rule := f.check(tt.link)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.rule, rule)
			assert.Equal(t, tt.ok, f.shouldFollow(tt.link))
		})
	}
}

func TestResolveLink(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("http://shop.example/catalog/index.html")
	require.NoError(t, err)

	tests := map[string]string{
		"":                           "",
		"#top":                       "",
		"item?id=1":                  "http://shop.example/catalog/item?id=1",
		"/about#team":                "http://shop.example/about",
		"../help":                    "http://shop.example/help",
		"  /padded  ":                "http://shop.example/padded",
		"//cdn.shop.example/x.html":  "http://cdn.shop.example/x.html",
		"https://other.example/page": "https://other.example/page",
		"mailto:sales@shop.example":  "mailto:sales@shop.example",
		"http://[::1":                "",
	}
	for href, want := range tests {
		assert.Equal(t, want, resolveLink(base, href), "href %q", href)
	}
}
