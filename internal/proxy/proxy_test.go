package proxy

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const target = "https://a.example/path?q=1&r=two words"

func TestDirect_LeavesTargetUntouched(t *testing.T) {
	t.Parallel()

	r, err := FromMap(nil)
	require.NoError(t, err)
	route, err := r.Route(target)
	require.NoError(t, err)
	assert.Equal(t, target, route.URL)
	assert.Nil(t, route.Proxy)
	assert.True(t, IsDirect(r))
}

func TestStaticList_RoundRobin(t *testing.T) {
	t.Parallel()

	r, err := FromMap(map[string]any{
		"type":    "list",
		"proxies": []any{"http://p1:8080", "p2:3128", "socks5://p3:1080"},
	})
	require.NoError(t, err)
	require.False(t, IsDirect(r))

	var hosts []string
	for range 4 {
		route, err := r.Route(target)
		require.NoError(t, err)
		assert.Equal(t, target, route.URL)
		hosts = append(hosts, route.Proxy.Host)
	}
	assert.Equal(t, []string{"p1:8080", "p2:3128", "p3:1080", "p1:8080"}, hosts)
}

func TestStaticList_RejectsEmpty(t *testing.T) {
	t.Parallel()

	_, err := NewStaticList(nil)
	require.ErrorIs(t, err, ErrEmptyProxyList)

	_, err = FromMap(map[string]any{"type": "list", "proxies": []any{" ", ""}})
	require.ErrorIs(t, err, ErrEmptyProxyList)
}

func TestScraperAPI_RewritesURL(t *testing.T) {
	t.Parallel()

	r, err := New(Descriptor{Type: "scraperapi", APIKey: "k3y", Render: true, Country: "us", Premium: true})
	require.NoError(t, err)
	route, err := r.Route(target)
	require.NoError(t, err)
	assert.Nil(t, route.Proxy)

	u, err := url.Parse(route.URL)
	require.NoError(t, err)
	assert.Equal(t, "api.scraperapi.com", u.Host)
	q := u.Query()
	assert.Equal(t, "k3y", q.Get("api_key"))
	assert.Equal(t, target, q.Get("url"))
	assert.Equal(t, "true", q.Get("render"))
	assert.Equal(t, "us", q.Get("country_code"))
	assert.Equal(t, "true", q.Get("premium"))
	assert.True(t, strings.HasPrefix(route.URL, "http://api.scraperapi.com?api_key=k3y&url=https%3A%2F%2Fa.example"))
}

func TestFromMap_ScraperAPIAcceptsRenderJS(t *testing.T) {
	t.Parallel()

	for _, key := range []string{"render_js", "render"} {
		r, err := FromMap(map[string]any{"type": "scraperapi", "api_key": "k", key: true})
		require.NoError(t, err, key)
		route, err := r.Route(target)
		require.NoError(t, err, key)
		assert.Contains(t, route.URL, "&render=true", key)
	}
}

func TestScraperAPI_OmitsUnsetOptions(t *testing.T) {
	t.Parallel()

	r, err := NewScraperAPI(ScraperAPIOptions{APIKey: "k"})
	require.NoError(t, err)
	route, err := r.Route("https://a.example/")
	require.NoError(t, err)
	assert.Equal(t, "http://api.scraperapi.com?api_key=k&url=https%3A%2F%2Fa.example%2F", route.URL)
}

func TestBrightData_ComposesUsername(t *testing.T) {
	t.Parallel()

	r, err := New(Descriptor{
		Type: "brightdata", Username: "cust", Password: "pw",
		Country: "de", SessionID: "1234567",
	})
	require.NoError(t, err)
	route, err := r.Route(target)
	require.NoError(t, err)
	assert.Equal(t, target, route.URL)
	require.NotNil(t, route.Proxy)
	assert.Equal(t, "brd.superproxy.io:22225", route.Proxy.Host)
	assert.Equal(t, "cust-zone-residential-country-de-session-1234567", route.Proxy.User.Username())
	pw, _ := route.Proxy.User.Password()
	assert.Equal(t, "pw", pw)
}

func TestBrightData_RandomSessionIsStable(t *testing.T) {
	t.Parallel()

	r, err := NewBrightData(BrightDataOptions{Username: "u", Password: "p", Zone: "dc"})
	require.NoError(t, err)
	first, _ := r.Route(target)
	second, _ := r.Route(target)
	user := first.Proxy.User.Username()
	assert.Equal(t, user, second.Proxy.User.Username())
	require.True(t, strings.HasPrefix(user, "u-zone-dc-session-"))
	assert.Len(t, strings.TrimPrefix(user, "u-zone-dc-session-"), 7)
}

func TestOxylabs_ComposesUsername(t *testing.T) {
	t.Parallel()

	r, err := FromMap(map[string]any{"type": "oxylabs", "username": "cust", "password": "pw", "country": "fr"})
	require.NoError(t, err)
	route, err := r.Route(target)
	require.NoError(t, err)
	assert.Equal(t, "pr.oxylabs.io:7777", route.Proxy.Host)
	assert.Equal(t, "cust-country-fr", route.Proxy.User.Username())
	assert.Equal(t, TypeOxylabs, r.Name())
}

func TestServices_RequireCredentials(t *testing.T) {
	t.Parallel()

	cases := []Descriptor{
		{Type: "scraperapi"},
		{Type: "brightdata", Username: "u"},
		{Type: "brightdata", Password: "p"},
		{Type: "oxylabs", Username: "u"},
	}
	for _, desc := range cases {
		t.Run(desc.Type, func(t *testing.T) {
			t.Parallel()
			_, err := New(desc)
			require.ErrorIs(t, err, ErrMissingCredentials)
		})
	}
}

func TestNew_UnknownType(t *testing.T) {
	t.Parallel()

	_, err := New(Descriptor{Type: "tor"})
	require.ErrorContains(t, err, "unknown proxy type")
}
