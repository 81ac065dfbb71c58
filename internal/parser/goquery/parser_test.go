package goqueryparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!doctype html>
<html><head><title>Shop</title><style>body{color:red}</style>
<script>var x = "<a href='/hidden'>";</script></head>
<body>
<header><a href="/home">Home</a> Header text</header>
<nav><a href="/nav">Nav</a></nav>
<main id="content">
  <h1>Hello,   world</h1>
  <p>First<b>bold</b> paragraph.</p>
  <a href="/p1#frag">One</a>
  <a href=" https://other.example/p2 ">Two</a>
  <a href="mailto:hi@a.example">Mail</a>
  <a href="javascript:void(0)">JS</a>
  <a href="">Empty</a>
  <a>No href</a>
</main>
<aside class="promo">Buy now</aside>
<noscript>Enable JS</noscript>
<footer>Footer text <a href="/legal">Legal</a></footer>
</body></html>`

func TestParser_Links(t *testing.T) {
	t.Parallel()

	links, err := New().Links(page)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/home", "/nav", "/p1#frag", "https://other.example/p2", "mailto:hi@a.example", "/legal",
	}, links)
}

func TestParser_TextStripsNonContent(t *testing.T) {
	t.Parallel()

	text, err := New().Text(page, "")
	require.NoError(t, err)
	assert.Equal(t, "Shop Hello, world First bold paragraph. One Two Mail JS Empty No href Buy now", text)
	assert.NotContains(t, text, "Header text")
	assert.NotContains(t, text, "Footer")
	assert.NotContains(t, text, "color:red")
	assert.NotContains(t, text, "Enable JS")
}

func TestParser_TextWithSelector(t *testing.T) {
	t.Parallel()

	p := New()
	text, err := p.Text(page, "aside.promo")
	require.NoError(t, err)
	assert.Equal(t, "Buy now", text)

	fallback, err := p.Text(page, "#missing")
	require.NoError(t, err)
	full, err := p.Text(page, "")
	require.NoError(t, err)
	assert.Equal(t, full, fallback)
}

func TestParser_CustomStripTags(t *testing.T) {
	t.Parallel()

	text, err := New("aside").Text(`<body><aside>x</aside><footer>kept</footer></body>`, "")
	require.NoError(t, err)
	assert.Equal(t, "kept", text)
}
