// Package goqueryparser implements crawler.Parser with goquery.
package goqueryparser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/sitescraper/internal/crawler"
)

// DefaultStripTags are removed before visible text is collected.
var DefaultStripTags = []string{"script", "style", "noscript", "header", "footer", "nav"}

var _ crawler.Parser = (*Parser)(nil)

// Parser extracts anchors and visible text from HTML documents.
type Parser struct {
	strip string
}

// New returns a Parser that strips tags before extracting text.
// With no tags, DefaultStripTags is used.
func New(tags ...string) *Parser {
	if len(tags) == 0 {
		tags = DefaultStripTags
	}
	return &Parser{strip: strings.Join(tags, ", ")}
}

// Links returns every non-empty anchor href in document order.
func (p *Parser) Links(body string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	var hrefs []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" || isNonHTTPLink(href) {
			return
		}
		hrefs = append(hrefs, href)
	})
	return hrefs, nil
}

// Text returns the space-joined text nodes of the document, or of the
// elements matching selector when it matches anything, with whitespace
// collapsed.
func (p *Parser) Text(body string, selector string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find(p.strip).Remove()

	root := doc.Selection
	if selector != "" {
		if scoped := doc.Find(selector); scoped.Length() > 0 {
			root = scoped
		}
	}
	var parts []string
	for _, n := range root.Nodes {
		collectText(n, &parts)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " "), nil
}

func collectText(n *html.Node, parts *[]string) {
	switch n.Type {
	case html.TextNode:
		if t := strings.TrimSpace(n.Data); t != "" {
			*parts = append(*parts, t)
		}
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		if n.Data == "template" {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}

// isNonHTTPLink reports hrefs that can never lead to a page.
func isNonHTTPLink(href string) bool {
	lower := strings.ToLower(href)
	return strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "data:")
}
