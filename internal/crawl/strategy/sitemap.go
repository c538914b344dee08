package strategy

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
)

// sitemapNode matches both <urlset> and <sitemapindex> documents loosely
// enough to pull out every <loc> regardless of XML namespace prefix.
type sitemapNode struct {
	XMLName  xml.Name
	Children []sitemapNode `xml:",any"`
	Content  string        `xml:",chardata"`
}

// extractLocs walks the parsed tree collecting the text content of every
// element whose local name (namespace-agnostic) is "loc".
func extractLocs(node sitemapNode) []string {
	var locs []string
	if localName(node.XMLName.Local) == "loc" {
		if v := strings.TrimSpace(node.Content); v != "" {
			locs = append(locs, v)
		}
	}
	for _, child := range node.Children {
		locs = append(locs, extractLocs(child)...)
	}
	return locs
}

func localName(name string) string {
	if i := strings.LastIndex(name, ":"); i >= 0 {
		return strings.ToLower(name[i+1:])
	}
	return strings.ToLower(name)
}

// parseSitemapLocs extracts every <loc> URL from sitemap XML content,
// ignoring namespace prefixes.
func parseSitemapLocs(xmlContent string) ([]string, error) {
	var root sitemapNode
	if err := xml.Unmarshal([]byte(xmlContent), &root); err != nil {
		return nil, fmt.Errorf("parsing sitemap xml: %w", err)
	}
	return extractLocs(root), nil
}

// SitemapStrategy fetches a sitemap document, extracts every <loc> URL,
// and batch-crawls them.
type SitemapStrategy struct{}

func (SitemapStrategy) Name() string { return "sitemap" }

func (SitemapStrategy) Crawl(ctx context.Context, fetcher Fetcher, startURL string, opts Options) Result {
	opts = opts.withDefaults()

	sitemapPage, err := fetchWithRetry(ctx, fetcher, startURL)
	if err != nil {
		return Result{Success: false, URL: startURL, Metadata: map[string]any{"strategy": "sitemap", "error": err.Error()}}
	}

	locs, err := parseSitemapLocs(sitemapPage.Markdown)
	if err != nil {
		return Result{Success: false, URL: startURL, Metadata: map[string]any{"strategy": "sitemap", "error": err.Error()}}
	}
	if len(locs) == 0 {
		return Result{Success: false, URL: startURL, Metadata: map[string]any{"strategy": "sitemap", "error": "no <loc> urls found"}}
	}

	results := batchFetch(ctx, fetcher, locs, opts.MaxConcurrency)

	var documents []Document
	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			continue
		}
		documents = append(documents, Document{URL: r.url, Markdown: r.page.Markdown})
	}

	return Result{
		Success:      len(documents) > 0,
		URL:          startURL,
		PagesCrawled: len(documents),
		Documents:    documents,
		Metadata: map[string]any{
			"strategy":    "sitemap",
			"urls_found":  len(locs),
			"urls_failed": failed,
		},
	}
}
