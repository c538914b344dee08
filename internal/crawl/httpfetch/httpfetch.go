// Package httpfetch is the default strategy.Fetcher implementation: a
// plain HTTP client that fetches a page and renders it to a crude
// markdown-ish text. The real headless browser (with JS rendering,
// undetected-profile stealth, and CSS-selector waits) is an external
// collaborator outside this module's scope; this fetcher is the built-in
// fallback used when no such browser is wired in, and it degrades the
// stealth knobs it cannot honor (WaitForSelector) into a logged warning
// rather than failing.
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ragcrawld/ragcrawld/internal/crawl/orchestrate"
	"github.com/ragcrawld/ragcrawld/internal/crawl/strategy"
	"github.com/ragcrawld/ragcrawld/internal/urlkit"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxBodyBytes = 10 << 20 // 10MB
	defaultUserAgent    = "ragcrawld/0.1 (+https://github.com/ragcrawld/ragcrawld)"
	stealthUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

var (
	scriptOrStylePattern = regexp.MustCompile(`(?is)<(script|style|noscript)\b[^>]*>.*?</(script|style|noscript)>`)
	tagPattern           = regexp.MustCompile(`(?s)<[^>]+>`)
	linkPattern          = regexp.MustCompile(`(?is)<a\s+[^>]*href\s*=\s*["']([^"'#][^"']*)["']`)
	whitespacePattern    = regexp.MustCompile(`[ \t]+`)
	blankLinesPattern    = regexp.MustCompile(`\n{3,}`)
)

// Config configures Factory.
type Config struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	Logger       *zap.Logger
}

// Factory builds an httpFetcher per crawl request, applying stealth
// configuration to the degree a plain HTTP client can: a browser-shaped
// User-Agent and the requested post-load delay. WaitForSelector has no
// effect and is logged once per fetcher build.
type Factory struct {
	cfg    Config
	logger *zap.Logger
}

// NewFactory builds a Factory, filling in defaults for unset Config fields.
func NewFactory(cfg Config) *Factory {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Factory{cfg: cfg, logger: cfg.Logger}
}

var _ orchestrate.FetcherFactory = (*Factory)(nil)

// NewFetcher implements orchestrate.FetcherFactory.
func (f *Factory) NewFetcher(stealth orchestrate.StealthConfig) strategy.Fetcher {
	userAgent := defaultUserAgent
	if stealth.Enabled {
		userAgent = stealthUserAgent
		if stealth.WaitForSelector != "" {
			f.logger.Warn("wait_for_selector has no effect on the plain HTTP fetcher",
				zap.String("selector", stealth.WaitForSelector))
		}
	}
	return &httpFetcher{
		client:    &http.Client{Timeout: f.cfg.Timeout},
		userAgent: userAgent,
		maxBody:   f.cfg.MaxBodyBytes,
		postDelay: stealth.PostLoadDelay,
		logger:    f.logger,
	}
}

type httpFetcher struct {
	client    *http.Client
	userAgent string
	maxBody   int64
	postDelay time.Duration
	logger    *zap.Logger
}

func (h *httpFetcher) Fetch(ctx context.Context, rawURL string) (strategy.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return strategy.Page{}, fmt.Errorf("httpfetch: building request: %w", err)
	}
	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := h.client.Do(req)
	if err != nil {
		return strategy.Page{}, fmt.Errorf("httpfetch: fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return strategy.Page{}, fmt.Errorf("httpfetch: %s returned status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBody))
	if err != nil {
		return strategy.Page{}, fmt.Errorf("httpfetch: reading body of %s: %w", rawURL, err)
	}

	if h.postDelay > 0 {
		select {
		case <-ctx.Done():
			return strategy.Page{}, ctx.Err()
		case <-time.After(h.postDelay):
		}
	}

	html := string(body)
	return strategy.Page{
		Markdown: htmlToMarkdown(html),
		Links:    extractLinks(rawURL, html),
	}, nil
}

// htmlToMarkdown strips scripts/styles and tags, leaving plain text. This
// is a lexical approximation, not an HTML parser: good enough for
// chunking and embedding, not for layout-faithful rendering.
func htmlToMarkdown(html string) string {
	stripped := scriptOrStylePattern.ReplaceAllString(html, "")
	stripped = strings.NewReplacer(
		"<br>", "\n", "<br/>", "\n", "<br />", "\n",
		"</p>", "\n\n", "</div>", "\n", "</li>", "\n",
		"</h1>", "\n\n", "</h2>", "\n\n", "</h3>", "\n\n",
	).Replace(stripped)
	stripped = tagPattern.ReplaceAllString(stripped, "")
	stripped = whitespacePattern.ReplaceAllString(stripped, " ")
	stripped = blankLinesPattern.ReplaceAllString(stripped, "\n\n")
	return strings.TrimSpace(stripped)
}

// extractLinks resolves every href found in html against pageURL,
// dropping any that fail to resolve or are unsafe to store.
func extractLinks(pageURL, html string) []string {
	matches := linkPattern.FindAllStringSubmatch(html, -1)
	links := make([]string, 0, len(matches))
	for _, m := range matches {
		resolved, err := urlkit.ResolveLink(pageURL, m[1])
		if err != nil || !urlkit.IsSafeForStorage(resolved) {
			continue
		}
		links = append(links, resolved)
	}
	return links
}
