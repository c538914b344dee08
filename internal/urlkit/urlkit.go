// Package urlkit classifies and validates URLs before they enter the crawl
// or storage pipeline, and derives the stable identifiers the vector and
// graph stores use to link a crawled URL across both.
package urlkit

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// Kind is the crawl-strategy-relevant classification of a URL.
type Kind string

const (
	KindSitemap Kind = "sitemap"
	KindText    Kind = "text_file"
	KindWebpage Kind = "webpage"
)

// Classify returns the crawl Kind for url: sitemap iff
// the path ends with "sitemap.xml" or contains "sitemap"; text_file iff
// it ends with ".txt"; else webpage.
func Classify(rawURL string) Kind {
	u, err := url.Parse(rawURL)
	path := rawURL
	if err == nil {
		path = u.Path
	}
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, "sitemap.xml") || strings.Contains(lower, "sitemap"):
		return KindSitemap
	case strings.HasSuffix(lower, ".txt"):
		return KindText
	default:
		return KindWebpage
	}
}

var allowedSchemes = map[string]bool{"http": true, "https": true, "ftp": true}

// injectionTokens are substrings commonly used in SQL/command injection
// payloads. Matching is case-insensitive and applies to the raw URL.
var injectionTokens = []string{
	"'", `"`, ";", "--", "/*", "*/",
	" or ", " and ", "union select", "drop table", "insert into", "delete from",
}

const maxURLLength = 2048

// IsSafeForStorage reports whether rawURL is safe to persist and use in
// store operations. Unsafe URLs are dropped by the
// caller before any DB write, never treated as a hard error.
func IsSafeForStorage(rawURL string) bool {
	if len(rawURL) > maxURLLength {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if !allowedSchemes[strings.ToLower(u.Scheme)] {
		return false
	}
	if u.Host == "" {
		return false
	}
	lower := strings.ToLower(rawURL)
	for _, token := range injectionTokens {
		if strings.Contains(lower, token) {
			return false
		}
	}
	return true
}

// SourceID derives the Source aggregate key for a URL: its authority if
// present, else its path. Stable across calls and processes.
func SourceID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.Host != "" {
		return u.Host
	}
	if u.Path != "" {
		return u.Path
	}
	return rawURL
}

// DocumentID derives a deterministic, process- and run-stable 128-bit hex
// digest for a URL, used to link a vector-store chunk to its graph-store
// Document node. crypto/md5 is used purely as a stable non-cryptographic
// content hash; collision resistance is not a security property here.
func DocumentID(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

// NormalizeForDedup strips a URL fragment so that recursive crawling can
// dedupe `https://x/y#a` and `https://x/y#b` as the same target.
func NormalizeForDedup(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing url %q: %w", rawURL, err)
	}
	u.Fragment = ""
	return u.String(), nil
}

// IsInternal reports whether candidate shares the same host as base,
// used by the recursive strategy to restrict link-following.
func IsInternal(base, candidate string) bool {
	b, err1 := url.Parse(base)
	c, err2 := url.Parse(candidate)
	if err1 != nil || err2 != nil {
		return false
	}
	return strings.EqualFold(b.Host, c.Host)
}

// ResolveLink resolves a possibly-relative href found on a page against
// the page's own URL.
func ResolveLink(pageURL, href string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url %q: %w", pageURL, err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parsing href %q: %w", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}
