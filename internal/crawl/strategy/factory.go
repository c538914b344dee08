package strategy

import "github.com/ragcrawld/ragcrawld/internal/urlkit"

// New selects the leaf strategy for startURL via urlkit.Classify. Webpage
// URLs get RecursiveStrategy when recursive is true and SingleStrategy
// otherwise; sitemap and text-file URLs ignore recursive.
func New(startURL string, recursive bool) Strategy {
	switch urlkit.Classify(startURL) {
	case urlkit.KindSitemap:
		return SitemapStrategy{}
	case urlkit.KindText:
		return TextFileStrategy{}
	default:
		if recursive {
			return RecursiveStrategy{}
		}
		return SingleStrategy{}
	}
}
