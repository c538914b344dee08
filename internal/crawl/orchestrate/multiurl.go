package orchestrate

import "strings"

// URLCategory is the content-shape classification used to pick a
// per-URL CSS content selector and word threshold.
type URLCategory string

const (
	CategoryDocumentation URLCategory = "documentation"
	CategoryArticle       URLCategory = "article"
	CategoryGeneral       URLCategory = "general"
)

var documentationTokens = []string{"docs", "api", "reference", "guide", "manual"}
var articleTokens = []string{"news", "blog", "article", "post"}

// URLProfile is the per-URL crawl shape a MultiURLConfig entry selects.
type URLProfile struct {
	Category        URLCategory
	ContentSelector string
	WordThreshold   int
}

var categoryProfiles = map[URLCategory]URLProfile{
	CategoryDocumentation: {Category: CategoryDocumentation, ContentSelector: "main, article, .content, .documentation", WordThreshold: 20},
	CategoryArticle:       {Category: CategoryArticle, ContentSelector: "article, .post-content, .article-body", WordThreshold: 50},
	CategoryGeneral:       {Category: CategoryGeneral, ContentSelector: "body", WordThreshold: 10},
}

// ClassifyURL classifies url by substring match against known
// documentation/article tokens, defaulting to general.
func ClassifyURL(url string) URLCategory {
	lower := strings.ToLower(url)
	for _, token := range documentationTokens {
		if strings.Contains(lower, token) {
			return CategoryDocumentation
		}
	}
	for _, token := range articleTokens {
		if strings.Contains(lower, token) {
			return CategoryArticle
		}
	}
	return CategoryGeneral
}

// ProfileForURL returns the CSS selector and word threshold for url's
// classified category.
func ProfileForURL(url string) URLProfile {
	return categoryProfiles[ClassifyURL(url)]
}
