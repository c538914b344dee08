package strategy

import (
	"context"

	"github.com/ragcrawld/ragcrawld/internal/urlkit"
)

// RecursiveStrategy performs a breadth-first crawl over the seed URL up
// to Options.MaxDepth, following only internal links. Each depth is a
// single batch crawl; links are defragmented and deduped before they are
// queued for the next depth.
type RecursiveStrategy struct{}

func (RecursiveStrategy) Name() string { return "recursive" }

func (RecursiveStrategy) Crawl(ctx context.Context, fetcher Fetcher, startURL string, opts Options) Result {
	opts = opts.withDefaults()

	visited := map[string]bool{}
	var documents []Document
	failed := 0

	frontier := []string{startURL}
	for depth := 0; depth <= opts.MaxDepth && len(frontier) > 0; depth++ {
		toFetch := make([]string, 0, len(frontier))
		for _, u := range frontier {
			normalized, err := urlkit.NormalizeForDedup(u)
			if err != nil {
				continue
			}
			if visited[normalized] {
				continue
			}
			visited[normalized] = true
			toFetch = append(toFetch, u)
		}
		if len(toFetch) == 0 {
			break
		}

		results := batchFetch(ctx, fetcher, toFetch, opts.MaxConcurrency)

		var nextFrontier []string
		for _, r := range results {
			if r.err != nil {
				failed++
				continue
			}
			documents = append(documents, Document{URL: r.url, Markdown: r.page.Markdown})
			for _, link := range r.page.Links {
				if urlkit.IsInternal(startURL, link) {
					nextFrontier = append(nextFrontier, link)
				}
			}
		}
		frontier = nextFrontier
	}

	return Result{
		Success:      len(documents) > 0,
		URL:          startURL,
		PagesCrawled: len(documents),
		Documents:    documents,
		Metadata: map[string]any{
			"strategy":     "recursive",
			"urls_visited": len(visited),
			"urls_failed":  failed,
		},
	}
}
