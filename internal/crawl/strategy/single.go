package strategy

import "context"

// SingleStrategy fetches exactly one URL and yields exactly one document.
type SingleStrategy struct{}

func (SingleStrategy) Name() string { return "single" }

func (SingleStrategy) Crawl(ctx context.Context, fetcher Fetcher, startURL string, opts Options) Result {
	page, err := fetchWithRetry(ctx, fetcher, startURL)
	if err != nil {
		return Result{Success: false, URL: startURL, Metadata: map[string]any{"error": err.Error()}}
	}
	return Result{
		Success:      true,
		URL:          startURL,
		PagesCrawled: 1,
		Documents:    []Document{{URL: startURL, Markdown: page.Markdown}},
		Metadata:     map[string]any{"strategy": "single"},
	}
}
