package strategy

import "context"

// TextFileStrategy fetches one large plain text or markdown document and
// never follows links. Per the resolved Open Question on error handling,
// any fetch failure yields an empty, success:false Result rather than
// propagating the error to the caller.
type TextFileStrategy struct{}

func (TextFileStrategy) Name() string { return "text_file" }

func (TextFileStrategy) Crawl(ctx context.Context, fetcher Fetcher, startURL string, opts Options) Result {
	page, err := fetchWithRetry(ctx, fetcher, startURL)
	if err != nil {
		return Result{Success: false, URL: startURL, Metadata: map[string]any{"strategy": "text_file", "error": err.Error()}}
	}
	return Result{
		Success:      true,
		URL:          startURL,
		PagesCrawled: 1,
		Documents:    []Document{{URL: startURL, Markdown: page.Markdown}},
		Metadata:     map[string]any{"strategy": "text_file"},
	}
}
