package retrieve

import (
	"context"

	"github.com/ragcrawld/ragcrawld/internal/rerank"
	"github.com/ragcrawld/ragcrawld/internal/sizefit"
	"github.com/ragcrawld/ragcrawld/internal/vectorstore"
	"go.uber.org/zap"
)

// SearchCodeExamplesRequest is search_code_examples' parameter set.
type SearchCodeExamplesRequest struct {
	Query             string
	SourceFilter      string
	MatchCount        int
	MaxContentLength  int
	MaxResponseTokens int
	UseRerank         bool
}

// SearchCodeExamplesResponse is search_code_examples' response envelope.
type SearchCodeExamplesResponse struct {
	Success          bool            `json:"success"`
	Query            string          `json:"query"`
	RerankingApplied bool            `json:"reranking_applied"`
	Results          []ResultItem    `json:"results"`
	Count            int             `json:"count"`
	TruncationInfo   *TruncationInfo `json:"truncation_info,omitempty"`
	Error            string          `json:"error,omitempty"`
}

// SearchCodeExamples runs rag_query's pipeline against the code_examples
// table instead of crawled_pages: embed -> vector search -> [rerank] ->
// size-fit. There is no keyword search path for code examples, so hybrid
// merge never applies here.
func (r *Retriever) SearchCodeExamples(ctx context.Context, req SearchCodeExamplesRequest) SearchCodeExamplesResponse {
	if req.MatchCount <= 0 {
		req.MatchCount = defaultMatchCount
	}
	if req.MaxContentLength <= 0 {
		req.MaxContentLength = 1000
	}
	if req.MaxResponseTokens <= 0 {
		req.MaxResponseTokens = sizefit.MaxResponseTokensCap
	}
	useRerank := req.UseRerank && r.deps.Flags.UseReranking && r.deps.Reranker != nil

	vectors := r.deps.Embedder.Embed(ctx, []string{req.Query})
	if len(vectors) == 0 {
		return SearchCodeExamplesResponse{Success: false, Query: req.Query, Error: "failed to embed query"}
	}

	var filter map[string]any
	if req.SourceFilter != "" {
		filter = map[string]any{"source_id": req.SourceFilter}
	}

	results, err := r.deps.Store.SearchCodeExamples(ctx, vectors[0], req.MatchCount, filter)
	if err != nil {
		r.deps.Logger.Warn("code example search failed", zap.Error(err))
		return SearchCodeExamplesResponse{Success: false, Query: req.Query, Error: "code example search failed: " + err.Error()}
	}

	reranked := false
	var rerankScores []float64
	if useRerank && len(results) > 0 {
		pairs := make([]rerank.Pair, len(results))
		for i, res := range results {
			pairs[i] = rerank.Pair{Query: req.Query, Doc: res.Content}
		}
		scores := r.deps.Reranker.Predict(ctx, pairs)
		order := rerank.SortDescending(scores)
		reordered := make([]vectorstore.SearchResult, len(results))
		rerankScores = make([]float64, len(results))
		for i, o := range order {
			reordered[i] = results[o.Index]
			rerankScores[i] = float64(o.Score)
		}
		results = reordered
		reranked = true
	}

	records := make([]sizefit.Record, len(results))
	for i, row := range results {
		records[i] = sizefit.Record{Content: row.Content}
	}
	fitted, diag, _ := sizefit.Fit(records, sizefit.Constraints{
		MaxResponseTokens: req.MaxResponseTokens,
		MaxContentLength:  req.MaxContentLength,
	})

	items := make([]ResultItem, len(fitted))
	for i, rec := range fitted {
		item := ResultItem{
			URL:              results[i].URL,
			Content:          rec.Content,
			Metadata:         results[i].Metadata,
			Similarity:       results[i].Similarity,
			ContentTruncated: rec.ContentTruncated,
		}
		if rerankScores != nil {
			score := rerankScores[i]
			item.RerankScore = &score
		}
		items[i] = item
	}

	resp := SearchCodeExamplesResponse{
		Success:          true,
		Query:            req.Query,
		RerankingApplied: reranked,
		Results:          items,
		Count:            len(items),
	}
	if diag.Truncated || diag.ContentTruncatedCount > 0 {
		resp.TruncationInfo = &TruncationInfo{
			Truncated:             diag.Truncated,
			OriginalCount:         diag.OriginalCount,
			FinalCount:            diag.FinalCount,
			ContentTruncatedCount: diag.ContentTruncatedCount,
			EstimatedTokens:       diag.EstimatedTokens,
		}
	}
	return resp
}
