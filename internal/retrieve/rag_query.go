package retrieve

import (
	"context"
	"time"

	"github.com/ragcrawld/ragcrawld/internal/rerank"
	"github.com/ragcrawld/ragcrawld/internal/sizefit"
	"github.com/ragcrawld/ragcrawld/internal/vectorstore"
	"go.uber.org/zap"
)

const defaultMatchCount = 5

// RagQueryRequest is perform_rag_query's parameter set.
type RagQueryRequest struct {
	Query              string
	SourceFilter       string
	MatchCount         int
	Offset             int
	MaxContentLength   int
	IncludeFullContent bool
	MaxResponseTokens  int
	UseHybrid          bool
	UseRerank          bool
}

// RagQueryResponse is perform_rag_query's response envelope.
type RagQueryResponse struct {
	Success          bool            `json:"success"`
	Query            string          `json:"query"`
	SearchMode       string          `json:"search_mode"`
	RerankingApplied bool            `json:"reranking_applied"`
	Results          []ResultItem    `json:"results"`
	Count            int             `json:"count"`
	Pagination       Pagination      `json:"pagination"`
	Warning          string          `json:"warning,omitempty"`
	TruncationInfo   *TruncationInfo `json:"truncation_info,omitempty"`
	Error            string          `json:"error,omitempty"`
}

func (r RagQueryRequest) withDefaults() RagQueryRequest {
	if r.MatchCount <= 0 {
		r.MatchCount = defaultMatchCount
	}
	if r.MaxContentLength <= 0 {
		r.MaxContentLength = 1000
	}
	if r.MaxResponseTokens <= 0 {
		r.MaxResponseTokens = sizefit.MaxResponseTokensCap
	}
	return r
}

// RagQuery runs the rag_query pipeline: embed -> vector search [+keyword
// merge] -> [rerank] -> paginate -> size-fit.
func (r *Retriever) RagQuery(ctx context.Context, req RagQueryRequest) RagQueryResponse {
	if r.deps.Metrics != nil {
		start := time.Now()
		defer func() {
			r.deps.Metrics.RetrievalLatency.Record(ctx, time.Since(start).Seconds())
		}()
	}
	req = req.withDefaults()
	useHybrid := req.UseHybrid && r.deps.Flags.UseHybridSearch
	useRerank := req.UseRerank && r.deps.Flags.UseReranking && r.deps.Reranker != nil

	vectors := r.deps.Embedder.Embed(ctx, []string{req.Query})
	if len(vectors) == 0 {
		return RagQueryResponse{Success: false, Query: req.Query, Error: "failed to embed query"}
	}
	queryEmbedding := vectors[0]

	requiredCount := req.Offset + req.MatchCount
	fetchCount := requiredCount + searchBuffer

	var filter map[string]any
	if req.SourceFilter != "" {
		filter = map[string]any{"source_id": req.SourceFilter}
	}

	vectorResults, err := r.deps.Store.SearchDocuments(ctx, queryEmbedding, fetchCount, filter)
	if err != nil {
		r.deps.Logger.Warn("vector search failed", zap.Error(err))
		return RagQueryResponse{Success: false, Query: req.Query, Error: "vector search failed: " + err.Error()}
	}

	searchMode := "vector"
	merged := vectorResults
	if useHybrid {
		keywordResults, err := r.deps.Store.KeywordDocuments(ctx, req.Query, req.SourceFilter, fetchCount)
		if err != nil {
			r.deps.Logger.Warn("keyword search failed, continuing vector-only", zap.Error(err))
		} else {
			merged = mergeHybrid(vectorResults, keywordResults, requiredCount)
			searchMode = "hybrid"
		}
	}

	reranked := false
	if useRerank && len(merged) > 0 {
		pairs := make([]rerank.Pair, len(merged))
		for i, m := range merged {
			pairs[i] = rerank.Pair{Query: req.Query, Doc: m.Content}
		}
		scores := r.deps.Reranker.Predict(ctx, pairs)
		order := rerank.SortDescending(scores)
		rerankedMerged := make([]vectorstore.SearchResult, len(merged))
		rerankedScores := make([]float64, len(merged))
		for i, s := range order {
			rerankedMerged[i] = merged[s.Index]
			rerankedScores[i] = float64(s.Score)
		}
		merged = rerankedMerged
		reranked = true

		return r.finishRagQuery(req, merged, searchMode, reranked, rerankedScores)
	}

	return r.finishRagQuery(req, merged, searchMode, reranked, nil)
}

func (r *Retriever) finishRagQuery(req RagQueryRequest, merged []vectorstore.SearchResult, searchMode string, reranked bool, rerankScores []float64) RagQueryResponse {
	originalCount := len(merged)

	start := req.Offset
	if start > len(merged) {
		start = len(merged)
	}
	end := start + req.MatchCount
	if end > len(merged) {
		end = len(merged)
	}
	page := merged[start:end]
	var pageScores []float64
	if rerankScores != nil {
		pageScores = rerankScores[start:end]
	}

	records := make([]sizefit.Record, len(page))
	for i, row := range page {
		records[i] = sizefit.Record{Content: row.Content}
	}
	fitted, diag, warning := sizefit.Fit(records, sizefit.Constraints{
		MaxResponseTokens:  req.MaxResponseTokens,
		MaxContentLength:   req.MaxContentLength,
		IncludeFullContent: req.IncludeFullContent,
	})

	results := make([]ResultItem, len(fitted))
	for i, rec := range fitted {
		item := ResultItem{
			URL:              page[i].URL,
			Content:          rec.Content,
			Metadata:         page[i].Metadata,
			Similarity:       page[i].Similarity,
			ContentTruncated: rec.ContentTruncated,
		}
		if pageScores != nil {
			score := pageScores[i]
			item.RerankScore = &score
		}
		results[i] = item
	}

	resp := RagQueryResponse{
		Success:          true,
		Query:            req.Query,
		SearchMode:       searchMode,
		RerankingApplied: reranked,
		Results:          results,
		Count:            len(results),
		Pagination: Pagination{
			Offset:         req.Offset,
			RequestedCount: req.MatchCount,
			ReturnedCount:  len(results),
			HasMore:        originalCount > req.Offset+len(results),
		},
		Warning: warning,
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
