// Package retrieve implements the two retrieval entry points that compose
// embedding, vector/keyword search, reranking, pagination, size-fitting,
// and optional graph enrichment.
package retrieve

import (
	"context"

	"github.com/ragcrawld/ragcrawld/internal/graphstore"
	"github.com/ragcrawld/ragcrawld/internal/rerank"
	"github.com/ragcrawld/ragcrawld/internal/telemetry"
	"github.com/ragcrawld/ragcrawld/internal/vectorstore"
	"go.uber.org/zap"
)

// Completer is the minimal LLM chat-completion contract graphrag_query
// needs to produce its answer.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error)
}

// Flags are the process-wide retrieval feature flags. A retrieval caller
// may override hybrid/rerank per-request; graph use is gated by both this
// flag and a non-nil GraphStore.
type Flags struct {
	UseHybridSearch bool
	UseReranking    bool
	UseGraphRAG     bool
}

// Deps bundles every collaborator the retrieval orchestrator composes.
type Deps struct {
	Embedder   vectorstore.Embedder
	Store      vectorstore.Store
	Reranker   *rerank.Reranker
	GraphStore graphstore.Store
	Completer  Completer
	Flags      Flags
	Metrics    *telemetry.Telemetry
	Logger     *zap.Logger
}

// Retriever exposes the two retrieval entry points, rag_query and
// graphrag_query, and the shared pipeline stages behind them.
type Retriever struct {
	deps Deps
}

// New builds a Retriever from its collaborators.
func New(deps Deps) *Retriever {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Retriever{deps: deps}
}

// searchBuffer is the extra rows fetched beyond offset+match_count, so a
// hybrid merge and/or rerank has enough candidates to choose from before
// pagination trims the page down.
const searchBuffer = 10

// ResultItem is one row of a retrieval response.
type ResultItem struct {
	URL              string         `json:"url"`
	Content          string         `json:"content"`
	Metadata         map[string]any `json:"metadata"`
	Similarity       float64        `json:"similarity"`
	RerankScore      *float64       `json:"rerank_score,omitempty"`
	ContentTruncated bool           `json:"_content_truncated,omitempty"`
}

// Pagination describes the page returned relative to the full result set.
type Pagination struct {
	Offset         int  `json:"offset"`
	RequestedCount int  `json:"requested_count"`
	ReturnedCount  int  `json:"returned_count"`
	HasMore        bool `json:"has_more"`
}

// TruncationInfo mirrors sizefit.Diagnostic in the response envelope.
type TruncationInfo struct {
	Truncated             bool `json:"truncated"`
	OriginalCount         int  `json:"original_count"`
	FinalCount            int  `json:"final_count"`
	ContentTruncatedCount int  `json:"content_truncated_count"`
	EstimatedTokens       int  `json:"estimated_tokens"`
}
