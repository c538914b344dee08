package retrieve

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultMaxEntities      = 10
	graphragAnswerTemp      = 0.3
	graphragAnswerMaxTokens = 500
	maxSnippetsForAnswer    = 5
	snippetTruncateChars    = 800
)

// GraphragQueryRequest is graphrag_query's parameter set.
type GraphragQueryRequest struct {
	Query              string
	UseGraphEnrichment bool
	MaxEntities        int
	SourceFilter       string
	MatchCount         int
	Offset             int
	MaxContentLength   int
	IncludeFullContent bool
	MaxResponseTokens  int
}

// GraphragEnrichment is the graph_enrichment block of GraphragQueryResponse.
type GraphragEnrichment struct {
	EntitiesFound int      `json:"entities_found"`
	Concepts      []string `json:"concepts"`
	Dependencies  []string `json:"dependencies"`
}

// GraphragQueryResponse is graphrag_query's response envelope.
type GraphragQueryResponse struct {
	Success             bool                `json:"success"`
	Query               string              `json:"query"`
	Answer              string              `json:"answer"`
	GraphEnrichmentUsed bool                `json:"graph_enrichment_used"`
	GraphEnrichment     *GraphragEnrichment `json:"graph_enrichment,omitempty"`
	Pagination          Pagination          `json:"pagination"`
	Sources             []string            `json:"sources"`
	Warnings            []string            `json:"warnings,omitempty"`
	Error               string              `json:"error,omitempty"`
}

// GraphragQuery runs rag_query's search stages, then optionally enriches
// the top results with graph context before asking an LLM to answer using
// both the enrichment and the retrieved snippets.
func (r *Retriever) GraphragQuery(ctx context.Context, req GraphragQueryRequest) GraphragQueryResponse {
	if r.deps.Metrics != nil {
		start := time.Now()
		defer func() {
			r.deps.Metrics.RetrievalLatency.Record(ctx, time.Since(start).Seconds())
		}()
	}
	if req.MaxEntities <= 0 {
		req.MaxEntities = defaultMaxEntities
	}

	ragResp := r.RagQuery(ctx, RagQueryRequest{
		Query:              req.Query,
		SourceFilter:       req.SourceFilter,
		MatchCount:         req.MatchCount,
		Offset:             req.Offset,
		MaxContentLength:   req.MaxContentLength,
		IncludeFullContent: req.IncludeFullContent,
		MaxResponseTokens:  req.MaxResponseTokens,
		UseHybrid:          r.deps.Flags.UseHybridSearch,
		UseRerank:          r.deps.Flags.UseReranking,
	})
	if !ragResp.Success {
		return GraphragQueryResponse{Success: false, Query: req.Query, Error: ragResp.Error}
	}

	var warnings []string
	var enrichment *GraphragEnrichment
	enrichmentMarkdown := ""
	graphUsed := false

	documentIDs := collectDocumentIDs(ragResp.Results)

	if req.UseGraphEnrichment && r.deps.Flags.UseGraphRAG && r.deps.GraphStore != nil {
		if len(documentIDs) == 0 {
			warnings = append(warnings, "graph enrichment unavailable: no document_id present in result metadata (likely ingested without the graph path)")
		} else {
			result, err := r.deps.GraphStore.EnrichDocuments(ctx, documentIDs, req.MaxEntities)
			if err != nil {
				r.deps.Logger.Warn("graph enrichment failed", zap.Error(err))
				warnings = append(warnings, "graph enrichment failed: "+err.Error())
			} else if len(result.Entities) > 0 {
				graphUsed = true
				enrichmentMarkdown = result.Markdown
				enrichment = &GraphragEnrichment{EntitiesFound: len(result.Entities)}
				for _, e := range result.Entities {
					switch e.Entity.Label {
					case "Concept", "Technology", "Product":
						enrichment.Concepts = append(enrichment.Concepts, e.Entity.Name)
					}
					for _, rel := range e.Related {
						if rel.Relationship.Type == "DEPENDS_ON" || rel.Relationship.Type == "REQUIRES" {
							enrichment.Dependencies = append(enrichment.Dependencies, fmt.Sprintf("%s -> %s", e.Entity.Name, rel.Entity.Name))
						}
					}
				}
			}
		}
	}

	answer := r.generateAnswer(ctx, req.Query, enrichmentMarkdown, ragResp.Results)

	sources := make([]string, 0, len(ragResp.Results))
	seen := make(map[string]bool)
	for _, res := range ragResp.Results {
		if !seen[res.URL] {
			seen[res.URL] = true
			sources = append(sources, res.URL)
		}
	}

	return GraphragQueryResponse{
		Success:             true,
		Query:               req.Query,
		Answer:              answer,
		GraphEnrichmentUsed: graphUsed,
		GraphEnrichment:     enrichment,
		Pagination:          ragResp.Pagination,
		Sources:             sources,
		Warnings:            warnings,
	}
}

func collectDocumentIDs(results []ResultItem) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, r := range results {
		if r.Metadata == nil {
			continue
		}
		docID, ok := r.Metadata["document_id"].(string)
		if !ok || docID == "" || seen[docID] {
			continue
		}
		seen[docID] = true
		ids = append(ids, docID)
	}
	return ids
}

func (r *Retriever) generateAnswer(ctx context.Context, query, enrichmentMarkdown string, results []ResultItem) string {
	if r.deps.Completer == nil {
		return ""
	}

	var b strings.Builder
	if enrichmentMarkdown != "" {
		b.WriteString(enrichmentMarkdown)
		b.WriteString("\n\n")
	}

	n := len(results)
	if n > maxSnippetsForAnswer {
		n = maxSnippetsForAnswer
	}
	for i := 0; i < n; i++ {
		b.WriteString("## Source: ")
		b.WriteString(results[i].URL)
		b.WriteString("\n")
		b.WriteString(truncate(results[i].Content, snippetTruncateChars))
		b.WriteString("\n\n")
	}

	system := "You answer questions using only the provided context. Cite sources by URL when relevant. If the context doesn't answer the question, say so."
	user := fmt.Sprintf("Question: %s\n\nContext:\n%s", query, b.String())

	answer, err := r.deps.Completer.Complete(ctx, system, user, graphragAnswerMaxTokens, graphragAnswerTemp)
	if err != nil {
		r.deps.Logger.Warn("graphrag answer generation failed", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(answer)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
