package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ragcrawld/ragcrawld/internal/retrieve"
)

type ragQueryInput struct {
	Query              string `json:"query" jsonschema:"required,Search query"`
	SourceFilter       string `json:"source_filter,omitempty" jsonschema:"Restrict results to one source_id"`
	MatchCount         int    `json:"match_count,omitempty" jsonschema:"Number of results to return (default: 5)"`
	Offset             int    `json:"offset,omitempty" jsonschema:"Pagination offset"`
	MaxContentLength   int    `json:"max_content_length,omitempty" jsonschema:"Per-result content truncation limit in characters (default: 1000)"`
	IncludeFullContent *bool  `json:"include_full_content,omitempty" jsonschema:"Skip per-result truncation (default: true)"`
	MaxResponseTokens  int    `json:"max_response_tokens,omitempty" jsonschema:"Overall response token budget, capped at 20000"`
}

type searchCodeExamplesInput struct {
	Query      string `json:"query" jsonschema:"required,Search query"`
	SourceID   string `json:"source_id,omitempty" jsonschema:"Restrict results to one source_id"`
	MatchCount int    `json:"match_count,omitempty" jsonschema:"Number of results to return (default: 5)"`
}

type graphragQueryInput struct {
	Query              string `json:"query" jsonschema:"required,Search query"`
	UseGraphEnrichment *bool  `json:"use_graph_enrichment,omitempty" jsonschema:"Enrich results with graph context (default: true)"`
	MaxEntities        int    `json:"max_entities,omitempty" jsonschema:"Maximum entities to fetch from the graph (default: 10)"`
	SourceFilter       string `json:"source_filter,omitempty" jsonschema:"Restrict results to one source_id"`
	MatchCount         int    `json:"match_count,omitempty" jsonschema:"Number of results to retrieve (default: 5)"`
	Offset             int    `json:"offset,omitempty" jsonschema:"Pagination offset"`
}

func (s *Server) registerRetrievalTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "perform_rag_query",
		Description: "Run hybrid vector+keyword search with optional reranking over ingested document chunks.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ragQueryInput) (*mcp.CallToolResult, retrieve.RagQueryResponse, error) {
		out := s.retriever.RagQuery(ctx, retrieve.RagQueryRequest{
			Query:              args.Query,
			SourceFilter:       args.SourceFilter,
			MatchCount:         args.MatchCount,
			Offset:             args.Offset,
			MaxContentLength:   args.MaxContentLength,
			IncludeFullContent: args.IncludeFullContent == nil || *args.IncludeFullContent,
			MaxResponseTokens:  args.MaxResponseTokens,
			UseHybrid:          s.features.UseHybridSearch,
			UseRerank:          s.features.UseReranking,
		})
		res, err := textResult(out)
		return res, out, err
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_code_examples",
		Description: "Run the rag_query pipeline over ingested code examples instead of document chunks.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args searchCodeExamplesInput) (*mcp.CallToolResult, retrieve.SearchCodeExamplesResponse, error) {
		if !s.features.UseAgenticRAG {
			out := retrieve.SearchCodeExamplesResponse{Success: false, Query: args.Query,
				Error: "search_code_examples requires features.use_agentic_rag"}
			res, merr := textResult(out)
			return res, out, merr
		}
		out := s.retriever.SearchCodeExamples(ctx, retrieve.SearchCodeExamplesRequest{
			Query:        args.Query,
			SourceFilter: args.SourceID,
			MatchCount:   args.MatchCount,
			UseRerank:    s.features.UseReranking,
		})
		res, err := textResult(out)
		return res, out, err
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "graphrag_query",
		Description: "Run perform_rag_query, then enrich the results with graph context and synthesize an answer.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args graphragQueryInput) (*mcp.CallToolResult, retrieve.GraphragQueryResponse, error) {
		if !s.features.UseGraphRAG || s.graphStore == nil {
			out := retrieve.GraphragQueryResponse{Success: false, Query: args.Query,
				Error: "graphrag_query requires features.use_graphrag and a configured graph store"}
			res, merr := textResult(out)
			return res, out, merr
		}
		out := s.retriever.GraphragQuery(ctx, retrieve.GraphragQueryRequest{
			Query:              args.Query,
			UseGraphEnrichment: args.UseGraphEnrichment == nil || *args.UseGraphEnrichment,
			MaxEntities:        args.MaxEntities,
			SourceFilter:       args.SourceFilter,
			MatchCount:         args.MatchCount,
			Offset:             args.Offset,
		})
		res, err := textResult(out)
		return res, out, err
	})
}
