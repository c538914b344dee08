package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type getAvailableSourcesInput struct{}

type sourceSummary struct {
	SourceID       string `json:"source_id"`
	Summary        string `json:"summary"`
	TotalWordCount int    `json:"total_word_count"`
}

type getAvailableSourcesOutput struct {
	Success bool            `json:"success"`
	Sources []sourceSummary `json:"sources"`
	Count   int             `json:"count"`
	Error   string          `json:"error,omitempty"`
}

func (s *Server) registerSourceTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_available_sources",
		Description: "List every ingested source, its summary, and its total word count.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args getAvailableSourcesInput) (*mcp.CallToolResult, getAvailableSourcesOutput, error) {
		sources, err := s.store.ListSources(ctx)
		if err != nil {
			out := getAvailableSourcesOutput{Success: false, Error: "listing sources failed: " + err.Error()}
			res, merr := textResult(out)
			return res, out, merr
		}
		summaries := make([]sourceSummary, len(sources))
		for i, src := range sources {
			summaries[i] = sourceSummary{SourceID: src.SourceID, Summary: src.Summary, TotalWordCount: src.TotalWordCount}
		}
		out := getAvailableSourcesOutput{Success: true, Sources: summaries, Count: len(summaries)}
		res, err := textResult(out)
		return res, out, err
	})
}
