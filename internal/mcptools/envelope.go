package mcptools

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// textResult wraps a JSON-marshalable output value in the pretty-printed
// text content every tool call returns alongside its typed output.
func textResult(v any) (*mcp.CallToolResult, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
	}, nil
}

// errorOutput is the {success: false, error, ...} shape every tool falls
// back to on a ValidationError or ConfigurationError. Tools with their
// own typed output (rag_query, graphrag_query, ...) construct their own
// zero-value-plus-error struct instead of using this directly.
type errorOutput struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func newErrorOutput(format string, args ...any) errorOutput {
	return errorOutput{Success: false, Error: fmt.Sprintf(format, args...)}
}
