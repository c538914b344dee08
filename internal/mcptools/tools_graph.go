package mcptools

import (
	"context"
	"regexp"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ragcrawld/ragcrawld/internal/graphstore"
)

const (
	defaultEntityMaxHops    = 1
	maxEntityMaxHops        = 3
	defaultEntityMaxRelated = 10
)

// writeClausePattern matches the Cypher keywords that mutate the graph.
// query_document_graph rejects any statement containing one of these,
// case-insensitively, as a word boundary so e.g. "Created" in a string
// literal does not trip it.
var writeClausePattern = regexp.MustCompile(`(?i)\b(CREATE|MERGE|DELETE|SET|REMOVE|DETACH|DROP|CALL\s+db\.)\b`)

type queryDocumentGraphInput struct {
	CypherQuery string         `json:"cypher_query" jsonschema:"required,Read-only Cypher statement to run"`
	Parameters  map[string]any `json:"parameters,omitempty" jsonschema:"Named parameters referenced by the query"`
}

type queryDocumentGraphOutput struct {
	Success bool             `json:"success"`
	Rows    []map[string]any `json:"rows,omitempty"`
	Count   int              `json:"count"`
	Error   string           `json:"error,omitempty"`
}

type getEntityContextInput struct {
	EntityName string `json:"entity_name" jsonschema:"required,Name of the entity to look up"`
	MaxHops    int    `json:"max_hops,omitempty" jsonschema:"Relationship hops to traverse, clamped to [1,3] (default: 1)"`
	MaxRelated int    `json:"max_related,omitempty" jsonschema:"Maximum related entities to return (default: 10)"`
}

type getEntityContextOutput struct {
	Success             bool                       `json:"success"`
	Entity              graphstore.Entity          `json:"entity"`
	Related             []graphstore.RelatedEntity `json:"related"`
	MentioningDocuments []string                   `json:"mentioning_documents"`
	Error               string                     `json:"error,omitempty"`
}

func (s *Server) registerGraphTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "query_document_graph",
		Description: "Run a read-only Cypher query against the knowledge graph. Queries containing write clauses are rejected.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args queryDocumentGraphInput) (*mcp.CallToolResult, queryDocumentGraphOutput, error) {
		if !s.features.UseKnowledgeGraph || s.graphStore == nil {
			out := queryDocumentGraphOutput{Success: false, Error: "query_document_graph requires features.use_knowledge_graph and a configured graph store"}
			res, merr := textResult(out)
			return res, out, merr
		}
		if writeClausePattern.MatchString(args.CypherQuery) {
			out := queryDocumentGraphOutput{Success: false, Error: "query_document_graph only accepts read-only statements; write clauses are rejected"}
			res, merr := textResult(out)
			return res, out, merr
		}

		rows, err := s.graphStore.Query(ctx, args.CypherQuery, args.Parameters)
		if err != nil {
			out := queryDocumentGraphOutput{Success: false, Error: "query failed: " + err.Error()}
			res, merr := textResult(out)
			return res, out, merr
		}
		out := queryDocumentGraphOutput{Success: true, Rows: rows, Count: len(rows)}
		res, merr := textResult(out)
		return res, out, merr
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_entity_context",
		Description: "Fetch an entity, the names of a bounded set of related entities within max_hops, and its mentioning documents; relationship details are not returned.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args getEntityContextInput) (*mcp.CallToolResult, getEntityContextOutput, error) {
		if !s.features.UseKnowledgeGraph || s.graphStore == nil {
			out := getEntityContextOutput{Success: false, Error: "get_entity_context requires features.use_knowledge_graph and a configured graph store"}
			res, merr := textResult(out)
			return res, out, merr
		}

		maxHops := args.MaxHops
		if maxHops <= 0 {
			maxHops = defaultEntityMaxHops
		}
		if maxHops > maxEntityMaxHops {
			maxHops = maxEntityMaxHops
		}
		maxRelated := args.MaxRelated
		if maxRelated <= 0 {
			maxRelated = defaultEntityMaxRelated
		}

		result, err := s.graphStore.EntityContext(ctx, args.EntityName, maxHops, maxRelated)
		if err != nil {
			out := getEntityContextOutput{Success: false, Error: "entity context lookup failed: " + err.Error()}
			res, merr := textResult(out)
			return res, out, merr
		}
		out := getEntityContextOutput{
			Success:             true,
			Entity:              result.Entity,
			Related:             result.Related,
			MentioningDocuments: result.MentioningDocuments,
		}
		res, merr := textResult(out)
		return res, out, merr
	})
}
