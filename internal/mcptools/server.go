// Package mcptools exposes the crawl and retrieval pipelines as an MCP
// tool surface, calling the internal packages directly rather than
// through any intermediate RPC layer.
package mcptools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ragcrawld/ragcrawld/internal/config"
	"github.com/ragcrawld/ragcrawld/internal/crawl/orchestrate"
	"github.com/ragcrawld/ragcrawld/internal/graphstore"
	"github.com/ragcrawld/ragcrawld/internal/retrieve"
	"github.com/ragcrawld/ragcrawld/internal/vectorstore"
)

// Server adapts the crawl orchestrator and retrieval pipeline to the MCP
// tool-call protocol.
type Server struct {
	mcp          *mcp.Server
	orchestrator *orchestrate.Orchestrator
	retriever    *retrieve.Retriever
	store        vectorstore.Store
	graphStore   graphstore.Store
	features     config.FeatureFlags
	memory       *orchestrate.MemoryMonitor
	logger       *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "ragcrawld")
	Name string

	// Version is the server version (default: "0.1.0")
	Version string

	// Logger for structured logging
	Logger *zap.Logger

	// Features gates which optional tool behavior (hybrid search,
	// reranking, code-example extraction, graph enrichment) is active.
	Features config.FeatureFlags
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "ragcrawld",
		Version: "0.1.0",
		Logger:  zap.NewNop(),
	}
}

// New creates a new MCP server with the given services.
func New(
	cfg *Config,
	orchestrator *orchestrate.Orchestrator,
	retriever *retrieve.Retriever,
	store vectorstore.Store,
	graphStore graphstore.Store,
) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	// graphStore is optional: graph tools report ConfigurationError
	// responses when it is nil rather than failing construction.

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		nil,
	)

	s := &Server{
		mcp:          mcpServer,
		orchestrator: orchestrator,
		retriever:    retriever,
		store:        store,
		graphStore:   graphStore,
		features:     cfg.Features,
		memory:       orchestrate.NewMemoryMonitor(0),
		logger:       cfg.Logger,
	}

	s.registerCrawlTools()
	s.registerSourceTools()
	s.registerRetrievalTools()
	s.registerGraphTools()

	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	transport := &mcp.StdioTransport{}
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Close releases the graph store's driver resources. The vector store is
// owned by the caller of New and closed separately.
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("closing MCP server")
	if s.graphStore != nil {
		if err := s.graphStore.Close(ctx); err != nil {
			return fmt.Errorf("graph store close: %w", err)
		}
	}
	return nil
}
