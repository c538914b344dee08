package main

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"go.uber.org/zap"

	"github.com/ragcrawld/ragcrawld/internal/config"
	"github.com/ragcrawld/ragcrawld/internal/crawl/httpfetch"
	"github.com/ragcrawld/ragcrawld/internal/crawl/orchestrate"
	"github.com/ragcrawld/ragcrawld/internal/embedclient"
	"github.com/ragcrawld/ragcrawld/internal/extract"
	"github.com/ragcrawld/ragcrawld/internal/graphstore"
	"github.com/ragcrawld/ragcrawld/internal/llmclient"
	"github.com/ragcrawld/ragcrawld/internal/mcptools"
	"github.com/ragcrawld/ragcrawld/internal/rerank"
	"github.com/ragcrawld/ragcrawld/internal/retrieve"
	"github.com/ragcrawld/ragcrawld/internal/summarize"
	"github.com/ragcrawld/ragcrawld/internal/telemetry"
	"github.com/ragcrawld/ragcrawld/internal/vectorstore"
)

// app bundles every wired collaborator so serve/crawl/closeAll share one
// construction path.
type app struct {
	cfg          *config.Config
	logger       *zap.Logger
	telemetry    *telemetry.Telemetry
	store        vectorstore.Store
	graphStore   graphstore.Store
	orchestrator *orchestrate.Orchestrator
	retriever    *retrieve.Retriever
	server       *mcptools.Server
}

// buildApp wires every component from cfg, in dependency order: stores
// first (so EnsureSchema can run before any write), then the embedding
// and LLM clients, then the crawl and retrieval orchestrators, then the
// MCP tool surface on top of both.
func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	tel, err := telemetry.New(telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		PrometheusAddr: cfg.Telemetry.PrometheusAddr,
		ServiceName:    cfg.Telemetry.ServiceName,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	store, err := newVectorStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}

	var graphStore graphstore.Store
	if cfg.Features.UseKnowledgeGraph {
		gs, err := graphstore.New(ctx, graphstore.Config{
			URI:      cfg.GraphDB.URI,
			Username: cfg.GraphDB.Username,
			Password: cfg.GraphDB.Password.Value(),
			Database: cfg.GraphDB.Database,
		}, logger)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("graph store: %w", err)
		}
		if err := gs.EnsureSchema(ctx); err != nil {
			logger.Warn("graph schema setup reported an error", zap.Error(err))
		}
		graphStore = gs
	}

	embedder := embedclient.New(embedclient.Config{
		BaseURL:        cfg.Embedding.BaseURL,
		Model:          cfg.Embedding.Model,
		APIKey:         cfg.Embedding.APIKey.Value(),
		Dimension:      cfg.Embedding.Dimension,
		MaxBatchTokens: cfg.Embedding.MaxBatchTokens,
		MaxBatchItems:  cfg.Embedding.MaxBatchItems,
		Metrics:        tel,
		Logger:         logger,
	})

	var completer summarize.Completer
	if cfg.LLM.Provider != "disabled" && cfg.LLM.Provider != "" {
		completer = llmclient.New(llmclient.Config{
			BaseURL:   cfg.LLM.BaseURL,
			Model:     cfg.LLM.Model,
			APIKey:    cfg.LLM.APIKey.Value(),
			RateLimit: cfg.LLM.RateLimit,
			Burst:     cfg.LLM.Burst,
			Logger:    logger,
		})
	}

	summarizer := summarize.New(completer, logger)
	extractor := extract.New(completer, logger)
	reranker := rerank.New(logger)

	fetcherFactory := httpfetch.NewFactory(httpfetch.Config{
		Timeout: cfg.Timeouts.Crawler.Duration(),
		Logger:  logger,
	})

	orchestrator := orchestrate.New(orchestrate.Config{
		FetcherFactory:         fetcherFactory,
		Store:                  store,
		Embedder:               embedder,
		Summarizer:             summarizer,
		Extractor:              extractor,
		GraphStore:             graphStore,
		MemoryThreshold:        uint64(cfg.Crawl.MemoryThresholdMB * 1024 * 1024),
		UseContextualEmbedding: cfg.Features.UseContextualEmbedding,
		Metrics:                tel,
		Logger:                 logger,
	})

	retriever := retrieve.New(retrieve.Deps{
		Embedder:   embedder,
		Store:      store,
		Reranker:   reranker,
		GraphStore: graphStore,
		Completer:  completer,
		Flags: retrieve.Flags{
			UseHybridSearch: cfg.Features.UseHybridSearch,
			UseReranking:    cfg.Features.UseReranking,
			UseGraphRAG:     cfg.Features.UseGraphRAG,
		},
		Metrics: tel,
		Logger:  logger,
	})

	server, err := mcptools.New(&mcptools.Config{
		Name:     cfg.Server.Name,
		Version:  cfg.Server.Version,
		Logger:   logger,
		Features: cfg.Features,
	}, orchestrator, retriever, store, graphStore)
	if err != nil {
		store.Close()
		if graphStore != nil {
			graphStore.Close(ctx)
		}
		return nil, fmt.Errorf("mcp server: %w", err)
	}

	return &app{
		cfg:          cfg,
		logger:       logger,
		telemetry:    tel,
		store:        store,
		graphStore:   graphStore,
		orchestrator: orchestrator,
		retriever:    retriever,
		server:       server,
	}, nil
}

func (a *app) Close(ctx context.Context) {
	if a.server != nil {
		if err := a.server.Close(ctx); err != nil {
			a.logger.Warn("mcp server close failed", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("vector store close failed", zap.Error(err))
		}
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown failed", zap.Error(err))
	}
}

func newVectorStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (vectorstore.Store, error) {
	vsCfg := vectorstore.Config{
		Dimension: cfg.VectorDB.EmbeddingDim,
		MaxConns:  cfg.VectorDB.MaxConns,
	}

	switch cfg.VectorDB.Backend {
	case config.VectorBackendQdrant:
		vsCfg.Backend = vectorstore.BackendQdrant
		host, port, err := splitQdrantURL(cfg.VectorDB.QdrantURL)
		if err != nil {
			return nil, err
		}
		vsCfg.QdrantHost = host
		vsCfg.QdrantPort = port
		vsCfg.QdrantUseTLS = isHTTPS(cfg.VectorDB.QdrantURL)
		vsCfg.QdrantAPIKey = cfg.VectorDB.QdrantAPIKey.Value()
	case config.VectorBackendChromem:
		vsCfg.Backend = vectorstore.BackendChromem
		vsCfg.ChromemPath = cfg.VectorDB.ChromemPath
	default:
		vsCfg.Backend = vectorstore.BackendPostgres
		vsCfg.PostgresDSN = cfg.VectorDB.DSN.Value()
	}

	return vectorstore.NewStore(ctx, vsCfg, logger)
}

func splitQdrantURL(rawURL string) (string, int, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, fmt.Errorf("parsing qdrant url %q: %w", rawURL, err)
	}
	host, portStr, err := net.SplitHostPort(parsed.Host)
	if err != nil {
		return parsed.Host, 6334, nil
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return host, 6334, nil
	}
	return host, port, nil
}

func isHTTPS(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	return err == nil && parsed.Scheme == "https"
}
