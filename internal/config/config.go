package config

import "fmt"

// VectorBackend selects which vectorstore.Store implementation is built.
type VectorBackend string

const (
	VectorBackendPostgres VectorBackend = "postgres"
	VectorBackendQdrant   VectorBackend = "qdrant"
	VectorBackendChromem  VectorBackend = "chromem"
)

// Config is the root configuration for ragcrawld.
type Config struct {
	Server     ServerConfig     `koanf:"server" yaml:"server"`
	Logging    LoggingConfig    `koanf:"logging" yaml:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry" yaml:"telemetry"`
	VectorDB   VectorDBConfig   `koanf:"vector_db" yaml:"vector_db"`
	GraphDB    GraphDBConfig    `koanf:"graph_db" yaml:"graph_db"`
	Embedding  EmbeddingConfig  `koanf:"embedding" yaml:"embedding"`
	LLM        LLMConfig        `koanf:"llm" yaml:"llm"`
	Crawl      CrawlConfig      `koanf:"crawl" yaml:"crawl"`
	Features   FeatureFlags     `koanf:"features" yaml:"features"`
	Timeouts   TimeoutsConfig   `koanf:"timeouts" yaml:"timeouts"`
	SizeLimits SizeLimitsConfig `koanf:"size_limits" yaml:"size_limits"`
}

// ServerConfig controls the MCP/tool-surface process.
type ServerConfig struct {
	Name    string `koanf:"name" yaml:"name"`
	Version string `koanf:"version" yaml:"version"`
}

// LoggingConfig controls the zap-backed logger.
type LoggingConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"` // "json" or "console"
}

// TelemetryConfig controls the OTEL metrics pipeline.
type TelemetryConfig struct {
	Enabled        bool   `koanf:"enabled" yaml:"enabled"`
	PrometheusAddr string `koanf:"prometheus_addr" yaml:"prometheus_addr"`
	ServiceName    string `koanf:"service_name" yaml:"service_name"`
}

// VectorDBConfig selects and configures the vector store backend.
type VectorDBConfig struct {
	Backend           VectorBackend `koanf:"backend" yaml:"backend"`
	DSN               Secret        `koanf:"dsn" yaml:"dsn"`                 // postgres
	QdrantURL         string        `koanf:"qdrant_url" yaml:"qdrant_url"`   // qdrant
	QdrantAPIKey      Secret        `koanf:"qdrant_api_key" yaml:"qdrant_api_key"`
	ChromemPath       string        `koanf:"chromem_path" yaml:"chromem_path"`
	EmbeddingDim      int           `koanf:"embedding_dim" yaml:"embedding_dim"`
	MaxConns          int           `koanf:"max_conns" yaml:"max_conns"`
	DocumentBatchSize int           `koanf:"document_batch_size" yaml:"document_batch_size"`
}

// GraphDBConfig configures the Neo4j-backed graph store gateway.
type GraphDBConfig struct {
	URI      string `koanf:"uri" yaml:"uri"`
	Username string `koanf:"username" yaml:"username"`
	Password Secret `koanf:"password" yaml:"password"`
	Database string `koanf:"database" yaml:"database"`
}

// EmbeddingConfig configures the batch embedding HTTP client.
type EmbeddingConfig struct {
	BaseURL        string `koanf:"base_url" yaml:"base_url"`
	Model          string `koanf:"model" yaml:"model"`
	APIKey         Secret `koanf:"api_key" yaml:"api_key"`
	MaxBatchTokens int    `koanf:"max_batch_tokens" yaml:"max_batch_tokens"`
	MaxBatchItems  int    `koanf:"max_batch_items" yaml:"max_batch_items"`
	Dimension      int    `koanf:"dimension" yaml:"dimension"`
}

// LLMConfig configures the summarizer/entity-extraction completion client.
type LLMConfig struct {
	Provider  string `koanf:"provider" yaml:"provider"` // "anthropic", "openai", "disabled"
	BaseURL   string `koanf:"base_url" yaml:"base_url"`
	Model     string `koanf:"model" yaml:"model"`
	APIKey    Secret `koanf:"api_key" yaml:"api_key"`
	RateLimit float64 `koanf:"rate_limit" yaml:"rate_limit"` // requests/sec
	Burst     int     `koanf:"burst" yaml:"burst"`
}

// CrawlConfig configures the orchestrator's default concurrency/throttle knobs.
type CrawlConfig struct {
	MaxConcurrentBrowserSessions int     `koanf:"max_concurrent_browser_sessions" yaml:"max_concurrent_browser_sessions"`
	DefaultChunkSize             int     `koanf:"default_chunk_size" yaml:"default_chunk_size"`
	DefaultMaxDepth              int     `koanf:"default_max_depth" yaml:"default_max_depth"`
	MemoryThresholdMB            float64 `koanf:"memory_threshold_mb" yaml:"memory_threshold_mb"`
	MinCodeBlockLength           int     `koanf:"min_code_block_length" yaml:"min_code_block_length"`
}

// FeatureFlags are the process-wide retrieval and crawl feature toggles.
type FeatureFlags struct {
	UseHybridSearch        bool `koanf:"use_hybrid_search" yaml:"use_hybrid_search"`
	UseReranking           bool `koanf:"use_reranking" yaml:"use_reranking"`
	UseAgenticRAG          bool `koanf:"use_agentic_rag" yaml:"use_agentic_rag"`
	UseContextualEmbedding bool `koanf:"use_contextual_embeddings" yaml:"use_contextual_embeddings"`
	UseGraphRAG            bool `koanf:"use_graphrag" yaml:"use_graphrag"`
	UseKnowledgeGraph      bool `koanf:"use_knowledge_graph" yaml:"use_knowledge_graph"`
}

// TimeoutsConfig bounds external calls.
type TimeoutsConfig struct {
	API      Duration `koanf:"api" yaml:"api"`
	Database Duration `koanf:"database" yaml:"database"`
	Crawler  Duration `koanf:"crawler" yaml:"crawler"`
}

// SizeLimitsConfig bounds the response size manager.
type SizeLimitsConfig struct {
	MaxResponseTokens int `koanf:"max_response_tokens" yaml:"max_response_tokens"`
	ReservedTokens    int `koanf:"reserved_tokens" yaml:"reserved_tokens"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Name: "ragcrawld", Version: "0.1.0"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:        true,
			PrometheusAddr: ":9090",
			ServiceName:    "ragcrawld",
		},
		VectorDB: VectorDBConfig{
			Backend:           VectorBackendPostgres,
			EmbeddingDim:      1536,
			MaxConns:          10,
			DocumentBatchSize: 20,
			ChromemPath:       "./data/chromem",
		},
		GraphDB: GraphDBConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
		Embedding: EmbeddingConfig{
			BaseURL:        "http://localhost:8081/v1",
			Model:          "text-embedding-3-small",
			MaxBatchTokens: 8000,
			MaxBatchItems:  16,
			Dimension:      1536,
		},
		LLM: LLMConfig{
			Provider:  "anthropic",
			BaseURL:   "https://api.anthropic.com",
			Model:     "claude-3-5-haiku-20241022",
			RateLimit: 50.0 / 60.0,
			Burst:     5,
		},
		Crawl: CrawlConfig{
			MaxConcurrentBrowserSessions: 10,
			DefaultChunkSize:             5000,
			DefaultMaxDepth:              3,
			MemoryThresholdMB:            1024,
			MinCodeBlockLength:           1000,
		},
		Features: FeatureFlags{
			UseHybridSearch: true,
		},
		Timeouts: TimeoutsConfig{
			API:      Duration(30_000_000_000),  // 30s
			Database: Duration(10_000_000_000),  // 10s
			Crawler:  Duration(60_000_000_000),  // 60s
		},
		SizeLimits: SizeLimitsConfig{
			MaxResponseTokens: 20000,
			ReservedTokens:    500,
		},
	}
}

// Validate checks cross-field invariants that koanf unmarshaling cannot
// enforce on its own.
func (c *Config) Validate() error {
	if c.VectorDB.EmbeddingDim <= 0 {
		return fmt.Errorf("vector_db.embedding_dim must be positive")
	}
	switch c.VectorDB.Backend {
	case VectorBackendPostgres:
		if !c.VectorDB.DSN.IsSet() {
			return fmt.Errorf("vector_db.dsn is required for the postgres backend")
		}
	case VectorBackendQdrant:
		if c.VectorDB.QdrantURL == "" {
			return fmt.Errorf("vector_db.qdrant_url is required for the qdrant backend")
		}
	case VectorBackendChromem:
		if c.VectorDB.ChromemPath == "" {
			return fmt.Errorf("vector_db.chromem_path is required for the chromem backend")
		}
	default:
		return fmt.Errorf("vector_db.backend %q is not one of postgres|qdrant|chromem", c.VectorDB.Backend)
	}
	if c.Features.UseGraphRAG && !c.Features.UseKnowledgeGraph {
		return fmt.Errorf("features.use_graphrag requires features.use_knowledge_graph")
	}
	if c.SizeLimits.MaxResponseTokens > 20000 {
		c.SizeLimits.MaxResponseTokens = 20000
	}
	if c.Embedding.Dimension != c.VectorDB.EmbeddingDim {
		return fmt.Errorf("embedding.dimension (%d) must match vector_db.embedding_dim (%d)",
			c.Embedding.Dimension, c.VectorDB.EmbeddingDim)
	}
	return nil
}
