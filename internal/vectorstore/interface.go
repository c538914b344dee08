package vectorstore

import "context"

// DefaultBatchSize is the fixed batch size for document and code-example
// inserts (fixed at 20).
const DefaultBatchSize = 20

// Embedder is the embedding client contract this gateway depends on.
type Embedder interface {
	Embed(ctx context.Context, texts []string) [][]float32
}

// ChunkContexter is the summarizer contract used for optional
// contextual embedding of chunks before they are sent to Embedder.
type ChunkContexter interface {
	ChunkContext(ctx context.Context, documentSample, chunk string) string
}

// Store is the vector store gateway contract. Every
// implementation must uphold: inserted rows always carry a non-null
// embedding of the configured dimension, (url, chunk_number) uniqueness
// via delete-then-insert, and reads never return rows without source_id.
type Store interface {
	// UpsertSource creates or updates a Source row. Callers must ensure
	// this completes before any chunk referencing source_id is inserted.
	UpsertSource(ctx context.Context, sourceID, summary string, totalWords int) error

	// ReplaceDocuments deletes all existing chunks for each input URL and
	// inserts the new chunk set, applying contextual embedding (if ctxer
	// is non-nil). PostgresStore inserts in batches of DefaultBatchSize;
	// ChromemStore and QdrantStore write all of a call's rows in one
	// request, with no batching.
	ReplaceDocuments(ctx context.Context, inputs []ReplaceDocumentsInput, ctxer ChunkContexter) (BatchResult, error)

	// ReplaceCodeExamples is ReplaceDocuments' code-example counterpart;
	// embedding text for each row is code + "\n\nSummary: " + summary.
	ReplaceCodeExamples(ctx context.Context, inputs []ReplaceCodeExamplesInput) (BatchResult, error)

	// SearchDocuments performs vector similarity search over document
	// chunks, optionally filtered by metadata (e.g. source_id).
	SearchDocuments(ctx context.Context, queryEmbedding []float32, matchCount int, filterMetadata map[string]any) ([]SearchResult, error)

	// SearchCodeExamples is SearchDocuments' code-example counterpart.
	SearchCodeExamples(ctx context.Context, queryEmbedding []float32, matchCount int, filterMetadata map[string]any) ([]SearchResult, error)

	// KeywordDocuments performs a substring ILIKE search over chunk
	// content, optionally constrained to a single source.
	KeywordDocuments(ctx context.Context, query, sourceFilter string, limit int) ([]SearchResult, error)

	// ListSources returns every Source row, for get_available_sources.
	ListSources(ctx context.Context) ([]Source, error)

	// Close releases backend resources.
	Close() error
}
