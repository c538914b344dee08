// Package vectorstore defines the gateway for document chunk, code
// example, and source storage and search, and three backend
// implementations (postgres/pgvector, qdrant, chromem).
package vectorstore

import (
	"errors"
	"time"
)

// Sentinel errors for vector store operations.
var (
	ErrInvalidConfig    = errors.New("invalid vector store configuration")
	ErrSourceNotFound   = errors.New("source not found")
	ErrEmptyDocuments   = errors.New("empty or nil documents")
	ErrConnectionFailed = errors.New("failed to connect to vector store backend")
)

// Source is one row of the sources aggregate.
type Source struct {
	SourceID       string
	Summary        string
	TotalWordCount int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Chunk is one document-chunk row to be inserted by ReplaceDocuments.
type Chunk struct {
	URL         string
	ChunkNumber int
	Content     string
	Metadata    map[string]any
	SourceID    string
	Embedding   []float32
}

// CodeExample is one code-example row to be inserted by ReplaceCodeExamples.
type CodeExample struct {
	URL         string
	ChunkNumber int
	Content     string
	Summary     string
	Metadata    map[string]any
	SourceID    string
	Embedding   []float32
}

// SearchResult is a single row returned from a similarity or keyword
// search, shaped for direct use by internal/retrieve.
type SearchResult struct {
	ID         string
	URL        string
	Content    string
	Summary    string // set for code-example search results
	Metadata   map[string]any
	SourceID   string
	Similarity float64
}

// ReplaceDocumentsInput bundles ReplaceDocuments' per-URL inputs so the
// caller supplies chunk text, metadata, and the full document text (for
// optional contextual embedding) together, one entry per URL.
type ReplaceDocumentsInput struct {
	URL              string
	Chunks           []string
	Metadatas        []map[string]any
	FullDocumentText string
}

// ReplaceCodeExamplesInput bundles one URL's code examples.
type ReplaceCodeExamplesInput struct {
	URL       string
	Code      []string
	Summaries []string
	Metadatas []map[string]any
}

// BatchResult reports how many rows of a batch write succeeded, for the
// PartialBatchFailure error kind: writers never fail the
// enclosing request outright on a partial batch failure.
type BatchResult struct {
	Attempted int
	Succeeded int
}
