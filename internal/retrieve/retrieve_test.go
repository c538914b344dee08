package retrieve_test

import (
	"context"
	"strings"
	"testing"

	"github.com/ragcrawld/ragcrawld/internal/graphstore"
	"github.com/ragcrawld/ragcrawld/internal/rerank"
	"github.com/ragcrawld/ragcrawld/internal/retrieve"
	"github.com/ragcrawld/ragcrawld/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out
}

type fakeStore struct {
	vectorResults  []vectorstore.SearchResult
	keywordResults []vectorstore.SearchResult
}

func (s *fakeStore) UpsertSource(ctx context.Context, sourceID, summary string, totalWords int) error {
	return nil
}
func (s *fakeStore) ReplaceDocuments(ctx context.Context, inputs []vectorstore.ReplaceDocumentsInput, ctxer vectorstore.ChunkContexter) (vectorstore.BatchResult, error) {
	return vectorstore.BatchResult{}, nil
}
func (s *fakeStore) ReplaceCodeExamples(ctx context.Context, inputs []vectorstore.ReplaceCodeExamplesInput) (vectorstore.BatchResult, error) {
	return vectorstore.BatchResult{}, nil
}
func (s *fakeStore) SearchDocuments(ctx context.Context, q []float32, n int, filter map[string]any) ([]vectorstore.SearchResult, error) {
	return s.vectorResults, nil
}
func (s *fakeStore) SearchCodeExamples(ctx context.Context, q []float32, n int, filter map[string]any) ([]vectorstore.SearchResult, error) {
	return nil, nil
}
func (s *fakeStore) KeywordDocuments(ctx context.Context, query, sourceFilter string, limit int) ([]vectorstore.SearchResult, error) {
	return s.keywordResults, nil
}
func (s *fakeStore) ListSources(ctx context.Context) ([]vectorstore.Source, error) { return nil, nil }
func (s *fakeStore) Close() error                                                  { return nil }

func TestRagQueryReturnsPaginatedResults(t *testing.T) {
	store := &fakeStore{vectorResults: []vectorstore.SearchResult{
		{ID: "1", URL: "https://a", Content: "about databases and optimization", Similarity: 0.9},
		{ID: "2", URL: "https://b", Content: "something unrelated entirely", Similarity: 0.8},
	}}
	r := retrieve.New(retrieve.Deps{Embedder: fakeEmbedder{}, Store: store})

	resp := r.RagQuery(context.Background(), retrieve.RagQueryRequest{Query: "databases", MatchCount: 2})

	require.True(t, resp.Success)
	assert.Equal(t, "vector", resp.SearchMode)
	assert.False(t, resp.RerankingApplied)
	assert.Len(t, resp.Results, 2)
	assert.Equal(t, 0, resp.Pagination.Offset)
}

func TestRagQueryAppliesHybridMergeWhenEnabled(t *testing.T) {
	store := &fakeStore{
		vectorResults: []vectorstore.SearchResult{
			{ID: "a", URL: "a", Content: "alpha", Similarity: 0.9},
			{ID: "b", URL: "b", Content: "beta", Similarity: 0.7},
		},
		keywordResults: []vectorstore.SearchResult{
			{ID: "b", URL: "b", Content: "beta"},
			{ID: "d", URL: "d", Content: "delta"},
		},
	}
	r := retrieve.New(retrieve.Deps{
		Embedder: fakeEmbedder{}, Store: store,
		Flags: retrieve.Flags{UseHybridSearch: true},
	})

	resp := r.RagQuery(context.Background(), retrieve.RagQueryRequest{Query: "x", MatchCount: 10, UseHybrid: true})

	require.True(t, resp.Success)
	assert.Equal(t, "hybrid", resp.SearchMode)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "b", resp.Results[0].URL)
}

func TestRagQueryAppliesRerankWhenEnabled(t *testing.T) {
	store := &fakeStore{vectorResults: []vectorstore.SearchResult{
		{ID: "1", URL: "https://a", Content: "irrelevant content about something else", Similarity: 0.95},
		{ID: "2", URL: "https://b", Content: "database optimization and indexing techniques", Similarity: 0.5},
	}}
	r := retrieve.New(retrieve.Deps{
		Embedder: fakeEmbedder{}, Store: store, Reranker: rerank.New(nil),
		Flags: retrieve.Flags{UseReranking: true},
	})

	resp := r.RagQuery(context.Background(), retrieve.RagQueryRequest{Query: "database optimization", MatchCount: 2, UseRerank: true})

	require.True(t, resp.Success)
	assert.True(t, resp.RerankingApplied)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "https://b", resp.Results[0].URL)
	require.NotNil(t, resp.Results[0].RerankScore)
}

func TestRagQueryAppliesSizeFitTruncation(t *testing.T) {
	longContent := strings.Repeat("word ", 100)
	store := &fakeStore{vectorResults: []vectorstore.SearchResult{
		{ID: "1", URL: "https://a", Content: longContent, Similarity: 0.9},
	}}
	r := retrieve.New(retrieve.Deps{Embedder: fakeEmbedder{}, Store: store})

	resp := r.RagQuery(context.Background(), retrieve.RagQueryRequest{
		Query: "x", MatchCount: 1, MaxContentLength: 50,
	})

	require.True(t, resp.Success)
	require.Len(t, resp.Results, 1)
	assert.True(t, resp.Results[0].ContentTruncated)
}

func TestRagQueryFailsGracefullyOnEmbedError(t *testing.T) {
	r := retrieve.New(retrieve.Deps{Embedder: failingEmbedder{}, Store: &fakeStore{}})
	resp := r.RagQuery(context.Background(), retrieve.RagQueryRequest{Query: "x"})
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, texts []string) [][]float32 { return nil }

type fakeGraphStore struct {
	enrich graphstore.EnrichResult
}

func (g *fakeGraphStore) EnsureSchema(ctx context.Context) error { return nil }
func (g *fakeGraphStore) StoreDocument(ctx context.Context, documentID, sourceID, url, title string, metadata map[string]any) error {
	return nil
}
func (g *fakeGraphStore) StoreEntities(ctx context.Context, documentID string, entities []graphstore.EntityInput) (int, error) {
	return 0, nil
}
func (g *fakeGraphStore) StoreRelationships(ctx context.Context, relationships []graphstore.RelationshipInput) (int, error) {
	return 0, nil
}
func (g *fakeGraphStore) EntityContext(ctx context.Context, name string, maxHops, maxRelated int) (graphstore.EntityContextResult, error) {
	return graphstore.EntityContextResult{}, nil
}
func (g *fakeGraphStore) EnrichDocuments(ctx context.Context, documentIDs []string, maxEntities int) (graphstore.EnrichResult, error) {
	return g.enrich, nil
}
func (g *fakeGraphStore) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	return nil, nil
}
func (g *fakeGraphStore) Close(ctx context.Context) error { return nil }

type fakeCompleter struct{ response string }

func (c fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error) {
	return c.response, nil
}

func TestGraphragQueryNotesMissingDocumentIDs(t *testing.T) {
	store := &fakeStore{vectorResults: []vectorstore.SearchResult{
		{ID: "1", URL: "https://a", Content: "some content", Similarity: 0.9, Metadata: map[string]any{}},
	}}
	r := retrieve.New(retrieve.Deps{
		Embedder: fakeEmbedder{}, Store: store,
		GraphStore: &fakeGraphStore{}, Completer: fakeCompleter{response: "an answer"},
		Flags: retrieve.Flags{UseGraphRAG: true},
	})

	resp := r.GraphragQuery(context.Background(), retrieve.GraphragQueryRequest{Query: "x", UseGraphEnrichment: true, MatchCount: 1})

	require.True(t, resp.Success)
	assert.False(t, resp.GraphEnrichmentUsed)
	require.NotEmpty(t, resp.Warnings)
	assert.Contains(t, resp.Warnings[0], "document_id")
	assert.Equal(t, "an answer", resp.Answer)
}

func TestGraphragQueryEnrichesWhenDocumentIDsPresent(t *testing.T) {
	store := &fakeStore{vectorResults: []vectorstore.SearchResult{
		{ID: "1", URL: "https://a", Content: "some content", Similarity: 0.9,
			Metadata: map[string]any{"document_id": "doc1"}},
	}}
	graph := &fakeGraphStore{enrich: graphstore.EnrichResult{
		Entities: []graphstore.DocumentEnrichment{
			{Entity: graphstore.Entity{Label: "Technology", Name: "Go"}, MentionsCount: 3},
		},
		Markdown: "## Related concepts\n- Go",
	}}
	r := retrieve.New(retrieve.Deps{
		Embedder: fakeEmbedder{}, Store: store, GraphStore: graph,
		Completer: fakeCompleter{response: "answer with entities"},
		Flags:     retrieve.Flags{UseGraphRAG: true},
	})

	resp := r.GraphragQuery(context.Background(), retrieve.GraphragQueryRequest{Query: "x", UseGraphEnrichment: true, MatchCount: 1})

	require.True(t, resp.Success)
	assert.True(t, resp.GraphEnrichmentUsed)
	require.NotNil(t, resp.GraphEnrichment)
	assert.Equal(t, 1, resp.GraphEnrichment.EntitiesFound)
	assert.Contains(t, resp.GraphEnrichment.Concepts, "Go")
}

func TestGraphragQueryFailsGracefullyWhenUnderlyingSearchFails(t *testing.T) {
	r := retrieve.New(retrieve.Deps{Embedder: failingEmbedder{}, Store: &fakeStore{}})
	resp := r.GraphragQuery(context.Background(), retrieve.GraphragQueryRequest{Query: "x"})
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}
