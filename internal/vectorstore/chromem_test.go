package vectorstore_test

import (
	"context"
	"os"
	"testing"

	"github.com/ragcrawld/ragcrawld/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testDimension = 8

// fakeEmbedder returns a deterministic vector per input text so tests can
// assert on similarity ordering without a real embedding model.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, testDimension)
		var hash float32
		for _, r := range t {
			hash += float32(r)
		}
		for j := range v {
			v[j] = hash + float32(j)
		}
		out[i] = v
	}
	return out
}

func newTestChromemStore(t *testing.T) *vectorstore.ChromemStore {
	t.Helper()
	dir, err := os.MkdirTemp("", "chromem_vectorstore_test_*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:      dir,
		Dimension: testDimension,
	}, zap.NewNop())
	require.NoError(t, err)
	return store.WithEmbedder(fakeEmbedder{})
}

func TestChromemUpsertSourceAccumulatesWordCount(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertSource(ctx, "example.com", "a site", 100))
	require.NoError(t, store.UpsertSource(ctx, "example.com", "a site, updated", 50))

	sources, err := store.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "example.com", sources[0].SourceID)
	assert.Equal(t, "a site, updated", sources[0].Summary)
	assert.Equal(t, 150, sources[0].TotalWordCount)
}

func TestChromemReplaceDocumentsRejectsEmptyInput(t *testing.T) {
	store := newTestChromemStore(t)
	_, err := store.ReplaceDocuments(context.Background(), nil, nil)
	assert.ErrorIs(t, err, vectorstore.ErrEmptyDocuments)
}

func TestChromemReplaceDocumentsThenSearch(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	input := vectorstore.ReplaceDocumentsInput{
		URL:    "https://example.com/docs/page",
		Chunks: []string{"first chunk about routers", "second chunk about switches"},
		Metadatas: []map[string]any{
			{"source_id": "example.com"},
			{"source_id": "example.com"},
		},
		FullDocumentText: "first chunk about routers second chunk about switches",
	}

	result, err := store.ReplaceDocuments(ctx, []vectorstore.ReplaceDocumentsInput{input}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Attempted)
	assert.Equal(t, 2, result.Succeeded)

	queryEmbedding := fakeEmbedder{}.Embed(ctx, []string{"first chunk about routers"})[0]
	results, err := store.SearchDocuments(ctx, queryEmbedding, 2, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "example.com", results[0].SourceID)
}

func TestChromemReplaceDocumentsIsIdempotentPerURL(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	url := "https://example.com/docs/page"
	first := vectorstore.ReplaceDocumentsInput{
		URL:       url,
		Chunks:    []string{"version one"},
		Metadatas: []map[string]any{{"source_id": "example.com"}},
	}
	_, err := store.ReplaceDocuments(ctx, []vectorstore.ReplaceDocumentsInput{first}, nil)
	require.NoError(t, err)

	second := vectorstore.ReplaceDocumentsInput{
		URL:       url,
		Chunks:    []string{"version two", "version two continued"},
		Metadatas: []map[string]any{{"source_id": "example.com"}, {"source_id": "example.com"}},
	}
	result, err := store.ReplaceDocuments(ctx, []vectorstore.ReplaceDocumentsInput{second}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)

	keyword, err := store.KeywordDocuments(ctx, "version", "", 10)
	require.NoError(t, err)
	assert.Len(t, keyword, 2, "stale chunks from the first replace must not remain")
}

func TestChromemReplaceCodeExamplesEmbedsCodeAndSummary(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	input := vectorstore.ReplaceCodeExamplesInput{
		URL:       "https://example.com/docs/snippet",
		Code:      []string{"func main() {}"},
		Summaries: []string{"an empty main function"},
		Metadatas: []map[string]any{{"source_id": "example.com"}},
	}
	result, err := store.ReplaceCodeExamples(ctx, []vectorstore.ReplaceCodeExamplesInput{input})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)

	queryEmbedding := fakeEmbedder{}.Embed(ctx, []string{"func main() {}\n\nSummary: an empty main function"})[0]
	results, err := store.SearchCodeExamples(ctx, queryEmbedding, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "func main() {}", results[0].Content)
}

func TestChromemKeywordDocumentsFiltersBySource(t *testing.T) {
	store := newTestChromemStore(t)
	ctx := context.Background()

	inputs := []vectorstore.ReplaceDocumentsInput{
		{URL: "https://a.example.com/x", Chunks: []string{"shared keyword alpha"}, Metadatas: []map[string]any{{"source_id": "a.example.com"}}},
		{URL: "https://b.example.com/x", Chunks: []string{"shared keyword beta"}, Metadatas: []map[string]any{{"source_id": "b.example.com"}}},
	}
	_, err := store.ReplaceDocuments(ctx, inputs, nil)
	require.NoError(t, err)

	results, err := store.KeywordDocuments(ctx, "shared keyword", "a.example.com", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.example.com", results[0].SourceID)
}

func TestChromemSearchOnEmptyCollectionReturnsNoResults(t *testing.T) {
	store := newTestChromemStore(t)
	results, err := store.SearchDocuments(context.Background(), make([]float32, testDimension), 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
