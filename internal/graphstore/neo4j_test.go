package graphstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRunner struct {
	calls   []fakeCall
	results [][]map[string]any
	errs    []error
	idx     int
}

type fakeCall struct {
	cypher string
	params map[string]any
}

func (f *fakeRunner) run(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	f.calls = append(f.calls, fakeCall{cypher: cypher, params: params})
	var err error
	var rows []map[string]any
	if f.idx < len(f.errs) {
		err = f.errs[f.idx]
	}
	if f.idx < len(f.results) {
		rows = f.results[f.idx]
	}
	f.idx++
	return rows, err
}

func newTestStore(runner *fakeRunner) *Neo4jStore {
	return &Neo4jStore{runner: runner, logger: zap.NewNop()}
}

func TestEnsureSchemaIssuesConstraintPerEntityLabel(t *testing.T) {
	runner := &fakeRunner{}
	store := newTestStore(runner)

	require.NoError(t, store.EnsureSchema(context.Background()))

	// 4 base statements + one uniqueness constraint per entity label.
	assert.Len(t, runner.calls, 4+len(EntityLabels))
}

func TestEnsureSchemaToleratesStatementFailure(t *testing.T) {
	runner := &fakeRunner{errs: []error{assertErr("already exists")}}
	store := newTestStore(runner)

	err := store.EnsureSchema(context.Background())
	assert.NoError(t, err, "schema setup is best-effort and must not fail startup")
}

func TestStoreDocumentMergesSourceAndFromSourceEdge(t *testing.T) {
	runner := &fakeRunner{}
	store := newTestStore(runner)

	err := store.StoreDocument(context.Background(), "doc1", "example.com", "https://example.com/a", "A", map[string]any{"k": "v"})
	require.NoError(t, err)
	require.Len(t, runner.calls, 1)
	assert.Contains(t, runner.calls[0].cypher, "FROM_SOURCE")
	assert.Equal(t, "doc1", runner.calls[0].params["document_id"])
}

func TestStoreEntitiesNormalizesAliasAndDefaultsMentions(t *testing.T) {
	runner := &fakeRunner{}
	store := newTestStore(runner)

	stored, err := store.StoreEntities(context.Background(), "doc1", []EntityInput{
		{Type: "framework", Name: "React", Description: "a UI library"},
		{Type: "unknown-type", Name: "Widgets", Mentions: 3},
		{Type: "concept", Name: "  ", Mentions: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stored, "blank names must be skipped")
	assert.Contains(t, runner.calls[0].cypher, ":Technology")
	assert.Equal(t, 1, runner.calls[0].params["mentions"])
	assert.Contains(t, runner.calls[1].cypher, ":Concept")
	assert.Equal(t, 3, runner.calls[1].params["mentions"])
}

func TestStoreEntitiesSkipsFailedEntityWithoutAbortingBatch(t *testing.T) {
	runner := &fakeRunner{errs: []error{assertErr("boom"), nil}}
	store := newTestStore(runner)

	stored, err := store.StoreEntities(context.Background(), "doc1", []EntityInput{
		{Type: "concept", Name: "A"},
		{Type: "concept", Name: "B"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stored)
}

func TestStoreRelationshipsNormalizesAndCollapsesUnknownLabels(t *testing.T) {
	runner := &fakeRunner{}
	store := newTestStore(runner)

	stored, err := store.StoreRelationships(context.Background(), []RelationshipInput{
		{FromEntity: "React", ToEntity: "JavaScript", RelationshipType: "depends on", Confidence: 0.9},
		{FromEntity: "Foo", ToEntity: "Bar", RelationshipType: "made up label", Confidence: 0.5},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stored)
	assert.Contains(t, runner.calls[0].cypher, "DEPENDS_ON")
	assert.Contains(t, runner.calls[1].cypher, "RELATED_TO")
}

func TestStoreRelationshipsSkipsBlankEndpoints(t *testing.T) {
	runner := &fakeRunner{}
	store := newTestStore(runner)

	stored, err := store.StoreRelationships(context.Background(), []RelationshipInput{
		{FromEntity: "", ToEntity: "Bar", RelationshipType: "USES"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, stored)
	assert.Empty(t, runner.calls)
}

func TestEntityContextReturnsRelatedAndDocuments(t *testing.T) {
	runner := &fakeRunner{results: [][]map[string]any{
		{
			{
				"name":          "React",
				"description":   "a UI library",
				"labels":        []any{"Technology"},
				"related_names": []any{"JavaScript", "JSX"},
				"document_ids":  []any{"doc1", "doc2"},
			},
		},
	}}
	store := newTestStore(runner)

	result, err := store.EntityContext(context.Background(), "React", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, "React", result.Entity.Name)
	assert.Equal(t, "Technology", result.Entity.Label)
	assert.ElementsMatch(t, []string{"doc1", "doc2"}, result.MentioningDocuments)
	require.Len(t, result.Related, 2)
}

func TestEntityContextReturnsEmptyWhenNotFound(t *testing.T) {
	runner := &fakeRunner{results: [][]map[string]any{{}}}
	store := newTestStore(runner)

	result, err := store.EntityContext(context.Background(), "Nonexistent", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, EntityContextResult{}, result)
}

func TestEntityContextIsBestEffortOnFailure(t *testing.T) {
	runner := &fakeRunner{errs: []error{assertErr("connection reset")}}
	store := newTestStore(runner)

	result, err := store.EntityContext(context.Background(), "React", 1, 10)
	assert.NoError(t, err, "graph reads must never fail the enclosing request")
	assert.Equal(t, EntityContextResult{}, result)
}

func TestEnrichDocumentsReturnsEmptyForNoDocumentIDs(t *testing.T) {
	store := newTestStore(&fakeRunner{})
	result, err := store.EnrichDocuments(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Empty(t, result.Entities)
}

func TestEnrichDocumentsBuildsMarkdownBlock(t *testing.T) {
	runner := &fakeRunner{results: [][]map[string]any{
		{
			{
				"name":           "React",
				"description":    "a UI library",
				"labels":         []any{"Technology"},
				"mentions_count": int64(7),
				"related": []any{
					map[string]any{"name": "JSX", "type": "USES"},
				},
			},
		},
	}}
	store := newTestStore(runner)

	result, err := store.EnrichDocuments(context.Background(), []string{"doc1"}, 5)
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, 7, result.Entities[0].MentionsCount)
	assert.Contains(t, result.Markdown, "React")
	assert.Contains(t, result.Markdown, "uses jsx")
}

func TestEnrichDocumentsIsBestEffortOnFailure(t *testing.T) {
	runner := &fakeRunner{errs: []error{assertErr("boom")}}
	store := newTestStore(runner)

	result, err := store.EnrichDocuments(context.Background(), []string{"doc1"}, 5)
	assert.NoError(t, err)
	assert.Empty(t, result.Entities)
}

func TestQueryReturnsRows(t *testing.T) {
	runner := &fakeRunner{results: [][]map[string]any{{{"n.name": "React"}}}}
	store := newTestStore(runner)

	rows, err := store.Query(context.Background(), `MATCH (n) RETURN n.name`, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "React", rows[0]["n.name"])
}

func TestQueryPropagatesRunnerError(t *testing.T) {
	runner := &fakeRunner{errs: []error{assertErr("syntax error")}}
	store := newTestStore(runner)

	_, err := store.Query(context.Background(), `garbage`, nil)
	assert.Error(t, err)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
