package retrieve

import (
	"testing"

	"github.com/ragcrawld/ragcrawld/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeHybridPromotesIntersectionAndBoosts(t *testing.T) {
	vectorResults := []vectorstore.SearchResult{
		{ID: "a", URL: "a", Similarity: 0.9},
		{ID: "b", URL: "b", Similarity: 0.7},
		{ID: "c", URL: "c", Similarity: 0.6},
	}
	keywordResults := []vectorstore.SearchResult{
		{ID: "b", URL: "b"},
		{ID: "d", URL: "d"},
	}

	merged := mergeHybrid(vectorResults, keywordResults, 10)

	require.Len(t, merged, 4)
	assert.Equal(t, "b", merged[0].ID)
	assert.InDelta(t, 0.84, merged[0].Similarity, 0.001)
	assert.Equal(t, "a", merged[1].ID)
	assert.Equal(t, "c", merged[2].ID)
	assert.Equal(t, "d", merged[3].ID)
	assert.Equal(t, 0.5, merged[3].Similarity)
}

func TestMergeHybridNoIDAppearsTwice(t *testing.T) {
	vectorResults := []vectorstore.SearchResult{{ID: "x", Similarity: 0.5}}
	keywordResults := []vectorstore.SearchResult{{ID: "x"}}

	merged := mergeHybrid(vectorResults, keywordResults, 10)
	require.Len(t, merged, 1)
}

func TestMergeHybridCapsBoostAtOne(t *testing.T) {
	vectorResults := []vectorstore.SearchResult{{ID: "x", Similarity: 0.95}}
	keywordResults := []vectorstore.SearchResult{{ID: "x"}}

	merged := mergeHybrid(vectorResults, keywordResults, 10)
	require.Len(t, merged, 1)
	assert.Equal(t, 1.0, merged[0].Similarity)
}

func TestMergeHybridRespectsLimit(t *testing.T) {
	vectorResults := []vectorstore.SearchResult{
		{ID: "a", Similarity: 0.9}, {ID: "b", Similarity: 0.8}, {ID: "c", Similarity: 0.7},
	}
	merged := mergeHybrid(vectorResults, nil, 2)
	assert.Len(t, merged, 2)
}

func TestMergeHybridWithNoKeywordMatchesKeepsVectorOrder(t *testing.T) {
	vectorResults := []vectorstore.SearchResult{{ID: "a", Similarity: 0.9}, {ID: "b", Similarity: 0.5}}
	merged := mergeHybrid(vectorResults, nil, 10)
	require.Len(t, merged, 2)
	assert.Equal(t, "a", merged[0].ID)
	assert.Equal(t, "b", merged[1].ID)
}
