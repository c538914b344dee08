package rerank_test

import (
	"context"
	"testing"

	"github.com/ragcrawld/ragcrawld/internal/rerank"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredictScoresHighOverlapAboveLowOverlap(t *testing.T) {
	r := rerank.New(nil)
	scores := r.Predict(context.Background(), []rerank.Pair{
		{Query: "database optimization techniques", Doc: "irrelevant content about something else entirely"},
		{Query: "database optimization techniques", Doc: "database optimization and indexing techniques explained"},
	})
	require.Len(t, scores, 2)
	assert.Greater(t, scores[1], scores[0])
}

func TestPredictReturnsNeutralForEmptyQuery(t *testing.T) {
	r := rerank.New(nil)
	scores := r.Predict(context.Background(), []rerank.Pair{{Query: "   ", Doc: "some document text"}})
	require.Len(t, scores, 1)
	assert.Equal(t, float32(0.5), scores[0])
}

func TestPredictHandlesEmptyPairList(t *testing.T) {
	r := rerank.New(nil)
	scores := r.Predict(context.Background(), nil)
	assert.Empty(t, scores)
}

func TestDeviceReturnsCPUOrGPU(t *testing.T) {
	r := rerank.New(nil)
	device := r.Device(context.Background())
	assert.Contains(t, []string{"cpu", "gpu"}, device)
}

func TestSortDescendingOrdersByScoreDescending(t *testing.T) {
	scored := rerank.SortDescending([]float32{0.2, 0.9, 0.5})
	require.Len(t, scored, 3)
	assert.Equal(t, 1, scored[0].Index)
	assert.Equal(t, 2, scored[1].Index)
	assert.Equal(t, 0, scored[2].Index)
}

func TestSortDescendingIsStableOnTies(t *testing.T) {
	scored := rerank.SortDescending([]float32{0.5, 0.5, 0.9})
	require.Len(t, scored, 3)
	assert.Equal(t, 2, scored[0].Index)
	assert.Equal(t, 0, scored[1].Index)
	assert.Equal(t, 1, scored[2].Index)
}

func TestLoadIsLazyAndCachedAcrossCalls(t *testing.T) {
	r := rerank.New(nil)
	first := r.Device(context.Background())
	second := r.Device(context.Background())
	assert.Equal(t, first, second)
}
