package embedclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(Config{
		BaseURL:   srv.URL,
		Model:     "test-model",
		Dimension: 4,
	})
	return srv, c
}

func echoHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := embedResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, embedResponseItem{
				Embedding: []float32{1, 2, 3, 4},
				Index:     i,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func TestEmbedReturnsOneVectorPerInput(t *testing.T) {
	_, c := newTestServer(t, echoHandler(t))
	out := c.Embed(context.Background(), []string{"a", "b", "c"})
	require.Len(t, out, 3)
	for _, v := range out {
		assert.Equal(t, []float32{1, 2, 3, 4}, v)
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	_, c := newTestServer(t, echoHandler(t))
	out := c.Embed(context.Background(), nil)
	assert.Empty(t, out)
}

func TestMakeBatchesRespectsItemCap(t *testing.T) {
	c := New(Config{MaxBatchItems: 2, MaxBatchTokens: 100000, Dimension: 4})
	texts := []string{"a", "b", "c", "d", "e"}
	batches := c.makeBatches(texts)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0].texts, 2)
	assert.Len(t, batches[1].texts, 2)
	assert.Len(t, batches[2].texts, 1)
}

func TestMakeBatchesRespectsTokenCap(t *testing.T) {
	c := New(Config{MaxBatchItems: 100, MaxBatchTokens: 10, Dimension: 4})
	// each text is 20 chars -> ~5 tokens; two per batch before exceeding cap of 10
	texts := []string{strings.Repeat("x", 20), strings.Repeat("y", 20), strings.Repeat("z", 20)}
	batches := c.makeBatches(texts)
	require.GreaterOrEqual(t, len(batches), 2)
}

func TestMakeBatchesTruncatesOversizedSingleItem(t *testing.T) {
	c := New(Config{MaxBatchItems: 10, MaxBatchTokens: 5, Dimension: 4})
	huge := strings.Repeat("x", 1000)
	batches := c.makeBatches([]string{huge})
	require.Len(t, batches, 1)
	assert.LessOrEqual(t, len(batches[0].texts[0]), 5*4)
}

func TestEmbedFallsBackToZeroVectorOnPersistentFailure(t *testing.T) {
	srv, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	})
	defer srv.Close()
	c.cfg.HTTPClient.Timeout = 5 * time.Second

	out := c.Embed(context.Background(), []string{"only"})
	require.Len(t, out, 1)
	assert.Equal(t, make([]float32, 4), out[0])
}

func TestEmbedRecoversAfterTransientFailures(t *testing.T) {
	var attempts int32
	srv, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("transient"))
			return
		}
		echoHandler(t)(w, r)
	})
	defer srv.Close()

	out := c.Embed(context.Background(), []string{"retry-me"})
	require.Len(t, out, 1)
	assert.Equal(t, []float32{1, 2, 3, 4}, out[0])
	assert.GreaterOrEqual(t, attempts, int32(2))
}

func TestBackoffForRateLimitUsesLongerSchedule(t *testing.T) {
	rle := &rateLimitError{err: assertError("rate limited")}
	generic := assertError("boom")

	assert.Equal(t, 2*time.Second, backoffFor(rle, 1))
	assert.Equal(t, 4*time.Second, backoffFor(rle, 2))
	assert.Equal(t, 1*time.Second, backoffFor(generic, 1))
	assert.Equal(t, 2*time.Second, backoffFor(generic, 2))
}

type assertError string

func (e assertError) Error() string { return string(e) }

func TestDoEmbedRequestRejectsMismatchedResponseLength(t *testing.T) {
	srv, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		resp := embedResponse{Data: []embedResponseItem{{Embedding: []float32{1}, Index: 0}}}
		json.NewEncoder(w).Encode(resp)
	})
	defer srv.Close()

	_, err := c.doEmbedRequest(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestDoEmbedRequestDetectsRateLimit(t *testing.T) {
	srv, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("slow down"))
	})
	defer srv.Close()

	_, err := c.doEmbedRequest(context.Background(), []string{"a"})
	require.Error(t, err)
	var rle *rateLimitError
	assert.ErrorAs(t, err, &rle)
}
