// Package embedclient is a token-aware batching HTTP client for a batch
// text-embedding API, with retry/backoff and per-item fallback so that
// callers always get back one vector per input text.
package embedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ragcrawld/ragcrawld/internal/telemetry"
)

// Config configures the embedding client.
type Config struct {
	BaseURL   string
	Model     string
	APIKey    string
	Dimension int

	// MaxBatchTokens is the approximate per-batch token cap (chars/4).
	MaxBatchTokens int
	// MaxBatchItems is the provider's maximum batch size.
	MaxBatchItems int

	HTTPClient *http.Client
	Metrics    *telemetry.Telemetry
	Logger     *zap.Logger
}

const (
	defaultMaxBatchTokens = 8000
	defaultMaxBatchItems  = 16
	defaultInterBatchWait = 100 * time.Millisecond
	maxGenericRetries     = 3
	maxRateLimitRetries   = 3
	genericBaseBackoff    = 1 * time.Second
	rateLimitBaseBackoff  = 2 * time.Second
)

// Client batches, retries, and degrades embedding calls.
type Client struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New constructs a Client, filling in defaults for unset Config fields.
func New(cfg Config) *Client {
	if cfg.MaxBatchTokens <= 0 {
		cfg.MaxBatchTokens = defaultMaxBatchTokens
	}
	if cfg.MaxBatchItems <= 0 {
		cfg.MaxBatchItems = defaultMaxBatchItems
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{cfg: cfg, client: cfg.HTTPClient, logger: cfg.Logger}
}

// approxTokens estimates token count as chars/4.
func approxTokens(s string) int {
	return int(math.Ceil(float64(len(s)) / 4.0))
}

// truncateToTokenCap truncates a single oversized text to fit within the
// batch token cap before it is ever sent upstream.
func truncateToTokenCap(s string, maxTokens int) string {
	maxChars := maxTokens * 4
	if len(s) <= maxChars {
		return s
	}
	return s[:maxChars]
}

// Embed embeds texts, preserving input order and length. A text whose
// embedding could not be produced even after per-item fallback is
// represented by a zero vector of the configured dimension; Embed never
// returns an error for individual item failures.
func (c *Client) Embed(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out
	}

	batches := c.makeBatches(texts)
	for bi, batch := range batches {
		batchStart := time.Now()
		vectors, err := c.embedBatchWithRetry(ctx, batch.texts)
		if c.cfg.Metrics != nil {
			c.cfg.Metrics.EmbedBatchLatency.Record(ctx, time.Since(batchStart).Seconds())
		}
		if err != nil {
			c.logger.Warn("batch embedding failed after retries, falling back to per-item",
				zap.Int("batch_size", len(batch.texts)), zap.Error(err))
			vectors = c.embedIndividually(ctx, batch.texts)
		}
		for i, idx := range batch.indexes {
			out[idx] = vectors[i]
		}
		if bi < len(batches)-1 {
			select {
			case <-ctx.Done():
				return out
			case <-time.After(defaultInterBatchWait):
			}
		}
	}
	return out
}

type batch struct {
	texts   []string
	indexes []int
}

// makeBatches groups texts honoring both the token cap and the item cap,
// truncating any single oversized item so it can never exceed the cap on
// its own.
func (c *Client) makeBatches(texts []string) []batch {
	var batches []batch
	cur := batch{}
	curTokens := 0

	for i, t := range texts {
		t = truncateToTokenCap(t, c.cfg.MaxBatchTokens)
		tokens := approxTokens(t)

		if len(cur.texts) > 0 && (curTokens+tokens > c.cfg.MaxBatchTokens || len(cur.texts) >= c.cfg.MaxBatchItems) {
			batches = append(batches, cur)
			cur = batch{}
			curTokens = 0
		}
		cur.texts = append(cur.texts, t)
		cur.indexes = append(cur.indexes, i)
		curTokens += tokens
	}
	if len(cur.texts) > 0 {
		batches = append(batches, cur)
	}
	return batches
}

// rateLimitError marks an error as subject to the longer rate-limit
// backoff schedule rather than the generic one.
type rateLimitError struct{ err error }

func (e *rateLimitError) Error() string { return e.err.Error() }
func (e *rateLimitError) Unwrap() error { return e.err }

func (c *Client) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= maxGenericRetries; attempt++ {
		if attempt > 0 {
			wait := backoffFor(lastErr, attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
		vectors, err := c.doEmbedRequest(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		var rle *rateLimitError
		isRateLimit := errors.As(err, &rle)
		limit := maxGenericRetries
		if isRateLimit {
			limit = maxRateLimitRetries
		}
		if attempt >= limit {
			break
		}
	}
	return nil, lastErr
}

func backoffFor(err error, attempt int) time.Duration {
	var rle *rateLimitError
	if errors.As(err, &rle) {
		// 2s, 4s, 8s
		return rateLimitBaseBackoff * time.Duration(1<<(attempt-1))
	}
	// 1s, 2s, 4s (doubling)
	return genericBaseBackoff * time.Duration(1<<(attempt-1))
}

// embedIndividually re-submits each text on its own; a per-item failure
// becomes a zero vector so the caller's length contract always holds.
func (c *Client) embedIndividually(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vectors, err := c.embedBatchWithRetry(ctx, []string{t})
		if err != nil || len(vectors) == 0 {
			c.logger.Warn("per-item embedding failed, using zero vector", zap.Int("index", i), zap.Error(err))
			out[i] = make([]float32, c.cfg.Dimension)
			continue
		}
		out[i] = vectors[0]
	}
	return out
}

type embedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embedResponseItem struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embedResponse struct {
	Data []embedResponseItem `json:"data"`
}

func (c *Client) doEmbedRequest(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := embedRequest{Input: texts, Model: c.cfg.Model}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling embed request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating embed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &rateLimitError{err: fmt.Errorf("rate limited: %s", string(respBody))}
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embed request returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding embed response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embed response item count %d does not match request count %d", len(parsed.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, fmt.Errorf("embed response index %d out of range", item.Index)
		}
		out[item.Index] = item.Embedding
	}
	return out, nil
}
