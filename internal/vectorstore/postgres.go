package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

// PostgresConfig configures the primary pgvector-backed Store.
type PostgresConfig struct {
	DSN       string
	MaxConns  int
	Dimension int
}

type pendingDocumentRow struct {
	url      string
	chunkNum int
	content  string
	metadata map[string]any
	sourceID string
}

type pendingCodeRow struct {
	url      string
	chunkNum int
	code     string
	summary  string
	metadata map[string]any
	sourceID string
}

// PostgresStore is the primary vector store backend: Postgres with the
// pgvector extension, matching the sources/crawled_pages/code_examples
// schema this driver assumes.
type PostgresStore struct {
	pool      *pgxpool.Pool
	dimension int
	logger    *zap.Logger
	embedder  Embedder
}

// NewPostgresStore connects to Postgres and ensures the schema exists.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig, logger *zap.Logger) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: postgres dsn required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &PostgresStore{pool: pool, dimension: cfg.Dimension, logger: logger}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	stmts := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS sources (
	source_id TEXT PRIMARY KEY,
	summary TEXT NOT NULL DEFAULT '',
	total_word_count BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS crawled_pages (
	id UUID PRIMARY KEY,
	url TEXT NOT NULL,
	chunk_number INT NOT NULL,
	content TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	source_id TEXT NOT NULL REFERENCES sources(source_id),
	embedding vector(%[1]d) NOT NULL,
	UNIQUE(url, chunk_number)
);

CREATE TABLE IF NOT EXISTS code_examples (
	id UUID PRIMARY KEY,
	url TEXT NOT NULL,
	chunk_number INT NOT NULL,
	content TEXT NOT NULL,
	summary TEXT NOT NULL DEFAULT '',
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	source_id TEXT NOT NULL REFERENCES sources(source_id),
	embedding vector(%[1]d) NOT NULL,
	UNIQUE(url, chunk_number)
);

CREATE INDEX IF NOT EXISTS crawled_pages_source_idx ON crawled_pages (source_id);
CREATE INDEX IF NOT EXISTS code_examples_source_idx ON code_examples (source_id);

DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM pg_indexes
		WHERE schemaname = current_schema() AND indexname = 'crawled_pages_embedding_idx'
	) THEN
		EXECUTE 'CREATE INDEX crawled_pages_embedding_idx ON crawled_pages USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);';
	END IF;
	IF NOT EXISTS (
		SELECT 1 FROM pg_indexes
		WHERE schemaname = current_schema() AND indexname = 'code_examples_embedding_idx'
	) THEN
		EXECUTE 'CREATE INDEX code_examples_embedding_idx ON code_examples USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);';
	END IF;
END
$$;
`, s.dimension)

	_, err := s.pool.Exec(ctx, stmts)
	if err != nil && strings.Contains(err.Error(), "ivfflat") {
		// The approximate index needs a minimum row count; ignore at
		// bootstrap time on an empty table.
		return nil
	}
	return err
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// UpsertSource creates or updates a Source row.
func (s *PostgresStore) UpsertSource(ctx context.Context, sourceID, summary string, totalWords int) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO sources (source_id, summary, total_word_count, created_at, updated_at)
VALUES ($1, $2, $3, NOW(), NOW())
ON CONFLICT (source_id) DO UPDATE SET
	summary = EXCLUDED.summary,
	total_word_count = sources.total_word_count + EXCLUDED.total_word_count,
	updated_at = NOW()
`, sourceID, summary, totalWords)
	if err != nil {
		return fmt.Errorf("upsert source %q: %w", sourceID, err)
	}
	return nil
}

func (s *PostgresStore) ListSources(ctx context.Context) ([]Source, error) {
	rows, err := s.pool.Query(ctx, `SELECT source_id, summary, total_word_count, created_at, updated_at FROM sources ORDER BY source_id`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []Source
	for rows.Next() {
		var src Source
		if err := rows.Scan(&src.SourceID, &src.Summary, &src.TotalWordCount, &src.CreatedAt, &src.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// ReplaceDocuments implements delete-then-insert per URL, optional
// contextual embedding, and batched inserts that fall back to per-row
// insert on batch failure.
func (s *PostgresStore) ReplaceDocuments(ctx context.Context, inputs []ReplaceDocumentsInput, ctxer ChunkContexter) (BatchResult, error) {
	if len(inputs) == 0 {
		return BatchResult{}, ErrEmptyDocuments
	}

	urls := make([]string, len(inputs))
	for i, in := range inputs {
		urls[i] = in.URL
	}
	if err := s.deleteByURLs(ctx, "crawled_pages", urls); err != nil {
		return BatchResult{}, err
	}

	var rows []pendingDocumentRow
	var texts []string
	for _, in := range inputs {
		sourceID := sourceIDFromMetadatas(in.Metadatas)
		for i, chunk := range in.Chunks {
			text := chunk
			if ctxer != nil {
				if prefix := ctxer.ChunkContext(ctx, in.FullDocumentText, chunk); prefix != "" {
					text = prefix + "\n\n" + chunk
				}
			}
			md := map[string]any{}
			if i < len(in.Metadatas) {
				for k, v := range in.Metadatas[i] {
					md[k] = v
				}
			}
			md["chunk_size"] = len(chunk)
			rows = append(rows, pendingDocumentRow{url: in.URL, chunkNum: i, content: chunk, metadata: md, sourceID: sourceID})
			texts = append(texts, text)
		}
	}

	result := BatchResult{Attempted: len(rows)}
	if len(rows) == 0 {
		return result, nil
	}

	var embedded [][]float32
	if s.embedder != nil {
		embedded = s.embedder.Embed(ctx, texts)
	} else {
		embedded = make([][]float32, len(texts))
		for i := range embedded {
			embedded[i] = make([]float32, s.dimension)
		}
	}

	for start := 0; start < len(rows); start += DefaultBatchSize {
		end := min(start+DefaultBatchSize, len(rows))
		batchErr := s.insertDocumentBatch(ctx, rows[start:end], embedded[start:end])
		if batchErr != nil {
			s.logger.Warn("document batch insert failed, falling back to per-row", zap.Error(batchErr))
			for i := start; i < end; i++ {
				if err := s.insertDocumentBatch(ctx, rows[i:i+1], embedded[i:i+1]); err != nil {
					s.logger.Warn("per-row document insert failed", zap.String("url", rows[i].url), zap.Error(err))
					continue
				}
				result.Succeeded++
			}
			continue
		}
		result.Succeeded += end - start
	}

	return result, nil
}

func (s *PostgresStore) insertDocumentBatch(ctx context.Context, rows []pendingDocumentRow, embeddings [][]float32) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, row := range rows {
		mdJSON, err := json.Marshal(row.metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO crawled_pages (id, url, chunk_number, content, metadata, source_id, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (url, chunk_number) DO UPDATE SET
	content = EXCLUDED.content, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding
`, uuid.New(), row.url, row.chunkNum, row.content, mdJSON, row.sourceID, pgvector.NewVector(padOrTrim(embeddings[i], s.dimension))); err != nil {
			return fmt.Errorf("insert chunk %s#%d: %w", row.url, row.chunkNum, err)
		}
	}
	return tx.Commit(ctx)
}

// ReplaceCodeExamples mirrors ReplaceDocuments for the code_examples table.
func (s *PostgresStore) ReplaceCodeExamples(ctx context.Context, inputs []ReplaceCodeExamplesInput) (BatchResult, error) {
	if len(inputs) == 0 {
		return BatchResult{}, nil
	}

	urls := make([]string, len(inputs))
	for i, in := range inputs {
		urls[i] = in.URL
	}
	if err := s.deleteByURLs(ctx, "code_examples", urls); err != nil {
		return BatchResult{}, err
	}

	var rows []pendingCodeRow
	var texts []string
	for _, in := range inputs {
		sourceID := sourceIDFromMetadatas(in.Metadatas)
		for i, code := range in.Code {
			summary := ""
			if i < len(in.Summaries) {
				summary = in.Summaries[i]
			}
			md := map[string]any{}
			if i < len(in.Metadatas) {
				for k, v := range in.Metadatas[i] {
					md[k] = v
				}
			}
			md["chunk_size"] = len(code)
			rows = append(rows, pendingCodeRow{url: in.URL, chunkNum: i, code: code, summary: summary, metadata: md, sourceID: sourceID})
			texts = append(texts, code+"\n\nSummary: "+summary)
		}
	}

	result := BatchResult{Attempted: len(rows)}
	if len(rows) == 0 {
		return result, nil
	}

	var embedded [][]float32
	if s.embedder != nil {
		embedded = s.embedder.Embed(ctx, texts)
	} else {
		embedded = make([][]float32, len(texts))
		for i := range embedded {
			embedded[i] = make([]float32, s.dimension)
		}
	}

	for start := 0; start < len(rows); start += DefaultBatchSize {
		end := min(start+DefaultBatchSize, len(rows))
		if err := s.insertCodeBatch(ctx, rows[start:end], embedded[start:end]); err != nil {
			s.logger.Warn("code example batch insert failed, falling back to per-row", zap.Error(err))
			for i := start; i < end; i++ {
				if err := s.insertCodeBatch(ctx, rows[i:i+1], embedded[i:i+1]); err != nil {
					s.logger.Warn("per-row code example insert failed", zap.String("url", rows[i].url), zap.Error(err))
					continue
				}
				result.Succeeded++
			}
			continue
		}
		result.Succeeded += end - start
	}

	return result, nil
}

func (s *PostgresStore) insertCodeBatch(ctx context.Context, rows []pendingCodeRow, embeddings [][]float32) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, row := range rows {
		mdJSON, err := json.Marshal(row.metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO code_examples (id, url, chunk_number, content, summary, metadata, source_id, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (url, chunk_number) DO UPDATE SET
	content = EXCLUDED.content, summary = EXCLUDED.summary, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding
`, uuid.New(), row.url, row.chunkNum, row.code, row.summary, mdJSON, row.sourceID, pgvector.NewVector(padOrTrim(embeddings[i], s.dimension))); err != nil {
			return fmt.Errorf("insert code example %s#%d: %w", row.url, row.chunkNum, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) deleteByURLs(ctx context.Context, table string, urls []string) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE url = ANY($1)`, table), urls)
	if err != nil {
		// Per-URL fallback on batch delete failure.
		var firstErr error
		for _, u := range urls {
			if _, dErr := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE url = $1`, table), u); dErr != nil && firstErr == nil {
				firstErr = dErr
			}
		}
		return firstErr
	}
	return nil
}

// SearchDocuments calls the match_crawled_pages similarity procedure.
func (s *PostgresStore) SearchDocuments(ctx context.Context, queryEmbedding []float32, matchCount int, filterMetadata map[string]any) ([]SearchResult, error) {
	return s.searchTable(ctx, "match_crawled_pages", queryEmbedding, matchCount, filterMetadata, false)
}

// SearchCodeExamples calls the match_code_examples similarity procedure,
// which takes an additional source_filter argument alongside the generic
// metadata filter.
func (s *PostgresStore) SearchCodeExamples(ctx context.Context, queryEmbedding []float32, matchCount int, filterMetadata map[string]any) ([]SearchResult, error) {
	sourceFilter, _ := filterMetadata["source_id"].(string)

	filterJSON, err := marshalFilter(filterMetadata)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT * FROM match_code_examples($1, $2, $3, $4)`,
		pgvector.NewVector(queryEmbedding), matchCount, filterJSON, sourceFilter)
	if err != nil {
		return nil, fmt.Errorf("match_code_examples: %w", err)
	}
	defer rows.Close()

	return scanSearchRows(rows, true)
}

func marshalFilter(filterMetadata map[string]any) ([]byte, error) {
	if len(filterMetadata) == 0 {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(filterMetadata)
	if err != nil {
		return nil, fmt.Errorf("marshal filter: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) searchTable(ctx context.Context, procedure string, queryEmbedding []float32, matchCount int, filterMetadata map[string]any, withSummary bool) ([]SearchResult, error) {
	filterJSON, err := marshalFilter(filterMetadata)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT * FROM %s($1, $2, $3)`, procedure),
		pgvector.NewVector(queryEmbedding), matchCount, filterJSON)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", procedure, err)
	}
	defer rows.Close()

	return scanSearchRows(rows, withSummary)
}

func scanSearchRows(rows pgx.Rows, withSummary bool) ([]SearchResult, error) {
	var out []SearchResult
	for rows.Next() {
		res, err := scanSearchRow(rows, withSummary)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func scanSearchRow(rows pgx.Rows, withSummary bool) (SearchResult, error) {
	var res SearchResult
	var id uuid.UUID
	var mdJSON []byte
	var err error
	if withSummary {
		err = rows.Scan(&id, &res.URL, &res.Content, &res.Summary, &mdJSON, &res.SourceID, &res.Similarity)
	} else {
		err = rows.Scan(&id, &res.URL, &res.Content, &mdJSON, &res.SourceID, &res.Similarity)
	}
	if err != nil {
		return SearchResult{}, fmt.Errorf("scan search row: %w", err)
	}
	res.ID = id.String()
	if len(mdJSON) > 0 {
		_ = json.Unmarshal(mdJSON, &res.Metadata)
	}
	return res, nil
}

// KeywordDocuments performs a substring ILIKE search on content.
func (s *PostgresStore) KeywordDocuments(ctx context.Context, query, sourceFilter string, limit int) ([]SearchResult, error) {
	like := "%" + query + "%"
	var rows pgx.Rows
	var err error
	if sourceFilter != "" {
		rows, err = s.pool.Query(ctx, `
SELECT id, url, content, metadata, source_id FROM crawled_pages
WHERE content ILIKE $1 AND source_id = $2
LIMIT $3`, like, sourceFilter, limit)
	} else {
		rows, err = s.pool.Query(ctx, `
SELECT id, url, content, metadata, source_id FROM crawled_pages
WHERE content ILIKE $1
LIMIT $2`, like, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var res SearchResult
		var id uuid.UUID
		var mdJSON []byte
		if err := rows.Scan(&id, &res.URL, &res.Content, &mdJSON, &res.SourceID); err != nil {
			return nil, fmt.Errorf("scan keyword row: %w", err)
		}
		res.ID = id.String()
		if len(mdJSON) > 0 {
			_ = json.Unmarshal(mdJSON, &res.Metadata)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// WithEmbedder attaches the embedding client; split from construction
// because the embedder itself may depend on config loaded after the pool.
func (s *PostgresStore) WithEmbedder(e Embedder) *PostgresStore {
	s.embedder = e
	return s
}

func sourceIDFromMetadatas(metadatas []map[string]any) string {
	for _, md := range metadatas {
		if v, ok := md["source_id"].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func padOrTrim(v []float32, dim int) []float32 {
	if len(v) == dim {
		return v
	}
	out := make([]float32, dim)
	copy(out, v)
	return out
}

