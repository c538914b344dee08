package vectorstore

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

const (
	chromemDocumentsCollection    = "crawled_pages"
	chromemCodeExamplesCollection = "code_examples"
)

// ChromemConfig configures the embedded chromem-go backend, used for
// local development and as the live test double for Store.
type ChromemConfig struct {
	Path      string
	Dimension int
}

// ChromemStore is an embedded, file-backed vector store implementing the
// same Store contract as PostgresStore and QdrantStore.
type ChromemStore struct {
	db        *chromem.DB
	embedder  Embedder
	dimension int
	logger    *zap.Logger

	sourcesMu sync.Mutex
	sources   map[string]Source
}

// NewChromemStore opens (or creates) a persistent chromem-go database.
func NewChromemStore(cfg ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: chromem path required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("creating chromem directory: %w", err)
	}

	db, err := chromem.NewPersistentDB(cfg.Path, false)
	if err != nil {
		return nil, fmt.Errorf("opening chromem db: %w", err)
	}

	return &ChromemStore{
		db:        db,
		dimension: cfg.Dimension,
		logger:    logger,
		sources:   make(map[string]Source),
	}, nil
}

// WithEmbedder attaches the embedding client.
func (s *ChromemStore) WithEmbedder(e Embedder) *ChromemStore {
	s.embedder = e
	return s
}

func (s *ChromemStore) Close() error {
	return nil
}

// passthroughEmbeddingFunc satisfies chromem's collection constructor; it
// is never called because every document we add already carries its
// embedding.
func passthroughEmbeddingFunc(dimension int) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return make([]float32, dimension), nil
	}
}

func (s *ChromemStore) collection(name string) (*chromem.Collection, error) {
	return s.db.GetOrCreateCollection(name, nil, passthroughEmbeddingFunc(s.dimension))
}

func (s *ChromemStore) UpsertSource(ctx context.Context, sourceID, summary string, totalWords int) error {
	s.sourcesMu.Lock()
	defer s.sourcesMu.Unlock()

	src, ok := s.sources[sourceID]
	if !ok {
		src = Source{SourceID: sourceID}
	}
	src.Summary = summary
	src.TotalWordCount += totalWords
	s.sources[sourceID] = src
	return nil
}

func (s *ChromemStore) ListSources(ctx context.Context) ([]Source, error) {
	s.sourcesMu.Lock()
	defer s.sourcesMu.Unlock()

	out := make([]Source, 0, len(s.sources))
	for _, src := range s.sources {
		out = append(out, src)
	}
	return out, nil
}

func chromemMetaString(v map[string]any) map[string]string {
	out := make(map[string]string, len(v))
	for k, val := range v {
		switch t := val.(type) {
		case string:
			out[k] = t
		case int:
			out[k] = strconv.Itoa(t)
		case int64:
			out[k] = strconv.FormatInt(t, 10)
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(t)
		}
	}
	return out
}

func (s *ChromemStore) deleteByURL(ctx context.Context, collectionName, url string) error {
	col, err := s.collection(collectionName)
	if err != nil {
		return err
	}
	return col.Delete(ctx, map[string]string{"url": url}, nil)
}

func (s *ChromemStore) ReplaceDocuments(ctx context.Context, inputs []ReplaceDocumentsInput, ctxer ChunkContexter) (BatchResult, error) {
	if len(inputs) == 0 {
		return BatchResult{}, ErrEmptyDocuments
	}

	col, err := s.collection(chromemDocumentsCollection)
	if err != nil {
		return BatchResult{}, err
	}
	for _, in := range inputs {
		if err := s.deleteByURL(ctx, chromemDocumentsCollection, in.URL); err != nil {
			s.logger.Warn("chromem delete by url failed", zap.String("url", in.URL), zap.Error(err))
		}
	}

	var texts []string
	var metas []map[string]any
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
			md["url"] = in.URL
			md["chunk_number"] = i
			md["source_id"] = sourceID
			md["chunk_size"] = len(chunk)
			texts = append(texts, text)
			metas = append(metas, md)
		}
	}

	result := BatchResult{Attempted: len(metas)}
	if len(metas) == 0 {
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

	docs := make([]chromem.Document, len(metas))
	for i, md := range metas {
		content := ""
		if i < len(texts) {
			content = texts[i]
		}
		docs[i] = chromem.Document{
			ID:        pointIDForURL(asString(md["url"]), md["chunk_number"].(int)),
			Content:   content,
			Metadata:  chromemMetaString(md),
			Embedding: padOrTrim(embedded[i], s.dimension),
		}
	}

	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		return result, fmt.Errorf("add documents: %w", err)
	}
	result.Succeeded = len(docs)
	return result, nil
}

func (s *ChromemStore) ReplaceCodeExamples(ctx context.Context, inputs []ReplaceCodeExamplesInput) (BatchResult, error) {
	if len(inputs) == 0 {
		return BatchResult{}, nil
	}

	col, err := s.collection(chromemCodeExamplesCollection)
	if err != nil {
		return BatchResult{}, err
	}
	for _, in := range inputs {
		if err := s.deleteByURL(ctx, chromemCodeExamplesCollection, in.URL); err != nil {
			s.logger.Warn("chromem delete by url failed", zap.String("url", in.URL), zap.Error(err))
		}
	}

	var texts []string
	var codes []string
	var metas []map[string]any
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
			md["url"] = in.URL
			md["chunk_number"] = i
			md["summary"] = summary
			md["source_id"] = sourceID
			md["chunk_size"] = len(code)
			texts = append(texts, code+"\n\nSummary: "+summary)
			codes = append(codes, code)
			metas = append(metas, md)
		}
	}

	result := BatchResult{Attempted: len(metas)}
	if len(metas) == 0 {
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

	docs := make([]chromem.Document, len(metas))
	for i, md := range metas {
		docs[i] = chromem.Document{
			ID:        pointIDForURL(asString(md["url"]), md["chunk_number"].(int)),
			Content:   codes[i],
			Metadata:  chromemMetaString(md),
			Embedding: padOrTrim(embedded[i], s.dimension),
		}
	}

	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		return result, fmt.Errorf("add code examples: %w", err)
	}
	result.Succeeded = len(docs)
	return result, nil
}

func (s *ChromemStore) search(ctx context.Context, collectionName string, queryEmbedding []float32, matchCount int, filterMetadata map[string]any) ([]SearchResult, error) {
	col, err := s.collection(collectionName)
	if err != nil {
		return nil, err
	}
	if col.Count() == 0 {
		return nil, nil
	}

	k := matchCount
	if k > col.Count() {
		k = col.Count()
	}
	results, err := col.QueryEmbedding(ctx, queryEmbedding, k, chromemMetaString(filterMetadata), nil)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collectionName, err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, SearchResult{
			ID:         r.ID,
			URL:        r.Metadata["url"],
			Content:    r.Content,
			Summary:    r.Metadata["summary"],
			Metadata:   chromemMetaAny(r.Metadata),
			SourceID:   r.Metadata["source_id"],
			Similarity: float64(r.Similarity),
		})
	}
	return out, nil
}

func chromemMetaAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *ChromemStore) SearchDocuments(ctx context.Context, queryEmbedding []float32, matchCount int, filterMetadata map[string]any) ([]SearchResult, error) {
	return s.search(ctx, chromemDocumentsCollection, queryEmbedding, matchCount, filterMetadata)
}

func (s *ChromemStore) SearchCodeExamples(ctx context.Context, queryEmbedding []float32, matchCount int, filterMetadata map[string]any) ([]SearchResult, error) {
	return s.search(ctx, chromemCodeExamplesCollection, queryEmbedding, matchCount, filterMetadata)
}

func (s *ChromemStore) KeywordDocuments(ctx context.Context, query, sourceFilter string, limit int) ([]SearchResult, error) {
	col, err := s.collection(chromemDocumentsCollection)
	if err != nil {
		return nil, err
	}
	if col.Count() == 0 {
		return nil, nil
	}

	where := map[string]string{}
	if sourceFilter != "" {
		where["source_id"] = sourceFilter
	}
	whereDocument := map[string]string{"$contains": query}

	k := limit
	if k > col.Count() {
		k = col.Count()
	}
	results, err := col.QueryEmbedding(ctx, make([]float32, s.dimension), k, where, whereDocument)
	if err != nil {
		return nil, fmt.Errorf("keyword query: %w", err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, SearchResult{
			ID:       r.ID,
			URL:      r.Metadata["url"],
			Content:  r.Content,
			Metadata: chromemMetaAny(r.Metadata),
			SourceID: r.Metadata["source_id"],
		})
	}
	return out, nil
}
