package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// Collection names used by the Qdrant backend. Sources have no vector of
// their own; they are stored as zero-vector points so a single client
// and schema cover all three document/code-example/source tables.
const (
	qdrantDocumentsCollection    = "crawled_pages"
	qdrantCodeExamplesCollection = "code_examples"
	qdrantSourcesCollection      = "sources"
)

// QdrantConfig configures the alternate Qdrant gRPC backend.
type QdrantConfig struct {
	Host           string
	Port           int
	Dimension      uint64
	UseTLS         bool
	APIKey         string
	MaxMessageSize int
}

// QdrantStore is an alternate vector store backend on Qdrant, implementing
// the same Store contract as PostgresStore.
type QdrantStore struct {
	client    *qdrant.Client
	dimension uint64
	embedder  Embedder
	logger    *zap.Logger

	collectionsInit sync.Once
}

// NewQdrantStore connects to a Qdrant instance and ensures collections exist.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: qdrant host required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	maxMsg := cfg.MaxMessageSize
	if maxMsg <= 0 {
		maxMsg = 50 * 1024 * 1024
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		APIKey: cfg.APIKey,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(maxMsg),
				grpc.MaxCallSendMsgSize(maxMsg),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &QdrantStore{client: client, dimension: cfg.Dimension, logger: logger}
	if err := store.ensureCollections(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *QdrantStore) ensureCollections(ctx context.Context) error {
	for _, name := range []string{qdrantDocumentsCollection, qdrantCodeExamplesCollection, qdrantSourcesCollection} {
		exists, err := s.client.CollectionExists(ctx, name)
		if err != nil {
			return fmt.Errorf("checking collection %s: %w", name, err)
		}
		if exists {
			continue
		}
		if err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.dimension,
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			return fmt.Errorf("creating collection %s: %w", name, err)
		}
	}
	return nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// WithEmbedder attaches the embedding client.
func (s *QdrantStore) WithEmbedder(e Embedder) *QdrantStore {
	s.embedder = e
	return s
}

func toPayload(md map[string]any) map[string]*qdrant.Value {
	payload := make(map[string]*qdrant.Value, len(md))
	for k, v := range md {
		switch val := v.(type) {
		case string:
			payload[k] = qdrant.NewValueString(val)
		case int:
			payload[k] = qdrant.NewValueInt(int64(val))
		case int64:
			payload[k] = qdrant.NewValueInt(val)
		case float64:
			payload[k] = qdrant.NewValueDouble(val)
		case bool:
			payload[k] = qdrant.NewValueBool(val)
		}
	}
	return payload
}

func fromPayload(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		switch kind := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			out[k] = kind.StringValue
		case *qdrant.Value_IntegerValue:
			out[k] = kind.IntegerValue
		case *qdrant.Value_DoubleValue:
			out[k] = kind.DoubleValue
		case *qdrant.Value_BoolValue:
			out[k] = kind.BoolValue
		}
	}
	return out
}

// pointIDForURL derives a stable point id from (url, chunkNumber) so
// re-upserts of the same row overwrite in place, matching the
// delete-then-insert discipline used by the postgres backend.
func pointIDForURL(url string, chunkNumber int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", url, chunkNumber))).String()
}

func (s *QdrantStore) UpsertSource(ctx context.Context, sourceID, summary string, totalWords int) error {
	existing, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: qdrantSourcesCollection,
		Ids:            []*qdrant.PointId{qdrant.NewID(sourceIDPointID(sourceID))},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return fmt.Errorf("fetch existing source: %w", err)
	}

	words := totalWords
	if len(existing) > 0 {
		if prior, ok := fromPayload(existing[0].Payload)["total_word_count"].(int64); ok {
			words += int(prior)
		}
	}

	payload := toPayload(map[string]any{
		"source_id":        sourceID,
		"summary":          summary,
		"total_word_count": words,
	})
	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: qdrantSourcesCollection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(sourceIDPointID(sourceID)),
			Vectors: qdrant.NewVectors(make([]float32, s.dimension)...),
			Payload: payload,
		}},
	})
	if err != nil {
		return fmt.Errorf("upsert source %q: %w", sourceID, err)
	}
	return nil
}

func idFromPayload(md map[string]any) string {
	chunkNum, _ := md["chunk_number"].(int64)
	return pointIDForURL(asString(md["url"]), int(chunkNum))
}

func sourceIDPointID(sourceID string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(sourceID)).String()
}

func (s *QdrantStore) ListSources(ctx context.Context) ([]Source, error) {
	limit := uint32(10000)
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: qdrantSourcesCollection,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	out := make([]Source, 0, len(points))
	for _, p := range points {
		md := fromPayload(p.Payload)
		src := Source{SourceID: asString(md["source_id"]), Summary: asString(md["summary"])}
		if n, ok := md["total_word_count"].(int64); ok {
			src.TotalWordCount = int(n)
		}
		out = append(out, src)
	}
	return out, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func (s *QdrantStore) deleteByURL(ctx context.Context, collection, url string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{
						{ConditionOneOf: &qdrant.Condition_Field{Field: &qdrant.FieldCondition{
							Key:   "url",
							Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: url}},
						}}},
					},
				},
			},
		},
	})
	return err
}

func (s *QdrantStore) ReplaceDocuments(ctx context.Context, inputs []ReplaceDocumentsInput, ctxer ChunkContexter) (BatchResult, error) {
	if len(inputs) == 0 {
		return BatchResult{}, ErrEmptyDocuments
	}

	for _, in := range inputs {
		if err := s.deleteByURL(ctx, qdrantDocumentsCollection, in.URL); err != nil {
			s.logger.Warn("qdrant delete by url failed", zap.String("url", in.URL), zap.Error(err))
		}
	}

	var points []*qdrant.PointStruct
	var texts []string
	var meta []map[string]any
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
			md["content"] = chunk
			md["source_id"] = sourceID
			md["chunk_size"] = len(chunk)
			texts = append(texts, text)
			meta = append(meta, md)
		}
	}

	result := BatchResult{Attempted: len(meta)}
	if len(meta) == 0 {
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

	for i, md := range meta {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(pointIDForURL(asString(md["url"]), md["chunk_number"].(int))),
			Vectors: qdrant.NewVectors(padOrTrim(embedded[i], int(s.dimension))...),
			Payload: toPayload(md),
		})
	}

	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: qdrantDocumentsCollection, Points: points}); err != nil {
		return result, fmt.Errorf("upsert documents: %w", err)
	}
	result.Succeeded = len(points)
	return result, nil
}

func (s *QdrantStore) ReplaceCodeExamples(ctx context.Context, inputs []ReplaceCodeExamplesInput) (BatchResult, error) {
	if len(inputs) == 0 {
		return BatchResult{}, nil
	}

	for _, in := range inputs {
		if err := s.deleteByURL(ctx, qdrantCodeExamplesCollection, in.URL); err != nil {
			s.logger.Warn("qdrant delete by url failed", zap.String("url", in.URL), zap.Error(err))
		}
	}

	var texts []string
	var meta []map[string]any
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
			md["content"] = code
			md["summary"] = summary
			md["source_id"] = sourceID
			md["chunk_size"] = len(code)
			texts = append(texts, code+"\n\nSummary: "+summary)
			meta = append(meta, md)
		}
	}

	result := BatchResult{Attempted: len(meta)}
	if len(meta) == 0 {
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

	points := make([]*qdrant.PointStruct, len(meta))
	for i, md := range meta {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(pointIDForURL(asString(md["url"]), md["chunk_number"].(int))),
			Vectors: qdrant.NewVectors(padOrTrim(embedded[i], int(s.dimension))...),
			Payload: toPayload(md),
		}
	}

	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{CollectionName: qdrantCodeExamplesCollection, Points: points}); err != nil {
		return result, fmt.Errorf("upsert code examples: %w", err)
	}
	result.Succeeded = len(points)
	return result, nil
}

func (s *QdrantStore) search(ctx context.Context, collection string, queryEmbedding []float32, matchCount int, filterMetadata map[string]any) ([]SearchResult, error) {
	var filter *qdrant.Filter
	if len(filterMetadata) > 0 {
		var conditions []*qdrant.Condition
		for k, v := range filterMetadata {
			if s, ok := v.(string); ok {
				conditions = append(conditions, &qdrant.Condition{ConditionOneOf: &qdrant.Condition_Field{Field: &qdrant.FieldCondition{
					Key:   k,
					Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: s}},
				}}})
			}
		}
		if len(conditions) > 0 {
			filter = &qdrant.Filter{Must: conditions}
		}
	}

	res, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          qdrant.PtrOf(uint64(matchCount)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         filter,
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}

	out := make([]SearchResult, 0, len(res))
	for _, point := range res {
		md := fromPayload(point.Payload)
		out = append(out, SearchResult{
			ID:         idFromPayload(md),
			URL:        asString(md["url"]),
			Content:    asString(md["content"]),
			Summary:    asString(md["summary"]),
			Metadata:   md,
			SourceID:   asString(md["source_id"]),
			Similarity: float64(point.Score),
		})
	}
	return out, nil
}

func (s *QdrantStore) SearchDocuments(ctx context.Context, queryEmbedding []float32, matchCount int, filterMetadata map[string]any) ([]SearchResult, error) {
	return s.search(ctx, qdrantDocumentsCollection, queryEmbedding, matchCount, filterMetadata)
}

func (s *QdrantStore) SearchCodeExamples(ctx context.Context, queryEmbedding []float32, matchCount int, filterMetadata map[string]any) ([]SearchResult, error) {
	return s.search(ctx, qdrantCodeExamplesCollection, queryEmbedding, matchCount, filterMetadata)
}

// KeywordDocuments scrolls the collection and filters in-process, since
// Qdrant has no native substring operator.
func (s *QdrantStore) KeywordDocuments(ctx context.Context, query, sourceFilter string, limit int) ([]SearchResult, error) {
	scrollLimit := uint32(10000)
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: qdrantDocumentsCollection,
		Limit:          &scrollLimit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("keyword scroll: %w", err)
	}

	var out []SearchResult
	for _, p := range points {
		md := fromPayload(p.Payload)
		content := asString(md["content"])
		if !containsFold(content, query) {
			continue
		}
		if sourceFilter != "" && asString(md["source_id"]) != sourceFilter {
			continue
		}
		out = append(out, SearchResult{
			ID:       idFromPayload(md),
			URL:      asString(md["url"]),
			Content:  content,
			Metadata: md,
			SourceID: asString(md["source_id"]),
		})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
