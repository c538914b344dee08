package orchestrate

import (
	"context"

	"github.com/ragcrawld/ragcrawld/internal/chunk"
	"github.com/ragcrawld/ragcrawld/internal/codeblock"
	"github.com/ragcrawld/ragcrawld/internal/crawl/strategy"
	"github.com/ragcrawld/ragcrawld/internal/extract"
	"github.com/ragcrawld/ragcrawld/internal/graphstore"
	"github.com/ragcrawld/ragcrawld/internal/telemetry"
	"github.com/ragcrawld/ragcrawld/internal/urlkit"
	"github.com/ragcrawld/ragcrawld/internal/vectorstore"
	"go.uber.org/zap"
)

// Request describes one crawl invocation.
type Request struct {
	URL              string
	Recursive        bool
	Stealth          StealthConfig
	MaxDepth         int
	MaxConcurrency   int
	ChunkSize        int
	GraphEnabled     bool
	SkipCodeExamples bool
}

// Aggregate is the per-request summary every crawl variant guarantees.
type Aggregate struct {
	Success            bool
	StrategyName       string
	ChunksStored       int
	CodeExamplesStored int
	SourcesUpdated     int
	PagesCrawled       int
	Warnings           []string
}

// Summarizer is the collaborator used both for chunk context prefixes
// (passed through to vectorstore.ChunkContexter) and source summaries.
type Summarizer interface {
	vectorstore.ChunkContexter
	SourceSummary(ctx context.Context, sourceID, sample string) string
	CodeExampleSummary(ctx context.Context, code, contextBefore, contextAfter string) string
}

// Orchestrator wires crawl strategies to chunking, embedding, summarizing,
// vector storage, and (optionally) graph extraction and storage.
type Orchestrator struct {
	fetcherFactory         FetcherFactory
	store                  vectorstore.Store
	embedder               vectorstore.Embedder
	summarizer             Summarizer
	extractor              *extract.Extractor
	graphStore             graphstore.Store
	memory                 *MemoryMonitor
	useContextualEmbedding bool
	metrics                *telemetry.Telemetry
	logger                 *zap.Logger
}

// Config bundles Orchestrator's collaborators.
type Config struct {
	FetcherFactory         FetcherFactory
	Store                  vectorstore.Store
	Embedder               vectorstore.Embedder
	Summarizer             Summarizer
	Extractor              *extract.Extractor
	GraphStore             graphstore.Store
	MemoryThreshold        uint64
	UseContextualEmbedding bool
	Metrics                *telemetry.Telemetry
	Logger                 *zap.Logger
}

// New builds an Orchestrator from its collaborators.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		fetcherFactory:         cfg.FetcherFactory,
		store:                  cfg.Store,
		embedder:               cfg.Embedder,
		summarizer:             cfg.Summarizer,
		extractor:              cfg.Extractor,
		graphStore:             cfg.GraphStore,
		memory:                 NewMemoryMonitor(cfg.MemoryThreshold),
		useContextualEmbedding: cfg.UseContextualEmbedding,
		metrics:                cfg.Metrics,
		logger:                 logger,
	}
}

// SetMemoryThreshold updates the throttling threshold the memory monitor
// applies to future batches, e.g. in response to a config reload.
func (o *Orchestrator) SetMemoryThreshold(thresholdBytes uint64) {
	o.memory.SetThreshold(thresholdBytes)
}

// Crawl runs one crawl request end to end: strategy selection, fetch,
// chunk/embed/store, optional code-example extraction, and optional graph
// enrichment. Sources are always upserted before any chunk referencing
// them is inserted.
func (o *Orchestrator) Crawl(ctx context.Context, req Request) Aggregate {
	strat := strategy.New(req.URL, req.Recursive)
	strategyName := strat.Name()

	fetcher := o.fetcherFactory.NewFetcher(req.Stealth)
	opts := strategy.Options{MaxDepth: req.MaxDepth, MaxConcurrency: req.MaxConcurrency}
	if opts.MaxConcurrency > 0 {
		throttled := o.memory.NextConcurrency(opts.MaxConcurrency)
		if throttled < opts.MaxConcurrency && o.metrics != nil {
			o.metrics.ThrottleEvents.Add(ctx, 1)
		}
		opts.MaxConcurrency = throttled
	}

	result := strat.Crawl(ctx, fetcher, req.URL, opts)
	agg := Aggregate{Success: result.Success, StrategyName: strategyName, PagesCrawled: result.PagesCrawled}
	if !result.Success {
		agg.Warnings = append(agg.Warnings, "crawl produced no documents")
		return agg
	}

	sourceID := urlkit.SourceID(req.URL)
	totalWords := 0
	for _, doc := range result.Documents {
		totalWords += len(doc.Markdown) / 6 // rough word estimate before chunking
	}
	summary := ""
	if o.summarizer != nil && len(result.Documents) > 0 {
		summary = o.summarizer.SourceSummary(ctx, sourceID, result.Documents[0].Markdown)
	}
	if err := o.store.UpsertSource(ctx, sourceID, summary, totalWords); err != nil {
		o.logger.Warn("upsert source failed", zap.String("source_id", sourceID), zap.Error(err))
		agg.Warnings = append(agg.Warnings, "source upsert failed: "+err.Error())
	} else {
		agg.SourcesUpdated++
	}

	for _, doc := range result.Documents {
		o.ingestDocument(ctx, sourceID, doc, req.ChunkSize, req.GraphEnabled, req.SkipCodeExamples, &agg)
	}

	if o.metrics != nil {
		o.metrics.PagesCrawled.Add(ctx, int64(agg.PagesCrawled))
		o.metrics.ChunksStored.Add(ctx, int64(agg.ChunksStored))
		o.metrics.CodeExamplesStored.Add(ctx, int64(agg.CodeExamplesStored))
	}

	return agg
}

func (o *Orchestrator) ingestDocument(ctx context.Context, sourceID string, doc strategy.Document, chunkSize int, graphEnabled, skipCodeExamples bool, agg *Aggregate) {
	documentID := ""
	if graphEnabled {
		documentID = urlkit.DocumentID(doc.URL)
	}

	chunks := chunk.Split(doc.Markdown, chunkSize)
	if len(chunks) > 0 {
		var ctxer vectorstore.ChunkContexter
		if o.useContextualEmbedding {
			ctxer = o.summarizer
		}
		input := vectorstore.ReplaceDocumentsInput{
			URL:              doc.URL,
			Chunks:           chunks,
			Metadatas:        metadataPerChunk(sourceID, documentID, len(chunks)),
			FullDocumentText: doc.Markdown,
		}
		result, err := o.store.ReplaceDocuments(ctx, []vectorstore.ReplaceDocumentsInput{input}, ctxer)
		if err != nil {
			o.logger.Warn("replace documents failed", zap.String("url", doc.URL), zap.Error(err))
			agg.Warnings = append(agg.Warnings, "document storage failed for "+doc.URL)
		}
		agg.ChunksStored += result.Succeeded
	}

	blocks := codeblock.Extract(doc.Markdown, codeblock.DefaultMinLength)
	if !skipCodeExamples && len(blocks) > 0 {
		code := make([]string, len(blocks))
		summaries := make([]string, len(blocks))
		for i, b := range blocks {
			code[i] = b.Code
			if o.summarizer != nil {
				summaries[i] = o.summarizer.CodeExampleSummary(ctx, b.Code, b.ContextBefore, b.ContextAfter)
			}
		}
		input := vectorstore.ReplaceCodeExamplesInput{
			URL:       doc.URL,
			Code:      code,
			Summaries: summaries,
			Metadatas: metadataPerChunk(sourceID, documentID, len(blocks)),
		}
		result, err := o.store.ReplaceCodeExamples(ctx, []vectorstore.ReplaceCodeExamplesInput{input})
		if err != nil {
			o.logger.Warn("replace code examples failed", zap.String("url", doc.URL), zap.Error(err))
			agg.Warnings = append(agg.Warnings, "code example storage failed for "+doc.URL)
		}
		agg.CodeExamplesStored += result.Succeeded
	}

	if graphEnabled && o.extractor != nil && o.graphStore != nil {
		o.ingestGraph(ctx, sourceID, documentID, doc, chunks)
	}
}

func (o *Orchestrator) ingestGraph(ctx context.Context, sourceID, documentID string, doc strategy.Document, chunks []string) {
	if err := o.graphStore.StoreDocument(ctx, documentID, sourceID, doc.URL, doc.URL, nil); err != nil {
		o.logger.Warn("graph store_document failed", zap.String("url", doc.URL), zap.Error(err))
		return
	}

	extraction := o.extractor.ExtractDocument(ctx, chunks)

	entities := make([]graphstore.EntityInput, len(extraction.Entities))
	for i, e := range extraction.Entities {
		entities[i] = graphstore.EntityInput{Type: e.Type, Name: e.Name, Description: e.Description, Mentions: e.Mentions}
	}
	if _, err := o.graphStore.StoreEntities(ctx, documentID, entities); err != nil {
		o.logger.Warn("graph store_entities failed", zap.String("url", doc.URL), zap.Error(err))
	}

	relationships := make([]graphstore.RelationshipInput, len(extraction.Relationships))
	for i, r := range extraction.Relationships {
		relationships[i] = graphstore.RelationshipInput{
			FromEntity: r.FromEntity, ToEntity: r.ToEntity,
			RelationshipType: r.RelationshipType, Description: r.Description, Confidence: r.Confidence,
		}
	}
	if _, err := o.graphStore.StoreRelationships(ctx, relationships); err != nil {
		o.logger.Warn("graph store_relationships failed", zap.String("url", doc.URL), zap.Error(err))
	}
}

func metadataPerChunk(sourceID, documentID string, n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		meta := map[string]any{"source_id": sourceID}
		if documentID != "" {
			meta["document_id"] = documentID
		}
		out[i] = meta
	}
	return out
}
