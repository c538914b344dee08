package extract

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	maxTokens          = 1500
	temperature        = 0.2
	defaultMaxInFlight = 3
)

// Completer is the LLM completion contract this extractor depends on,
// shared with internal/summarize.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error)
}

// Extractor runs LLM-based entity/relationship extraction over a
// document's chunks, falling back to regex tagging when no LLM is
// configured.
type Extractor struct {
	llm        Completer
	logger     *zap.Logger
	maxInFlight int64
}

// New returns an Extractor. A nil llm selects the rule-based fallback for
// every call.
func New(llm Completer, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{llm: llm, logger: logger, maxInFlight: defaultMaxInFlight}
}

// ExtractDocument runs extraction over every chunk (at most maxInFlight
// concurrently), then merges entities and relationships across chunks.
func (e *Extractor) ExtractDocument(ctx context.Context, chunks []string) Result {
	if e.llm == nil {
		return e.extractWithFallback(chunks)
	}

	sem := semaphore.NewWeighted(e.maxInFlight)
	var mu sync.Mutex
	var wg sync.WaitGroup
	perChunk := make([]chunkExtraction, len(chunks))

	for i, chunk := range chunks {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(i int, chunk string) {
			defer wg.Done()
			defer sem.Release(1)

			extracted, err := e.extractChunk(ctx, chunk)
			if err != nil {
				e.logger.Warn("chunk extraction failed, using fallback for this chunk", zap.Int("chunk", i), zap.Error(err))
				extracted = fallbackExtract(chunk)
			}
			mu.Lock()
			perChunk[i] = extracted
			mu.Unlock()
		}(i, chunk)
	}
	wg.Wait()

	return mergeChunks(perChunk)
}

func (e *Extractor) extractChunk(ctx context.Context, chunk string) (chunkExtraction, error) {
	out, err := e.llm.Complete(ctx, systemPrompt, userPrompt(chunk), maxTokens, temperature)
	if err != nil {
		return chunkExtraction{}, err
	}

	var parsed chunkExtraction
	if err := json.Unmarshal([]byte(extractJSONObject(out)), &parsed); err != nil {
		return chunkExtraction{}, err
	}
	return parsed, nil
}

// extractJSONObject trims LLM chatter around a JSON object, in case the
// model wraps it in a code fence or a leading sentence.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}

func (e *Extractor) extractWithFallback(chunks []string) Result {
	perChunk := make([]chunkExtraction, len(chunks))
	for i, chunk := range chunks {
		perChunk[i] = fallbackExtract(chunk)
	}
	result := mergeChunks(perChunk)
	result.UsedFallback = true
	return result
}

// mergeChunks deduplicates entities by trimmed name (summing mentions,
// keeping the longest description) and relationships by
// (from, to, type), dropping duplicates.
func mergeChunks(perChunk []chunkExtraction) Result {
	entities := map[string]*Entity{}
	var entityOrder []string
	relationships := map[string]*Relationship{}
	var relOrder []string

	for _, chunk := range perChunk {
		for _, ent := range chunk.Entities {
			name := strings.TrimSpace(ent.Name)
			if name == "" {
				continue
			}
			mentions := ent.Mentions
			if mentions <= 0 {
				mentions = 1
			}
			confidence := ent.Confidence
			if confidence <= 0 {
				confidence = 1.0
			}
			if existing, ok := entities[name]; ok {
				existing.Mentions += mentions
				if len(ent.Description) > len(existing.Description) {
					existing.Description = ent.Description
				}
				if confidence > existing.Confidence {
					existing.Confidence = confidence
				}
				continue
			}
			copyEnt := ent
			copyEnt.Name = name
			copyEnt.Mentions = mentions
			copyEnt.Confidence = confidence
			entities[name] = &copyEnt
			entityOrder = append(entityOrder, name)
		}

		for _, rel := range chunk.Relationships {
			from := strings.TrimSpace(rel.FromEntity)
			to := strings.TrimSpace(rel.ToEntity)
			if from == "" || to == "" {
				continue
			}
			key := from + "\x00" + to + "\x00" + strings.ToUpper(rel.RelationshipType)
			if _, ok := relationships[key]; ok {
				continue
			}
			copyRel := rel
			copyRel.FromEntity = from
			copyRel.ToEntity = to
			relationships[key] = &copyRel
			relOrder = append(relOrder, key)
		}
	}

	result := Result{
		Entities:      make([]Entity, 0, len(entityOrder)),
		Relationships: make([]Relationship, 0, len(relOrder)),
	}
	for _, name := range entityOrder {
		result.Entities = append(result.Entities, *entities[name])
	}
	for _, key := range relOrder {
		result.Relationships = append(result.Relationships, *relationships[key])
	}
	return result
}
