// Package summarize produces short, LLM-generated descriptions used as
// metadata and embedding augmentation elsewhere in the pipeline: source
// summaries, code example summaries, and chunk contextual prefixes.
// Every entry point degrades to a deterministic placeholder on any LLM
// failure, so summarization can never fail a crawl or a query.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Completer is the minimal LLM chat-completion contract this package
// needs. Implementations live in internal/llmclient; it is declared here
// to keep this package's test double local and its dependency surface
// narrow.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error)
}

const (
	temperature          = 0.3
	sourceSummaryTokens  = 150
	codeSummaryTokens    = 100
	chunkContextTokens   = 200
	maxSourceSampleChars = 8000
	maxCodeSampleChars   = 4000
)

// Summarizer generates the three kinds of summaries used across the
// pipeline.
type Summarizer struct {
	llm    Completer
	logger *zap.Logger
}

// New constructs a Summarizer. logger may be nil.
func New(llm Completer, logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{llm: llm, logger: logger}
}

// SourceSummary produces a short description of a crawled source given a
// sample of its content, for display and keyword search relevance.
func (s *Summarizer) SourceSummary(ctx context.Context, sourceID, sample string) string {
	sample = truncate(sample, maxSourceSampleChars)
	system := "You write a two to three sentence summary of a documentation source. Be factual and concise."
	user := fmt.Sprintf("Source: %s\n\nContent sample:\n%s", sourceID, sample)

	out, err := s.llm.Complete(ctx, system, user, sourceSummaryTokens, temperature)
	if err != nil || strings.TrimSpace(out) == "" {
		s.logger.Warn("source summary generation failed, using placeholder",
			zap.String("source_id", sourceID), zap.Error(err))
		return fmt.Sprintf("Content from %s", sourceID)
	}
	return strings.TrimSpace(out)
}

// CodeExampleSummary describes what a code block demonstrates, given the
// code itself and the surrounding prose context.
func (s *Summarizer) CodeExampleSummary(ctx context.Context, code, contextBefore, contextAfter string) string {
	system := "You summarize in one or two sentences what a code example demonstrates, using its surrounding context."
	user := fmt.Sprintf("Context before:\n%s\n\nCode:\n%s\n\nContext after:\n%s",
		truncate(contextBefore, 500), truncate(code, maxCodeSampleChars), truncate(contextAfter, 500))

	out, err := s.llm.Complete(ctx, system, user, codeSummaryTokens, temperature)
	if err != nil || strings.TrimSpace(out) == "" {
		s.logger.Warn("code example summary generation failed, using placeholder", zap.Error(err))
		return "Code example"
	}
	return strings.TrimSpace(out)
}

// ChunkContext produces a short situating prefix for a chunk relative to
// its full document, used to improve retrieval relevance for chunks that
// read ambiguously in isolation.
func (s *Summarizer) ChunkContext(ctx context.Context, documentSample, chunk string) string {
	system := "You write a one-sentence prefix that situates a text chunk within its parent document, so the chunk reads coherently on its own."
	user := fmt.Sprintf("Document sample:\n%s\n\nChunk:\n%s", truncate(documentSample, maxSourceSampleChars), truncate(chunk, 2000))

	out, err := s.llm.Complete(ctx, system, user, chunkContextTokens, temperature)
	if err != nil || strings.TrimSpace(out) == "" {
		s.logger.Warn("chunk context generation failed, using placeholder", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(out)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
