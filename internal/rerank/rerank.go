// Package rerank provides a lazily loaded cross-encoder-shaped scorer for
// (query, document) pairs.
package rerank

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Pair is one (query, document) input to Predict.
type Pair struct {
	Query string
	Doc   string
}

// neutralScore is returned for every pair when the model fails to load, so
// that downstream ordering by score is a no-op rather than a crash.
const neutralScore = 0.5

// Reranker lazily selects a device and scores query/document pairs. The
// zero value is usable; the model load is deferred to the first Predict
// call and guarded by sync.Once.
type Reranker struct {
	logger *zap.Logger

	once      sync.Once
	loadErr   error
	device    string
	scoreFunc func(query, doc string) float32
}

// New builds a Reranker. logger may be nil.
func New(logger *zap.Logger) *Reranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reranker{logger: logger}
}

// Device reports the device the scoring function runs on ("gpu" or "cpu").
// It triggers the lazy load if this is the first call.
func (r *Reranker) Device(ctx context.Context) string {
	r.ensureLoaded()
	return r.device
}

// Predict scores every pair. On model load failure every pair receives the
// neutral score, preserving whatever order the caller already had.
func (r *Reranker) Predict(ctx context.Context, pairs []Pair) []float32 {
	r.ensureLoaded()

	scores := make([]float32, len(pairs))
	if r.loadErr != nil {
		for i := range scores {
			scores[i] = neutralScore
		}
		return scores
	}
	for i, p := range pairs {
		scores[i] = r.scoreFunc(p.Query, p.Doc)
	}
	return scores
}

func (r *Reranker) ensureLoaded() {
	r.once.Do(func() {
		r.device = detectDevice()
		r.scoreFunc = lexicalCrossEncoderScore
		r.logger.Info("reranker model loaded", zap.String("device", r.device))
	})
}

// Scored pairs a document's identity with its rerank score.
type Scored struct {
	Index int
	Score float32
}

// SortDescending sorts indices [0,n) by their Predict score, descending,
// stable on ties so equally scored rows keep their original relative order.
func SortDescending(scores []float32) []Scored {
	out := make([]Scored, len(scores))
	for i, s := range scores {
		out[i] = Scored{Index: i, Score: s}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// lexicalCrossEncoderScore is the lightweight substitute for an actual
// cross-encoder model: token overlap between query and document, length
// normalized so long documents don't win purely by containing more terms.
func lexicalCrossEncoderScore(query, doc string) float32 {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return neutralScore
	}
	docTokens := tokenize(doc)
	if len(docTokens) == 0 {
		return 0
	}

	docSet := make(map[string]bool, len(docTokens))
	for _, t := range docTokens {
		docSet[t] = true
	}

	matched := 0
	seen := make(map[string]bool, len(queryTokens))
	for _, t := range queryTokens {
		if docSet[t] && !seen[t] {
			matched++
			seen[t] = true
		}
	}
	overlap := float32(matched) / float32(len(queryTokens))

	// Length normalization: penalize very long documents slightly so a
	// short, precise match outranks a long document that merely contains
	// every query term somewhere within a lot of unrelated text.
	lengthPenalty := float32(1.0)
	if len(docTokens) > 200 {
		lengthPenalty = 0.9
	}

	score := overlap * lengthPenalty
	if score > 1 {
		score = 1
	}
	return score
}

func tokenize(text string) []string {
	text = strings.ToLower(text)
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !isAlphanumeric(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 2 && !isStopword(f) {
			out = append(out, f)
		}
	}
	return out
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "was": true,
	"are": true, "be": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "can": true, "this": true,
	"that": true, "these": true, "those": true, "what": true, "which": true, "who": true,
}

func isStopword(token string) bool { return stopwords[token] }
