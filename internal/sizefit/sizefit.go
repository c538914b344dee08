// Package sizefit truncates and budgets result records before they are
// serialized back to a caller with a limited context window.
package sizefit

import (
	"strconv"
	"strings"
)

// MaxResponseTokensCap is the hard ceiling on Constraints.MaxResponseTokens
// regardless of what a caller requests.
const MaxResponseTokensCap = 20000

// Constraints bounds how much content a batch of results may carry.
type Constraints struct {
	MaxResponseTokens  int
	MaxContentLength   int
	IncludeFullContent bool
	ReservedTokens     int
}

// clamp caps MaxResponseTokens at MaxResponseTokensCap.
func (c Constraints) clamp() Constraints {
	if c.MaxResponseTokens <= 0 || c.MaxResponseTokens > MaxResponseTokensCap {
		c.MaxResponseTokens = MaxResponseTokensCap
	}
	return c
}

// Record is one result being fit to budget. ContentTruncated and
// EstimatedTokens are set by Fit.
type Record struct {
	Content          string
	ContentTruncated bool
	EstimatedTokens  int
}

// Diagnostic summarizes what Fit did to a batch of records.
type Diagnostic struct {
	Truncated             bool
	OriginalCount         int
	FinalCount            int
	ContentTruncatedCount int
	EstimatedTokens       int
}

// Fit truncates each record's content (unless IncludeFullContent is set)
// and drops trailing records once the token budget is exhausted. It
// returns the kept records, a diagnostic, and a warning string (empty if
// nothing was dropped or truncated).
func Fit(records []Record, constraints Constraints) ([]Record, Diagnostic, string) {
	constraints = constraints.clamp()

	diag := Diagnostic{OriginalCount: len(records)}
	budget := constraints.MaxResponseTokens - constraints.ReservedTokens
	spent := 0

	kept := make([]Record, 0, len(records))
	for _, rec := range records {
		if !constraints.IncludeFullContent && constraints.MaxContentLength > 0 {
			truncated, didTruncate := truncateOnWordBoundary(rec.Content, constraints.MaxContentLength)
			rec.Content = truncated
			rec.ContentTruncated = didTruncate
			if didTruncate {
				diag.ContentTruncatedCount++
			}
		}

		rec.EstimatedTokens = estimateTokens(rec.Content)
		if spent+rec.EstimatedTokens > budget {
			diag.Truncated = true
			break
		}
		spent += rec.EstimatedTokens
		kept = append(kept, rec)
	}

	diag.FinalCount = len(kept)
	diag.EstimatedTokens = spent

	warning := ""
	if diag.Truncated || diag.ContentTruncatedCount > 0 {
		warning = buildWarning(diag)
	}
	return kept, diag, warning
}

// truncateMarker is appended when content is cut short. It counts against
// limit so the returned string never exceeds limit bytes.
const truncateMarker = " ..."

// truncateOnWordBoundary truncates content to at most limit bytes including
// the trailing marker, cutting at the last space past 80% of the budget
// when one exists, else hard cutting at the budget. Returns the (possibly
// unchanged) content and whether truncation happened.
func truncateOnWordBoundary(content string, limit int) (string, bool) {
	if len(content) <= limit {
		return content, false
	}

	budget := limit - len(truncateMarker)
	if budget < 0 {
		budget = 0
	}

	cut := budget
	minCut := int(float64(budget) * 0.8)
	if idx := strings.LastIndex(content[:budget], " "); idx >= minCut {
		cut = idx
	}
	return content[:cut] + truncateMarker, true
}

// estimateTokens approximates token count as chars/4; it's a cheap,
// model-agnostic estimate rather than a real tokenizer.
func estimateTokens(s string) int {
	return len(s) / 4
}

func buildWarning(diag Diagnostic) string {
	var b strings.Builder
	if diag.Truncated {
		dropped := diag.OriginalCount - diag.FinalCount
		b.WriteString("response truncated: ")
		b.WriteString(strconv.Itoa(dropped))
		b.WriteString(" of ")
		b.WriteString(strconv.Itoa(diag.OriginalCount))
		b.WriteString(" results dropped to stay within the token budget")
	}
	if diag.ContentTruncatedCount > 0 {
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		b.WriteString(strconv.Itoa(diag.ContentTruncatedCount))
		b.WriteString(" result(s) had content truncated")
	}
	if diag.Truncated {
		b.WriteString("; use offset/pagination to fetch the remaining results")
	}
	return b.String()
}
