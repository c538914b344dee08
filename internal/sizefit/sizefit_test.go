package sizefit_test

import (
	"strings"
	"testing"

	"github.com/ragcrawld/ragcrawld/internal/sizefit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitTruncatesLongContentOnWordBoundary(t *testing.T) {
	content := strings.Repeat("word ", 50) // 250 chars
	records := []sizefit.Record{{Content: content}}

	kept, diag, _ := sizefit.Fit(records, sizefit.Constraints{
		MaxResponseTokens: 5000,
		MaxContentLength:  100,
	})

	require.Len(t, kept, 1)
	assert.True(t, kept[0].ContentTruncated)
	assert.LessOrEqual(t, len(kept[0].Content), 100)
	assert.True(t, strings.HasSuffix(kept[0].Content, " ..."))
	assert.Equal(t, 1, diag.ContentTruncatedCount)
}

func TestFitLeavesShortContentUntouched(t *testing.T) {
	records := []sizefit.Record{{Content: "short"}}
	kept, diag, warning := sizefit.Fit(records, sizefit.Constraints{
		MaxResponseTokens: 5000,
		MaxContentLength:  100,
	})
	require.Len(t, kept, 1)
	assert.False(t, kept[0].ContentTruncated)
	assert.Equal(t, 0, diag.ContentTruncatedCount)
	assert.Empty(t, warning)
}

func TestFitSkipsTruncationWhenIncludeFullContentIsSet(t *testing.T) {
	content := strings.Repeat("word ", 50)
	records := []sizefit.Record{{Content: content}}
	kept, _, _ := sizefit.Fit(records, sizefit.Constraints{
		MaxResponseTokens:  5000,
		MaxContentLength:   10,
		IncludeFullContent: true,
	})
	require.Len(t, kept, 1)
	assert.Equal(t, content, kept[0].Content)
	assert.False(t, kept[0].ContentTruncated)
}

func TestFitStopsOnceTokenBudgetIsExceeded(t *testing.T) {
	records := []sizefit.Record{
		{Content: strings.Repeat("a", 400)},
		{Content: strings.Repeat("b", 400)},
		{Content: strings.Repeat("c", 400)},
	}
	kept, diag, warning := sizefit.Fit(records, sizefit.Constraints{
		MaxResponseTokens: 150,
		MaxContentLength:  1000,
	})

	assert.Less(t, len(kept), 3)
	assert.True(t, diag.Truncated)
	assert.Equal(t, 3, diag.OriginalCount)
	assert.NotEmpty(t, warning)
	assert.Contains(t, warning, "pagination")
}

func TestFitClampsMaxResponseTokensToCap(t *testing.T) {
	records := []sizefit.Record{{Content: "x"}}
	_, diag, _ := sizefit.Fit(records, sizefit.Constraints{
		MaxResponseTokens: 999999,
		MaxContentLength:  100,
	})
	assert.Equal(t, 1, diag.FinalCount)
}

func TestFitAccountsForReservedTokens(t *testing.T) {
	records := []sizefit.Record{{Content: strings.Repeat("a", 400)}}
	kept, diag, _ := sizefit.Fit(records, sizefit.Constraints{
		MaxResponseTokens: 100,
		ReservedTokens:    100,
		MaxContentLength:  1000,
	})
	assert.Empty(t, kept)
	assert.True(t, diag.Truncated)
}

func TestFitHandlesEmptyInput(t *testing.T) {
	kept, diag, warning := sizefit.Fit(nil, sizefit.Constraints{MaxResponseTokens: 1000})
	assert.Empty(t, kept)
	assert.Equal(t, 0, diag.OriginalCount)
	assert.Empty(t, warning)
}
