package summarize

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	out string
	err error
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error) {
	return f.out, f.err
}

func TestSourceSummaryReturnsLLMOutput(t *testing.T) {
	s := New(&fakeCompleter{out: "A summary of the docs."}, nil)
	got := s.SourceSummary(context.Background(), "example.com", "some content")
	assert.Equal(t, "A summary of the docs.", got)
}

func TestSourceSummaryFallsBackOnError(t *testing.T) {
	s := New(&fakeCompleter{err: errors.New("llm down")}, nil)
	got := s.SourceSummary(context.Background(), "example.com", "some content")
	assert.Equal(t, "Content from example.com", got)
}

func TestSourceSummaryFallsBackOnEmptyOutput(t *testing.T) {
	s := New(&fakeCompleter{out: "   "}, nil)
	got := s.SourceSummary(context.Background(), "example.com", "x")
	assert.Equal(t, "Content from example.com", got)
}

func TestCodeExampleSummaryFallsBackOnError(t *testing.T) {
	s := New(&fakeCompleter{err: errors.New("boom")}, nil)
	got := s.CodeExampleSummary(context.Background(), "fmt.Println(1)", "before", "after")
	assert.Equal(t, "Code example", got)
}

func TestCodeExampleSummaryReturnsLLMOutput(t *testing.T) {
	s := New(&fakeCompleter{out: "Prints a number."}, nil)
	got := s.CodeExampleSummary(context.Background(), "fmt.Println(1)", "before", "after")
	assert.Equal(t, "Prints a number.", got)
}

func TestChunkContextFallsBackToEmptyOnError(t *testing.T) {
	s := New(&fakeCompleter{err: errors.New("boom")}, nil)
	got := s.ChunkContext(context.Background(), "doc sample", "chunk text")
	assert.Equal(t, "", got)
}

func TestTruncateLeavesShortStringsAlone(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 100))
}

func TestTruncateCutsLongStrings(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	out := truncate(string(long), 50)
	require.Len(t, out, 50)
}
