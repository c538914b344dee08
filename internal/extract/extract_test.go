package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedCompleter struct {
	responses map[string]string
	err       error
}

func (c *scriptedCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return c.responses[userPrompt], nil
}

func TestExtractDocumentMergesEntitiesAcrossChunks(t *testing.T) {
	chunk1 := "chunk one about react"
	chunk2 := "chunk two also about react"

	completer := &scriptedCompleter{responses: map[string]string{
		userPrompt(chunk1): `{"entities":[{"type":"framework","name":"React","description":"a UI library","mentions":2}],"relationships":[]}`,
		userPrompt(chunk2): `{"entities":[{"type":"framework","name":"React","description":"short","mentions":1}],"relationships":[]}`,
	}}

	extractor := New(completer, nil)
	result := extractor.ExtractDocument(context.Background(), []string{chunk1, chunk2})

	require.Len(t, result.Entities, 1)
	assert.Equal(t, "React", result.Entities[0].Name)
	assert.Equal(t, 3, result.Entities[0].Mentions)
	assert.Equal(t, "a UI library", result.Entities[0].Description, "longest description must win")
	assert.False(t, result.UsedFallback)
}

func TestExtractDocumentDedupesRelationshipsByTriple(t *testing.T) {
	chunk := "react depends on javascript"
	completer := &scriptedCompleter{responses: map[string]string{
		userPrompt(chunk): `{"entities":[],"relationships":[
			{"from_entity":"React","to_entity":"JavaScript","relationship_type":"DEPENDS_ON","confidence":0.9},
			{"from_entity":"React","to_entity":"JavaScript","relationship_type":"DEPENDS_ON","confidence":0.5}
		]}`,
	}}

	extractor := New(completer, nil)
	result := extractor.ExtractDocument(context.Background(), []string{chunk})
	require.Len(t, result.Relationships, 1)
}

func TestExtractDocumentFallsBackPerChunkOnLLMError(t *testing.T) {
	chunk := "we use Docker and Go for CI in our README"
	completer := &scriptedCompleter{err: assertErr("LLM unavailable")}

	extractor := New(completer, nil)
	result := extractor.ExtractDocument(context.Background(), []string{chunk})

	var names []string
	for _, e := range result.Entities {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "Docker")
	assert.Contains(t, names, "Go")
}

func TestExtractDocumentUsesFallbackWhenNoLLMConfigured(t *testing.T) {
	extractor := New(nil, nil)
	result := extractor.ExtractDocument(context.Background(), []string{"we run Kubernetes and Python here"})

	assert.True(t, result.UsedFallback)
	assert.NotEmpty(t, result.Entities)
}

func TestExtractDocumentHandlesMalformedJSON(t *testing.T) {
	chunk := "some text with CI and Docker"
	completer := &scriptedCompleter{responses: map[string]string{
		userPrompt(chunk): "not json at all",
	}}

	extractor := New(completer, nil)
	result := extractor.ExtractDocument(context.Background(), []string{chunk})
	// Malformed JSON triggers the per-chunk fallback, which should still
	// find the well-known token "Docker".
	var names []string
	for _, e := range result.Entities {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "Docker")
}

func TestExtractJSONObjectStripsSurroundingText(t *testing.T) {
	in := "Here is the result:\n```json\n{\"entities\":[]}\n```\nThanks"
	got := extractJSONObject(in)
	assert.Equal(t, `{"entities":[]}`, got)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
