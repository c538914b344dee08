package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRejectsInvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "not-a-level", Format: "json"})
	require.Error(t, err)
}

func TestNewBuildsLoggerForEachFormat(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		l, err := New(Config{Level: "info", Format: format})
		require.NoError(t, err)
		require.NotNil(t, l)
	}
}

func TestContextRoundTrip(t *testing.T) {
	base := zap.NewNop()
	ctx := WithContext(context.Background(), base)
	assert.Same(t, base, FromContext(ctx))
}

func TestFromContextWithoutLoggerReturnsNop(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
}
