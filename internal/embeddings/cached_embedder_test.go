package embeddings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls int
	dim   int
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, c.dim)
		out[i][0] = float32(len(texts[i]))
	}
	return out, nil
}

func (c *countingEmbedder) Dim() int { return c.dim }

func (c *countingEmbedder) Health(ctx context.Context) error { return nil }

func TestCachedEmbedderServesRepeatTextFromCache(t *testing.T) {
	inner := &countingEmbedder{dim: 4}
	cached := NewCachedEmbedder(inner, NewCache(10, time.Hour), nil)
	ctx := context.Background()

	_, err := cached.Embed(ctx, []string{"hello"})
	require.NoError(t, err)
	_, err = cached.Embed(ctx, []string{"hello"})
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls, "second call should be served entirely from cache")
}

func TestCachedEmbedderOnlyCallsInnerForMisses(t *testing.T) {
	inner := &countingEmbedder{dim: 4}
	cached := NewCachedEmbedder(inner, NewCache(10, time.Hour), nil)
	ctx := context.Background()

	_, err := cached.Embed(ctx, []string{"a", "b"})
	require.NoError(t, err)

	results, err := cached.Embed(ctx, []string{"a", "c"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 2, inner.calls)
}
