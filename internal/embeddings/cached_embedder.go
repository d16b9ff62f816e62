package embeddings

import (
	"context"

	"zerorag/internal/retry"
)

// CachedEmbedder wraps an Embedder with an L1 in-process LRU, an optional
// L2 Redis cache, and capped-backoff retry of the underlying call.
// Caching is advisory, not correctness-critical: a miss always falls
// through to the underlying Embedder.
type CachedEmbedder struct {
	inner   Embedder
	l1      *Cache
	l2      *RedisCache
	retrier *retry.Retrier
}

// NewCachedEmbedder wraps inner with an L1 cache and an optional L2 (nil
// disables the L2 layer).
func NewCachedEmbedder(inner Embedder, l1 *Cache, l2 *RedisCache) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, l1: l1, l2: l2, retrier: retry.New(retry.DefaultConfig())}
}

// Embed looks up each text in L1 then L2 before calling the underlying
// Embedder for the remaining misses, preserving input order in the output.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		if v, ok := c.l1.Get(text); ok {
			results[i] = v
			continue
		}
		if v, ok := c.l2.Get(ctx, text); ok {
			c.l1.Set(text, v)
			results[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	var embedded [][]float32
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		v, err := c.inner.Embed(ctx, missTexts)
		if err != nil {
			return err
		}
		embedded = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	for j, idx := range missIdx {
		results[idx] = embedded[j]
		c.l1.Set(missTexts[j], embedded[j])
		c.l2.Set(ctx, missTexts[j], embedded[j])
	}
	return results, nil
}

func (c *CachedEmbedder) Dim() int { return c.inner.Dim() }

func (c *CachedEmbedder) Health(ctx context.Context) error { return c.inner.Health(ctx) }
