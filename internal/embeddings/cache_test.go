package embeddings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheGetMissThenSetThenHit(t *testing.T) {
	c := NewCache(10, time.Hour)

	_, ok := c.Get("hello")
	assert.False(t, ok)

	c.Set("hello", []float32{1, 2, 3})
	v, ok := c.Get("hello")
	assert.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, v)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(2, time.Hour)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	c.Set("c", []float32{3})

	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry should have been evicted")

	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCacheExpiresEntriesPastTTL(t *testing.T) {
	c := NewCache(10, time.Millisecond)
	c.Set("a", []float32{1})
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCacheReturnsIndependentCopies(t *testing.T) {
	c := NewCache(10, time.Hour)
	original := []float32{1, 2, 3}
	c.Set("a", original)
	original[0] = 999

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, float32(1), v[0])
}
