package embeddings

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Cache is an LRU cache with TTL expiry, keyed by the SHA-256 of the chunk
// text. It is advisory: a miss simply falls through to the
// underlying Embedder, never an error.
type Cache struct {
	mu        sync.RWMutex
	entries   map[string]*list.Element
	lru       *list.List
	maxSize   int
	ttl       time.Duration
	hits      int64
	misses    int64
	evictions int64
}

type cacheEntry struct {
	key       string
	value     []float32
	createdAt time.Time
}

// NewCache creates an LRU+TTL cache; non-positive sizes/ttls fall back to
// sane defaults (1000 entries, 24h).
func NewCache(maxSize int, ttl time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Cache{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// HashKey derives the cache key for a chunk of text.
func HashKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Get returns a copy of the cached embedding for text, if present and unexpired.
func (c *Cache) Get(text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := HashKey(text)
	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if time.Since(entry.createdAt) > c.ttl {
		c.removeElement(el)
		c.misses++
		return nil, false
	}
	c.lru.MoveToFront(el)
	c.hits++

	out := make([]float32, len(entry.value))
	copy(out, entry.value)
	return out, true
}

// Set stores an embedding for text, evicting the least recently used entry
// if the cache is over capacity.
func (c *Cache) Set(text string, embedding []float32) {
	if len(embedding) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := HashKey(text)
	value := make([]float32, len(embedding))
	copy(value, embedding)

	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.value = value
		entry.createdAt = time.Now()
		c.lru.MoveToFront(el)
		return
	}

	el := c.lru.PushFront(&cacheEntry{key: key, value: value, createdAt: time.Now()})
	c.entries[key] = el

	for c.lru.Len() > c.maxSize {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
		c.evictions++
	}
}

func (c *Cache) removeElement(el *list.Element) {
	entry := el.Value.(*cacheEntry)
	delete(c.entries, entry.key)
	c.lru.Remove(el)
}

// Stats reports hit/miss/eviction counters for the metrics surface.
type Stats struct {
	Size      int           `json:"size"`
	MaxSize   int           `json:"max_size"`
	Hits      int64         `json:"hits"`
	Misses    int64         `json:"misses"`
	Evictions int64         `json:"evictions"`
	HitRate   float64       `json:"hit_rate"`
	TTL       time.Duration `json:"ttl"`
}

func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := c.hits + c.misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return Stats{
		Size:      c.lru.Len(),
		MaxSize:   c.maxSize,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		HitRate:   hitRate,
		TTL:       c.ttl,
	}
}

// CleanExpired scans every entry and evicts those older than the TTL,
// returning how many were removed.
func (c *Cache) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cleaned := 0
	for key, el := range c.entries {
		entry := el.Value.(*cacheEntry)
		if time.Since(entry.createdAt) > c.ttl {
			c.removeElement(el)
			cleaned++
			_ = key
		}
	}
	return cleaned
}
