package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"zerorag/internal/zerotypes"
)

// MemoryBackend is a linear-scan, cosine-similarity fallback used while the
// primary Backend is Degraded. It never errors: Search/Upsert/Delete always
// succeed against whatever is currently held in memory.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]zerotypes.VectorRecord
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]zerotypes.VectorRecord)}
}

func (m *MemoryBackend) EnsureCollection(ctx context.Context, dim int) error { return nil }

func (m *MemoryBackend) Upsert(ctx context.Context, records []zerotypes.VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.records[r.ChunkID] = r
	}
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, chunkIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range chunkIDs {
		delete(m.records, id)
	}
	return nil
}

func (m *MemoryBackend) Search(ctx context.Context, query []float32, topK int, scoreThreshold float64, filter zerotypes.SearchFilter) ([]zerotypes.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]zerotypes.SearchResult, 0, len(m.records))
	for id, rec := range m.records {
		if !filter.Matches(rec.Payload) {
			continue
		}
		score := cosineSimilarity(query, rec.Embedding)
		if score < scoreThreshold {
			continue
		}
		results = append(results, zerotypes.SearchResult{
			ChunkID: id,
			Score:   score,
			Payload: rec.Payload,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// BatchSearch runs Search once per query vector; the in-memory backend has
// no batch RPC to exploit, so this is a plain loop.
func (m *MemoryBackend) BatchSearch(ctx context.Context, queries [][]float32, topK int, scoreThreshold float64, filter zerotypes.SearchFilter) ([][]zerotypes.SearchResult, error) {
	out := make([][]zerotypes.SearchResult, len(queries))
	for i, q := range queries {
		r, err := m.Search(ctx, q, topK, scoreThreshold, filter)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func (m *MemoryBackend) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.records)), nil
}

func (m *MemoryBackend) Stats(ctx context.Context) (BackendStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return BackendStats{
		TotalRecords: int64(len(m.records)),
		Detail:       map[string]interface{}{"backend": "memory"},
	}, nil
}

func (m *MemoryBackend) Close() error { return nil }

// cosineSimilarity returns the cosine similarity of a and b, normalized to
// [0,1] (raw cosine is [-1,1]; RAGQuery score_threshold assumes [0,1]).
func cosineSimilarity(a []float32, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		fa, fb := float64(a[i]), float64(b[i])
		dot += fa * fb
		normA += fa * fa
		normB += fb * fb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (cos + 1) / 2
}
