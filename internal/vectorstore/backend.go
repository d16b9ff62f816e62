// Package vectorstore implements the VectorStore component: a primary
// backend (Qdrant), a transparent in-memory fallback, a circuit-breaker
// gated facade, and a priority operation queue.
package vectorstore

import (
	"context"

	"zerorag/internal/zerotypes"
)

// Backend is the low-level contract a vector database driver satisfies.
// Both QdrantBackend and the in-memory MemoryBackend implement it; the
// Store facade is the only caller.
type Backend interface {
	// EnsureCollection creates the collection/index if it does not exist.
	EnsureCollection(ctx context.Context, dim int) error

	// Upsert writes or replaces the given records.
	Upsert(ctx context.Context, records []zerotypes.VectorRecord) error

	// Delete removes records by chunk ID. Missing IDs are not an error.
	Delete(ctx context.Context, chunkIDs []string) error

	// Search returns the topK nearest neighbors to query, ranked
	// descending by score, filtered to score >= scoreThreshold and to
	// chunks matching filter (nil or empty matches everything), with ties
	// broken by ascending ChunkID.
	Search(ctx context.Context, query []float32, topK int, scoreThreshold float64, filter zerotypes.SearchFilter) ([]zerotypes.SearchResult, error)

	// BatchSearch runs Search once per query vector, preserving order.
	BatchSearch(ctx context.Context, queries [][]float32, topK int, scoreThreshold float64, filter zerotypes.SearchFilter) ([][]zerotypes.SearchResult, error)

	// Count reports the total number of indexed records.
	Count(ctx context.Context) (int64, error)

	// Stats reports a point count and arbitrary backend-specific detail.
	Stats(ctx context.Context) (BackendStats, error)

	// Close releases backend resources.
	Close() error
}

// BackendStats is returned by Backend.Stats.
type BackendStats struct {
	TotalRecords int64
	Detail       map[string]interface{}
}

// BackendKind identifies which Backend currently serves reads/writes.
type BackendKind string

const (
	BackendPrimary BackendKind = "primary"
	BackendMemory  BackendKind = "memory"
)
