package vectorstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zerorag/internal/logging"
	"zerorag/internal/zerotypes"
)

// failingBackend always errors, used to force the circuit breaker open.
type failingBackend struct {
	mu   sync.Mutex
	fail bool
}

func (f *failingBackend) EnsureCollection(ctx context.Context, dim int) error { return nil }

func (f *failingBackend) Upsert(ctx context.Context, records []zerotypes.VectorRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("backend unavailable")
	}
	return nil
}

func (f *failingBackend) Delete(ctx context.Context, ids []string) error { return nil }

func (f *failingBackend) Search(ctx context.Context, query []float32, topK int, threshold float64, filter zerotypes.SearchFilter) ([]zerotypes.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("backend unavailable")
	}
	return nil, nil
}

func (f *failingBackend) BatchSearch(ctx context.Context, queries [][]float32, topK int, threshold float64, filter zerotypes.SearchFilter) ([][]zerotypes.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("backend unavailable")
	}
	return make([][]zerotypes.SearchResult, len(queries)), nil
}

func (f *failingBackend) Count(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return 0, errors.New("backend unavailable")
	}
	return 0, nil
}

func (f *failingBackend) Stats(ctx context.Context) (BackendStats, error) {
	return BackendStats{}, nil
}

func (f *failingBackend) Close() error { return nil }

func newTestStore(backend Backend) *Store {
	return New(backend, Config{Dim: 3, FailureThreshold: 2, QueueCapacity: 10}, logging.New(logging.LevelError))
}

func TestStoreDegradesAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{fail: true}
	s := newTestStore(backend)
	require.NoError(t, s.Open(ctx))

	rec := zerotypes.VectorRecord{ChunkID: "c1", Embedding: []float32{1, 0, 0}, Payload: zerotypes.Chunk{ID: "c1"}}

	for i := 0; i < 2; i++ {
		_ = s.UpsertSync(ctx, []zerotypes.VectorRecord{rec})
	}

	assert.Equal(t, StateDegraded, s.State())

	// A subsequent upsert should transparently land in the memory fallback.
	require.NoError(t, s.UpsertSync(ctx, []zerotypes.VectorRecord{rec}))
	results, err := s.Search(ctx, []float32{1, 0, 0}, 5, 0, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "c1", results[0].ChunkID)
}

func TestStoreReloadRecoversToReady(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{fail: true}
	s := newTestStore(backend)
	require.NoError(t, s.Open(ctx))

	rec := zerotypes.VectorRecord{ChunkID: "c1", Embedding: []float32{1, 0, 0}, Payload: zerotypes.Chunk{ID: "c1"}}
	for i := 0; i < 2; i++ {
		_ = s.UpsertSync(ctx, []zerotypes.VectorRecord{rec})
	}
	require.Equal(t, StateDegraded, s.State())

	backend.mu.Lock()
	backend.fail = false
	backend.mu.Unlock()

	require.NoError(t, s.Reload(ctx))
	assert.Equal(t, StateReady, s.State())
}

func TestStoreUpsertSyncRejectsDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{fail: false}
	s := newTestStore(backend)
	require.NoError(t, s.Open(ctx))

	bad := zerotypes.VectorRecord{ChunkID: "c1", Embedding: []float32{1, 0}, Payload: zerotypes.Chunk{ID: "c1"}}
	err := s.UpsertSync(ctx, []zerotypes.VectorRecord{bad})
	require.Error(t, err)
}

func TestStoreSearchPassesFilterThroughToFallback(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{fail: true}
	s := newTestStore(backend)
	require.NoError(t, s.Open(ctx))

	recA := zerotypes.VectorRecord{ChunkID: "a1", Embedding: []float32{1, 0, 0}, Payload: zerotypes.Chunk{ID: "a1", SourceDocumentID: "doc-a"}}
	recB := zerotypes.VectorRecord{ChunkID: "b1", Embedding: []float32{1, 0, 0}, Payload: zerotypes.Chunk{ID: "b1", SourceDocumentID: "doc-b"}}
	for i := 0; i < 2; i++ {
		_ = s.UpsertSync(ctx, []zerotypes.VectorRecord{recA, recB})
	}
	require.Equal(t, StateDegraded, s.State())

	results, err := s.Search(ctx, []float32{1, 0, 0}, 5, 0, zerotypes.SearchFilter{"source_document_id": "doc-a"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a1", results[0].ChunkID)
}

func TestStoreCountReportsActiveBackendTotal(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{fail: true}
	s := newTestStore(backend)
	require.NoError(t, s.Open(ctx))

	rec := zerotypes.VectorRecord{ChunkID: "c1", Embedding: []float32{1, 0, 0}, Payload: zerotypes.Chunk{ID: "c1"}}
	for i := 0; i < 2; i++ {
		_ = s.UpsertSync(ctx, []zerotypes.VectorRecord{rec})
	}
	require.Equal(t, StateDegraded, s.State())

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestStoreMemoryMonitorRecordsAlertAboveThreshold(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	backend := &failingBackend{fail: false}
	s := newTestStore(backend)
	require.NoError(t, s.Open(ctx))

	s.StartMemoryMonitor(ctx, 10*time.Millisecond, 0, 1<<30)

	require.Eventually(t, func() bool {
		return len(s.AlertHistory()) > 0
	}, time.Second, 10*time.Millisecond)
}

func TestStoreGCTickerPrunesAlertHistory(t *testing.T) {
	backend := &failingBackend{fail: false}
	s := newTestStore(backend)
	for i := 0; i < 5; i++ {
		s.recordAlert(zerotypes.PerformanceAlert{Kind: "memory_threshold"})
	}
	require.Len(t, s.AlertHistory(), 5)

	pruned := s.pruneAlertHistory(2)
	assert.Equal(t, 3, pruned)
	assert.Len(t, s.AlertHistory(), 2)
}

func TestOperationQueueAppliesInPriorityThenFIFOOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string

	apply := func(ctx context.Context, item zerotypes.OperationQueueItem) zerotypes.OperationResult {
		mu.Lock()
		order = append(order, item.IDs[0])
		mu.Unlock()
		return zerotypes.OperationResult{Succeeded: item.IDs}
	}

	q := newOperationQueue(10, apply, logging.New(logging.LevelError))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.push(zerotypes.OperationQueueItem{OpType: zerotypes.OpDeleteBatch, IDs: []string{"low"}, Priority: zerotypes.PriorityLow}))
	require.NoError(t, q.push(zerotypes.OperationQueueItem{OpType: zerotypes.OpDeleteBatch, IDs: []string{"high"}, Priority: zerotypes.PriorityHigh}))
	require.NoError(t, q.push(zerotypes.OperationQueueItem{OpType: zerotypes.OpDeleteBatch, IDs: []string{"normal"}, Priority: zerotypes.PriorityNormal}))
	q.start(ctx)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"high", "normal", "low"}, order)
}

func TestOperationQueueRejectsPushWhenFull(t *testing.T) {
	apply := func(ctx context.Context, item zerotypes.OperationQueueItem) zerotypes.OperationResult {
		time.Sleep(50 * time.Millisecond)
		return zerotypes.OperationResult{}
	}
	q := newOperationQueue(1, apply, logging.New(logging.LevelError))

	require.NoError(t, q.push(zerotypes.OperationQueueItem{OpType: zerotypes.OpDeleteBatch, IDs: []string{"a"}}))
	err := q.push(zerotypes.OperationQueueItem{OpType: zerotypes.OpDeleteBatch, IDs: []string{"b"}})
	assert.ErrorIs(t, err, ErrQueueFull)
}
