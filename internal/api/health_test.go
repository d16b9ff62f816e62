package api

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zerorag/internal/config"
	"zerorag/internal/logging"
	"zerorag/internal/vectorstore"
	"zerorag/internal/zerotypes"
)

func newTestStore(t *testing.T) *vectorstore.Store {
	t.Helper()
	store := vectorstore.New(vectorstore.NewMemoryBackend(), vectorstore.Config{
		Dim:              4,
		FailureThreshold: 3,
		QueueCapacity:    16,
	}, logging.New(logging.LevelError))
	require.NoError(t, store.Open(context.Background()))
	return store
}

// failingBackend always errors, used to drive the Store's circuit breaker
// into the open (degraded) state deterministically.
type failingBackend struct{}

func (failingBackend) EnsureCollection(ctx context.Context, dim int) error { return nil }
func (failingBackend) Upsert(ctx context.Context, records []zerotypes.VectorRecord) error {
	return errors.New("backend unavailable")
}
func (failingBackend) Delete(ctx context.Context, chunkIDs []string) error {
	return errors.New("backend unavailable")
}
func (failingBackend) Search(ctx context.Context, query []float32, topK int, scoreThreshold float64, filter zerotypes.SearchFilter) ([]zerotypes.SearchResult, error) {
	return nil, errors.New("backend unavailable")
}
func (failingBackend) BatchSearch(ctx context.Context, queries [][]float32, topK int, scoreThreshold float64, filter zerotypes.SearchFilter) ([][]zerotypes.SearchResult, error) {
	return nil, errors.New("backend unavailable")
}
func (failingBackend) Count(ctx context.Context) (int64, error) { return 0, errors.New("backend unavailable") }
func (failingBackend) Stats(ctx context.Context) (vectorstore.BackendStats, error) {
	return vectorstore.BackendStats{}, nil
}
func (failingBackend) Close() error { return nil }

func newDegradedTestStore(t *testing.T) *vectorstore.Store {
	t.Helper()
	store := vectorstore.New(failingBackend{}, vectorstore.Config{
		Dim:              4,
		FailureThreshold: 1,
		QueueCapacity:    16,
	}, logging.New(logging.LevelError))
	require.NoError(t, store.Open(context.Background()))
	_, _ = store.Search(context.Background(), []float32{0, 0, 0, 0}, 5, 0, nil)
	return store
}

func TestHealthManagerCheckAllReportsHealthyByDefault(t *testing.T) {
	cfg := config.Default()
	store := newTestStore(t)
	hm := newDefaultHealthManager(cfg, store)

	checks := hm.CheckAll(context.Background())
	require.Len(t, checks, 3)
	assert.Equal(t, HealthStatusHealthy, checks["vector_store"].Status)
	assert.Equal(t, HealthStatusHealthy, checks["memory"].Status)
	assert.Equal(t, HealthStatusHealthy, checks["config"].Status)
}

func TestHealthManagerCheckOneUnknownName(t *testing.T) {
	cfg := config.Default()
	store := newTestStore(t)
	hm := newDefaultHealthManager(cfg, store)

	_, ok := hm.CheckOne(context.Background(), "nonexistent")
	assert.False(t, ok)
}

func TestMemoryHealthCheckerDegradesAboveThreshold(t *testing.T) {
	checker := &memoryHealthChecker{thresholdMB: 0, criticalThresholdMB: 1 << 20}
	check := checker.Check(context.Background())
	assert.Equal(t, HealthStatusDegraded, check.Status)
}

func TestVectorStoreHealthCheckerReflectsDegradedState(t *testing.T) {
	store := newDegradedTestStore(t)

	checker := &vectorStoreHealthChecker{store: store}
	check := checker.Check(context.Background())
	assert.Equal(t, HealthStatusDegraded, check.Status)
}
