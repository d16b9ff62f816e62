package vectorstore

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"zerorag/internal/apperrors"
	"zerorag/internal/circuitbreaker"
	"zerorag/internal/logging"
	"zerorag/internal/retry"
	"zerorag/internal/zerotypes"
)

// State is the VectorStore's per-collection availability:
// Absent -> Ready <-> Degraded. Degraded returns to Ready on a successful
// Reload, or when the circuit breaker closes again after its half-open
// probe succeeds.
type State string

const (
	StateAbsent   State = "absent"
	StateReady    State = "ready"
	StateDegraded State = "degraded"
)

// Store is the facade every other component talks to. It owns a primary
// Backend, an always-available in-memory fallback, a circuit breaker that
// trips the fallback after N consecutive transient failures, and a
// priority operation queue for asynchronous mutations.
type Store struct {
	log    logging.Logger
	dim    int
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker

	primary Backend
	memory  *MemoryBackend

	mu    sync.RWMutex
	state State

	queue *operationQueue

	alertsMu sync.Mutex
	alerts   []zerotypes.PerformanceAlert
}

// Config configures a Store.
type Config struct {
	Dim              int
	FailureThreshold int
	QueueCapacity    int
}

// New builds a Store bound to the given primary Backend. The store starts
// Absent until Open is called.
func New(primary Backend, cfg Config, log logging.Logger) *Store {
	s := &Store{
		log:     log.WithComponent("vectorstore"),
		dim:     cfg.Dim,
		retrier: retry.New(retry.DefaultConfig()),
		memory:  NewMemoryBackend(),
		primary: primary,
		state:   StateAbsent,
	}
	s.breaker = circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.FailureThreshold,
		OnStateChange:    s.onBreakerStateChange,
	})
	capacity := cfg.QueueCapacity
	if capacity <= 0 {
		capacity = 1000
	}
	s.queue = newOperationQueue(capacity, s.applyOperation, s.log)
	return s
}

func (s *Store) onBreakerStateChange(from, to circuitbreaker.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch to {
	case circuitbreaker.StateOpen:
		s.state = StateDegraded
		s.log.Warn("vector store degraded to in-memory fallback", "from", from.String())
	case circuitbreaker.StateClosed:
		if s.state == StateDegraded {
			s.state = StateReady
			s.log.Info("vector store recovered to primary backend")
		}
	}
}

// Open creates the collection against the primary backend, transitioning
// Absent -> Ready, and starts the background queue worker.
func (s *Store) Open(ctx context.Context) error {
	if err := s.primary.EnsureCollection(ctx, s.dim); err != nil {
		return apperrors.Transient(err, "vector store: ensuring collection")
	}
	s.mu.Lock()
	s.state = StateReady
	s.mu.Unlock()
	s.queue.start(ctx)
	return nil
}

// Reload forces the breaker closed and re-runs EnsureCollection, recovering
// Degraded -> Ready on success.
func (s *Store) Reload(ctx context.Context) error {
	if err := s.primary.EnsureCollection(ctx, s.dim); err != nil {
		return apperrors.Transient(err, "vector store: reload failed")
	}
	s.breaker.Reset()
	s.mu.Lock()
	s.state = StateReady
	s.mu.Unlock()
	return nil
}

// State reports the current availability.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// activeBackend returns whichever Backend should serve the next read,
// without going through the circuit breaker (reads are best-effort).
func (s *Store) activeBackend() Backend {
	if s.State() == StateDegraded {
		return s.memory
	}
	return s.primary
}

// Search runs a synchronous read against the active backend, falling back
// to the in-memory store transparently when the primary trips. A nil or
// empty filter matches every chunk.
func (s *Store) Search(ctx context.Context, query []float32, topK int, scoreThreshold float64, filter zerotypes.SearchFilter) ([]zerotypes.SearchResult, error) {
	var results []zerotypes.SearchResult
	err := s.breaker.ExecuteWithFallback(ctx,
		func(ctx context.Context) error {
			return s.retrier.Do(ctx, func(ctx context.Context) error {
				r, err := s.primary.Search(ctx, query, topK, scoreThreshold, filter)
				if err != nil {
					return apperrors.Transient(err, "vector store: primary search failed")
				}
				results = r
				return nil
			})
		},
		func(ctx context.Context, cause error) error {
			s.log.Warn("search falling back to memory backend", "cause", cause)
			r, _ := s.memory.Search(ctx, query, topK, scoreThreshold, filter)
			results = r
			return nil
		},
	)
	return results, err
}

// BatchSearch runs Search once per query vector against the active
// backend, with the same primary/fallback behavior as Search.
func (s *Store) BatchSearch(ctx context.Context, queries [][]float32, topK int, scoreThreshold float64, filter zerotypes.SearchFilter) ([][]zerotypes.SearchResult, error) {
	var results [][]zerotypes.SearchResult
	err := s.breaker.ExecuteWithFallback(ctx,
		func(ctx context.Context) error {
			return s.retrier.Do(ctx, func(ctx context.Context) error {
				r, err := s.primary.BatchSearch(ctx, queries, topK, scoreThreshold, filter)
				if err != nil {
					return apperrors.Transient(err, "vector store: primary batch search failed")
				}
				results = r
				return nil
			})
		},
		func(ctx context.Context, cause error) error {
			s.log.Warn("batch search falling back to memory backend", "cause", cause)
			r, _ := s.memory.BatchSearch(ctx, queries, topK, scoreThreshold, filter)
			results = r
			return nil
		},
	)
	return results, err
}

// Count reports the total number of indexed records on the active backend.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.breaker.ExecuteWithFallback(ctx,
		func(ctx context.Context) error {
			return s.retrier.Do(ctx, func(ctx context.Context) error {
				n, err := s.primary.Count(ctx)
				if err != nil {
					return apperrors.Transient(err, "vector store: primary count failed")
				}
				count = n
				return nil
			})
		},
		func(ctx context.Context, cause error) error {
			n, _ := s.memory.Count(ctx)
			count = n
			return nil
		},
	)
	return count, err
}

// UpsertSync performs a synchronous upsert used by the DocumentPipeline,
// which needs to know success/failure before reporting progress.
func (s *Store) UpsertSync(ctx context.Context, records []zerotypes.VectorRecord) error {
	for _, r := range records {
		if err := r.Validate(s.dim); err != nil {
			return apperrors.Validation("vector store: %v", err)
		}
	}
	return s.breaker.ExecuteWithFallback(ctx,
		func(ctx context.Context) error {
			return s.retrier.Do(ctx, func(ctx context.Context) error {
				if err := s.primary.Upsert(ctx, records); err != nil {
					return apperrors.Transient(err, "vector store: primary upsert failed")
				}
				return nil
			})
		},
		func(ctx context.Context, cause error) error {
			s.log.Warn("upsert falling back to memory backend", "cause", cause)
			return s.memory.Upsert(ctx, records)
		},
	)
}

// DeleteSync performs a synchronous delete, used for rollback after a
// partially failed ingestion.
func (s *Store) DeleteSync(ctx context.Context, chunkIDs []string) error {
	return s.breaker.ExecuteWithFallback(ctx,
		func(ctx context.Context) error {
			return s.retrier.Do(ctx, func(ctx context.Context) error {
				if err := s.primary.Delete(ctx, chunkIDs); err != nil {
					return apperrors.Transient(err, "vector store: primary delete failed")
				}
				return nil
			})
		},
		func(ctx context.Context, cause error) error {
			return s.memory.Delete(ctx, chunkIDs)
		},
	)
}

// Enqueue submits an asynchronous mutation to the priority queue.
func (s *Store) Enqueue(item zerotypes.OperationQueueItem) error {
	item.EnqueuedAt = time.Now()
	return s.queue.push(item)
}

// applyOperation is the queue worker's callback, invoked for each popped
// item in priority-then-FIFO order.
func (s *Store) applyOperation(ctx context.Context, item zerotypes.OperationQueueItem) zerotypes.OperationResult {
	switch item.OpType {
	case zerotypes.OpInsertBatch:
		err := s.UpsertSync(ctx, item.Records)
		if err != nil {
			ids := make([]string, len(item.Records))
			failed := make(map[string]string, len(item.Records))
			for i, r := range item.Records {
				ids[i] = r.ChunkID
				failed[r.ChunkID] = err.Error()
			}
			return zerotypes.OperationResult{Failed: failed, Err: err}
		}
		succeeded := make([]string, len(item.Records))
		for i, r := range item.Records {
			succeeded[i] = r.ChunkID
		}
		return zerotypes.OperationResult{Succeeded: succeeded}
	case zerotypes.OpDeleteBatch:
		err := s.DeleteSync(ctx, item.IDs)
		if err != nil {
			failed := make(map[string]string, len(item.IDs))
			for _, id := range item.IDs {
				failed[id] = err.Error()
			}
			return zerotypes.OperationResult{Failed: failed, Err: err}
		}
		return zerotypes.OperationResult{Succeeded: item.IDs}
	default:
		return zerotypes.OperationResult{Err: fmt.Errorf("vector store: unknown operation type %q", item.OpType)}
	}
}

// Stats reports backend and queue statistics for the metrics/health surface.
func (s *Store) Stats(ctx context.Context) (map[string]interface{}, error) {
	backend := s.activeBackend()
	stats, err := backend.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"state":         string(s.State()),
		"total_records": stats.TotalRecords,
		"queue_depth":   s.queue.depth(),
		"breaker":       s.breaker.Stats(),
	}, nil
}

// Close shuts down the queue worker and releases backend resources.
func (s *Store) Close() error {
	s.queue.stop()
	return s.primary.Close()
}

// StartMemoryMonitor runs until ctx is cancelled, periodically sampling
// process memory and recording a PerformanceAlert when usage crosses the
// configured thresholds. It only samples and alerts; pruning the alert
// history and triggering compaction is the GC/compaction ticker's job, run
// separately via StartGCTicker.
func (s *Store) StartMemoryMonitor(ctx context.Context, interval time.Duration, thresholdMB, criticalMB int) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				var mem runtime.MemStats
				runtime.ReadMemStats(&mem)
				usedMB := int(mem.Alloc / (1024 * 1024))
				switch {
				case usedMB >= criticalMB:
					s.log.Error("memory usage critical", "used_mb", usedMB, "critical_mb", criticalMB)
					s.recordAlert(zerotypes.PerformanceAlert{
						Kind:      "memory_critical",
						Severity:  zerotypes.SeverityCritical,
						Message:   fmt.Sprintf("memory usage %dMB exceeds critical threshold %dMB", usedMB, criticalMB),
						Timestamp: time.Now(),
						Metrics:   map[string]interface{}{"used_mb": usedMB, "critical_mb": criticalMB},
					})
				case usedMB >= thresholdMB:
					s.log.Warn("memory usage above threshold", "used_mb", usedMB, "threshold_mb", thresholdMB)
					s.recordAlert(zerotypes.PerformanceAlert{
						Kind:      "memory_threshold",
						Severity:  zerotypes.SeverityMedium,
						Message:   fmt.Sprintf("memory usage %dMB exceeds threshold %dMB", usedMB, thresholdMB),
						Timestamp: time.Now(),
						Metrics:   map[string]interface{}{"used_mb": usedMB, "threshold_mb": thresholdMB},
					})
				}
			}
		}
	}()
}

// recordAlert appends to the in-memory alert history; StartGCTicker prunes
// it back to maxHistory on every tick.
func (s *Store) recordAlert(alert zerotypes.PerformanceAlert) {
	s.alertsMu.Lock()
	defer s.alertsMu.Unlock()
	s.alerts = append(s.alerts, alert)
}

// AlertHistory returns a copy of the retained PerformanceAlert history,
// oldest first.
func (s *Store) AlertHistory() []zerotypes.PerformanceAlert {
	s.alertsMu.Lock()
	defer s.alertsMu.Unlock()
	out := make([]zerotypes.PerformanceAlert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// StartGCTicker runs until ctx is cancelled, firing every interval as the
// distinct GC/compaction worker: it forces a GC pass and prunes the alert
// history down to maxHistory, independent of the memory monitor's sampling
// cadence.
func (s *Store) StartGCTicker(ctx context.Context, interval time.Duration, maxHistory int) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runtime.GC()
				pruned := s.pruneAlertHistory(maxHistory)
				if pruned > 0 {
					s.log.Info("pruned alert history", "pruned", pruned, "retained", maxHistory)
				}
			}
		}
	}()
}

func (s *Store) pruneAlertHistory(maxHistory int) int {
	s.alertsMu.Lock()
	defer s.alertsMu.Unlock()
	if maxHistory <= 0 || len(s.alerts) <= maxHistory {
		return 0
	}
	pruned := len(s.alerts) - maxHistory
	s.alerts = append([]zerotypes.PerformanceAlert(nil), s.alerts[pruned:]...)
	return pruned
}
