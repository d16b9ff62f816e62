package api

import (
	"context"
	"runtime"
	"sync"
	"time"

	"zerorag/internal/config"
	"zerorag/internal/vectorstore"
)

// HealthStatus is the status of a single component check.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck is the result of running one HealthChecker.
type HealthCheck struct {
	Name      string       `json:"name"`
	Status    HealthStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	LastCheck time.Time    `json:"last_check"`
}

// HealthChecker is a pluggable, named component check.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) HealthCheck
}

// HealthManager runs a fixed set of HealthCheckers and caches their last
// results, so GET /health/services/{name} can answer a single checker
// without re-running every other one.
type HealthManager struct {
	checkers []HealthChecker

	mu   sync.RWMutex
	last map[string]HealthCheck
}

func newHealthManager(checkers ...HealthChecker) *HealthManager {
	return &HealthManager{checkers: checkers, last: make(map[string]HealthCheck)}
}

// CheckAll runs every checker and returns the fresh results, keyed by name.
func (hm *HealthManager) CheckAll(ctx context.Context) map[string]HealthCheck {
	results := make(map[string]HealthCheck, len(hm.checkers))
	for _, c := range hm.checkers {
		check := c.Check(ctx)
		results[check.Name] = check
	}
	hm.mu.Lock()
	for name, check := range results {
		hm.last[name] = check
	}
	hm.mu.Unlock()
	return results
}

// CheckOne runs a single named checker, returning false if no checker with
// that name is registered.
func (hm *HealthManager) CheckOne(ctx context.Context, name string) (HealthCheck, bool) {
	for _, c := range hm.checkers {
		if c.Name() == name {
			check := c.Check(ctx)
			hm.mu.Lock()
			hm.last[name] = check
			hm.mu.Unlock()
			return check, true
		}
	}
	return HealthCheck{}, false
}

// vectorStoreHealthChecker reports the VectorStore's own state machine:
// ready is healthy, degraded (in-memory fallback) is degraded, absent is
// unhealthy.
type vectorStoreHealthChecker struct {
	store *vectorstore.Store
}

func (c *vectorStoreHealthChecker) Name() string { return "vector_store" }

func (c *vectorStoreHealthChecker) Check(ctx context.Context) HealthCheck {
	check := HealthCheck{Name: c.Name(), LastCheck: time.Now()}
	switch c.store.State() {
	case vectorstore.StateReady:
		check.Status = HealthStatusHealthy
	case vectorstore.StateDegraded:
		check.Status = HealthStatusDegraded
		check.Message = "serving from in-memory fallback"
	default:
		check.Status = HealthStatusUnhealthy
		check.Message = "no backend available"
	}
	return check
}

// memoryHealthChecker reports degraded/unhealthy once heap usage crosses
// the configured warning/critical thresholds, mirroring the thresholds the
// background memory monitor itself uses.
type memoryHealthChecker struct {
	thresholdMB         int
	criticalThresholdMB int
}

func (c *memoryHealthChecker) Name() string { return "memory" }

func (c *memoryHealthChecker) Check(ctx context.Context) HealthCheck {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	heapMB := int(mem.HeapAlloc / (1 << 20))

	check := HealthCheck{Name: c.Name(), LastCheck: time.Now(), Status: HealthStatusHealthy}
	switch {
	case heapMB >= c.criticalThresholdMB:
		check.Status = HealthStatusUnhealthy
		check.Message = "heap usage above critical threshold"
	case heapMB >= c.thresholdMB:
		check.Status = HealthStatusDegraded
		check.Message = "heap usage above warning threshold"
	}
	return check
}

// configHealthChecker re-validates the running configuration, catching the
// case where Validate passed at startup but a caller mutated it afterward.
type configHealthChecker struct {
	cfg *config.Config
}

func (c *configHealthChecker) Name() string { return "config" }

func (c *configHealthChecker) Check(ctx context.Context) HealthCheck {
	check := HealthCheck{Name: c.Name(), LastCheck: time.Now(), Status: HealthStatusHealthy}
	if err := c.cfg.Validate(); err != nil {
		check.Status = HealthStatusUnhealthy
		check.Message = err.Error()
	}
	return check
}

func newDefaultHealthManager(cfg *config.Config, store *vectorstore.Store) *HealthManager {
	return newHealthManager(
		&vectorStoreHealthChecker{store: store},
		&memoryHealthChecker{thresholdMB: cfg.Memory.ThresholdMB, criticalThresholdMB: cfg.Memory.CriticalThresholdMB},
		&configHealthChecker{cfg: cfg},
	)
}
