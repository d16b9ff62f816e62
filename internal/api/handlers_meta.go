package api

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"zerorag/internal/apperrors"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (r *Router) handleRoot(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "zerorag",
		"version": version,
		"uptime_seconds": int64(time.Since(r.startedAt).Seconds()),
	})
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	checks := r.health.CheckAll(req.Context())
	overall := HealthStatusHealthy
	for _, c := range checks {
		if c.Status == HealthStatusUnhealthy {
			overall = HealthStatusUnhealthy
		} else if c.Status == HealthStatusDegraded && overall == HealthStatusHealthy {
			overall = HealthStatusDegraded
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         overall,
		"checks":         checks,
		"uptime_seconds": int64(time.Since(r.startedAt).Seconds()),
		"version":        version,
	})
}

func (r *Router) handleHealthService(w http.ResponseWriter, req *http.Request) {
	name := chi.URLParam(req, "name")
	check, ok := r.health.CheckOne(req.Context(), name)
	if !ok {
		apperrors.NotFound("unknown service %q", name).WriteHTTP(w)
		return
	}
	writeJSON(w, http.StatusOK, check)
}

func (r *Router) handleMetrics(w http.ResponseWriter, req *http.Request) {
	total := atomic.LoadInt64(&r.requestsTotal)
	failed := atomic.LoadInt64(&r.requestsFailed)
	var successRate float64 = 1.0
	if total > 0 {
		successRate = float64(total-failed) / float64(total)
	}
	storeStats, _ := r.store.Stats(req.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_requests":  total,
		"failed_requests": failed,
		"success_rate":    successRate,
		"vector_store":    storeStats,
		"rate_limiter": map[string]interface{}{
			"query":  r.queryLimiter.Stats(),
			"upload": r.uploadLimiter.Stats(),
		},
	})
}
