package api

import (
	"net/http"
	"runtime/debug"
	"strconv"
	"sync/atomic"
	"time"

	"zerorag/internal/apperrors"
	"zerorag/internal/logging"
	"zerorag/internal/ratelimit"
)

// statusWriter wraps http.ResponseWriter to capture the status code written,
// for request logging.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// requestLogging assigns a trace ID to the request context, logs entry and
// exit, tallies request/failure counts for /metrics, and recovers panics
// into a 500 envelope rather than crashing the server.
func (rt *Router) requestLogging() func(http.Handler) http.Handler {
	log := rt.log
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := logging.WithTraceID(r.Context(), r.Header.Get("X-Trace-ID"))
			r = r.WithContext(ctx)
			w.Header().Set("X-Trace-ID", logging.TraceID(ctx))

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			defer func() {
				if rec := recover(); rec != nil {
					log.ErrorContext(ctx, "panic recovered", "error", rec, "stack", string(debug.Stack()))
					apperrors.Internal(nil, "internal error").WriteHTTP(w)
					sw.status = http.StatusInternalServerError
				}
				atomic.AddInt64(&rt.requestsTotal, 1)
				if sw.status >= 500 {
					atomic.AddInt64(&rt.requestsFailed, 1)
				}
			}()

			next.ServeHTTP(sw, r)
			log.InfoContext(ctx, "request handled",
				"method", r.Method, "path", r.URL.Path,
				"status", sw.status, "duration_ms", time.Since(start).Milliseconds())
		})
	}
}

// cors applies permissive or allow-listed CORS headers depending on
// configuration.
func cors(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Trace-ID")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimited enforces a token-bucket limiter keyed by remote address,
// writing 429 + Retry-After and the X-RateLimit-* headers on rejection.
func rateLimited(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := remoteKey(r)
			result := limiter.Check(key)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())+1))
				apperrors.RateLimited("rate limit exceeded").WriteHTTP(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func remoteKey(r *http.Request) string {
	if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
		return apiKey
	}
	return r.RemoteAddr
}

// requireAPIKey rejects requests missing the configured API key, when one
// is configured. An empty configured key disables this check entirely.
func requireAPIKey(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if apiKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-API-Key") != apiKey {
				apperrors.New(apperrors.CodeValidation, "missing or invalid API key").WriteHTTP(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// maxBodyBytes caps request bodies, rejecting oversized uploads early with
// 413 rather than letting them exhaust memory.
func maxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
