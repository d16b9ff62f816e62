// Package api implements the Service Surface: the HTTP API over
// DocumentPipeline and RAGPipeline.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"zerorag/internal/config"
	"zerorag/internal/documents"
	"zerorag/internal/logging"
	"zerorag/internal/rag"
	"zerorag/internal/ratelimit"
	"zerorag/internal/vectorstore"
)

const version = "1.0.0"

// Router is the Service Surface: chi mux plus every dependency a handler
// needs, all injected rather than looked up globally.
type Router struct {
	mux *chi.Mux

	cfg   *config.Config
	log   logging.Logger
	docs  *documents.Pipeline
	rag   *rag.Pipeline
	store *vectorstore.Store

	queryLimiter  *ratelimit.Limiter
	uploadLimiter *ratelimit.Limiter
	conns         *connectionTracker
	health        *HealthManager

	startedAt time.Time

	requestsTotal  int64
	requestsFailed int64
}

// New builds a Router wired to its dependencies and registers every route
// and middleware layer.
func New(cfg *config.Config, docs *documents.Pipeline, ragPipeline *rag.Pipeline, store *vectorstore.Store, log logging.Logger) *Router {
	r := &Router{
		mux:           chi.NewRouter(),
		cfg:           cfg,
		log:           log.WithComponent("api"),
		docs:          docs,
		rag:           ragPipeline,
		store:         store,
		queryLimiter:  ratelimit.New(cfg.Server.RateLimitPerMinute),
		uploadLimiter: ratelimit.New(cfg.Server.UploadRateLimitPerMinute),
		conns:         newConnectionTracker(time.Duration(cfg.Server.StreamConnectionTimeoutMinutes)*time.Minute, log),
		startedAt:     time.Now(),
	}
	r.health = newDefaultHealthManager(cfg, store)
	r.setupMiddleware()
	r.setupRoutes()
	return r
}

// Handler returns the http.Handler to pass to an http.Server.
func (r *Router) Handler() http.Handler { return r.mux }

// StartBackgroundWork starts the connection reaper; call once at startup.
func (r *Router) StartBackgroundWork(ctx context.Context) {
	r.conns.startReaper(ctx, 30*time.Second)
}

// Shutdown stops background workers owned directly by the router.
func (r *Router) Shutdown() {
	r.conns.stop()
	r.queryLimiter.Close()
	r.uploadLimiter.Close()
}

func (r *Router) setupMiddleware() {
	r.mux.Use(chimiddleware.Recoverer)
	r.mux.Use(chimiddleware.Timeout(time.Duration(r.cfg.Server.RequestTimeoutSeconds) * time.Second))
	r.mux.Use(r.requestLogging())
	r.mux.Use(cors(r.cfg.Server.CORSOrigins))
	r.mux.Use(requireAPIKey(r.cfg.Server.APIKey))
	r.mux.Use(maxBodyBytes(r.cfg.Chunking.MaxFileSize + 1<<20))
	r.mux.Use(chimiddleware.Heartbeat("/ping"))
}

func (r *Router) setupRoutes() {
	r.mux.Get("/", r.handleRoot)
	r.mux.Get("/health", r.handleHealth)
	r.mux.Get("/health/services/{name}", r.handleHealthService)
	r.mux.Get("/metrics", r.handleMetrics)

	r.mux.Group(func(g chi.Router) {
		g.Use(rateLimited(r.uploadLimiter))
		g.Post("/documents/upload", r.handleUpload)
		g.Post("/documents/validate", r.handleValidate)
	})
	r.mux.Get("/documents/upload/{id}/progress", r.handleUploadProgress)
	r.mux.Get("/documents", r.handleListDocuments)
	r.mux.Get("/documents/{id}", r.handleGetDocument)
	r.mux.Delete("/documents/{id}", r.handleDeleteDocument)

	r.mux.Group(func(g chi.Router) {
		g.Use(rateLimited(r.queryLimiter))
		g.Post("/query", r.handleQuery)
		g.Get("/query/stream", r.handleQueryStream)
	})

	r.mux.Get("/advanced/connections", r.handleListConnections)
	r.mux.Delete("/advanced/connections/{id}", r.handleCloseConnection)
	r.mux.Post("/advanced/cleanup", r.handleCleanup)
	r.mux.Get("/advanced/storage/stats", r.handleStorageStats)
}
