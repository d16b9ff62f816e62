// Command server is the zerorag composition root: it loads configuration,
// wires the VectorStore, DocumentPipeline, and RAGPipeline to concrete
// embedder/generator adapters, and serves the Service Surface over HTTP
// until it receives a termination signal.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"zerorag/internal/api"
	"zerorag/internal/config"
	"zerorag/internal/documents"
	"zerorag/internal/embeddings"
	"zerorag/internal/generator"
	"zerorag/internal/logging"
	"zerorag/internal/rag"
	"zerorag/internal/vectorstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("zerorag: loading configuration: %v", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level)).WithComponent("main")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("zerorag: startup: %v", err)
	}
	defer app.shutdown()

	logger.Info("server listening", "addr", app.server.Addr)
	errCh := make(chan error, 1)
	go func() { errCh <- app.server.ListenAndServe() }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server exited unexpectedly", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// application holds every long-lived resource the composition root opens,
// so shutdown can release them in reverse order.
type application struct {
	server *http.Server
	router *api.Router
	store  *vectorstore.Store
	meta   *documents.MetadataStore
}

func (a *application) shutdown() {
	a.router.Shutdown()
	if err := a.store.Close(); err != nil {
		log.Printf("zerorag: closing vector store: %v", err)
	}
	if err := a.meta.Close(); err != nil {
		log.Printf("zerorag: closing metadata store: %v", err)
	}
}

func build(ctx context.Context, cfg *config.Config, logger logging.Logger) (*application, error) {
	primary, err := openPrimaryBackend(cfg, logger)
	if err != nil {
		return nil, err
	}

	store := vectorstore.New(primary, vectorstore.Config{
		Dim:              cfg.Vector.EmbeddingDim,
		FailureThreshold: cfg.Vector.FailureThreshold,
		QueueCapacity:    cfg.Vector.QueueCapacity,
	}, logger)
	if err := store.Open(ctx); err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}
	store.StartMemoryMonitor(ctx, time.Duration(cfg.Memory.SampleIntervalSeconds)*time.Second,
		cfg.Memory.ThresholdMB, cfg.Memory.CriticalThresholdMB)
	store.StartGCTicker(ctx, time.Duration(cfg.Memory.GCIntervalSeconds)*time.Second, cfg.Memory.AlertHistorySize)

	embedder := buildEmbedder(cfg)
	gen := generator.NewHTTPGenerator(cfg.Models.GeneratorEndpoint, cfg.Models.GeneratorAPIKey)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", cfg.DataDir, err)
	}

	meta, err := documents.OpenMetadataStore(filepath.Join(cfg.DataDir, "zerorag.db"))
	if err != nil {
		return nil, fmt.Errorf("opening metadata store: %w", err)
	}

	docPipeline := documents.New(documents.Config{
		ChunkSize:            cfg.Chunking.ChunkSize,
		ChunkOverlap:         cfg.Chunking.ChunkOverlap,
		MaxFileSize:          cfg.Chunking.MaxFileSize,
		SupportedFormats:     cfg.Chunking.SupportedFormats,
		MaxChunksPerDocument: cfg.Chunking.MaxChunksPerDocument,
		EmbeddingBatchSize:   cfg.Chunking.EmbeddingBatchSize,
		EmbeddingDim:         cfg.Vector.EmbeddingDim,
	}, store, embedder, meta, logger)

	ragPipeline := rag.New(embedder, store, gen, logger, rag.Config{
		QueryTimeout: time.Duration(cfg.RAG.QueryTimeoutSeconds) * time.Second,
	})

	router := api.New(cfg, docPipeline, ragPipeline, store, logger)
	router.StartBackgroundWork(ctx)

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &application{server: httpServer, router: router, store: store, meta: meta}, nil
}

func openPrimaryBackend(cfg *config.Config, logger logging.Logger) (vectorstore.Backend, error) {
	if cfg.Vector.QdrantURL == "" {
		logger.Warn("no qdrant_url configured, using in-memory backend only")
		return vectorstore.NewMemoryBackend(), nil
	}
	host, portStr, err := net.SplitHostPort(cfg.Vector.QdrantURL)
	if err != nil {
		return nil, fmt.Errorf("parsing qdrant_url %q: %w", cfg.Vector.QdrantURL, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("parsing qdrant_url port %q: %w", portStr, err)
	}
	backend, err := vectorstore.NewQdrantBackend(vectorstore.QdrantBackendConfig{
		Host:           host,
		Port:           port,
		APIKey:         cfg.Vector.QdrantAPIKey,
		CollectionName: cfg.Vector.CollectionName,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}
	return backend, nil
}

// buildEmbedder wraps the HTTP embedder with the L1 LRU cache and,
// when configured, an L2 Redis cache.
func buildEmbedder(cfg *config.Config) embeddings.Embedder {
	inner := embeddings.NewHTTPEmbedder(cfg.Models.EmbedderEndpoint, cfg.Models.EmbedderAPIKey, cfg.Vector.EmbeddingDim)
	l1 := embeddings.NewCache(cfg.Cache.MaxSize, cfg.Cache.TTL)
	var l2 *embeddings.RedisCache
	if cfg.Cache.RedisURL != "" {
		l2 = embeddings.NewRedisCache(cfg.Cache.RedisURL, cfg.Cache.TTL)
	}
	return embeddings.NewCachedEmbedder(inner, l1, l2)
}
