// Package documents implements the DocumentPipeline component: upload
// validation, asynchronous ingestion (parse, chunk, embed, store) with a
// tracked progress state machine, and document listing/deletion.
package documents

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"zerorag/internal/apperrors"
	"zerorag/internal/embeddings"
	"zerorag/internal/logging"
	"zerorag/internal/retry"
	"zerorag/internal/vectorstore"
	"zerorag/internal/zerotypes"
)

// Config configures a Pipeline.
type Config struct {
	ChunkSize            int
	ChunkOverlap         int
	MaxFileSize          int64
	SupportedFormats     []string
	MaxChunksPerDocument int
	EmbeddingBatchSize   int
	EmbeddingDim         int
}

// Pipeline is the DocumentPipeline. It owns DocumentMetadata and
// UploadProgress; the Service Surface only reads them.
type Pipeline struct {
	cfg      Config
	store    *vectorstore.Store
	embedder embeddings.Embedder
	meta     *MetadataStore
	log      logging.Logger
	retrier  *retry.Retrier

	mu        sync.Mutex
	cancelers map[string]context.CancelFunc
}

// New builds a Pipeline.
func New(cfg Config, store *vectorstore.Store, embedder embeddings.Embedder, meta *MetadataStore, log logging.Logger) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     store,
		embedder:  embedder,
		meta:      meta,
		log:       log.WithComponent("documents"),
		retrier:   retry.New(retry.DefaultConfig()),
		cancelers: make(map[string]context.CancelFunc),
	}
}

// Validate is the stateless upload pre-check.
func (p *Pipeline) Validate(fileName string, size int64, advertisedType string, content []byte) ValidationResult {
	return ValidateUpload(fileName, size, advertisedType, content, p.cfg.MaxFileSize, p.cfg.SupportedFormats)
}

// Ingest starts asynchronous processing and returns immediately with a
// stable document_id; progress is retrievable via GetProgress.
func (p *Pipeline) Ingest(ctx context.Context, fileName string, content []byte) (string, error) {
	result := p.Validate(fileName, int64(len(content)), "", content)
	if !result.Valid {
		if result.TooLarge {
			return "", apperrors.FileTooLarge("upload rejected: %s", strings.Join(result.Errors, "; "))
		}
		return "", apperrors.Validation("upload rejected: %s", strings.Join(result.Errors, "; "))
	}

	id := uuid.New().String()
	now := time.Now()
	meta := zerotypes.DocumentMetadata{
		ID:           id,
		FileName:     fileName,
		FileSize:     int64(len(content)),
		FileType:     strings.ToLower(filepath.Ext(fileName)),
		CreatedAt:    now,
		LastModified: now,
		Status:       zerotypes.DocumentStatusPending,
	}
	if err := p.meta.PutDocument(ctx, meta); err != nil {
		return "", apperrors.Internal(err, "documents: persisting metadata")
	}

	progress := zerotypes.UploadProgress{
		DocumentID:  id,
		Status:      zerotypes.DocumentStatusPending,
		Progress:    10,
		CurrentStep: "upload",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := p.meta.PutProgress(ctx, progress); err != nil {
		return "", apperrors.Internal(err, "documents: persisting progress")
	}

	procCtx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.cancelers[id] = cancel
	p.mu.Unlock()

	go p.process(procCtx, id, fileName, content)

	return id, nil
}

// process runs the ingestion state machine to completion or failure. It
// always runs to a terminal state (completed, failed, or cancelled) and
// never propagates an error to its caller — there is none; failures are
// recorded on the UploadProgress record.
func (p *Pipeline) process(ctx context.Context, id, fileName string, content []byte) {
	defer func() {
		p.mu.Lock()
		delete(p.cancelers, id)
		p.mu.Unlock()
	}()

	fail := func(reason string) {
		p.setStatus(context.Background(), id, zerotypes.DocumentStatusFailed, 100, "failed", reason)
	}

	p.setStatus(ctx, id, zerotypes.DocumentStatusValidating, 20, "validation", "")
	if err := ctx.Err(); err != nil {
		p.setStatus(context.Background(), id, zerotypes.DocumentStatusCancelled, 20, "cancelled", "")
		return
	}

	p.setStatus(ctx, id, zerotypes.DocumentStatusParsing, 40, "parsing", "")
	parsed, err := p.parse(fileName, content)
	if err != nil {
		fail(err.Error())
		return
	}

	p.setStatus(ctx, id, zerotypes.DocumentStatusChunking, 60, "chunking", "")
	chunks, err := chunkText(id, parsed.Text, p.cfg.ChunkSize, p.cfg.ChunkOverlap, p.cfg.MaxChunksPerDocument)
	if err != nil {
		fail(err.Error())
		return
	}
	if len(chunks) == 0 {
		fail("document produced no chunks")
		return
	}

	p.setStatus(ctx, id, zerotypes.DocumentStatusEmbedding, 80, "embedding", "")
	records, err := p.embedChunks(ctx, chunks)
	if err != nil {
		fail(err.Error())
		return
	}

	p.setStatus(ctx, id, zerotypes.DocumentStatusStoring, 95, "storing", "")
	if err := p.storeWithRollback(ctx, records); err != nil {
		fail(err.Error())
		return
	}

	meta, err := p.meta.GetDocument(context.Background(), id)
	if err == nil {
		chunkIDs := make([]string, len(records))
		for i, r := range records {
			chunkIDs[i] = r.ChunkID
		}
		meta.Status = zerotypes.DocumentStatusCompleted
		meta.ChunkCount = len(chunks)
		meta.ChunkIDs = chunkIDs
		meta.ContentHash = zerotypes.ContentHash(parsed.Text)
		meta.HasTables = parsed.HasTables
		meta.HasLinks = parsed.HasLinks
		meta.Encoding = parsed.Encoding
		meta.ColumnTypes = parsed.ColumnTypes
		processedAt := time.Now()
		meta.ProcessedAt = &processedAt
		_ = p.meta.PutDocument(context.Background(), meta)
	}
	p.setStatus(context.Background(), id, zerotypes.DocumentStatusCompleted, 100, "completed", "")
}

func (p *Pipeline) parse(fileName string, content []byte) (parsedDocument, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return parseCSV(content)
	case ".md", ".markdown":
		return parseMarkdown(content)
	default:
		return parsePlainText(content)
	}
}

// embedChunks embeds chunks in batches. A batch whose embedder call fails
// with a transient error is tried up to 3 times in all (retry.DefaultConfig);
// any other error, or a batch still failing after the third try, is
// returned as a permanent failure.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []zerotypes.Chunk) ([]zerotypes.VectorRecord, error) {
	batchSize := p.cfg.EmbeddingBatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	records := make([]zerotypes.VectorRecord, 0, len(chunks))
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		var vectors [][]float32
		err := p.retrier.Do(ctx, func(ctx context.Context) error {
			v, err := p.embedder.Embed(ctx, texts)
			if err != nil {
				return err
			}
			vectors = v
			return nil
		})
		if err != nil {
			return nil, apperrors.Permanent(err, "documents: embedding batch [%d:%d] failed", start, end)
		}

		for i, c := range batch {
			if len(vectors[i]) != p.cfg.EmbeddingDim {
				return nil, apperrors.Permanent(nil, "documents: embedding dimension %d does not match configured %d", len(vectors[i]), p.cfg.EmbeddingDim)
			}
			records = append(records, zerotypes.VectorRecord{
				ChunkID:   c.ID,
				Embedding: vectors[i],
				Payload:   c,
			})
		}
	}
	return records, nil
}

// storeWithRollback upserts all records synchronously; on partial failure
// it rolls back every record that was successfully inserted for this
// document.
func (p *Pipeline) storeWithRollback(ctx context.Context, records []zerotypes.VectorRecord) error {
	if err := p.store.UpsertSync(ctx, records); err != nil {
		ids := make([]string, len(records))
		for i, r := range records {
			ids[i] = r.ChunkID
		}
		_ = p.store.DeleteSync(context.Background(), ids)
		return err
	}
	return nil
}

func (p *Pipeline) setStatus(ctx context.Context, id string, status zerotypes.DocumentStatus, progressPct int, step, errMsg string) {
	now := time.Now()
	progress := zerotypes.UploadProgress{
		DocumentID:   id,
		Status:       status,
		Progress:     progressPct,
		CurrentStep:  step,
		ErrorMessage: errMsg,
		UpdatedAt:    now,
	}
	if existing, err := p.meta.GetProgress(ctx, id); err == nil {
		progress.CreatedAt = existing.CreatedAt
	} else {
		progress.CreatedAt = now
	}
	if err := p.meta.PutProgress(ctx, progress); err != nil {
		p.log.Error("failed to persist progress", "document_id", id, "error", err)
	}

	if meta, err := p.meta.GetDocument(ctx, id); err == nil {
		meta.Status = status
		meta.ErrorMessage = errMsg
		_ = p.meta.PutDocument(ctx, meta)
	}
}

// GetProgress reports the current UploadProgress for a document.
func (p *Pipeline) GetProgress(ctx context.Context, documentID string) (zerotypes.UploadProgress, error) {
	progress, err := p.meta.GetProgress(ctx, documentID)
	if err == sql.ErrNoRows {
		return zerotypes.UploadProgress{}, apperrors.NotFound("upload progress for %s", documentID)
	}
	if err != nil {
		return zerotypes.UploadProgress{}, apperrors.Internal(err, "documents: reading progress")
	}
	return progress, nil
}

// DeleteDocument removes all chunks from the index, marks the metadata
// deleted, and cooperatively cancels any in-flight processing.
func (p *Pipeline) DeleteDocument(ctx context.Context, documentID string) error {
	p.mu.Lock()
	if cancel, ok := p.cancelers[documentID]; ok {
		cancel()
	}
	p.mu.Unlock()

	meta, err := p.meta.GetDocument(ctx, documentID)
	if err == sql.ErrNoRows {
		return apperrors.NotFound("document %s", documentID)
	}
	if err != nil {
		return apperrors.Internal(err, "documents: reading metadata")
	}

	if len(meta.ChunkIDs) > 0 {
		_ = p.store.DeleteSync(ctx, meta.ChunkIDs)
	}

	meta.Status = zerotypes.DocumentStatusDeleted
	if err := p.meta.PutDocument(ctx, meta); err != nil {
		return apperrors.Internal(err, "documents: marking document deleted")
	}
	return nil
}

// GetDocument returns a single document's metadata.
func (p *Pipeline) GetDocument(ctx context.Context, documentID string) (zerotypes.DocumentMetadata, error) {
	meta, err := p.meta.GetDocument(ctx, documentID)
	if err == sql.ErrNoRows {
		return zerotypes.DocumentMetadata{}, apperrors.NotFound("document %s", documentID)
	}
	if err != nil {
		return zerotypes.DocumentMetadata{}, apperrors.Internal(err, "documents: reading metadata")
	}
	return meta, nil
}

// List returns documents filtered by status (empty = all), paged.
func (p *Pipeline) List(ctx context.Context, status string, limit, offset int) ([]zerotypes.DocumentMetadata, error) {
	docs, err := p.meta.ListDocuments(ctx, status, limit, offset)
	if err != nil {
		return nil, apperrors.Internal(err, "documents: listing")
	}
	return docs, nil
}
