package documents

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"zerorag/internal/logging"
	"zerorag/internal/vectorstore"
)

type fakeEmbedder struct{ dim int }

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, f.dim)
		v[0] = 1
		out[i] = v
	}
	return out, nil
}
func (f *fakeEmbedder) Dim() int                        { return f.dim }
func (f *fakeEmbedder) Health(ctx context.Context) error { return nil }

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "meta.db")
	meta, err := OpenMetadataStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { meta.Close() })

	backend := vectorstore.NewMemoryBackend()
	store := vectorstore.New(backend, vectorstore.Config{Dim: 4, FailureThreshold: 2, QueueCapacity: 10}, logging.New(logging.LevelError))
	require.NoError(t, store.Open(context.Background()))
	t.Cleanup(func() { store.Close() })

	cfg := Config{
		ChunkSize:            1000,
		ChunkOverlap:         100,
		MaxFileSize:          10 << 20,
		SupportedFormats:     []string{".txt", ".md", ".csv"},
		MaxChunksPerDocument: 100,
		EmbeddingBatchSize:   32,
		EmbeddingDim:         4,
	}
	return New(cfg, store, &fakeEmbedder{dim: 4}, meta, logging.New(logging.LevelError))
}

func TestPipelineIngestReachesCompleted(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	id, err := p.Ingest(ctx, "note.txt", []byte("Hello world. This is a test document about nothing in particular."))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		progress, err := p.GetProgress(ctx, id)
		return err == nil && progress.Progress == 100
	}, 2*time.Second, 10*time.Millisecond)

	progress, err := p.GetProgress(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "completed", string(progress.Status))

	doc, err := p.meta.GetDocument(ctx, id)
	require.NoError(t, err)
	require.Greater(t, doc.ChunkCount, 0)
	require.Len(t, doc.ChunkIDs, doc.ChunkCount)
}

func TestPipelineIngestRejectsOversizedUpload(t *testing.T) {
	p := newTestPipeline(t)
	p.cfg.MaxFileSize = 4

	_, err := p.Ingest(context.Background(), "note.txt", []byte("too big for the configured max"))
	require.Error(t, err)
}

func TestPipelineDeleteDocumentRemovesChunksAndMarksDeleted(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	id, err := p.Ingest(ctx, "note.txt", []byte("Some short content used to test deletion behavior end to end."))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		progress, err := p.GetProgress(ctx, id)
		return err == nil && progress.Progress == 100
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, p.DeleteDocument(ctx, id))

	doc, err := p.meta.GetDocument(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "deleted", string(doc.Status))

	count, err := p.store.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, count)
}

func TestPipelineValidateRejectsUnsupportedFormat(t *testing.T) {
	p := newTestPipeline(t)
	result := p.Validate("payload.exe", 10, "", []byte("MZ"))
	require.False(t, result.Valid)
}
