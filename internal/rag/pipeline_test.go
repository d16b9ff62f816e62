package rag

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"zerorag/internal/generator"
	"zerorag/internal/logging"
	"zerorag/internal/vectorstore"
	"zerorag/internal/zerotypes"
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

type fakeGenerator struct{ text string }

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	return f.text, nil
}
func (f *fakeGenerator) Stream(ctx context.Context, prompt string, maxTokens int, temperature float64) (<-chan generator.Token, error) {
	out := make(chan generator.Token, 4)
	go func() {
		defer close(out)
		for _, word := range []string{"hello ", "world"} {
			select {
			case out <- generator.Token{Text: word}:
			case <-ctx.Done():
				return
			}
		}
		out <- generator.Token{Done: true}
	}()
	return out, nil
}
func (f *fakeGenerator) Health(ctx context.Context) error { return nil }

func newTestStore(t *testing.T) *vectorstore.Store {
	t.Helper()
	backend := vectorstore.NewMemoryBackend()
	store := vectorstore.New(backend, vectorstore.Config{Dim: 4, FailureThreshold: 2, QueueCapacity: 10}, logging.New(logging.LevelError))
	require.NoError(t, store.Open(context.Background()))
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPipelineAnswerReturnsValidatedResponse(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.UpsertSync(context.Background(), []zerotypes.VectorRecord{
		{ChunkID: "c1", Embedding: []float32{1, 0, 0, 0}, Payload: zerotypes.Chunk{Text: "Go is a statically typed language.", ChunkIndex: 0, SourceDocumentID: "doc-1"}},
	}))

	p := New(&fakeEmbedder{dim: 4}, store, &fakeGenerator{text: "Go is a compiled, statically typed language used widely in backend services."}, logging.New(logging.LevelError), Config{QueryTimeout: 5 * time.Second})

	query := zerotypes.RAGQuery{
		QueryText:        "What is Go?",
		TopK:             5,
		ScoreThreshold:   0.0,
		MaxContextLength: 4000,
		MaxTokens:        256,
		Temperature:      0.2,
		IncludeSources:   true,
		ResponseFormat:   zerotypes.FormatText,
		SafetyLevel:      zerotypes.SafetyStandard,
	}

	resp, err := p.Answer(context.Background(), query)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Answer)
	require.NotEmpty(t, resp.Sources)
}

func TestPipelineStreamEmitsSourcesThenContentThenEnd(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.UpsertSync(context.Background(), []zerotypes.VectorRecord{
		{ChunkID: "c1", Embedding: []float32{1, 0, 0, 0}, Payload: zerotypes.Chunk{Text: "Go is a statically typed language.", ChunkIndex: 0, SourceDocumentID: "doc-1"}},
	}))

	p := New(&fakeEmbedder{dim: 4}, store, &fakeGenerator{}, logging.New(logging.LevelError), Config{QueryTimeout: 5 * time.Second})

	query := zerotypes.RAGQuery{
		QueryText:        "What is Go?",
		TopK:             5,
		MaxContextLength: 4000,
		MaxTokens:        256,
		Temperature:      0.2,
		IncludeSources:   true,
		ResponseFormat:   zerotypes.FormatText,
		SafetyLevel:      zerotypes.SafetyStandard,
	}

	events, err := p.Stream(context.Background(), query)
	require.NoError(t, err)

	var sawSources, sawContent, sawEnd bool
	var endWasLast bool
	for evt := range events {
		endWasLast = evt.Type == zerotypes.EventEnd
		switch evt.Type {
		case zerotypes.EventSources:
			sawSources = true
			require.False(t, sawContent)
			require.False(t, sawEnd)
		case zerotypes.EventContent:
			sawContent = true
			require.False(t, sawEnd)
		case zerotypes.EventEnd:
			sawEnd = true
		}
	}
	require.True(t, sawSources)
	require.True(t, sawContent)
	require.True(t, sawEnd)
	require.True(t, endWasLast)
}
