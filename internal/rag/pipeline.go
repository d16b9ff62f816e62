// Package rag implements the RAGPipeline component: query classification,
// retrieval, context packing, prompt assembly, generation, and response
// validation.
package rag

import (
	"context"
	"strings"
	"time"

	"zerorag/internal/apperrors"
	"zerorag/internal/embeddings"
	"zerorag/internal/generator"
	"zerorag/internal/logging"
	"zerorag/internal/vectorstore"
	"zerorag/internal/zerotypes"
)

// Config configures a Pipeline's defaults and timeouts.
type Config struct {
	QueryTimeout time.Duration
}

// Pipeline is the RAGPipeline.
type Pipeline struct {
	embedder embeddings.Embedder
	store    *vectorstore.Store
	gen      generator.Generator
	log      logging.Logger
	cfg      Config
}

// New builds a Pipeline.
func New(embedder embeddings.Embedder, store *vectorstore.Store, gen generator.Generator, log logging.Logger, cfg Config) *Pipeline {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 60 * time.Second
	}
	return &Pipeline{embedder: embedder, store: store, gen: gen, log: log.WithComponent("rag"), cfg: cfg}
}

// Answer runs the full pipeline synchronously: classify, embed, retrieve,
// pack context, assemble the prompt, generate, and validate.
func (p *Pipeline) Answer(ctx context.Context, query zerotypes.RAGQuery) (zerotypes.RAGResponse, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.cfg.QueryTimeout)
	defer cancel()

	if err := query.Validate(); err != nil {
		return zerotypes.RAGResponse{}, apperrors.Validation("rag: %v", err)
	}

	queryType := Classify(query.QueryText, query.QueryTypeOverride)

	vectors, err := p.embedder.Embed(ctx, []string{strings.TrimSpace(query.QueryText)})
	if err != nil {
		return zerotypes.RAGResponse{}, apperrors.As(err)
	}
	if len(vectors) == 0 {
		return zerotypes.RAGResponse{}, apperrors.Internal(nil, "rag: embedder returned no vector")
	}

	results, err := p.store.Search(ctx, vectors[0], query.TopK, query.ScoreThreshold, query.Filter)
	if err != nil {
		return zerotypes.RAGResponse{}, apperrors.As(err)
	}

	packed := PackContext(results, query.MaxContextLength)

	prompt := Build(queryType, query.SafetyLevel, query.ResponseFormat, packed.Text, query.QueryText)

	answer, err := p.gen.Generate(ctx, prompt, query.MaxTokens, query.Temperature)
	if err != nil {
		return zerotypes.RAGResponse{}, apperrors.As(err)
	}

	status, safety := Validate(answer, packed.Text, query.ResponseFormat, len(packed.Sources) > 0)

	resp := zerotypes.RAGResponse{
		Answer:           answer,
		ResponseTimeMs:   time.Since(start).Milliseconds(),
		ValidationStatus: status,
		SafetyScore:      safety,
	}
	if query.IncludeSources {
		resp.Sources = packed.Sources
	}
	return resp, nil
}

// Stream runs the pipeline, emitting typed events as they become
// available. Progress events come first; when query.IncludeSources is set
// and retrieval succeeds, sources is emitted once, before any content; end
// is the last event sent (it is not delivered once ctx is done).
func (p *Pipeline) Stream(ctx context.Context, query zerotypes.RAGQuery) (<-chan zerotypes.StreamEvent, error) {
	if err := query.Validate(); err != nil {
		return nil, apperrors.Validation("rag: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.QueryTimeout)
	out := make(chan zerotypes.StreamEvent, 16)

	go func() {
		defer cancel()
		defer close(out)

		emit := func(evt zerotypes.StreamEvent) bool {
			select {
			case out <- evt:
				return true
			case <-ctx.Done():
				return false
			}
		}

		emit(zerotypes.StreamEvent{Type: zerotypes.EventProgress, Payload: map[string]string{"step": "classify"}})
		queryType := Classify(query.QueryText, query.QueryTypeOverride)

		emit(zerotypes.StreamEvent{Type: zerotypes.EventProgress, Payload: map[string]string{"step": "embed"}})
		vectors, err := p.embedder.Embed(ctx, []string{strings.TrimSpace(query.QueryText)})
		if err != nil {
			emit(zerotypes.StreamEvent{Type: zerotypes.EventError, Payload: apperrors.As(err).Message})
			emit(zerotypes.StreamEvent{Type: zerotypes.EventEnd, Payload: map[string]bool{"truncated": false}})
			return
		}

		emit(zerotypes.StreamEvent{Type: zerotypes.EventProgress, Payload: map[string]string{"step": "retrieve"}})
		var results []zerotypes.SearchResult
		if len(vectors) > 0 {
			results, err = p.store.Search(ctx, vectors[0], query.TopK, query.ScoreThreshold, query.Filter)
			if err != nil {
				emit(zerotypes.StreamEvent{Type: zerotypes.EventError, Payload: apperrors.As(err).Message})
				emit(zerotypes.StreamEvent{Type: zerotypes.EventEnd, Payload: map[string]bool{"truncated": false}})
				return
			}
		}

		packed := PackContext(results, query.MaxContextLength)
		if query.IncludeSources {
			if !emit(zerotypes.StreamEvent{Type: zerotypes.EventSources, Payload: packed.Sources}) {
				return
			}
		}

		prompt := Build(queryType, query.SafetyLevel, query.ResponseFormat, packed.Text, query.QueryText)

		tokens, err := p.gen.Stream(ctx, prompt, query.MaxTokens, query.Temperature)
		if err != nil {
			emit(zerotypes.StreamEvent{Type: zerotypes.EventError, Payload: apperrors.As(err).Message})
			emit(zerotypes.StreamEvent{Type: zerotypes.EventEnd, Payload: map[string]bool{"truncated": false}})
			return
		}

		var full strings.Builder
		truncated := false
		for tok := range tokens {
			if tok.Err != nil {
				emit(zerotypes.StreamEvent{Type: zerotypes.EventError, Payload: tok.Err.Error()})
				continue
			}
			if tok.Done {
				break
			}
			full.WriteString(tok.Text)
			if !emit(zerotypes.StreamEvent{Type: zerotypes.EventContent, Payload: tok.Text}) {
				truncated = true
				break
			}
		}

		emit(zerotypes.StreamEvent{Type: zerotypes.EventEnd, Payload: map[string]bool{"truncated": truncated}})
	}()

	return out, nil
}
