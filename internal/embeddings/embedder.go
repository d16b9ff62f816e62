// Package embeddings implements the Embedder contract consumed by
// DocumentPipeline and RAGPipeline, plus the caching layers
// that sit in front of whatever concrete embedding service is configured.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"zerorag/internal/apperrors"
)

// Embedder is the abstract contract: embed text, report dimension, report
// health. The concrete model (local server, hosted API) is an adapter
// owned by the composition root, never discovered at runtime.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dim() int
	Health(ctx context.Context) error
}

// HTTPEmbedder calls a JSON HTTP endpoint that accepts {"input": [...]}
// and returns {"embeddings": [[...]]}; this is the minimal capability set
// most local model servers and hosted embedding APIs expose.
type HTTPEmbedder struct {
	client   *http.Client
	endpoint string
	apiKey   string
	dim      int
}

// NewHTTPEmbedder constructs an Embedder bound to a single endpoint.
func NewHTTPEmbedder(endpoint, apiKey string, dim int) *HTTPEmbedder {
	return &HTTPEmbedder{
		client:   &http.Client{Timeout: 30 * time.Second},
		endpoint: endpoint,
		apiKey:   apiKey,
		dim:      dim,
	}
}

type embedRequest struct {
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(embedRequest{Input: texts})
	if err != nil {
		return nil, apperrors.Internal(err, "embedder: encoding request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Internal(err, "embedder: building request")
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, apperrors.Transient(err, "embedder: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, apperrors.Transient(fmt.Errorf("status %d", resp.StatusCode), "embedder: server error")
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, apperrors.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, data), "embedder: request rejected")
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperrors.Internal(err, "embedder: decoding response")
	}
	for _, v := range parsed.Embeddings {
		if len(v) != e.dim {
			return nil, apperrors.Permanent(nil, "embedder: returned dimension %d, expected %d", len(v), e.dim)
		}
	}
	return parsed.Embeddings, nil
}

func (e *HTTPEmbedder) Dim() int { return e.dim }

func (e *HTTPEmbedder) Health(ctx context.Context) error {
	_, err := e.Embed(ctx, []string{"health check"})
	return err
}
