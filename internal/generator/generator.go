// Package generator implements the Generator contract consumed by
// RAGPipeline: synchronous generation, streaming generation,
// and a health probe, with cooperative cancellation on both paths.
package generator

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"zerorag/internal/apperrors"
)

// Generator is the abstract contract. The concrete model (local server or
// hosted API) is an adapter owned by the composition root.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
	Stream(ctx context.Context, prompt string, maxTokens int, temperature float64) (<-chan Token, error)
	Health(ctx context.Context) error
}

// Token is one increment of a streamed generation.
type Token struct {
	Text string
	Done bool
	Err  error
}

// HTTPGenerator calls a JSON HTTP endpoint compatible with most local model
// servers: POST {prompt, max_tokens, temperature, stream} returns either a
// single JSON object or, when stream=true, newline-delimited JSON chunks.
type HTTPGenerator struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

// NewHTTPGenerator constructs a Generator bound to a single endpoint.
func NewHTTPGenerator(endpoint, apiKey string) *HTTPGenerator {
	return &HTTPGenerator{
		client:   &http.Client{Timeout: 2 * time.Minute},
		endpoint: endpoint,
		apiKey:   apiKey,
	}
}

type generateRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Stream      bool    `json:"stream"`
}

type generateResponse struct {
	Text string `json:"text"`
}

func (g *HTTPGenerator) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	body, err := json.Marshal(generateRequest{Prompt: prompt, MaxTokens: maxTokens, Temperature: temperature})
	if err != nil {
		return "", apperrors.Internal(err, "generator: encoding request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", apperrors.Internal(err, "generator: building request")
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", apperrors.Cancelled("generator: request cancelled")
		}
		return "", apperrors.Transient(err, "generator: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", apperrors.Transient(fmt.Errorf("status %d", resp.StatusCode), "generator: server error")
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperrors.Permanent(fmt.Errorf("status %d", resp.StatusCode), "generator: request rejected")
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", apperrors.Internal(err, "generator: decoding response")
	}
	return parsed.Text, nil
}

// Stream issues a streaming request and emits Tokens on the returned
// channel until the generator finishes or ctx is cancelled, in which case
// the HTTP body is closed and no further tokens are emitted.
func (g *HTTPGenerator) Stream(ctx context.Context, prompt string, maxTokens int, temperature float64) (<-chan Token, error) {
	body, err := json.Marshal(generateRequest{Prompt: prompt, MaxTokens: maxTokens, Temperature: temperature, Stream: true})
	if err != nil {
		return nil, apperrors.Internal(err, "generator: encoding request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Internal(err, "generator: building request")
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, apperrors.Transient(err, "generator: stream request failed")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, apperrors.Permanent(fmt.Errorf("status %d", resp.StatusCode), "generator: stream request rejected")
	}

	out := make(chan Token)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var chunk generateResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				select {
				case out <- Token{Err: apperrors.Internal(err, "generator: decoding stream chunk")}:
				case <-ctx.Done():
				}
				return
			}
			select {
			case out <- Token{Text: chunk.Text}:
			case <-ctx.Done():
				return
			}
		}
		select {
		case out <- Token{Done: true}:
		case <-ctx.Done():
		}
	}()
	return out, nil
}

func (g *HTTPGenerator) Health(ctx context.Context) error {
	_, err := g.Generate(ctx, "health check", 1, 0)
	return err
}
