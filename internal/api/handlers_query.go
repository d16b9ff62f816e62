package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"zerorag/internal/apperrors"
	"zerorag/internal/zerotypes"
)

func defaultedQuery(q zerotypes.RAGQuery) zerotypes.RAGQuery {
	if q.TopK <= 0 {
		q.TopK = 5
	}
	if q.MaxContextLength <= 0 {
		q.MaxContextLength = 4000
	}
	if q.MaxTokens <= 0 {
		q.MaxTokens = 512
	}
	if q.ResponseFormat == "" {
		q.ResponseFormat = zerotypes.FormatText
	}
	if q.SafetyLevel == "" {
		q.SafetyLevel = zerotypes.SafetyStandard
	}
	return q
}

func (r *Router) handleQuery(w http.ResponseWriter, req *http.Request) {
	var query zerotypes.RAGQuery
	if err := json.NewDecoder(req.Body).Decode(&query); err != nil {
		apperrors.Validation("decoding request body: %v", err).WriteHTTP(w)
		return
	}
	query = defaultedQuery(query)

	resp, err := r.rag.Answer(req.Context(), query)
	if err != nil {
		apperrors.As(err).WriteHTTP(w)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (r *Router) handleQueryStream(w http.ResponseWriter, req *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		apperrors.Internal(nil, "streaming unsupported by response writer").WriteHTTP(w)
		return
	}

	q := req.URL.Query()
	query := defaultedQuery(zerotypes.RAGQuery{
		QueryText:      q.Get("query_text"),
		IncludeSources: q.Get("include_sources") != "false",
	})

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()

	events, err := r.rag.Stream(ctx, query)
	if err != nil {
		apperrors.As(err).WriteHTTP(w)
		return
	}

	connID := r.conns.register(req.RemoteAddr, req.UserAgent(), query.QueryText, cancel)
	defer r.conns.unregister(connID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Connection-ID", connID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			r.conns.touch(connID)
			payload, _ := json.Marshal(evt.Payload)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, payload)
			flusher.Flush()
			if evt.Type == zerotypes.EventEnd {
				return
			}
		}
	}
}
