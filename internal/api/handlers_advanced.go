package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"zerorag/internal/apperrors"
)

func (r *Router) handleListConnections(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"connections": r.conns.list()})
}

func (r *Router) handleCloseConnection(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	if !r.conns.close(id) {
		apperrors.NotFound("connection %s", id).WriteHTTP(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleCleanup(w http.ResponseWriter, req *http.Request) {
	r.conns.reapIdle()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleanup complete"})
}

func (r *Router) handleStorageStats(w http.ResponseWriter, req *http.Request) {
	stats, err := r.store.Stats(req.Context())
	if err != nil {
		apperrors.As(err).WriteHTTP(w)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
