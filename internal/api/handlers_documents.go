package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"zerorag/internal/apperrors"
)

const maxMultipartMemory = 32 << 20

// writeParseFormError distinguishes a request body rejected by the
// maxBodyBytes middleware's http.MaxBytesReader (413 FILE_TOO_LARGE) from
// any other multipart parsing failure (400 VALIDATION_ERROR).
func writeParseFormError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		apperrors.FileTooLarge("request body exceeds maximum allowed size").WriteHTTP(w)
		return
	}
	apperrors.Validation("parsing multipart form: %v", err).WriteHTTP(w)
}

func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeParseFormError(w, err)
		return
	}
	file, header, err := req.FormFile("file")
	if err != nil {
		apperrors.Validation("missing \"file\" form field: %v", err).WriteHTTP(w)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		apperrors.Internal(err, "reading uploaded file").WriteHTTP(w)
		return
	}

	id, err := r.docs.Ingest(req.Context(), header.Filename, content)
	if err != nil {
		apperrors.As(err).WriteHTTP(w)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"document_id": id, "status": "processing"})
}

func (r *Router) handleValidate(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeParseFormError(w, err)
		return
	}
	file, header, err := req.FormFile("file")
	if err != nil {
		apperrors.Validation("missing \"file\" form field: %v", err).WriteHTTP(w)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		apperrors.Internal(err, "reading uploaded file").WriteHTTP(w)
		return
	}

	advertised := header.Header.Get("Content-Type")
	result := r.docs.Validate(header.Filename, header.Size, advertised, content)
	status := http.StatusOK
	switch {
	case result.TooLarge:
		status = http.StatusRequestEntityTooLarge
	case !result.Valid:
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

func (r *Router) handleUploadProgress(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	progress, err := r.docs.GetProgress(req.Context(), id)
	if err != nil {
		apperrors.As(err).WriteHTTP(w)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (r *Router) handleListDocuments(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	limit := 50
	offset := 0
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	docs, err := r.docs.List(req.Context(), q.Get("status"), limit, offset)
	if err != nil {
		apperrors.As(err).WriteHTTP(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "limit": limit, "offset": offset})
}

func (r *Router) handleGetDocument(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	doc, err := r.docs.GetDocument(req.Context(), id)
	if err != nil {
		apperrors.As(err).WriteHTTP(w)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (r *Router) handleDeleteDocument(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	if err := r.docs.DeleteDocument(req.Context(), id); err != nil {
		apperrors.As(err).WriteHTTP(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
