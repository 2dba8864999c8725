package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListDocuments lists every indexed document with its chunk and
// image counts.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.store.ListDocuments(r.Context())
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"documents": docs})
}

// handleDeleteDocument removes an indexed document and its chunks and
// images by content hash.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "contentHash")

	exists, err := s.store.HasDocument(r.Context(), hash)
	if err != nil {
		jsonError(w, "lookup failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if !exists {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	if err := s.store.DeleteDocument(r.Context(), hash); err != nil {
		jsonError(w, "delete failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"deleted": hash})
}
