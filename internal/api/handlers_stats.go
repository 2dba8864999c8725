package api

import (
	"encoding/json"
	"net/http"
)

// handleStats reports the aggregate of the current indexing run.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.orchestrator.Stats().Report())
}
