package api

import (
	"io"
	"net/http"

	"github.com/chazu/xylem/pkg/metrics"
)

// handleRun evaluates the request body as a session script against the
// loaded patient. Outputs go to the configured output directory, if any.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxScriptBytes)
	src, err := io.ReadAll(r.Body)
	if err != nil {
		jsonError(w, "script exceeds max size or could not be read", http.StatusRequestEntityTooLarge)
		return
	}
	res, err := s.app.Run(r.Context(), string(src), s.cfg.OutputDir)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleReload recomputes a metrics CSV posted in the request body against
// the loaded patient, re-measuring its volume when it holds one.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxScriptBytes)
	stored, err := metrics.ReadCSV(r.Body)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := s.app.ReloadRecord(r.Context(), stored, s.cfg.OutputDir)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
