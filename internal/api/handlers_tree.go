package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/xylem"
	"github.com/chazu/xylem/pkg/centerline"
	"github.com/chazu/xylem/pkg/marker"
	"github.com/chazu/xylem/pkg/metrics"
	"github.com/chazu/xylem/pkg/preview"
)

func (s *Server) patient(w http.ResponseWriter) *xylem.Patient {
	p := s.app.Patient()
	if p == nil {
		jsonError(w, xylem.ErrNoPatient.Error(), http.StatusConflict)
	}
	return p
}

func (s *Server) handlePatient(w http.ResponseWriter, r *http.Request) {
	p := s.patient(w)
	if p == nil {
		return
	}
	faces := 0
	if p.Lumen != nil {
		faces = p.Lumen.NumFaces()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       p.ID,
		"branches": p.Tree.Len(),
		"roots":    p.Tree.Roots(),
		"dropped":  p.Tree.Dropped,
		"faces":    faces,
	})
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	p := s.patient(w)
	if p == nil {
		return
	}
	writeJSON(w, http.StatusOK, p.Tree)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	p := s.patient(w)
	if p == nil {
		return
	}
	inlet, outlets := marker.Suggestions(p.Tree, s.cfg.MarkerOptions())
	writeJSON(w, http.StatusOK, map[string]any{
		"inlet":   inlet,
		"outlets": outlets,
	})
}

func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	var p v3.Vec
	for _, c := range []struct {
		key string
		dst *float64
	}{{"x", &p.X}, {"y", &p.Y}, {"z", &p.Z}} {
		v, err := strconv.ParseFloat(r.URL.Query().Get(c.key), 64)
		if err != nil {
			jsonError(w, c.key+" must be a number", http.StatusBadRequest)
			return
		}
		*c.dst = v
	}
	loc, err := s.app.Locate(p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSample(w, loc)
}

func (s *Server) handleDiameter(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	branch, err1 := strconv.Atoi(q.Get("branch"))
	index, err2 := strconv.Atoi(q.Get("index"))
	if err1 != nil || err2 != nil {
		jsonError(w, "branch and index must be integers", http.StatusBadRequest)
		return
	}
	s.writeSample(w, centerline.Location{Branch: branch, Index: index})
}

func (s *Server) handleMaxDiameter(w http.ResponseWriter, r *http.Request) {
	loc, _, err := s.app.MaxDiameter()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSample(w, loc)
}

// writeSample reports the position and diameter at loc.
func (s *Server) writeSample(w http.ResponseWriter, loc centerline.Location) {
	d, err := s.app.DiameterAt(loc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	pos, _ := s.app.Patient().Tree.Position(loc)
	writeJSON(w, http.StatusOK, map[string]any{
		"loc":      loc,
		"label":    metrics.FormatLocation(loc),
		"position": [3]float64{pos.X, pos.Y, pos.Z},
		"diameter": d,
	})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	p := s.patient(w)
	if p == nil {
		return
	}
	opts := preview.DefaultOptions()
	q := r.URL.Query()
	if v := q.Get("view"); v != "" {
		view, err := preview.ParseView(v)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		opts.View = view
	}
	if v := q.Get("width"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 4096 {
			opts.Width = n
		}
	}
	if v := q.Get("height"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 4096 {
			opts.Height = n
		}
	}
	opts.Labels = q.Get("labels") != "false"

	var markers []marker.Marker
	if q.Get("suggest") == "true" {
		set, err := marker.NewSet(p.Locator, s.cfg.MarkerOptions()).Suggest()
		if err != nil {
			s.writeError(w, err)
			return
		}
		markers = set.Markers()
	}
	img, err := preview.Render(p.Tree, markers, opts)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := preview.WritePNG(w, img); err != nil {
		s.log.Error("preview write failed", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeError maps domain errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var se *xylem.ScriptError
	switch {
	case errors.As(err, &se):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "script failed",
			"errors": se.Errors,
		})
	case errors.Is(err, xylem.ErrNoPatient):
		jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, centerline.ErrInvalidLocation):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, marker.ErrPickMiss):
		jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, xylem.ErrPatientMismatch),
		errors.Is(err, xylem.ErrNoLumen),
		errors.Is(err, marker.ErrPlacementRejected),
		errors.Is(err, marker.ErrDuplicateInlet),
		errors.Is(err, metrics.ErrNeedTwoBounds),
		errors.Is(err, metrics.ErrLandmarkExists):
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		s.log.Error("request failed", "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}
