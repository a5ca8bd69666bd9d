package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/chazu/xylem"
	"github.com/chazu/xylem/internal/config"
)

// maxScriptBytes bounds the body of a run request.
const maxScriptBytes = 1 << 20

// Server is the HTTP API over one loaded patient.
type Server struct {
	router chi.Router
	app    *xylem.App
	log    *slog.Logger
	cfg    config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(app *xylem.App, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		app: app,
		log: log,
		cfg: cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/patient", s.handlePatient)
		r.Get("/tree", s.handleTree)
		r.Get("/suggestions", s.handleSuggestions)
		r.Get("/locate", s.handleLocate)
		r.Get("/diameter", s.handleDiameter)
		r.Get("/max-diameter", s.handleMaxDiameter)
		r.Get("/preview.png", s.handlePreview)
		r.Post("/run", s.handleRun)
		r.Post("/reload", s.handleReload)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
