package web

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"minibridge/internal/bridge"
	"minibridge/internal/config"
	"minibridge/internal/ics"
	appLog "minibridge/internal/log"
)

// Server exposes the bridge over HTTP: teacher listing, preview and export
// of uploaded calendars, plus health and metrics.
type Server struct {
	cfg     *config.Config
	svc     *bridge.Service
	router  *mux.Router
	metrics *metrics

	// maxFileBytes caps each uploaded file.
	maxFileBytes int64
}

// embeddedStatic contains the upload page served at "/".
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, svc *bridge.Service) *Server {
	s := &Server{
		cfg:     cfg,
		svc:     svc,
		router:  mux.NewRouter(),
		metrics: newMetrics(svc.Parser()),

		maxFileBytes: ics.MaxFileSize,
	}
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(requestIDMiddleware, s.accessLogMiddleware, recoveryMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/config", s.handleConfig).Methods(http.MethodGet)
	api.HandleFunc("/teachers", s.handleTeachers).Methods(http.MethodPost)
	api.HandleFunc("/preview", s.handlePreview).Methods(http.MethodPost)
	api.HandleFunc("/preview.html", s.handlePreviewHTML).Methods(http.MethodPost)
	api.HandleFunc("/export", s.handleExport).Methods(http.MethodPost)

	// Everything else is the embedded upload page.
	r.PathPrefix("/").Handler(s.staticFileServer()).Methods(http.MethodGet, http.MethodHead)
}

// staticFileServer serves the embedded files from internal/web/static.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Unknown /api/* paths are a 404, never the HTML page.
		path := r.URL.Path
		if path == "/api" || strings.HasPrefix(path, "/api/") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}
