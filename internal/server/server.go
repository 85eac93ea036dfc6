package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"

	"github.com/cyderes/canvas-notion-sync/internal/apperrors"
	"github.com/cyderes/canvas-notion-sync/internal/config"
	"github.com/cyderes/canvas-notion-sync/internal/storage"
)

const defaultRunLimit = 10

// Server exposes stored sync reports over HTTP
type Server struct {
	config  config.ServerConfig
	storage storage.Storage
	logger  zerolog.Logger
	server  *http.Server
}

// NewServer creates a new HTTP server
func NewServer(cfg config.ServerConfig, store storage.Storage, logger zerolog.Logger) *Server {
	s := &Server{
		config:  cfg,
		storage: store,
		logger:  logger.With().Str("component", "server").Logger(),
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	return s
}

// Routes builds the router
func (s *Server) Routes() *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.Recoverer,
		s.logRequests,
	)

	router.Get("/health", s.handleHealth)
	router.Route("/runs", func(r chi.Router) {
		r.Get("/", s.handleRuns)
		r.Get("/latest", s.handleLatestRun)
		r.Get("/{runID}", s.handleRunByID)
	})

	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info().Int("port", s.config.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Handled request")
	})
}

// GET: /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// GET: /runs?limit=N
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	runs, err := s.storage.GetRuns(r.Context(), limit)
	if err != nil {
		s.fail(w, r, "Failed to retrieve runs", err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
		"limit": limit,
	})
}

// GET: /runs/latest
func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.storage.GetLatestRun(r.Context())
	if err != nil {
		s.fail(w, r, "Failed to retrieve latest run", err)
		return
	}
	render.JSON(w, r, run)
}

// GET: /runs/{runID}
func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	run, err := s.storage.GetRunByID(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.fail(w, r, "Failed to retrieve run", err)
		return
	}
	render.JSON(w, r, run)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if errors.Is(err, apperrors.ErrRunNotFound) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": err.Error()})
		return
	}
	s.logger.Error().Err(err).Str("path", r.URL.Path).Msg(msg)
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, map[string]string{"error": fmt.Sprintf("%s: %v", msg, err)})
}
