// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server is the HTTP presentation layer: a markdown form, a JSON
// conversion API, and downloads of converted documents.
package server

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/pdiddy/md2docx/internal/artifact"
	"github.com/pdiddy/md2docx/pkg/types"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Converter turns markdown into an artifact. convert.Service implements it.
type Converter interface {
	Convert(ctx context.Context, markdown string) (*artifact.Artifact, error)
}

// ArtifactFinder looks up artifacts for download. artifact.Store implements it.
type ArtifactFinder interface {
	Get(ctx context.Context, id string, now time.Time) (artifact.Artifact, error)
}

// Server wires handlers to their collaborators.
type Server struct {
	cfg       types.ServerConfig
	converter Converter
	artifacts ArtifactFinder
	metrics   http.Handler
	log       zerolog.Logger
	now       func() time.Time
}

// New creates a Server. metrics may be nil, in which case /metrics is not
// routed.
func New(cfg types.ServerConfig, conv Converter, artifacts ArtifactFinder, metrics http.Handler, log zerolog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		converter: conv,
		artifacts: artifacts,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(recoverer(s.log))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Disposition", "Location"},
	}).Handler)

	r.Get("/health", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Get("/", s.index)
	r.Post("/convert", s.convertForm)
	r.Get("/download/{id}", s.download)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/convert", s.convertAPI)
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
// within the configured shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("listening")
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn().Err(err).Dur("timeout", s.cfg.ShutdownTimeout).Msg("graceful shutdown did not complete")
		return srv.Close()
	}
	return nil
}
