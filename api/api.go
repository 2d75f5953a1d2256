// Package api implements the JSON API server for the skill marketplace.
package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"

	"github.com/roboskills/skillhub/config"
	"github.com/roboskills/skillhub/license"
	"github.com/roboskills/skillhub/workflow"
)

// PackageStore stores uploaded package blobs and reports their recorded
// size and checksum.
type PackageStore interface {
	Put(ctx context.Context, path string, r io.Reader) (int64, string, error)
}

// Server is the API server.
type Server struct {
	cfg      *config.Config
	svc      *workflow.Service
	licenses *license.Service
	packages PackageStore
	logger   *slog.Logger
}

// New creates a new API server.
func New(cfg *config.Config, svc *workflow.Service, licenses *license.Service, packages PackageStore, logger *slog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		svc:      svc,
		licenses: licenses,
		packages: packages,
		logger:   logger,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// Setup CORS only if origins are explicitly configured.
	// Empty list means same-origin only (no CORS).
	if len(s.cfg.Server.AllowedOrigins) > 0 {
		s.logger.Info("enabling CORS", "allowed_origins", s.cfg.Server.AllowedOrigins)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.Server.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: false,
		}))
	}

	// Setup global middlewares.
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		httplog.RequestLogger(s.logger, &httplog.Options{}),
		middleware.Recoverer,
		middleware.Timeout(30*time.Second),
	)

	// Routes.
	r.Route("/api", func(r chi.Router) {
		r.Post("/skills", s.handleCreateSkill)
		r.Get("/skills/{id}", s.handleGetSkill)
		r.Post("/skills/{id}/versions", s.handleCreateVersion)

		r.Post("/packages/{name}", s.handleUploadPackage)

		r.Post("/submissions", s.handleCreateSubmission)
		r.Get("/submissions/{id}", s.handleGetSubmission)
		r.Post("/submissions/{id}/advance", s.handleAdvance)
		r.Get("/submissions/{id}/review", s.handleGetReview)
		r.Post("/submissions/{id}/decision", s.handleDecide)

		r.Post("/developer/activate", s.handleActivate)
	})

	// Health check.
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return r
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting server", "addr", s.cfg.Server.ListenAddr)

	// Run server in goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}
