// Package server wires the HTTP surface: API endpoints, artifact
// serving, health, and metrics.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/timcash/earthengine-dem/internal/artifacts"
	"github.com/timcash/earthengine-dem/internal/core/config"
	"github.com/timcash/earthengine-dem/internal/core/middleware"
	"github.com/timcash/earthengine-dem/internal/core/router"
	"github.com/timcash/earthengine-dem/internal/health"
)

type Deps struct {
	Renderer  router.Renderer
	Artifacts *artifacts.Server
	Readiness health.ReadinessReporter
}

// Run sets up the router and serves until ctx is canceled.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, deps Deps) error {
	defaults := router.Defaults{ThumbSize: cfg.ThumbSize, SkipCache: cfg.SkipCache}

	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(deps.Readiness))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/cache/*", deps.Artifacts.ServeHTTP)

	r.Post("/api/dem-thumbnail", router.HandleDEMThumbnail(logger, defaults, deps.Renderer))
	r.Post("/api/roads-thumbnail", router.HandleRoadsThumbnail(logger, defaults, deps.Renderer))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
