package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/curatarr/curatarr/internal/api/handlers"
	"github.com/curatarr/curatarr/internal/api/middleware"
	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/controllers"
	"github.com/curatarr/curatarr/internal/models"
	"github.com/curatarr/curatarr/internal/scheduler"
)

// Server represents the HTTP server
type Server struct {
	server        *http.Server
	db            *models.Database
	rulesCtrl     *controllers.RulesController
	exclusionCtrl *controllers.ExclusionController
	scheduler     *scheduler.Scheduler
	logger        *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(
	cfg *config.Config,
	db *models.Database,
	rulesCtrl *controllers.RulesController,
	exclusionCtrl *controllers.ExclusionController,
	sched *scheduler.Scheduler,
	logger *logrus.Logger,
) *Server {
	s := &Server{
		db:            db,
		rulesCtrl:     rulesCtrl,
		exclusionCtrl: exclusionCtrl,
		scheduler:     sched,
		logger:        logger,
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux, cfg)

	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      middleware.Logging(mux, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux, cfg *config.Config) {
	healthHandler := handlers.NewHealthHandler(s.logger)
	mux.HandleFunc("/health", healthHandler.ServeHTTP)

	statusHandler := handlers.NewStatusHandler(s.db, s.logger)
	mux.HandleFunc("/status", statusHandler.ServeHTTP)

	mux.Handle("/metrics", promhttp.Handler())

	rulesHandler := handlers.NewRulesHandler(s.db, s.rulesCtrl, cfg, s.logger)
	mux.HandleFunc("/api/rules/applications", rulesHandler.ServeApplications)
	mux.HandleFunc("/api/rules/groups", rulesHandler.ServeGroups)
	mux.HandleFunc("/api/rules/groups/", rulesHandler.ServeGroup)

	exclusionsHandler := handlers.NewExclusionsHandler(s.exclusionCtrl, s.logger)
	mux.HandleFunc("/api/exclusions", exclusionsHandler.ServeExclusions)
	mux.HandleFunc("/api/exclusions/", exclusionsHandler.ServeExclusion)

	tasksHandler := handlers.NewTasksHandler(s.scheduler, s.logger)
	mux.HandleFunc("/api/tasks/", tasksHandler.ServeHTTP)
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.server.Addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
