package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/curatarr/curatarr/internal/api"
	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/controllers"
	"github.com/curatarr/curatarr/internal/models"
	"github.com/curatarr/curatarr/internal/observability"
	"github.com/curatarr/curatarr/internal/rules"
	"github.com/curatarr/curatarr/internal/rules/getter"
	"github.com/curatarr/curatarr/internal/scheduler"
	"github.com/curatarr/curatarr/internal/services/overseerr"
	"github.com/curatarr/curatarr/internal/services/plex"
	"github.com/curatarr/curatarr/internal/services/servarr"
	"github.com/curatarr/curatarr/internal/services/tautulli"
	"github.com/curatarr/curatarr/internal/services/tmdb"
	"github.com/curatarr/curatarr/internal/tasks"
	"github.com/curatarr/curatarr/internal/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := utils.NewLogger(cfg.LogLevel)
	logger.Info("Starting Curatarr")
	logger.WithField("config_dir", filepath.Dir(cfg.DatabaseFile)).Info("Configuration loaded")

	// 3. Initialize database
	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	logger.Info("Database initialized")

	// 4. Initialize caches and metrics
	caches := utils.NewCacheManager()
	metrics := observability.NewDefault()

	// 5. Initialize services
	plexClient := plex.NewClient(cfg, caches, logger)
	logger.Info("Plex client initialized")

	arrs := servarr.NewManager(cfg, caches, logger)
	logger.WithField("radarr", len(cfg.RadarrInstances)).
		WithField("sonarr", len(cfg.SonarrInstances)).
		Info("Automation server clients initialized")

	var overseerrClient *overseerr.Client
	if cfg.HasOverseerr() {
		overseerrClient = overseerr.NewClient(cfg, caches, logger)
		logger.Info("Overseerr client initialized")
	}
	var tautulliClient *tautulli.Client
	if cfg.HasTautulli() {
		tautulliClient = tautulli.NewClient(cfg, caches, logger)
		logger.Info("Tautulli client initialized")
	}
	tmdbClient := tmdb.NewClient(cfg, caches, logger)

	// 6. Initialize rule evaluation
	clients := getter.Clients{
		Plex:      plexClient,
		Arrs:      arrs,
		Overseerr: overseerrClient,
		Tautulli:  tautulliClient,
		Tmdb:      tmdbClient,
	}
	getters := getter.Build(cfg, db, clients, caches, logger)
	ids := getter.NewIDResolver(plexClient, tmdbClient, caches, logger)

	exclusionCtrl := controllers.NewExclusionController(db, plexClient, logger)
	comparator := rules.NewComparator(getters, exclusionCtrl, logger)

	// 7. Initialize controllers
	runner := tasks.NewRunner(db, logger)
	if err := runner.ClearStale(); err != nil {
		return fmt.Errorf("failed to clear stale task markers: %w", err)
	}

	rulesCtrl := controllers.NewRulesController(db, plexClient, comparator, caches, logger)
	maintenanceCtrl := controllers.NewMaintenanceController(
		db, plexClient, arrs, ids, rulesCtrl, comparator, runner, metrics, logger)
	logger.Info("Controllers initialized")

	// Backfill exclusion kinds written by older versions
	if err := exclusionCtrl.BackfillKinds(context.Background()); err != nil {
		logger.WithError(err).Warn("Exclusion kind backfill failed, continuing")
	}

	// 8. Initialize scheduler
	sched := scheduler.NewScheduler(maintenanceCtrl, cfg, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	// 9. Initialize HTTP server
	server := api.NewServer(cfg, db, rulesCtrl, exclusionCtrl, sched, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	}()

	// 10. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Curatarr is running")

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("Error during server shutdown")
		}
	}

	logger.Info("Curatarr stopped")
	return nil
}
