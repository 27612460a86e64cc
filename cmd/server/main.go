package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tissuelab/slideflow"
	"github.com/tissuelab/slideflow/internal/engine"
	"github.com/tissuelab/slideflow/internal/infrastructure/api/rest"
	"github.com/tissuelab/slideflow/internal/infrastructure/config"
	"github.com/tissuelab/slideflow/internal/infrastructure/logger"
	"github.com/tissuelab/slideflow/internal/infrastructure/websocket"
)

func main() {
	// Parse command line flags
	var (
		port       = flag.String("port", "", "Server port (overrides config)")
		resultsDir = flag.String("results-dir", "", "Result artifact directory (overrides config)")
	)
	flag.Parse()

	// Load configuration
	cfg := config.Load()
	if *port != "" {
		cfg.Port = *port
	}
	if *resultsDir != "" {
		cfg.ResultsDir = *resultsDir
	}

	// Setup logger
	log := logger.Setup(cfg.LogLevel)
	log.Info().Str("port", cfg.Port).Str("results_dir", cfg.ResultsDir).
		Int("max_workers", cfg.MaxWorkers).Int("active_users_limit", cfg.ActiveUsersLimit).
		Msg("starting slideflow server")

	// In-memory state store: the single source of truth for scheduling
	store := slideflow.NewMemoryStore()

	// Optional terminal-job archive
	var archive engine.Archiver
	var restArchive rest.Archiver
	if cfg.DatabaseDSN != "" {
		jobArchive := slideflow.NewJobArchive(cfg.DatabaseDSN)
		defer jobArchive.Close()
		archive = jobArchive
		restArchive = jobArchive
		log.Info().Msg("job archive enabled")
	}

	// Observers: websocket progress feed
	hub := websocket.NewHub(log)
	go hub.Run()
	observers := slideflow.NewObserverManager()
	observers.Register(websocket.NewSocketObserver(hub))

	metrics := slideflow.NewMetricsCollector()

	// Task routines and the scheduling engine
	registry := slideflow.NewDefaultTaskRegistry(nil, cfg.ResultsDir, observers)
	dispatcher := slideflow.NewDispatcher(store, registry, observers, metrics, archive)
	scheduler := slideflow.NewScheduler(store, dispatcher, observers, metrics, slideflow.SchedulerConfig{
		Interval:         cfg.SchedulerInterval,
		MaxWorkers:       cfg.MaxWorkers,
		ActiveUsersLimit: cfg.ActiveUsersLimit,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go scheduler.Run(ctx)

	// REST API with the websocket feed mounted alongside
	server := rest.NewServer(store, observers, metrics, restArchive, log)
	server.Handle("GET /ws", websocket.NewHandler(hub, websocket.HeaderAuthenticator{}, log))

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Handler(),
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
}
