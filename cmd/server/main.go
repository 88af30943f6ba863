/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the vacation scheduling server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Build the logger
  3. Initialize SQLite store and default group caps
  4. Start the rank scheduler
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DATABASE_PATH)
           Use ":memory:" for in-memory database

ENVIRONMENT:
  PORT, DATABASE_PATH, LOG_LEVEL, LOG_FORMAT, RANK_INTERVAL, RANK_ENABLED,
  CORS_ORIGINS. See config/config.go.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the rank scheduler
  4. Close database connection

EXAMPLES:
  ./server -db="./data/vacation.db"
  ./server -db=":memory:" -port=3000
  LOG_FORMAT=json RANK_INTERVAL=10m ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Background rank recompute
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/vacation-engine/api"
	"github.com/warp/vacation-engine/config"
	"github.com/warp/vacation-engine/store/sqlite"
	"github.com/warp/vacation-engine/vacation"
)

func main() {
	cfg := config.Load()

	// Flags win over the environment.
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DatabasePath, "SQLite database path")
	flag.Parse()
	cfg.Port = *port
	cfg.DatabasePath = *dbPath

	logger := cfg.NewLogger()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	if err := run(cfg, logger, quit); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
	logger.Info("server stopped")
}

// run owns every resource it opens, so deferred cleanup happens on all exit
// paths, including a failed listener.
func run(cfg config.Config, logger *logrus.Logger, quit <-chan os.Signal) error {
	store, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	ranker := &vacation.Ranker{
		Store:  store,
		Audit:  &vacation.Auditor{Log: store, Logger: logger},
		Logger: logger,
	}
	interval := cfg.RankInterval
	if !cfg.RankEnabled {
		interval = 0
	}
	scheduler := api.NewRankScheduler(ranker, interval, logger)

	handler := api.NewHandler(store, scheduler, logger)
	if _, err := handler.Settings.EnsureDefaults(context.Background()); err != nil {
		return fmt.Errorf("failed to initialize group caps: %w", err)
	}

	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(handler, cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"port":          cfg.Port,
			"db":            cfg.DatabasePath,
			"rank_interval": interval.String(),
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var listenErr error
	select {
	case <-quit:
		logger.Info("shutting down server")
	case listenErr = <-serveErr:
		logger.WithError(listenErr).Error("server failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return listenErr
}
