/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the CRM Engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from the environment
  2. Build the zap logger
  3. Open the database and run migrations
  4. Seed bootstrap users if the database is empty
  5. Wire handler, auth and router
  6. Start the overdue scheduler
  7. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  CRM_DB_PATH=./data/crm.db ./server

  # Run with in-memory database on another port
  CRM_DB_PATH=":memory:" CRM_PORT=3000 ./server

SEE ALSO:
  - config/config.go: environment variables
  - api/server.go: Router configuration
  - store/gormdb/store.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/crm-engine/api"
	"github.com/warp/crm-engine/config"
	"github.com/warp/crm-engine/store/gormdb"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// Initialize store
	store, err := gormdb.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	if err := api.EnsureSeedUsers(context.Background(), store, logger); err != nil {
		logger.Fatal("failed to seed users", zap.Error(err))
	}

	// Wire handlers and auth
	handler := api.NewHandler(store, logger)
	auth := api.NewAuth(store, cfg.JWTSecret, cfg.JWTTTL, logger)
	router := api.NewRouter(handler, auth)

	// Background overdue sweep
	scheduler := api.NewOverdueScheduler(handler.Accounting, logger)
	scheduler.Enabled = cfg.SchedulerEnabled
	scheduler.CheckInterval = cfg.SchedulerInterval
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			zap.String("addr", fmt.Sprintf("http://localhost:%d", cfg.Port)),
			zap.String("api", fmt.Sprintf("http://localhost:%d/api", cfg.Port)))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

// buildLogger maps the configured level onto a production zap logger.
func buildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg.Level = lvl
	return cfg.Build()
}
