// Package app wires the engine, its collaborators and the query API
// into a runnable host process.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"workflow-engine/internal/common/logging"
	"workflow-engine/internal/config"
	"workflow-engine/internal/handlers"
	"workflow-engine/internal/lineage"
	"workflow-engine/internal/notify"
	"workflow-engine/internal/pipeline/stages"
	"workflow-engine/internal/server"
	"workflow-engine/internal/storage"
	"workflow-engine/internal/workflow"
)

// Run boots the host process and blocks until SIGINT or SIGTERM.
func Run() error {
	// .env is optional; environment variables win either way.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.NewZapLogger(logging.LogConfig{Level: logging.ParseLevel(cfg.LogLevel)})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	tracker, err := lineage.NewSQLiteTracker(cfg.LineageDBPath)
	if err != nil {
		return fmt.Errorf("failed to open lineage store: %w", err)
	}
	defer tracker.Close()

	var store storage.Store
	if cfg.StorageDBPath != "" {
		store, err = storage.NewSQLiteStore(cfg.StorageDBPath)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
	} else {
		store = storage.NewMemoryStore()
	}
	defer store.Close()

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.RedisAddress != "" {
		redisNotifier, err := notify.NewRedisNotifier(notify.RedisConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return fmt.Errorf("failed to connect notification channel: %w", err)
		}
		defer redisNotifier.Close()
		notifier = redisNotifier
	}

	engine := workflow.NewEngine(
		workflow.WithLogger(logger),
		workflow.WithStageRegistry(stages.NewDefaultRegistry()),
		workflow.WithLineage(tracker),
		workflow.WithStorage(store),
		workflow.WithNotifier(notifier),
		workflow.WithMaxHistory(cfg.MaxHistoryPerWorkflow),
	)
	defer engine.Stop()

	srv := server.New(handlers.New(engine, logger).Routes(), cfg.Port)
	srv.Start()
	logger.Info("workflow engine started",
		logging.Field{Key: "port", Value: cfg.Port},
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", err)
	}

	return nil
}
