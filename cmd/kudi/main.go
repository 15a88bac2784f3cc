package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"kudi/internal/amqp"
	"kudi/internal/backend"
	"kudi/internal/cli"
	"kudi/internal/core"
	apphttp "kudi/internal/http"
	"kudi/internal/project"
	"kudi/internal/remote"
	"kudi/internal/services"
	"kudi/internal/state"
	"kudi/internal/syncer"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting kudi", "port", cfg.Port, "remote_backend", cfg.RemoteBackend)

	queueStore := cli.OpenQueue(logger, cfg.SQLiteDBPath)
	defer queueStore.Close()

	remoteStore, cleanup, err := backend.New(context.Background(), remote.Config{
		Type:        remote.BackendType(cfg.RemoteBackend),
		PostgresDSN: cfg.PostgresDSN,
	})
	if err != nil {
		logger.Error("Failed to initialize remote backend", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	executor := syncer.New(queueStore, remoteStore, syncer.Config{
		MaxAttempts:      cfg.SyncMaxAttempts,
		AttemptTimeout:   cfg.SyncAttemptTimeout,
		FlushConcurrency: cfg.FlushConcurrency,
	})

	// The projection rebuilds by replaying the durable queue, so evicting a
	// user's state never loses anything.
	rebuild := func(userID string) (*core.BudgetState, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		recs, err := queueStore.List(ctx, userID)
		if err != nil {
			return nil, err
		}
		return project.Replay(nil, recs)
	}
	states := state.NewManager(cfg.StateCacheSize, cfg.StateCacheTTL, rebuild)

	// AMQP is optional: without a broker the API still flushes in-process.
	var publisher services.TriggerPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("AMQP sync triggers enabled, sync worker owns queue draining",
			"exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - flushing in-process")
	}

	service := services.NewBudgetService(queueStore, states, executor, publisher)
	materializer := services.NewMaterializer(service)

	srv := apphttp.NewServer(":"+cfg.Port, service, queueStore, executor, materializer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go materializer.Run(ctx, cfg.MaterializeInterval)

	_, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	})

	logger.Info("Starting kudi server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
