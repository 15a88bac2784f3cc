package main

import (
	"context"
	"os"
	"time"

	"kudi/internal/amqp"
	"kudi/internal/backend"
	"kudi/internal/cli"
	"kudi/internal/remote"
	"kudi/internal/syncer"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting kudi-syncd", "remote_backend", cfg.RemoteBackend)

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// AMQP triggers make flushes prompt; the periodic sweep below catches
	// anything a lost trigger missed.
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		go func() {
			handler := func(msg *amqp.SyncTriggerMessage) error {
				err := executor.FlushQueue(ctx, msg.UserID)
				if err == syncer.ErrFlushInFlight {
					return nil
				}
				return err
			}
			if err := amqpClient.ConsumeSyncTriggers(ctx, handler); err != nil {
				if err != context.Canceled {
					logger.Error("Message consumption failed", "error", err)
				}
				cancel()
			}
		}()
	} else {
		logger.Info("AMQP disabled - relying on periodic sweep only")
	}

	// Startup sweep: drain anything left over from before the last shutdown.
	if err := executor.FlushAll(ctx); err != nil {
		logger.Error("Startup flush failed", "error", err)
	}

	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := executor.FlushAll(ctx); err != nil {
					logger.Error("Periodic flush failed", "error", err)
				}
			}
		}
	}()

	_, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		cancel()
	})

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
