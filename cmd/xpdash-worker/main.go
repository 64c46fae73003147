package main

import (
	"context"
	"errors"
	"os"
	"time"

	"xpdash/internal/adapters"
	"xpdash/internal/aggregate"
	"xpdash/internal/amqp"
	"xpdash/internal/backend"
	"xpdash/internal/cli"
	"xpdash/internal/log"
	"xpdash/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentWorker)
	logger.Info("Starting xpdash-worker")

	bc := cli.BackendConfig(logger, cfg)
	factory := backend.NewFactory(logger)

	storeRes := cli.InitStore(context.Background(), logger, factory, bc)
	defer func() {
		if err := storeRes.Cleanup(); err != nil {
			logger.Error("Failed to close snapshot store", log.FieldError, err)
		}
	}()

	exporter, err := factory.CreateExporter(context.Background(), bc)
	if err != nil {
		logger.Error("Failed to initialize progress exporter", log.FieldError, err, "backend", bc.Export.String())
		os.Exit(1)
	}

	exportWorker := worker.NewExportWorker(
		storeRes.Store,
		adapters.NewProgressAdapter(exporter, aggregate.New(cfg.Location())),
		logger,
		cfg.SyncBatchSize,
	)
	sweeper := worker.NewSweeper(exportWorker, worker.SweeperConfig{PollInterval: cfg.SyncInterval}, logger)

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
	} else {
		logger.Info("No AMQP_URL provided, relying on the periodic sweep only")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := sweeper.Stop(ctx); err != nil {
			logger.Warn("Sweeper stop failed", log.FieldError, err)
		}
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
	})

	// Exports missed while the worker was down.
	logger.Info("Performing startup sync check...")
	if err := exportWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", log.FieldError, err)
	}

	if err := sweeper.Start(ctx); err != nil {
		logger.Error("Failed to start sweeper", log.FieldError, err)
		os.Exit(1)
	}

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeSnapshotSync(ctx, exportWorker.HandleSyncMessage)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
