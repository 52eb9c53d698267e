package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/amqp"
	"bilancio/internal/backend"
	"bilancio/internal/cli"
	applog "bilancio/internal/log"
	"bilancio/internal/services"
	"bilancio/internal/worker"
)

func main() {
	cfg := cli.MustLoadConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)
	ctx := context.Background()

	logger.InfoContext(ctx, "Starting bilancio-worker")

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.ErrorContext(ctx, "Invalid backend configuration", applog.FieldError, err.Error())
		os.Exit(1)
	}
	factory := backend.NewFactory(logger)
	result, err := factory.CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize backend", applog.FieldError, err.Error())
		os.Exit(1)
	}
	defer result.Cleanup()

	mirror, err := factory.CreateMirror(ctx, backendCfg)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize spreadsheet mirror", applog.FieldError, err.Error())
		os.Exit(1)
	}

	reconciler := services.NewReconciler(result.Store, services.ReconcilerConfig{
		Interval: cfg.SyncInterval,
		Repair:   cfg.ReconcileRepair,
	})
	eventWorker := worker.NewEventWorker(result.Store, mirror, reconciler)

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to initialize AMQP client", applog.FieldError, err.Error())
			os.Exit(1)
		}
		defer amqpClient.Close()
	} else {
		logger.InfoContext(ctx, "Skipping AMQP message consumption - no AMQP_URL provided")
	}

	runCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := reconciler.Stop(shutdownCtx); err != nil {
			logger.WarnContext(shutdownCtx, "Reconciler did not stop cleanly", applog.FieldError, err.Error())
		}
	})

	// A failed startup sync is retried by the next deliveries and is not
	// fatal.
	if err := eventWorker.StartupSync(runCtx); err != nil {
		logger.ErrorContext(runCtx, "Startup sync failed", applog.FieldError, err.Error())
	}

	if err := reconciler.Start(runCtx); err != nil {
		logger.ErrorContext(runCtx, "Failed to start reconciler", applog.FieldError, err.Error())
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(runCtx)
	if amqpClient != nil {
		g.Go(func() error {
			return amqpClient.Consume(gctx, eventWorker.HandleMessage)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.ErrorContext(ctx, "Message consumption failed", applog.FieldError, err.Error())
		stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_ = reconciler.Stop(stopCtx)
		cancel()
		os.Exit(1)
	}

	cli.WaitForShutdown(runCtx, done)
}
