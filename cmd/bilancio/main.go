package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/backend"
	"bilancio/internal/cli"
	apphttp "bilancio/internal/http"
	applog "bilancio/internal/log"
	"bilancio/internal/notify"
	"bilancio/internal/services"
)

func main() {
	cfg := cli.MustLoadConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentApp)
	ctx := context.Background()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.ErrorContext(ctx, "Invalid backend configuration", applog.FieldError, err.Error())
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize backend", applog.FieldError, err.Error(), "backend", cfg.DataBackend)
		os.Exit(1)
	}

	hub := notify.NewHub(cfg.CORSOrigins)
	publishers := []services.EventPublisher{hub}

	// Events go to the worker only when a broker is configured; the API
	// works without one.
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to initialize AMQP client", applog.FieldError, err.Error())
			os.Exit(1)
		}
		publishers = append(publishers, amqpClient)
		logger.InfoContext(ctx, "AMQP publishing enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.InfoContext(ctx, "AMQP disabled - no AMQP_URL provided")
	}

	// The service owns the store and the AMQP client from here on.
	svc := services.NewLedgerService(result.Store, publishers...)

	srv := apphttp.NewServer(":"+cfg.Port, svc, hub, apphttp.Options{
		CORSOrigins:        cfg.CORSOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             logger,
	})
	srv.MaxHeaderBytes = 1 << 16

	runCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.ErrorContext(shutdownCtx, "Server shutdown error", applog.FieldError, err.Error())
		}
		if err := svc.Close(); err != nil {
			logger.ErrorContext(shutdownCtx, "Failed to close ledger service", applog.FieldError, err.Error())
		}
	})
	go hub.Run(runCtx)

	logger.InfoContext(ctx, "Starting bilancio server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.ErrorContext(ctx, "Server error", applog.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(runCtx, done)
}
