package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"subtrack/internal/cli"
	"subtrack/internal/events"
	apphttp "subtrack/internal/http"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	cat := cli.LoadCatalog(logger, cfg.CatalogFile)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	var publisher events.Publisher = events.Noop{}
	if cfg.EventsEnabled() {
		client := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		connectCtx, connectCancel := context.WithTimeout(ctx, 15*time.Second)
		if err := client.Connect(connectCtx, 3); err != nil {
			// the client reconnects on first publish
			logger.Warn("AMQP unavailable at startup, events will retry lazily", "error", err)
		} else {
			logger.Info("AMQP connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
		connectCancel()
		publisher = client
	} else {
		logger.Info("Dashboard events disabled - no AMQP_URL provided")
	}
	defer publisher.Close()

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Catalog:            cat,
		Currency:           cfg.Currency,
		SessionTTL:         cfg.SessionTTL,
		SessionMax:         cfg.SessionMax,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Publisher:          publisher,
		Logger:             logger,
	})
	if err != nil {
		logger.Error("Failed to build server", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting subtrack server",
			"port", cfg.Port,
			"subscriptions", cat.Len(),
			"currency", cfg.Currency,
			"events", cfg.EventsEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		logger.Info("Shutting down server", "timeout", cfg.ShutdownTimeout)
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
