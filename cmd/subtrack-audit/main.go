package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"subtrack/internal/cli"
	"subtrack/internal/events"
	"subtrack/internal/worker"
)

const (
	summaryInterval = time.Minute
	idleViewTimeout = 2 * time.Hour
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting subtrack-audit")

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.EventsEnabled() {
		logger.Error("AMQP_URL is required for the audit consumer")
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	client := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	defer client.Close()
	if err := client.Connect(ctx, 5); err != nil {
		logger.Error("Failed to connect to AMQP", "error", err)
		os.Exit(1)
	}

	audit := worker.NewAuditWorker(logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.Consume(gctx, audit.HandleEvent)
	})
	g.Go(func() error {
		audit.Run(gctx, summaryInterval, idleViewTimeout)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}
	s := audit.Summary()
	logger.Info("Audit consumer stopped", "active_views", s.ActiveViews, "ended_views", s.Ended)
}
