package main

import (
	"context"
	"errors"
	"os"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/cli"
	"bilancio/internal/log"
	"bilancio/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap()
	logger = logger.WithComponent(log.ComponentWorker)
	logger.Info("Starting bilancio-worker")

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required by the mirror worker")
		os.Exit(1)
	}
	if cfg.DataBackend == "memory" {
		logger.Warn("Memory backend is private to this process; the worker will not see budgets saved by the server")
	}

	res := cli.OpenBackend(context.Background(), cfg, logger)

	sheets, err := cli.Mirror(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		_ = res.Close()
		os.Exit(1)
	}

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		_ = res.Close()
		os.Exit(1)
	}

	mirror := worker.NewMirrorWorker(res.Store, sheets, cfg.WorkerConcurrency, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := errors.Join(consumer.Close(), res.Close()); err != nil {
			logger.Error("Worker shutdown error", log.FieldError, err)
		}
	})

	// Catch up on saves that happened while the worker was down.
	if res.Months != nil {
		if n, err := mirror.Backfill(ctx, res.Months, cfg.DefaultUserID); err != nil {
			logger.Error("Startup mirror failed", log.FieldError, err)
		} else {
			logger.Info("Startup mirror done", "months", n)
		}
	}

	go func() {
		if err := consumer.ConsumeBudgetSaved(ctx, mirror.HandleBudgetSaved); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
