package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"bilancio/internal/cli"
	apphttp "bilancio/internal/http"
	"bilancio/internal/log"
)

func main() {
	cfg, logger := cli.Bootstrap()

	res := cli.OpenBackend(context.Background(), cfg, logger)
	manager := cli.NewManager(cfg, res, logger)

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Manager:            manager,
		Directory:          res.Directory,
		Ready:              res.Ready,
		Formatter:          cli.Formatter(cfg),
		DefaultUserID:      cfg.DefaultUserID,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	if err != nil {
		logger.Error("Failed to create HTTP server", log.FieldError, err)
		_ = res.Close()
		os.Exit(1)
	}

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := errors.Join(manager.Close(), res.Close()); err != nil {
			logger.Error("Backend shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting bilancio server", "port", cfg.Port, "backend", cfg.DataBackend,
		"default_user", cfg.DefaultUserID, "amqp", cfg.AMQPEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		_ = res.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
