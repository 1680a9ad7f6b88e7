// Package cli provides common initialization shared by the bilancio
// binaries: env loading, logging, configuration, backend and session
// manager construction, and signal handling.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bilancio/internal/backend"
	"bilancio/internal/budget"
	"bilancio/internal/config"
	"bilancio/internal/core"
	"bilancio/internal/format"
	"bilancio/internal/log"
	"bilancio/internal/ports"
	gsheet "bilancio/internal/sheets/google"
	memsheet "bilancio/internal/sheets/memory"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger at LOG_LEVEL and makes it the slog
// default.
func SetupLogger(level string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// Bootstrap runs the common startup sequence: .env, configuration, logger.
// The logger is reconfigured once LOG_LEVEL is known.
func Bootstrap() (*config.Config, *log.Logger) {
	LoadEnvFile()
	logger := SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := LoadAndValidateConfig(logger)
	return cfg, SetupLogger(cfg.LogLevel)
}

// Summarizer applies the configured salary keywords.
func Summarizer(cfg *config.Config) core.Summarizer {
	return core.Summarizer{Salary: core.NewSalaryMatcher(cfg.SalaryKeywords...)}
}

// Formatter renders money in the configured locale.
func Formatter(cfg *config.Config) format.Formatter {
	return format.New(cfg.Locale, cfg.CurrencySymbol)
}

// Backend creates the configured backend.
func Backend(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger).CreateBackend(ctx, bcfg)
}

// OpenBackend is Backend for long-running processes.
// Returns the backend or exits the process on failure.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *log.Logger) *backend.BackendResult {
	res, err := Backend(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	logger.Info("Backend initialized", "backend", cfg.DataBackend)
	return res
}

// NewManager wires a session manager to an opened backend.
func NewManager(cfg *config.Config, res *backend.BackendResult, logger *log.Logger) *budget.Manager {
	return budget.NewManager(res.Directory, res.Store,
		budget.WithSummarizer(Summarizer(cfg)),
		budget.WithLogger(logger))
}

// Mirror returns the Google Sheets mirror when a spreadsheet is configured,
// and an in-memory dry-run mirror otherwise.
func Mirror(ctx context.Context, cfg *config.Config, logger *log.Logger) (ports.BudgetMirror, error) {
	if !cfg.MirrorEnabled() {
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, mirroring to memory only")
		return memsheet.New(cfg.MirrorSheetPrefix, Summarizer(cfg), logger), nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetPrefix:        cfg.MirrorSheetPrefix,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		Summarizer:         Summarizer(cfg),
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
