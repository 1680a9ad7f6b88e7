package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"bilancio/internal/cli"
	"bilancio/internal/config"
	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/tui"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()

	user := flag.String("user", cfg.DefaultUserID, "user whose budget to edit")
	month := flag.String("month", core.CurrentMonth().String(), "month to open (YYYY-MM)")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	m, err := core.ParseMonth(*month)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// The terminal belongs to the UI; logs go to a file when LOG_FILE is set.
	logCfg := log.DefaultConfig()
	logCfg.Level = log.ParseLevel(cfg.LogLevel)
	logCfg.Output = io.Discard
	if path := os.Getenv("LOG_FILE"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer f.Close()
		logCfg.Output = f
	}
	logger := log.New(logCfg)

	ctx := context.Background()
	res, err := cli.Backend(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open backend:", err)
		os.Exit(1)
	}
	manager := cli.NewManager(cfg, res, logger)

	session, err := manager.Session(*user)
	if err == nil {
		_, err = tea.NewProgram(tui.New(ctx, session, cli.Formatter(cfg), m), tea.WithAltScreen()).Run()
	}
	if cerr := errors.Join(manager.Close(), res.Close()); cerr != nil {
		logger.Error("Shutdown error", log.FieldError, cerr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
