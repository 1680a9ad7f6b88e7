package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"bilancio/internal/backend"
	"bilancio/internal/budget"
	"bilancio/internal/cli"
	"bilancio/internal/config"
	"bilancio/internal/format"
	"bilancio/internal/log"
)

// app holds what every subcommand needs once the root has started.
type app struct {
	userID string
	dbPath string

	cfg     *config.Config
	logger  *log.Logger
	res     *backend.BackendResult
	manager *budget.Manager
	money   format.Formatter
}

// run executes one command line and releases the backend afterwards, also
// when the command fails.
func run(ctx context.Context, args []string, out, errOut io.Writer) error {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.close())
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "bilancioctl",
		Short: "Manage bilancio categories and monthly budgets",
		Long: `bilancioctl edits the same categories and budgets the bilancio server
serves. It reads the usual environment (.env included); --db switches to the
SQLite backend at the given path.

Examples:
  bilancioctl categories add Rent --kind expense
  bilancioctl budget set 3f0c... 800 --paid --month 2025-03
  bilancioctl budget show --month 2025-03`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip initialization for help commands
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			return a.open(cmd.Context())
		},
	}
	root.PersistentFlags().StringVarP(&a.userID, "user", "u", "", "user id (default DEFAULT_USER_ID)")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database path; selects the sqlite backend")

	root.AddCommand(newCategoriesCmd(a), newBudgetCmd(a))
	return root
}

func (a *app) open(ctx context.Context) error {
	cli.LoadEnvFile()
	cfg := config.Load()
	if a.dbPath != "" {
		cfg.DataBackend = string(backend.SQLiteBackend)
		cfg.SQLiteDBPath = a.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if a.userID == "" {
		a.userID = cfg.DefaultUserID
	}

	logCfg := log.DefaultConfig()
	logCfg.Level = log.ParseLevel(cfg.LogLevel)
	logCfg.Output = os.Stderr
	a.logger = log.New(logCfg)

	res, err := cli.Backend(ctx, cfg, a.logger)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.res = res
	a.manager = cli.NewManager(cfg, res, a.logger)
	a.money = cli.Formatter(cfg)
	return nil
}

func (a *app) close() error {
	var errs []error
	if a.manager != nil {
		errs = append(errs, a.manager.Close())
	}
	errs = append(errs, a.res.Close())
	a.manager, a.res = nil, nil
	return errors.Join(errs...)
}
