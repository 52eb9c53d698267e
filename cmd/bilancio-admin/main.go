// Command bilancio-admin runs maintenance tasks against the ledger store:
// schema migrations, budget reconciliation and terminal reports.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bilancio/internal/backend"
	"bilancio/internal/cli"
	"bilancio/internal/config"
	applog "bilancio/internal/log"
)

var (
	flagBackend string
	flagDSN     string
)

var rootCmd = &cobra.Command{
	Use:           "bilancio-admin",
	Short:         "Maintenance tasks for the bilancio ledger",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "Override DATA_BACKEND (memory, sqlite, postgres, mysql)")
	rootCmd.PersistentFlags().StringVar(&flagDSN, "dsn", "", "Override the sqlite path or DATABASE_URL")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig applies the command line overrides on top of the usual
// configuration layers.
func loadConfig() (*config.Config, *applog.Logger, error) {
	cli.LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if flagBackend != "" {
		cfg.DataBackend = flagBackend
	}
	if flagDSN != "" {
		if cfg.DataBackend == "sqlite" {
			cfg.SQLiteDBPath = flagDSN
		} else {
			cfg.DatabaseURL = flagDSN
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, cli.SetupLogger(cfg, applog.ComponentAdmin), nil
}

// openStore builds the configured store; callers must run the returned
// cleanup.
func openStore(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*backend.BackendResult, error) {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
}
