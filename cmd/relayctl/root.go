package main

import (
	"fmt"

	"signal-relay-go/internal/config"
	"signal-relay-go/internal/database"
	"signal-relay-go/internal/store"

	"github.com/spf13/cobra"
)

// app carries what every subcommand needs. open is swapped in tests.
type app struct {
	configDir string
	open      func(cfg config.Database) (store.Store, func(), error)
}

func newApp() *app {
	return &app{configDir: "./configs", open: openGormStore}
}

func openGormStore(cfg config.Database) (store.Store, func(), error) {
	db, err := database.NewDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	return store.NewGormStore(db), func() { _ = database.Close(db) }, nil
}

// store loads the configuration and opens the journal.
func (a *app) store() (store.Store, func(), error) {
	cfg, err := config.LoadConfig(a.configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.RequireDatabase(); err != nil {
		return nil, nil, err
	}
	st, closeFn, err := a.open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return st, closeFn, nil
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relayctl",
		Short: "Inspect and maintain the signal relay journal",
		Long: `relayctl works directly on the relay database.

Subcommands:
  pnl     - Realized profit per instrument
  tokens  - List, set or delete per-instrument USDT allocations
  data    - Purge or seed the transaction journal

Examples:
  relayctl pnl --name AAAA
  relayctl tokens set AAAA 250
  relayctl data purge --name all`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&a.configDir, "config", "c", a.configDir, "directory holding config.yml")

	cmd.AddCommand(
		newPnLCmd(a),
		newTokensCmd(a),
		newDataCmd(a),
	)
	return cmd
}
