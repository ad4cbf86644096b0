/*
main.go - Application entry point

PURPOSE:
  Command-line front end for the accountability engine. Serves the HTTP API
  and runs one-shot reconciliation and rules commands against the same
  SQLite database.

COMMANDS:
  serve                          HTTP server (+ optional scheduler)
  reconcile daily   [--date]     Daily reconciliation for one date
  reconcile weekly  [--week-start] Weekly reconciliation for one week
  rules status                   Rules grouped by frequency
  rules modify NAME PERCENT      Set a rule modifier
  rules reset NAME               Clear a rule modifier

GLOBAL FLAGS:
  --config   TOML config file (default: built-in defaults)
  --port     HTTP server port, overrides [server].port
  --db       SQLite database path, overrides [database].path
             Use ":memory:" for in-memory database

EXAMPLES:
  # Serve with a config file
  ./accountability serve --config=./accountability.toml

  # Re-run yesterday
  ./accountability reconcile daily --date=2025-03-11 --force

  # Bump a bonus by 20%
  ./accountability rules modify lifting_bonus_amount 20 --reason="streak"

SEE ALSO:
  - config/config.go: Config file layout and defaults
  - app/app.go: Dependency wiring
  - api/server.go: Router configuration
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/warp/accountability-engine/app"
	"github.com/warp/accountability-engine/config"
	"github.com/warp/accountability-engine/store/sqlite"
)

var rootCmd = &cobra.Command{
	Use:   "accountability",
	Short: "Personal accountability engine",
	Long: `Reconciles workouts, earnings and habits against a rules table:
interest on debt, bonuses for good days, and escalating punishments for
missed weekly minimums.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to TOML config file")
	rootCmd.PersistentFlags().Int("port", 0, "HTTP server port (overrides config)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads --config and applies the flag overrides on top.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("db") {
		cfg.Database.Path, _ = cmd.Flags().GetString("db")
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// openApp loads config, opens the database and wires the engines. The
// returned close function releases the database.
func openApp(cmd *cobra.Command) (*app.App, func() error, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	db, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
	}
	return app.New(cfg, db, app.Options{}), db.Close, nil
}
