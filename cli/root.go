// Package cli wires the optsim commands.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/rustyeddy/optsim/config"
	"github.com/rustyeddy/optsim/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "optsim",
	Short: "A simulated options trading engine and walk-forward backtest harness",
	Long: `Optsim is a simulated options trading engine written in Go.

It provides tools for:
  - Walk-forward backtesting of directional options strategies
  - Premium approximation without a live options chain
  - Execution simulation with slippage and commissions
  - An append-only cash ledger with SQLite persistence
  - Paper trading against replayed historical bars

Complete documentation is available at https://github.com/rustyeddy/optsim`,
}

var (
	cfgPath  string
	logLevel string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	cobra.OnInitialize(func() {
		logger.SetLevel(logLevel)
	})
}

// loadConfig returns the file-backed config when --config was given, the
// defaults otherwise.
func loadConfig() (*config.Config, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(cfgPath)
}
