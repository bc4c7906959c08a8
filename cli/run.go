package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/optsim/ledger"
	"github.com/rustyeddy/optsim/live"
	"github.com/rustyeddy/optsim/market"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Paper trade the engine against replayed historical bars",
	Long: `Run drives the live polling engine from a historical bar file, one bar
per tick. Positions persist to the configured ledger, so a stopped run
resumes with its open positions and balance intact.

Example:
  optsim run --data data/spy.csv.xz --db ./optsim.db`,
	RunE: runLive,
}

var (
	runDataPath   string
	runUnderlying string
	runDBPath     string
	runRealtime   bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runDataPath, "data", "d", "", "path to bar CSV, optionally .xz compressed (required)")
	runCmd.Flags().StringVarP(&runUnderlying, "underlying", "u", "", "underlying symbol (default: derived from file name)")
	runCmd.Flags().StringVar(&runDBPath, "db", "", "path to SQLite ledger DB (overrides config)")
	runCmd.Flags().BoolVar(&runRealtime, "realtime", false, "wait the configured tick interval between bars")

	runCmd.MarkFlagRequired("data")
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runDBPath != "" {
		cfg.Ledger.Type = "sqlite"
		cfg.Ledger.DBPath = runDBPath
	}

	series, err := market.LoadCSV(runDataPath, runUnderlying)
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	acct, err := ledger.NewAccount(cfg.Account.StrategyID, cfg.Account.Balance, store)
	if err != nil {
		return fmt.Errorf("open account: %w", err)
	}

	opts, err := cfg.Live.Options()
	if err != nil {
		return err
	}
	if opts.Underlying == "" || runUnderlying != "" {
		opts.Underlying = series.Underlying
	}

	src := live.NewReplaySource(series, cfg.Backtest.Lookback)
	eng := live.NewEngine(opts, acct, src, src)
	eng.Costs = cfg.Execution.Costs()
	eng.Rules = cfg.Exit.Rules()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Paper trading %s (%d bars), balance $%s\n\n",
		series.Underlying, series.Len(), acct.Balance().StringFixed(2))

	ticker := newBarTicker(runRealtime, opts.Interval)
	defer ticker.Stop()

	for {
		at, ok := src.Next()
		if !ok {
			break
		}
		select {
		case <-ctx.Done():
			fmt.Println("\nInterrupted; ledger state is durable, rerun to resume.")
			return nil
		case <-ticker.C():
		}
		if err := eng.Tick(ctx, at); err != nil {
			return fmt.Errorf("run: %w", err)
		}
	}

	fmt.Printf("\nRun complete\n")
	fmt.Printf("  Balance: $%s\n", acct.Balance().StringFixed(2))
	fmt.Printf("  Realized P/L: $%s\n", acct.Realized().StringFixed(2))
	fmt.Printf("  Open positions: %d\n", len(acct.OpenPositions()))
	return nil
}
