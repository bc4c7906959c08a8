package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/optsim/backtest"
	"github.com/rustyeddy/optsim/market"
	"github.com/rustyeddy/optsim/report"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a walk-forward backtest over historical bars",
	Long: `Backtest splits a historical bar series into rolling train/test windows,
generates signals from each training window and trades them through the
following test window with simulated fills and a fresh ledger per window.

The bar file is a CSV of date,open,high,low,close,volume rows; .xz
compressed files are decompressed transparently. The underlying symbol is
taken from the file name unless --underlying is given.

Example:
  optsim backtest --data data/spy.csv.xz --train 90 --test 30 --out ./results`,
	RunE: runBacktest,
}

var (
	btDataPath   string
	btUnderlying string
	btStart      string
	btEnd        string
	btTrain      int
	btTest       int
	btLookback   int
	btBalance    float64
	btOutDir     string
	btSequential bool
	btTimeout    time.Duration
	btNoChart    bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btDataPath, "data", "d", "", "path to bar CSV, optionally .xz compressed (required)")
	backtestCmd.Flags().StringVarP(&btUnderlying, "underlying", "u", "", "underlying symbol (default: derived from file name)")
	backtestCmd.Flags().StringVar(&btStart, "start", "", "first test date, YYYY-MM-DD (default: series start)")
	backtestCmd.Flags().StringVar(&btEnd, "end", "", "last test date, YYYY-MM-DD (default: series end)")
	backtestCmd.Flags().IntVar(&btTrain, "train", 0, "training window in days (overrides config)")
	backtestCmd.Flags().IntVar(&btTest, "test", 0, "testing window in days (overrides config)")
	backtestCmd.Flags().IntVar(&btLookback, "lookback", 0, "momentum SMA lookback in bars (overrides config)")
	backtestCmd.Flags().Float64VarP(&btBalance, "balance", "b", 0, "per-window starting balance (overrides config)")
	backtestCmd.Flags().StringVarP(&btOutDir, "out", "o", "", "output directory (overrides config)")
	backtestCmd.Flags().BoolVar(&btSequential, "sequential", false, "evaluate windows one at a time")
	backtestCmd.Flags().DurationVar(&btTimeout, "timeout", 0, "wall-clock limit, partial results past it (overrides config)")
	backtestCmd.Flags().BoolVar(&btNoChart, "no-chart", false, "skip the equity curve HTML")

	backtestCmd.MarkFlagRequired("data")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	series, err := market.LoadCSV(btDataPath, btUnderlying)
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}

	start, end, err := parseRange(btStart, btEnd)
	if err != nil {
		return err
	}

	if btTrain > 0 {
		cfg.Backtest.TrainDays = btTrain
	}
	if btTest > 0 {
		cfg.Backtest.TestDays = btTest
	}
	if btLookback > 0 {
		cfg.Backtest.Lookback = btLookback
	}
	if btBalance > 0 {
		cfg.Account.Balance = btBalance
	}
	if btOutDir != "" {
		cfg.Report.OutDir = btOutDir
	}
	if btNoChart {
		cfg.Report.Chart = false
	}

	params, err := cfg.Params()
	if err != nil {
		return err
	}
	if btSequential {
		params.Parallel = false
	}
	if btTimeout > 0 {
		params.Timeout = btTimeout
	}

	h := backtest.New(params, backtest.MomentumSignal(cfg.Backtest.Lookback))
	h.Costs = cfg.Execution.Costs()
	h.Rules = cfg.Exit.Rules()

	fmt.Printf("Running walk-forward backtest\n")
	fmt.Printf("  Bars: %s (%d bars, %s .. %s)\n", btDataPath, series.Len(),
		series.Start().Format("2006-01-02"), series.End().Format("2006-01-02"))
	fmt.Printf("  Windows: %dd train / %dd test\n\n", params.TrainDays, params.TestDays)

	sum, err := h.Run(cmd.Context(), series, start, end)
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	if err := os.MkdirAll(cfg.Report.OutDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := report.WriteJSON(sum, cfg.Report.OutDir); err != nil {
		return err
	}
	if cfg.Report.Chart {
		if err := report.WriteEquityChart(sum, params.InitialBalance, cfg.Report.OutDir); err != nil {
			return err
		}
	}

	return report.WriteSummary(sum, os.Stdout)
}

func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if startStr != "" {
		start, err = time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad --start: %w", err)
		}
	}
	if endStr != "" {
		end, err = time.Parse("2006-01-02", endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("bad --end: %w", err)
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("--end before --start")
	}
	return start, end, nil
}
