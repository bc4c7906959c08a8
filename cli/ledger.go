package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/optsim/ledger"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Query the trade ledger",
	Long: `Query and display ledger records from the SQLite database.

Subcommands:
  open     - List open positions
  outcomes - List closed trades with exit reasons and P/L
  history  - Show the append-only cash entry chain

Examples:
  optsim ledger open --db ./optsim.db --strategy momentum-001
  optsim ledger outcomes
  optsim ledger history`,
}

var ledgerOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "List open positions",
	Args:  cobra.NoArgs,
	RunE:  runLedgerOpen,
}

var ledgerOutcomesCmd = &cobra.Command{
	Use:   "outcomes",
	Short: "List closed trades",
	Args:  cobra.NoArgs,
	RunE:  runLedgerOutcomes,
}

var ledgerHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the cash entry chain",
	Args:  cobra.NoArgs,
	RunE:  runLedgerHistory,
}

var (
	ledgerDBPath   string
	ledgerStrategy string
)

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerOpenCmd)
	ledgerCmd.AddCommand(ledgerOutcomesCmd)
	ledgerCmd.AddCommand(ledgerHistoryCmd)

	ledgerCmd.PersistentFlags().StringVarP(&ledgerDBPath, "db", "d", "./optsim.db", "path to SQLite ledger DB")
	ledgerCmd.PersistentFlags().StringVarP(&ledgerStrategy, "strategy", "s", "", "strategy ID (default: from config)")
}

func openLedger() (*ledger.SQLiteStore, string, error) {
	strategy := ledgerStrategy
	if strategy == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, "", err
		}
		strategy = cfg.Account.StrategyID
	}

	store, err := ledger.NewSQLite(ledgerDBPath)
	if err != nil {
		return nil, "", fmt.Errorf("open db: %w", err)
	}
	return store, strategy, nil
}

func runLedgerOpen(cmd *cobra.Command, args []string) error {
	store, strategy, err := openLedger()
	if err != nil {
		return err
	}
	defer store.Close()

	positions, err := store.OpenPositions(strategy)
	if err != nil {
		return fmt.Errorf("query positions: %w", err)
	}
	if len(positions) == 0 {
		fmt.Println("no open positions")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCONTRACT\tQTY\tENTRY\tCOST\tTARGET\tSTOP\tOPENED")
	for _, p := range positions {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%s\t%.2f\t%.2f\t%s\n",
			p.ID, p.Contract.String(), p.Contracts, p.EntryPrice,
			p.EntryCost.StringFixed(2), p.Target, p.Stop,
			p.EntryTime.Format("2006-01-02"))
	}
	return tw.Flush()
}

func runLedgerOutcomes(cmd *cobra.Command, args []string) error {
	store, strategy, err := openLedger()
	if err != nil {
		return err
	}
	defer store.Close()

	outcomes, err := store.Outcomes(strategy)
	if err != nil {
		return fmt.Errorf("query outcomes: %w", err)
	}
	if len(outcomes) == 0 {
		fmt.Println("no closed trades")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCONTRACT\tQTY\tENTRY\tEXIT\tREASON\tDAYS\tP/L\tP/L%")
	wins := 0
	for _, o := range outcomes {
		if o.Win() {
			wins++
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%.2f\t%s\t%.1f\t%s\t%.1f\n",
			o.ID, o.Contract.String(), o.Contracts, o.EntryPrice,
			o.ExitPrice, o.ExitReason, o.DaysHeld,
			o.PnL.StringFixed(2), o.PnLPct*100)
	}
	fmt.Fprintf(tw, "\n%d trades, %d wins\n", len(outcomes), wins)
	return tw.Flush()
}

func runLedgerHistory(cmd *cobra.Command, args []string) error {
	store, strategy, err := openLedger()
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.History(strategy)
	if err != nil {
		return fmt.Errorf("query history: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("no ledger entries")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tPOSITION\tAMOUNT\tBALANCE\tDETAIL")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Time.Format("2006-01-02 15:04"), e.Action, e.PositionID,
			e.Amount.StringFixed(2), e.BalanceAfter.StringFixed(2), e.Detail)
	}
	return tw.Flush()
}
