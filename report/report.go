// Package report turns a walk-forward summary into its three output
// artifacts: a machine-readable results.json, a human-readable text summary
// and an equity-curve chart.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/rustyeddy/optsim/backtest"
	"github.com/rustyeddy/optsim/ledger"
)

// WriteJSON writes the machine-readable results artifact to
// outdir/results.json.
func WriteJSON(sum *backtest.Summary, outdir string) error {
	b, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	return os.WriteFile(filepath.Join(outdir, "results.json"), b, 0o644)
}

// WriteSummary renders the human-readable run summary to w.
func WriteSummary(sum *backtest.Summary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Walk-forward backtest %s .. %s (%d periods, %d skipped)\n\n",
		sum.Start.Format("2006-01-02"), sum.End.Format("2006-01-02"),
		len(sum.Periods), sum.Skipped)

	fmt.Fprintln(tw, "period\ttest window\ttrades\twin rate\treturn\tmax DD\tsharpe\tprofit factor")
	for _, p := range sum.Periods {
		if p.Skipped {
			fmt.Fprintf(tw, "%d\t%s\tskipped: %s\n",
				p.Index, p.TestStart.Format("2006-01-02"), p.SkipReason)
			continue
		}
		fmt.Fprintf(tw, "%d\t%s - %s\t%d\t%.1f%%\t%+.2f%%\t%.2f\t%.2f\t%s\n",
			p.Index,
			p.TestStart.Format("2006-01-02"), p.TestEnd.Format("2006-01-02"),
			p.Trades, p.WinRate*100, p.TotalReturn*100, p.MaxDrawdown,
			p.Sharpe, ratioString(float64(p.ProfitFactor)))
	}

	fmt.Fprintf(tw, "\ntotal trades\t%d\n", sum.TotalTrades)
	fmt.Fprintf(tw, "overall win rate\t%.1f%%\n", sum.OverallWinRate*100)
	fmt.Fprintf(tw, "total return\t%+.2f%%\n", sum.TotalReturn*100)
	fmt.Fprintf(tw, "max drawdown\t%.2f\n", sum.MaxDrawdown)
	fmt.Fprintf(tw, "profit factor\t%s\n", ratioString(float64(sum.ProfitFactor)))
	fmt.Fprintf(tw, "consistency\t%.3f\n", sum.Consistency)
	if sum.TimedOut {
		fmt.Fprintln(tw, "NOTE\trun hit its wall-clock limit; results cover completed periods only")
	}
	return tw.Flush()
}

func ratioString(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", f)
}

// equityCurve flattens every period's outcomes into a single exit-time
// ordered cumulative P&L series.
func equityCurve(sum *backtest.Summary, initialBalance float64) (dates []string, values []float64) {
	var outs []*ledger.Outcome
	for _, p := range sum.Periods {
		outs = append(outs, p.Outcomes...)
	}
	sort.Slice(outs, func(i, j int) bool { return outs[i].ExitTime.Before(outs[j].ExitTime) })

	cum := initialBalance
	for _, o := range outs {
		pnl, _ := o.PnL.Float64()
		cum += pnl
		dates = append(dates, o.ExitTime.Format("2006-01-02"))
		values = append(values, cum)
	}
	return dates, values
}
