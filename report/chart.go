package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/rustyeddy/optsim/backtest"
)

// WriteEquityChart renders the cumulative equity curve of the run as a
// standalone HTML file at outdir/equity.html. A run with no closed trades
// writes nothing and returns nil.
func WriteEquityChart(sum *backtest.Summary, initialBalance float64, outdir string) error {
	dates, values := equityCurve(sum, initialBalance)
	if len(values) == 0 {
		return nil
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: "Equity curve",
			Subtitle: fmt.Sprintf("%s .. %s, %d trades",
				sum.Start.Format("2006-01-02"), sum.End.Format("2006-01-02"), sum.TotalTrades),
		}),
		charts.WithInitializationOpts(opts.Initialization{Width: "1100px", Height: "520px"}),
	)

	points := make([]opts.LineData, len(values))
	for i, v := range values {
		points[i] = opts.LineData{Value: v}
	}
	line.SetXAxis(dates).AddSeries("equity", points)

	f, err := os.Create(filepath.Join(outdir, "equity.html"))
	if err != nil {
		return fmt.Errorf("create equity chart: %w", err)
	}
	defer f.Close()
	return line.Render(f)
}
