package report

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/optsim/backtest"
	"github.com/rustyeddy/optsim/ledger"
)

func sampleSummary() *backtest.Summary {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := &ledger.Outcome{
		ExitTime: t0.AddDate(0, 0, 25),
		PnL:      ledger.Cents(64.35),
		PnLPct:   0.26,
	}
	return &backtest.Summary{
		Start: t0,
		End:   t0.AddDate(0, 0, 60),
		Periods: []*backtest.Period{
			{
				Index:        0,
				TestStart:    t0.AddDate(0, 0, 20),
				TestEnd:      t0.AddDate(0, 0, 30),
				Trades:       1,
				Wins:         1,
				WinRate:      1,
				TotalReturn:  0.0064,
				Sharpe:       0,
				ProfitFactor: backtest.Ratio(math.Inf(1)),
				Outcomes:     []*ledger.Outcome{out},
			},
			{
				Index:      1,
				TestStart:  t0.AddDate(0, 0, 30),
				Skipped:    true,
				SkipReason: "only 2 bars in test window (need 5)",
			},
		},
		Skipped:        1,
		TotalTrades:    1,
		TotalWins:      1,
		OverallWinRate: 1,
		TotalReturn:    0.0064,
		ProfitFactor:   backtest.Ratio(math.Inf(1)),
		Consistency:    1,
	}
}

func TestWriteJSONIsValidDespiteInf(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, WriteJSON(sampleSummary(), dir))

	b, err := os.ReadFile(filepath.Join(dir, "results.json"))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Nil(t, decoded["profit_factor"]) // +Inf encodes as null
	assert.Equal(t, float64(1), decoded["total_trades"])
}

func TestWriteSummaryMentionsSkippedPeriods(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(sampleSummary(), &buf))

	s := buf.String()
	assert.Contains(t, s, "skipped: only 2 bars")
	assert.Contains(t, s, "profit factor")
	assert.Contains(t, s, "inf")
	assert.Contains(t, s, "consistency")
}

func TestWriteEquityChart(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, WriteEquityChart(sampleSummary(), 10000, dir))

	b, err := os.ReadFile(filepath.Join(dir, "equity.html"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "echarts")
}

func TestWriteEquityChartNoTrades(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sum := &backtest.Summary{}
	require.NoError(t, WriteEquityChart(sum, 10000, dir))

	_, err := os.Stat(filepath.Join(dir, "equity.html"))
	assert.True(t, os.IsNotExist(err))
}
