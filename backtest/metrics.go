package backtest

import (
	"math"
	"strconv"
	"time"

	"github.com/rustyeddy/optsim/ledger"
)

// Ratio is a float64 that marshals +/-Inf as JSON null so a period with no
// losing trades (profit factor treated as +Inf) still produces a valid
// results artifact.
type Ratio float64

func (r Ratio) MarshalJSON() ([]byte, error) {
	f := float64(r)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

// Period is one walk-forward test-window result, immutable once computed.
type Period struct {
	Index      int       `json:"index"`
	TrainStart time.Time `json:"train_start"`
	TestStart  time.Time `json:"test_start"`
	TestEnd    time.Time `json:"test_end"`

	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	WinRate      float64 `json:"win_rate"`
	TotalReturn  float64 `json:"total_return"`  // realized P&L / initial balance
	MaxDrawdown  float64 `json:"max_drawdown"`  // peak-to-trough of cumulative P&L, in cash
	Sharpe       float64 `json:"sharpe"`        // mean/stddev of per-trade returns
	ProfitFactor Ratio   `json:"profit_factor"` // gross wins / gross losses

	Skipped    bool   `json:"skipped,omitempty"`
	SkipReason string `json:"skip_reason,omitempty"`

	Outcomes []*ledger.Outcome `json:"-"`
}

// computeMetrics fills in the metric fields of p from its outcomes. A period
// with zero trades reports every ratio as 0, never NaN.
func (p *Period) computeMetrics(initialBalance float64) {
	n := len(p.Outcomes)
	p.Trades = n
	if n == 0 {
		return
	}

	var (
		wins        int
		grossWin    float64
		grossLoss   float64
		totalPnL    float64
		cum, peak   float64
		maxDrawdown float64
	)
	returns := make([]float64, n)

	for i, o := range p.Outcomes {
		pnl, _ := o.PnL.Float64()
		totalPnL += pnl
		returns[i] = o.PnLPct

		if pnl > 0 {
			wins++
			grossWin += pnl
		} else {
			grossLoss += -pnl
		}

		cum += pnl
		if cum > peak {
			peak = cum
		}
		if dd := peak - cum; dd > maxDrawdown {
			maxDrawdown = dd
		}
	}

	p.Wins = wins
	p.WinRate = float64(wins) / float64(n)
	if initialBalance > 0 {
		p.TotalReturn = totalPnL / initialBalance
	}
	p.MaxDrawdown = maxDrawdown
	p.Sharpe = sharpeRatio(returns)

	switch {
	case grossLoss > 0:
		p.ProfitFactor = Ratio(grossWin / grossLoss)
	case grossWin > 0:
		p.ProfitFactor = Ratio(math.Inf(1))
	default:
		p.ProfitFactor = 0
	}
}

// sharpeRatio is mean over standard deviation of per-trade returns. One
// trade, or zero variance, yields 0.
func sharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)

	sd := math.Sqrt(variance)
	if sd == 0 {
		return 0
	}
	return mean / sd
}

const consistencyEps = 1e-9

// consistencyScore is a deliberately simple heuristic, not a standard
// statistical measure: 1 - variance(period returns) / (mean(|period
// returns|) + eps), clamped to [0,1]. Uniform period returns score near 1,
// wildly uneven ones near 0.
func consistencyScore(periodReturns []float64) float64 {
	if len(periodReturns) == 0 {
		return 0
	}

	mean := 0.0
	meanAbs := 0.0
	for _, r := range periodReturns {
		mean += r
		meanAbs += math.Abs(r)
	}
	mean /= float64(len(periodReturns))
	meanAbs /= float64(len(periodReturns))

	variance := 0.0
	for _, r := range periodReturns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(periodReturns))

	score := 1 - variance/(meanAbs+consistencyEps)
	return math.Max(0, math.Min(1, score))
}
