package backtest

import (
	"math"
	"time"
)

// Summary aggregates every completed period of a walk-forward run.
type Summary struct {
	Start   time.Time     `json:"start"`
	End     time.Time     `json:"end"`
	Elapsed time.Duration `json:"-"`

	Periods []*Period `json:"periods"`
	Skipped int       `json:"skipped_periods"`

	TotalTrades    int     `json:"total_trades"`
	TotalWins      int     `json:"total_wins"`
	OverallWinRate float64 `json:"overall_win_rate"`
	TotalReturn    float64 `json:"total_return"`
	ProfitFactor   Ratio   `json:"profit_factor"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	Consistency    float64 `json:"consistency"`

	TimedOut bool `json:"timed_out,omitempty"`
}

// summarize folds completed periods into the aggregate. Skipped periods are
// reported but excluded from every metric; slots left nil by a timeout are
// dropped entirely.
func (h *Harness) summarize(periods []*Period, start, end time.Time, elapsed time.Duration, timedOut bool) *Summary {
	s := &Summary{Start: start, End: end, Elapsed: elapsed, TimedOut: timedOut}

	var (
		grossWin, grossLoss float64
		periodReturns       []float64
	)

	for _, p := range periods {
		if p == nil {
			continue // window never ran before the deadline
		}
		s.Periods = append(s.Periods, p)
		if p.Skipped {
			s.Skipped++
			continue
		}

		s.TotalTrades += p.Trades
		s.TotalWins += p.Wins
		s.TotalReturn += p.TotalReturn
		if p.MaxDrawdown > s.MaxDrawdown {
			s.MaxDrawdown = p.MaxDrawdown
		}
		periodReturns = append(periodReturns, p.TotalReturn)

		for _, o := range p.Outcomes {
			pnl, _ := o.PnL.Float64()
			if pnl > 0 {
				grossWin += pnl
			} else {
				grossLoss += -pnl
			}
		}
	}

	if s.TotalTrades > 0 {
		s.OverallWinRate = float64(s.TotalWins) / float64(s.TotalTrades)
	}
	switch {
	case grossLoss > 0:
		s.ProfitFactor = Ratio(grossWin / grossLoss)
	case grossWin > 0:
		s.ProfitFactor = Ratio(math.Inf(1))
	}
	s.Consistency = consistencyScore(periodReturns)
	return s
}
