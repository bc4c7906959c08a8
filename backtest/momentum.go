package backtest

import (
	"math"

	"github.com/rustyeddy/optsim/market"
)

// MomentumSignal returns a simple built-in signal generator: BUY when the
// latest close sits above its moving-average baseline, SELL below, with
// confidence growing with the distance from the baseline relative to recent
// volatility. Real deployments plug in external generators; this one exists
// so the harness and CLI run end to end without them.
func MomentumSignal(lookback int) SignalFunc {
	return func(history []market.Bar) market.Signal {
		if len(history) < lookback+1 {
			return market.Signal{Direction: market.Hold}
		}

		closes := market.Closes(history)
		baseline := market.TrendBaseline(closes, lookback)
		last := closes[len(closes)-1]
		if baseline <= 0 || last <= 0 {
			return market.Signal{Direction: market.Hold}
		}

		dev := last/baseline - 1
		vol := market.AnnualizedVol(closes[len(closes)-lookback-1:])
		if vol <= 0 {
			return market.Signal{Direction: market.Hold}
		}

		// Deviation measured in fractions of a one-month vol move.
		monthlyVol := vol / math.Sqrt(12)
		conf := math.Min(1, math.Abs(dev)/monthlyVol)

		dir := market.Buy
		if dev < 0 {
			dir = market.Sell
		}
		return market.Signal{
			Direction:       dir,
			Confidence:      conf,
			ExpectedMovePct: math.Abs(dev) * 100,
			SignalsUsed:     []string{"momentum"},
		}
	}
}
