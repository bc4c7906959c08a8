// Package exit decides, per open position and per price snapshot, whether
// the position stays open or closes, and why. It is a small state machine:
//
//	OPEN -> {PROFIT_TARGET | STOP_LOSS | TIME_DECAY | MAX_HOLD_TIME} -> CLOSED
//
// CLOSED is terminal; no position re-opens. Rules are checked in a fixed
// priority order and the first match wins. Evaluate is pure: calling it any
// number of times against the same position and snapshot changes nothing.
package exit

import (
	"math"
	"time"

	"github.com/rustyeddy/optsim/ledger"
)

// Reason is the terminal transition a position took.
type Reason string

const (
	ProfitTarget Reason = "PROFIT_TARGET"
	StopLoss     Reason = "STOP_LOSS"
	TimeDecay    Reason = "TIME_DECAY"
	MaxHoldTime  Reason = "MAX_HOLD_TIME"
)

// Rules configures the evaluator thresholds.
type Rules struct {
	ProfitTargetFrac float64 // close when price/entry - 1 >= this
	StopLossFrac     float64 // close when price/entry - 1 <= -this
	MinHoldDays      float64 // floor for the max-hold horizon
}

// DefaultRules: double-or-half with a two day hold floor.
func DefaultRules() Rules {
	return Rules{ProfitTargetFrac: 1.0, StopLossFrac: 0.5, MinHoldDays: 2}
}

// MaxHoldDays is the hold horizon for a position: the larger of the
// configured floor and a quarter of the original days-to-expiry.
func (r Rules) MaxHoldDays(origDTE float64) float64 {
	return math.Max(r.MinHoldDays, origDTE/4)
}

// Decision is the outcome of one evaluation tick.
type Decision struct {
	Close  bool
	Reason Reason
}

// Evaluate checks the exit rules for pos against a single premium snapshot
// taken at now. Priority is fixed: profit target, stop loss, expiry, max
// hold. A tick that satisfies both profit and stop (a stale price after a
// data gap, say) closes as a win.
func (r Rules) Evaluate(pos *ledger.Position, currentPrice float64, now time.Time) Decision {
	if pos.Status != ledger.StatusOpen {
		return Decision{}
	}

	if pos.EntryPrice > 0 {
		ret := currentPrice/pos.EntryPrice - 1

		if ret >= r.ProfitTargetFrac {
			return Decision{Close: true, Reason: ProfitTarget}
		}
		if ret <= -r.StopLossFrac {
			return Decision{Close: true, Reason: StopLoss}
		}
	}

	if pos.Contract.DTE(now) <= 0 {
		return Decision{Close: true, Reason: TimeDecay}
	}

	daysHeld := now.Sub(pos.EntryTime).Hours() / 24
	if daysHeld >= r.MaxHoldDays(pos.OrigDTE) {
		return Decision{Close: true, Reason: MaxHoldTime}
	}

	return Decision{}
}
