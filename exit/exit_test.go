package exit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/optsim/ledger"
	"github.com/rustyeddy/optsim/pricing"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func openPos(t *testing.T, entry float64, dte float64) *ledger.Position {
	t.Helper()
	return &ledger.Position{
		ID:         "pos-1",
		StrategyID: "strat-1",
		Contract: pricing.Contract{
			Underlying: "SPY",
			Type:       pricing.Call,
			Strike:     470,
			Expiry:     t0.Add(time.Duration(dte*24) * time.Hour),
		},
		EntryPrice: entry,
		Contracts:  1,
		EntryTime:  t0,
		OrigDTE:    dte,
		Status:     ledger.StatusOpen,
	}
}

func TestProfitTarget(t *testing.T) {
	t.Parallel()

	r := Rules{ProfitTargetFrac: 0.5, StopLossFrac: 0.3, MinHoldDays: 2}
	pos := openPos(t, 2.00, 30)

	d := r.Evaluate(pos, 3.00, t0.AddDate(0, 0, 1))
	require.True(t, d.Close)
	assert.Equal(t, ProfitTarget, d.Reason)

	// Just below the threshold stays open.
	d = r.Evaluate(pos, 2.99, t0.AddDate(0, 0, 1))
	assert.False(t, d.Close)
}

func TestStopLoss(t *testing.T) {
	t.Parallel()

	r := Rules{ProfitTargetFrac: 1.0, StopLossFrac: 0.5, MinHoldDays: 2}
	pos := openPos(t, 2.00, 30)

	d := r.Evaluate(pos, 1.00, t0.AddDate(0, 0, 1))
	require.True(t, d.Close)
	assert.Equal(t, StopLoss, d.Reason)
}

func TestProfitBeatsStopOnAmbiguousTick(t *testing.T) {
	t.Parallel()

	// A degenerate rules set where one snapshot satisfies both thresholds
	// (profit target at -60%, stop at -50%, e.g. after a data gap left a
	// stale stop flag). Priority says the position closes as a win.
	r := Rules{ProfitTargetFrac: -0.6, StopLossFrac: 0.5, MinHoldDays: 2}
	pos := openPos(t, 2.00, 30)

	d := r.Evaluate(pos, 0.60, t0.AddDate(0, 0, 1))
	require.True(t, d.Close)
	assert.Equal(t, ProfitTarget, d.Reason)
}

func TestTimeDecayAtExpiry(t *testing.T) {
	t.Parallel()

	r := DefaultRules()
	pos := openPos(t, 2.00, 5)

	// Flat price, past expiry.
	d := r.Evaluate(pos, 2.00, t0.AddDate(0, 0, 6))
	require.True(t, d.Close)
	assert.Equal(t, TimeDecay, d.Reason)
}

func TestMaxHoldTime(t *testing.T) {
	t.Parallel()

	r := Rules{ProfitTargetFrac: 10, StopLossFrac: 0.99, MinHoldDays: 2}
	pos := openPos(t, 2.00, 40) // horizon = max(2, 40/4) = 10 days

	d := r.Evaluate(pos, 2.00, t0.AddDate(0, 0, 9))
	assert.False(t, d.Close)

	d = r.Evaluate(pos, 2.00, t0.AddDate(0, 0, 10))
	require.True(t, d.Close)
	assert.Equal(t, MaxHoldTime, d.Reason)
}

func TestMinHoldFloorApplies(t *testing.T) {
	t.Parallel()

	r := Rules{ProfitTargetFrac: 10, StopLossFrac: 0.99, MinHoldDays: 3}
	// origDTE/4 = 1 day, but the floor is 3.
	assert.Equal(t, 3.0, r.MaxHoldDays(4))
	assert.Equal(t, 10.0, r.MaxHoldDays(40))
}

func TestClosedPositionNeverRetriggers(t *testing.T) {
	t.Parallel()

	r := DefaultRules()
	pos := openPos(t, 2.00, 30)
	pos.Status = ledger.StatusClosed

	d := r.Evaluate(pos, 100, t0.AddDate(0, 0, 90))
	assert.False(t, d.Close)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	t.Parallel()

	r := DefaultRules()
	pos := openPos(t, 2.00, 30)
	at := t0.AddDate(0, 0, 1)

	first := r.Evaluate(pos, 2.50, at)
	second := r.Evaluate(pos, 2.50, at)
	assert.Equal(t, first, second)
	assert.Equal(t, ledger.StatusOpen, pos.Status)
}
