// Package backtest replays the execution simulator and exit evaluator over
// rolling train/test windows of a historical bar series. Thresholds for a
// window are calibrated only from bars before its test start, so the
// resulting metrics are out of sample by construction. Windows share no
// mutable state, which lets large backtests fan them out in parallel.
package backtest

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/optsim/exit"
	"github.com/rustyeddy/optsim/internal/logger"
	"github.com/rustyeddy/optsim/ledger"
	"github.com/rustyeddy/optsim/market"
	"github.com/rustyeddy/optsim/pricing"
	"github.com/rustyeddy/optsim/sim"
)

// SignalFunc is the collaborator that turns the bar history so far into a
// directional signal. history always ends at the bar being evaluated; the
// harness never hands it bars from the future.
type SignalFunc func(history []market.Bar) market.Signal

// Params configures a walk-forward run.
type Params struct {
	TrainDays          int     // training-window length in calendar days
	TestDays           int     // testing-window length in calendar days
	MinConfidence      float64 // signals below this are ignored
	MaxCapitalPerTrade float64
	InitialBalance     float64

	DTE            int     // days to expiry for opened contracts
	HalfSpreadFrac float64 // synthetic quote half-spread around the estimate
	DefaultVol     float64 // fallback when the train window can't produce one
	MinTestBars    int     // below this the period is skipped
	MaxOpen        int     // open positions allowed at once

	Parallel bool
	Timeout  time.Duration // zero means no limit
}

// DefaultParams returns a reasonable starting point for daily bars.
func DefaultParams() Params {
	return Params{
		TrainDays:          90,
		TestDays:           30,
		MinConfidence:      0.6,
		MaxCapitalPerTrade: 1000,
		InitialBalance:     10000,
		DTE:                30,
		HalfSpreadFrac:     0.05,
		DefaultVol:         0.30,
		MinTestBars:        5,
		MaxOpen:            1,
	}
}

// Harness drives walk-forward validation.
type Harness struct {
	Params    Params
	Estimator pricing.Estimator
	Costs     sim.Costs
	Rules     exit.Rules
	Signal    SignalFunc
}

// New returns a harness with the default estimator, costs and exit rules.
func New(p Params, signal SignalFunc) *Harness {
	return &Harness{
		Params:    p,
		Estimator: pricing.Approximator{},
		Costs:     sim.DefaultCosts(),
		Rules:     exit.DefaultRules(),
		Signal:    signal,
	}
}

// window is one [train|test] pair, half-open on both sides.
type window struct {
	index      int
	trainStart time.Time
	testStart  time.Time
	testEnd    time.Time
}

// windows rolls the paired train/test window forward by one test length per
// iteration, starting at the first date of the range, until the pair would
// pass end. Test windows are strictly increasing and non-overlapping; their
// union covers [start+train, ...] up to the last full test window.
func (h *Harness) windows(start, end time.Time) []window {
	var out []window
	trainStart := start
	for i := 0; ; i++ {
		testStart := trainStart.AddDate(0, 0, h.Params.TrainDays)
		testEnd := testStart.AddDate(0, 0, h.Params.TestDays)
		if testEnd.After(end) {
			break
		}
		out = append(out, window{index: i, trainStart: trainStart, testStart: testStart, testEnd: testEnd})
		trainStart = trainStart.AddDate(0, 0, h.Params.TestDays)
	}
	return out
}

// Run executes the walk-forward backtest over series between start and end.
// A wall-clock timeout, when configured, returns whatever periods completed
// instead of discarding progress. A period without enough bars is skipped
// with a warning; only a dataset with no usable bars at all is an error.
func (h *Harness) Run(ctx context.Context, series *market.Series, start, end time.Time) (*Summary, error) {
	if series == nil || series.Len() == 0 {
		return nil, market.ErrNoData
	}
	if start.IsZero() {
		start = series.Start()
	}
	if end.IsZero() {
		end = series.End()
	}

	wins := h.windows(start, end)
	if len(wins) == 0 {
		return nil, fmt.Errorf("range %s..%s too short for a %dd train + %dd test pair: %w",
			start.Format("2006-01-02"), end.Format("2006-01-02"),
			h.Params.TrainDays, h.Params.TestDays, market.ErrNoData)
	}

	if h.Params.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Params.Timeout)
		defer cancel()
	}

	began := time.Now()
	periods := make([]*Period, len(wins))

	if h.Params.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(runtime.GOMAXPROCS(0))
		for _, w := range wins {
			w := w
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil // timeout: leave the slot empty, keep the rest
				}
				periods[w.index] = h.runWindow(gctx, series, w)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, w := range wins {
			if ctx.Err() != nil {
				break
			}
			periods[w.index] = h.runWindow(ctx, series, w)
		}
	}

	return h.summarize(periods, start, end, time.Since(began), ctx.Err() != nil), nil
}

// runWindow replays one test window against its own account and in-memory
// store. It never returns nil: insufficient data yields a skipped period.
func (h *Harness) runWindow(ctx context.Context, series *market.Series, w window) *Period {
	p := &Period{
		Index:      w.index,
		TrainStart: w.trainStart,
		TestStart:  w.testStart,
		TestEnd:    w.testEnd,
	}

	trainBars := series.Slice(w.trainStart, w.testStart)
	testBars := series.Slice(w.testStart, w.testEnd)

	// An empty window is always skipped, whatever MinTestBars says: there is
	// no final bar to settle against.
	need := h.Params.MinTestBars
	if need < 1 {
		need = 1
	}
	if len(testBars) < need {
		p.Skipped = true
		p.SkipReason = fmt.Sprintf("only %d bars in test window (need %d)", len(testBars), need)
		logger.Warn("skipping walk-forward period",
			"period", w.index, "test_start", w.testStart.Format("2006-01-02"), "reason", p.SkipReason)
		return p
	}

	// Calibration uses training data only: no lookahead into the test window.
	vol := market.AnnualizedVol(market.Closes(trainBars))
	if vol <= 0 {
		vol = h.Params.DefaultVol
	}

	acct, err := ledger.NewAccount(fmt.Sprintf("wf-%03d", w.index), h.Params.InitialBalance, ledger.NewMemStore())
	if err != nil {
		p.Skipped = true
		p.SkipReason = err.Error()
		return p
	}

	// history holds everything the signal may see: train bars plus test bars
	// replayed so far.
	history := make([]market.Bar, len(trainBars), len(trainBars)+len(testBars))
	copy(history, trainBars)

	interrupted := false
	for _, bar := range testBars {
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		history = append(history, bar)

		h.evaluateExits(acct, bar, vol)
		h.maybeOpen(acct, series.Underlying, history, bar, vol)
	}

	// A window cut short by the deadline must not pose as a completed one;
	// the summary reports completed periods only.
	if interrupted {
		p.Skipped = true
		p.SkipReason = "interrupted before the test window completed"
		return p
	}

	// Stragglers close at the final bar; the hold horizon has run out with
	// the window.
	h.closeRemaining(acct, testBars[len(testBars)-1], vol)

	outs, _ := acct.Outcomes()
	p.Outcomes = outs
	p.computeMetrics(h.Params.InitialBalance)
	return p
}

// evaluateExits prices each open position once against the bar's close (one
// snapshot per tick, never per-position re-fetches) and applies the exit
// rules.
func (h *Harness) evaluateExits(acct *ledger.Account, bar market.Bar, vol float64) {
	now := endOfDay(bar.Date)
	for _, pos := range acct.OpenPositions() {
		premium := h.Estimator.Estimate(pricing.Inputs{
			Spot:   bar.Close,
			Strike: pos.Contract.Strike,
			Type:   pos.Contract.Type,
			DTE:    pos.Contract.DTE(now),
			Vol:    vol,
		})
		d := h.Rules.Evaluate(pos, premium, now)
		if !d.Close {
			continue
		}
		h.closeAt(acct, pos, premium, string(d.Reason), now)
	}
}

func (h *Harness) closeRemaining(acct *ledger.Account, bar market.Bar, vol float64) {
	now := endOfDay(bar.Date)
	for _, pos := range acct.OpenPositions() {
		premium := h.Estimator.Estimate(pricing.Inputs{
			Spot:   bar.Close,
			Strike: pos.Contract.Strike,
			Type:   pos.Contract.Type,
			DTE:    pos.Contract.DTE(now),
			Vol:    vol,
		})
		h.closeAt(acct, pos, premium, string(exit.MaxHoldTime), now)
	}
}

func (h *Harness) closeAt(acct *ledger.Account, pos *ledger.Position, premium float64, reason string, now time.Time) {
	q := sim.QuoteFromEstimate(premium, h.Params.HalfSpreadFrac, now)
	px := h.Costs.ExitPrice(q)
	proceeds := h.Costs.Proceeds(px, pos.Contracts)
	if _, err := acct.ClosePosition(pos.ID, px, proceeds, reason, now); err != nil {
		logger.Error("close position failed", "position", pos.ID, "err", err)
	}
}

// maybeOpen asks the signal collaborator for a direction and, when it clears
// the confidence bar, sizes and opens a position.
func (h *Harness) maybeOpen(acct *ledger.Account, underlying string, history []market.Bar, bar market.Bar, vol float64) {
	if len(acct.OpenPositions()) >= h.Params.MaxOpen {
		return
	}

	sig := h.Signal(history)
	if !sig.Actionable(h.Params.MinConfidence) {
		return
	}

	spot := bar.Close
	contract := contractFor(sig, underlying, spot, h.Params.DTE, bar.Date)

	premium := h.Estimator.Estimate(pricing.Inputs{
		Spot:   spot,
		Strike: contract.Strike,
		Type:   contract.Type,
		DTE:    float64(h.Params.DTE),
		Vol:    vol,
	})

	q := sim.QuoteFromEstimate(premium, h.Params.HalfSpreadFrac, bar.Date)
	bal, _ := acct.Balance().Float64()
	maxCap := math.Min(h.Params.MaxCapitalPerTrade, bal)

	fill, err := h.Costs.Execute(sim.Order{Contract: contract, Side: sim.Buy}, q, maxCap)
	if err != nil {
		// Sizing came out to zero contracts; skip the trade, never fatal.
		logger.Debug("trade skipped", "contract", contract.String(), "err", err)
		return
	}

	target := fill.Price * (1 + h.Rules.ProfitTargetFrac)
	stop := fill.Price * (1 - h.Rules.StopLossFrac)
	if _, err := acct.OpenPosition(fill, target, stop); err != nil {
		logger.Debug("open skipped", "contract", contract.String(), "err", err)
	}
}

// contractFor maps a signal to a slightly out-of-the-money contract: BUY
// buys a call struck above spot by half the expected move, SELL buys a put
// struck symmetrically below.
func contractFor(sig market.Signal, underlying string, spot float64, dte int, at time.Time) pricing.Contract {
	step := sig.ExpectedMovePct / 100 / 2
	typ := pricing.Call
	strike := spot * (1 + step)
	if sig.Direction == market.Sell {
		typ = pricing.Put
		strike = spot * (1 - step)
	}
	return pricing.Contract{
		Underlying: underlying,
		Type:       typ,
		Strike:     math.Round(strike),
		Expiry:     endOfDay(at.AddDate(0, 0, dte)),
	}
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 21, 0, 0, 0, time.UTC) // market close, UTC
}
