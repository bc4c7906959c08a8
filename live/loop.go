// Package live runs the simulated engine against a live quote feed: a
// single cooperative polling loop with a fixed tick interval. Every tick
// fetches one quote snapshot per distinct contract and evaluates all open
// positions against that snapshot, so no two positions ever see different
// intra-tick prices. The ledger has exactly one writer: this loop.
package live

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/optsim/exit"
	"github.com/rustyeddy/optsim/internal/logger"
	"github.com/rustyeddy/optsim/ledger"
	"github.com/rustyeddy/optsim/market"
	"github.com/rustyeddy/optsim/pricing"
	"github.com/rustyeddy/optsim/sim"
)

// QuoteSource supplies current market data for one underlying.
type QuoteSource interface {
	// Spot returns the current underlying price.
	Spot(ctx context.Context) (float64, error)
	// Quote returns a current bid/ask for a specific contract.
	Quote(ctx context.Context, c pricing.Contract) (sim.Quote, error)
}

// SignalSource supplies the current directional signal.
type SignalSource interface {
	Signal(ctx context.Context) (market.Signal, error)
}

// Notifier receives structured trade events for the reporting layer. Both
// calls happen after the ledger write committed.
type Notifier interface {
	TradeOpened(pos *ledger.Position)
	TradeClosed(out *ledger.Outcome)
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) TradeOpened(*ledger.Position) {}
func (NopNotifier) TradeClosed(*ledger.Outcome)  {}

// Options configures the polling engine.
type Options struct {
	Underlying    string
	Interval      time.Duration
	RetryBudget   int // consecutive quote failures tolerated before giving up
	MaxCapital    float64
	MinConfidence float64
	DTE           int
	MaxOpen       int
}

// Engine is the live polling loop. All ledger mutation happens on the loop
// goroutine; persistence is synchronous, so a persistence failure aborts the
// run rather than letting memory and disk diverge.
type Engine struct {
	Opts     Options
	Account  *ledger.Account
	Quotes   QuoteSource
	Signals  SignalSource
	Costs    sim.Costs
	Rules    exit.Rules
	Notifier Notifier

	failures int
}

// NewEngine wires an engine with default costs and exit rules.
func NewEngine(opts Options, acct *ledger.Account, quotes QuoteSource, signals SignalSource) *Engine {
	if opts.MaxOpen <= 0 {
		opts.MaxOpen = 1
	}
	return &Engine{
		Opts:     opts,
		Account:  acct,
		Quotes:   quotes,
		Signals:  signals,
		Costs:    sim.DefaultCosts(),
		Rules:    exit.DefaultRules(),
		Notifier: NopNotifier{},
	}
}

// Run polls until the context ends or an unrecoverable error occurs. Quote
// failures are retried up to the budget; persistence failures are fatal
// immediately.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.Opts.Interval)
	defer ticker.Stop()

	logger.Info("live engine started",
		"underlying", e.Opts.Underlying, "interval", e.Opts.Interval,
		"balance", e.Account.Balance().String())

	for {
		select {
		case <-ctx.Done():
			logger.Info("live engine stopped", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := e.Tick(ctx, time.Now().UTC()); err != nil {
				return err
			}
		}
	}
}

// Tick performs one evaluation pass at the given instant. Exported so tests
// and replays can drive the loop without a wall clock.
func (e *Engine) Tick(ctx context.Context, now time.Time) error {
	if err := e.evaluateExits(ctx, now); err != nil {
		return err
	}
	return e.maybeOpen(ctx, now)
}

// evaluateExits snapshots each distinct contract once, then runs the exit
// rules for every open position against its snapshot.
func (e *Engine) evaluateExits(ctx context.Context, now time.Time) error {
	open := e.Account.OpenPositions()
	if len(open) == 0 {
		return nil
	}

	snapshots := make(map[string]sim.Quote)
	for _, pos := range open {
		key := pos.Contract.String()
		if _, ok := snapshots[key]; ok {
			continue
		}
		q, err := e.Quotes.Quote(ctx, pos.Contract)
		if err != nil {
			return e.quoteFailure(err)
		}
		snapshots[key] = q
	}
	e.failures = 0

	for _, pos := range open {
		q := snapshots[pos.Contract.String()]
		d := e.Rules.Evaluate(pos, q.Mid(), now)
		if !d.Close {
			continue
		}

		px := e.Costs.ExitPrice(q)
		proceeds := e.Costs.Proceeds(px, pos.Contracts)
		out, err := e.Account.ClosePosition(pos.ID, px, proceeds, string(d.Reason), now)
		if err != nil {
			// Ledger and memory must never diverge; surface and stop.
			return fmt.Errorf("live close: %w", err)
		}
		logger.Info("position closed",
			"position", out.ID, "reason", out.ExitReason, "pnl", out.PnL.String())
		e.Notifier.TradeClosed(out)
	}
	return nil
}

func (e *Engine) maybeOpen(ctx context.Context, now time.Time) error {
	if len(e.Account.OpenPositions()) >= e.Opts.MaxOpen {
		return nil
	}

	sig, err := e.Signals.Signal(ctx)
	if err != nil {
		logger.Warn("signal source unavailable", "err", err)
		return nil // a missing signal skips the entry, never kills the loop
	}
	if !sig.Actionable(e.Opts.MinConfidence) {
		return nil
	}

	spot, err := e.Quotes.Spot(ctx)
	if err != nil {
		return e.quoteFailure(err)
	}

	contract := e.contractFor(sig, spot, now)
	q, err := e.Quotes.Quote(ctx, contract)
	if err != nil {
		return e.quoteFailure(err)
	}
	e.failures = 0

	bal, _ := e.Account.Balance().Float64()
	maxCap := math.Min(e.Opts.MaxCapital, bal)

	fill, err := e.Costs.Execute(sim.Order{Contract: contract, Side: sim.Buy}, q, maxCap)
	if err != nil {
		// Sizing or a degenerate quote; skip the entry, never fatal.
		logger.Debug("entry skipped", "contract", contract.String(), "err", err)
		return nil
	}

	target := fill.Price * (1 + e.Rules.ProfitTargetFrac)
	stop := fill.Price * (1 - e.Rules.StopLossFrac)
	pos, err := e.Account.OpenPosition(fill, target, stop)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			logger.Debug("entry skipped", "contract", contract.String(), "err", err)
			return nil
		}
		return fmt.Errorf("live open: %w", err)
	}

	logger.Info("position opened",
		"position", pos.ID, "contract", pos.Contract.String(),
		"contracts", pos.Contracts, "entry", pos.EntryPrice)
	e.Notifier.TradeOpened(pos)
	return nil
}

func (e *Engine) contractFor(sig market.Signal, spot float64, now time.Time) pricing.Contract {
	step := sig.ExpectedMovePct / 100 / 2
	typ := pricing.Call
	strike := spot * (1 + step)
	if sig.Direction == market.Sell {
		typ = pricing.Put
		strike = spot * (1 - step)
	}
	return pricing.Contract{
		Underlying: e.Opts.Underlying,
		Type:       typ,
		Strike:     math.Round(strike),
		Expiry:     endOfDay(now.AddDate(0, 0, e.Opts.DTE)),
	}
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 21, 0, 0, 0, time.UTC) // market close, UTC
}

// quoteFailure counts consecutive data failures against the retry budget.
func (e *Engine) quoteFailure(err error) error {
	e.failures++
	if e.failures > e.Opts.RetryBudget {
		return fmt.Errorf("quote source failed %d times: %w: %w", e.failures, market.ErrNoData, err)
	}
	logger.Warn("quote fetch failed, will retry",
		"attempt", e.failures, "budget", e.Opts.RetryBudget, "err", err)
	return nil
}
