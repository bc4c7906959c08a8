package live

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/optsim/backtest"
	"github.com/rustyeddy/optsim/market"
	"github.com/rustyeddy/optsim/pricing"
	"github.com/rustyeddy/optsim/sim"
)

// ReplaySource feeds the engine from a historical bar series, one bar per
// tick. It implements both QuoteSource and SignalSource: the spot is the
// current bar close, quotes are synthesized around a modeled premium using
// trailing realized volatility, and signals come from a SignalFunc over the
// bars seen so far. Useful for paper trading and for driving the live loop
// deterministically in tests.
type ReplaySource struct {
	Series         *market.Series
	Estimator      pricing.Estimator
	SignalFn       backtest.SignalFunc
	HalfSpreadFrac float64
	Lookback       int
	DefaultVol     float64

	cursor int // index of the current bar; -1 before the first Next
}

// NewReplaySource starts a replay positioned before the first bar.
func NewReplaySource(series *market.Series, lookback int) *ReplaySource {
	return &ReplaySource{
		Series:         series,
		Estimator:      pricing.Approximator{},
		SignalFn:       backtest.MomentumSignal(lookback),
		HalfSpreadFrac: 0.05,
		Lookback:       lookback,
		DefaultVol:     0.30,
		cursor:         -1,
	}
}

// Next advances to the following bar and reports its date. ok is false when
// the series is exhausted.
func (r *ReplaySource) Next() (at time.Time, ok bool) {
	if r.cursor+1 >= r.Series.Len() {
		return time.Time{}, false
	}
	r.cursor++
	return r.Series.Bars[r.cursor].Date, true
}

func (r *ReplaySource) current() (market.Bar, error) {
	if r.cursor < 0 || r.cursor >= r.Series.Len() {
		return market.Bar{}, fmt.Errorf("replay not positioned: %w", market.ErrNoData)
	}
	return r.Series.Bars[r.cursor], nil
}

func (r *ReplaySource) Spot(ctx context.Context) (float64, error) {
	bar, err := r.current()
	if err != nil {
		return 0, err
	}
	return bar.Close, nil
}

func (r *ReplaySource) Quote(ctx context.Context, c pricing.Contract) (sim.Quote, error) {
	bar, err := r.current()
	if err != nil {
		return sim.Quote{}, err
	}

	vol := r.trailingVol()
	premium := r.Estimator.Estimate(pricing.Inputs{
		Spot:   bar.Close,
		Strike: c.Strike,
		Type:   c.Type,
		DTE:    c.DTE(bar.Date),
		Vol:    vol,
	})
	return sim.QuoteFromEstimate(premium, r.HalfSpreadFrac, bar.Date), nil
}

func (r *ReplaySource) Signal(ctx context.Context) (market.Signal, error) {
	if r.cursor < 0 {
		return market.Signal{}, market.ErrNoData
	}
	return r.SignalFn(r.Series.Bars[:r.cursor+1]), nil
}

func (r *ReplaySource) trailingVol() float64 {
	lo := r.cursor + 1 - r.Lookback
	if lo < 0 {
		lo = 0
	}
	closes := market.Closes(r.Series.Bars[lo : r.cursor+1])
	if v := market.AnnualizedVol(closes); v > 0 {
		return v
	}
	return r.DefaultVol
}
