package live

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/optsim/ledger"
	"github.com/rustyeddy/optsim/market"
)

func trendSeries(n int, start float64, dailyPct float64) *market.Series {
	bars := make([]market.Bar, n)
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	px := start
	for i := range bars {
		// mild oscillation keeps realized vol non-zero
		wobble := 1 + 0.004*math.Sin(float64(i))
		px *= (1 + dailyPct/100) * wobble
		bars[i] = market.Bar{
			Date: day, Open: px * 0.999, High: px * 1.005,
			Low: px * 0.995, Close: px, Volume: 1e6,
		}
		day = day.AddDate(0, 0, 1)
	}
	return market.NewSeries("SPY", bars)
}

func TestReplaySourceBeforeFirstBar(t *testing.T) {
	src := NewReplaySource(trendSeries(10, 100, 0.2), 5)

	_, err := src.Spot(context.Background())
	assert.ErrorIs(t, err, market.ErrNoData)

	_, err = src.Signal(context.Background())
	assert.ErrorIs(t, err, market.ErrNoData)
}

func TestReplaySourceAdvances(t *testing.T) {
	series := trendSeries(10, 100, 0.2)
	src := NewReplaySource(series, 5)

	at, ok := src.Next()
	require.True(t, ok)
	assert.Equal(t, series.Bars[0].Date, at)

	spot, err := src.Spot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, series.Bars[0].Close, spot)

	n := 1
	for {
		if _, ok := src.Next(); !ok {
			break
		}
		n++
	}
	assert.Equal(t, series.Len(), n)
}

func TestReplayDrivesEngine(t *testing.T) {
	series := trendSeries(120, 100, 0.5)
	src := NewReplaySource(series, 20)

	acct, err := ledger.NewAccount("replay-test", 10000, ledger.NewMemStore())
	require.NoError(t, err)

	eng := NewEngine(Options{
		Underlying:    "SPY",
		Interval:      time.Second,
		RetryBudget:   1,
		MaxCapital:    2000,
		MinConfidence: 0.5,
		DTE:           21,
		MaxOpen:       1,
	}, acct, src, src)
	rec := &recordingNotifier{}
	eng.Notifier = rec

	for {
		at, ok := src.Next()
		if !ok {
			break
		}
		require.NoError(t, eng.Tick(context.Background(), at))
	}

	// a steady uptrend with a momentum signal must trade at least once
	require.NotEmpty(t, rec.opened)
	for _, pos := range rec.opened {
		assert.Equal(t, "SPY", pos.Contract.Underlying)
	}
	for _, out := range rec.closed {
		assert.NotEmpty(t, out.ExitReason)
	}

	hist, err := acct.History()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(hist), 2) // deposit plus at least one trade entry
}
