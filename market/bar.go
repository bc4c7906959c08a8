// Package market holds the data shapes the engine consumes from its
// collaborators: historical OHLCV bars, live quotes and directional signals.
// Nothing here performs network I/O; series are loaded up front so the
// simulation core stays deterministic and replayable.
package market

import (
	"errors"
	"sort"
	"time"
)

// ErrNoData marks missing or insufficient historical bars. The harness skips
// the affected period; the CLI treats a fully empty dataset as fatal.
var ErrNoData = errors.New("no historical data available")

// Bar is one OHLCV bar, typically daily.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Series is an immutable, date-ascending run of bars for one underlying.
type Series struct {
	Underlying string
	Bars       []Bar
}

// NewSeries sorts bars by date and returns a series. The input slice is not
// retained.
func NewSeries(underlying string, bars []Bar) *Series {
	bs := make([]Bar, len(bars))
	copy(bs, bars)
	sort.Slice(bs, func(i, j int) bool { return bs[i].Date.Before(bs[j].Date) })
	return &Series{Underlying: underlying, Bars: bs}
}

// Len returns the bar count.
func (s *Series) Len() int { return len(s.Bars) }

// Start returns the first bar date, zero when empty.
func (s *Series) Start() time.Time {
	if len(s.Bars) == 0 {
		return time.Time{}
	}
	return s.Bars[0].Date
}

// End returns the last bar date, zero when empty.
func (s *Series) End() time.Time {
	if len(s.Bars) == 0 {
		return time.Time{}
	}
	return s.Bars[len(s.Bars)-1].Date
}

// Slice returns the bars with Date in [from, to). The underlying array is
// shared; callers treat it as read-only.
func (s *Series) Slice(from, to time.Time) []Bar {
	lo := sort.Search(len(s.Bars), func(i int) bool { return !s.Bars[i].Date.Before(from) })
	hi := sort.Search(len(s.Bars), func(i int) bool { return !s.Bars[i].Date.Before(to) })
	return s.Bars[lo:hi]
}

// Closes extracts close prices from a run of bars.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
