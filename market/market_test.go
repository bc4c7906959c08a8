package market

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(yyyy int, m time.Month, d int) time.Time {
	return time.Date(yyyy, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewSeriesSortsByDate(t *testing.T) {
	t.Parallel()

	s := NewSeries("TEST", []Bar{
		{Date: day(2024, 1, 3), Close: 3},
		{Date: day(2024, 1, 1), Close: 1},
		{Date: day(2024, 1, 2), Close: 2},
	})

	assert.Equal(t, day(2024, 1, 1), s.Start())
	assert.Equal(t, day(2024, 1, 3), s.End())
	assert.Equal(t, []float64{1, 2, 3}, Closes(s.Bars))
}

func TestSeriesSliceHalfOpen(t *testing.T) {
	t.Parallel()

	var bars []Bar
	for i := 0; i < 10; i++ {
		bars = append(bars, Bar{Date: day(2024, 1, 1+i), Close: float64(i)})
	}
	s := NewSeries("TEST", bars)

	got := s.Slice(day(2024, 1, 3), day(2024, 1, 6))
	require.Len(t, got, 3)
	assert.Equal(t, day(2024, 1, 3), got[0].Date)
	assert.Equal(t, day(2024, 1, 5), got[2].Date)

	assert.Empty(t, s.Slice(day(2025, 1, 1), day(2025, 2, 1)))
}

func TestReadBarsHeaderAndRows(t *testing.T) {
	t.Parallel()

	in := strings.NewReader(`date,open,high,low,close,volume
2024-01-02,100,102,99,101,1200
2024-01-03,101,103,100.5,102.5,900
`)
	bars, err := ReadBars(in)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, day(2024, 1, 2), bars[0].Date)
	assert.Equal(t, 101.0, bars[0].Close)
	assert.Equal(t, 900.0, bars[1].Volume)
}

func TestReadBarsNoHeader(t *testing.T) {
	t.Parallel()

	in := strings.NewReader("2024-01-02,100,102,99,101,0\n")
	bars, err := ReadBars(in)
	require.NoError(t, err)
	require.Len(t, bars, 1)
}

func TestReadBarsBadRow(t *testing.T) {
	t.Parallel()

	in := strings.NewReader("2024-01-02,100,oops,99,101,0\n")
	_, err := ReadBars(in)
	assert.Error(t, err)
}

func TestLoadCSVFromFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "spy.csv")
	data := "date,open,high,low,close,volume\n2024-01-02,470,472,469,471,100\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	s, err := LoadCSV(path, "")
	require.NoError(t, err)
	assert.Equal(t, "SPY", s.Underlying)
	assert.Equal(t, 1, s.Len())
}

func TestLoadCSVEmptyIsNoData(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(path, []byte("date,open,high,low,close,volume\n"), 0o644))

	_, err := LoadCSV(path, "X")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestAnnualizedVolFlatSeriesIsZero(t *testing.T) {
	t.Parallel()

	closes := []float64{100, 100, 100, 100, 100}
	assert.InDelta(t, 0, AnnualizedVol(closes), 1e-12)
}

func TestAnnualizedVolPositiveForNoisySeries(t *testing.T) {
	t.Parallel()

	closes := []float64{100, 101, 99.5, 102, 100.8, 103, 101.2, 104}
	vol := AnnualizedVol(closes)
	assert.Greater(t, vol, 0.0)
	assert.Less(t, vol, 2.0)
	assert.False(t, math.IsNaN(vol))
}

func TestAnnualizedVolTooFewBars(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, AnnualizedVol([]float64{100, 101}))
}

func TestTrendBaseline(t *testing.T) {
	t.Parallel()

	closes := []float64{1, 2, 3, 4, 5, 6}
	assert.InDelta(t, 5, TrendBaseline(closes, 3), 1e-9)
	assert.Equal(t, 0.0, TrendBaseline(closes, 10))
}

func TestSignalActionable(t *testing.T) {
	t.Parallel()

	assert.True(t, Signal{Direction: Buy, Confidence: 0.8}.Actionable(0.6))
	assert.False(t, Signal{Direction: Hold, Confidence: 0.9}.Actionable(0.6))
	assert.False(t, Signal{Direction: Sell, Confidence: 0.5}.Actionable(0.6))
	assert.False(t, Signal{}.Actionable(0))
}
