package market

import (
	"math"

	talib "github.com/markcheno/go-talib"
)

const tradingDaysPerYear = 252

// AnnualizedVol estimates annualized volatility from daily closes: the
// standard deviation of daily log returns scaled by sqrt(252). Returns 0
// when there are fewer than three closes.
func AnnualizedVol(closes []float64) float64 {
	if len(closes) < 3 {
		return 0
	}

	rets := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		rets = append(rets, math.Log(closes[i]/closes[i-1]))
	}
	if len(rets) < 2 {
		return 0
	}

	sd := talib.StdDev(rets, len(rets), 1.0)
	daily := sd[len(sd)-1]
	if math.IsNaN(daily) {
		return 0
	}
	return daily * math.Sqrt(tradingDaysPerYear)
}

// TrendBaseline returns the simple moving average of the closes over the
// final period bars. The harness uses it as the momentum baseline calibrated
// on the training window.
func TrendBaseline(closes []float64, period int) float64 {
	if period < 1 || len(closes) < period {
		return 0
	}
	sma := talib.Sma(closes, period)
	return sma[len(sma)-1]
}
