// Package pricing estimates option premiums for the simulator. The model is
// deliberately an approximation: the engine ranks strategies against each
// other, not against a live order book, so a full stochastic-volatility model
// buys nothing here. The Estimator interface keeps the formula swappable for
// a more rigorous model without touching the executor, exit evaluator or
// harness.
package pricing

import (
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/optsim/internal/logger"
)

// OptionType distinguishes calls from puts.
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// Contract identifies a single option contract.
type Contract struct {
	Underlying string
	Type       OptionType
	Strike     float64
	Expiry     time.Time
}

func (c Contract) String() string {
	return fmt.Sprintf("%s %.2f %s %s", c.Underlying, c.Strike, c.Type, c.Expiry.Format("2006-01-02"))
}

// DTE returns the days to expiry as of now, fractional days included.
func (c Contract) DTE(now time.Time) float64 {
	return c.Expiry.Sub(now).Hours() / 24
}

// Inputs are everything the estimator may look at. Keeping this a plain
// value struct keeps estimators pure functions of their inputs.
type Inputs struct {
	Spot   float64
	Strike float64
	Type   OptionType
	DTE    float64 // days to expiry; <= 0 means at/past expiry
	Vol    float64 // annualized volatility, e.g. 0.30
}

// Estimator turns pricing inputs into a premium per share.
type Estimator interface {
	Estimate(in Inputs) float64
}

// Floor is the minimum premium returned by any estimator. Deep out of the
// money contracts near expiry bottom out here instead of going to zero or
// negative.
const Floor = 0.005

const (
	timeValueCoeff = 0.25 // scales vol*sqrt(t) into a premium-like magnitude
	decayScaleDays = 10.0 // time value decays exponentially on this scale
)

// Approximator is the default premium model:
//
//	premium = intrinsic + spot * vol * sqrt(dte/365) * coeff * (1 - e^(-dte/scale))
//
// The exponential term collapses the time value as expiry approaches, which
// is the behavior the exit evaluator's TimeDecay rule leans on.
type Approximator struct{}

func (Approximator) Estimate(in Inputs) float64 {
	intrinsic := intrinsicValue(in)

	if in.DTE <= 0 {
		return clamp(intrinsic, in)
	}

	decay := 1 - math.Exp(-in.DTE/decayScaleDays)
	tv := in.Spot * in.Vol * math.Sqrt(in.DTE/365) * timeValueCoeff * decay

	return clamp(intrinsic+tv, in)
}

func intrinsicValue(in Inputs) float64 {
	if in.Type == Put {
		return math.Max(0, in.Strike-in.Spot)
	}
	return math.Max(0, in.Spot-in.Strike)
}

// clamp applies the price floor and absorbs pricing anomalies. A non-finite
// or negative premium never reaches a caller; it is clamped to Floor and
// logged so the run does not silently trade on bad numbers.
func clamp(premium float64, in Inputs) float64 {
	if math.IsNaN(premium) || math.IsInf(premium, 0) || premium < 0 {
		logger.Warn("pricing anomaly clamped to floor",
			"premium", premium, "spot", in.Spot, "strike", in.Strike,
			"type", in.Type, "dte", in.DTE, "vol", in.Vol)
		return Floor
	}
	if premium < Floor {
		return Floor
	}
	return premium
}
