// Package sim converts a desired options trade plus a quote into a realistic
// fill: adverse slippage against the trader, a per-contract plus per-trade
// commission, and a hard cap so the total cost never exceeds the capital the
// caller put up. Execute has no side effects; persisting the fill is the
// caller's job.
package sim

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/optsim/pricing"
)

// ErrInsufficientCapital is returned when the sized contract count rounds to
// zero. The caller skips the trade; no state changes.
var ErrInsufficientCapital = errors.New("insufficient capital for one contract")

// Side of the simulated order.
type Side int

const (
	Buy  Side = +1
	Sell Side = -1
)

// Quote is a bid/ask for a specific contract, either from a live source or
// synthesized around a modeled premium in backtests.
type Quote struct {
	Bid  float64
	Ask  float64
	Time time.Time
}

// Spread returns ask minus bid, never negative.
func (q Quote) Spread() float64 {
	if q.Ask < q.Bid {
		return 0
	}
	return q.Ask - q.Bid
}

// Mid returns the quote midpoint.
func (q Quote) Mid() float64 { return (q.Bid + q.Ask) / 2 }

// QuoteFromEstimate synthesizes a quote around a modeled premium using a
// half-spread fraction. The backtest path has no live book, so the pricing
// approximator's estimate stands in for the midpoint.
func QuoteFromEstimate(premium, halfSpreadFrac float64, at time.Time) Quote {
	h := premium * halfSpreadFrac
	bid := premium - h
	if bid < 0 {
		bid = 0
	}
	return Quote{Bid: bid, Ask: premium + h, Time: at}
}

// Costs models execution friction.
type Costs struct {
	SlippageFrac   float64 // fraction of the spread paid against the trader
	PerContractFee float64 // commission per contract
	PerTradeFee    float64 // flat commission per order
	Multiplier     float64 // shares per contract, typically 100
}

// DefaultCosts mirrors a typical US retail options account.
func DefaultCosts() Costs {
	return Costs{
		SlippageFrac:   0.02,
		PerContractFee: 0.65,
		PerTradeFee:    0,
		Multiplier:     100,
	}
}

// Commission for n contracts.
func (c Costs) Commission(contracts int) float64 {
	return float64(contracts)*c.PerContractFee + c.PerTradeFee
}

// Order is a desired trade before sizing.
type Order struct {
	Contract pricing.Contract
	Side     Side
}

// Fill is the result of a simulated execution.
type Fill struct {
	Contract   pricing.Contract
	Side       Side
	Price      float64 // per share, slippage included
	Contracts  int
	Commission float64
	TotalCost  float64 // price*multiplier*contracts + commission (buys)
	Time       time.Time
}

// Execute sizes and fills an order against a quote, spending at most
// maxCapital. Buys fill at ask plus a slippage fraction of the spread, sells
// at bid minus the same. Contract count is the largest n such that
// price*multiplier*n + commission(n) <= maxCapital; n == 0 fails with
// ErrInsufficientCapital.
func (c Costs) Execute(ord Order, q Quote, maxCapital float64) (Fill, error) {
	slip := c.SlippageFrac * q.Spread()

	var px float64
	if ord.Side == Sell {
		px = q.Bid - slip
		if px < 0 {
			px = 0
		}
	} else {
		px = q.Ask + slip
	}

	if px <= 0 {
		return Fill{}, fmt.Errorf("execute %s: non-positive fill price %.4f", ord.Contract, px)
	}

	perContract := px * c.Multiplier
	n := int(math.Floor(maxCapital / perContract))

	// Commission can push the total over the cap; shrink until it fits.
	for n > 0 && perContract*float64(n)+c.Commission(n) > maxCapital {
		n--
	}
	if n <= 0 {
		return Fill{}, fmt.Errorf("execute %s: %w", ord.Contract, ErrInsufficientCapital)
	}

	comm := c.Commission(n)
	return Fill{
		Contract:   ord.Contract,
		Side:       ord.Side,
		Price:      px,
		Contracts:  n,
		Commission: comm,
		TotalCost:  perContract*float64(n) + comm,
		Time:       q.Time,
	}, nil
}

// ExitPrice is the per-share price realized when selling to close against q:
// bid minus the slippage fraction of the spread, floored at zero.
func (c Costs) ExitPrice(q Quote) float64 {
	px := q.Bid - c.SlippageFrac*q.Spread()
	if px < 0 {
		return 0
	}
	return px
}

// Proceeds computes the cash credited for closing n contracts at a sell fill
// price: price*multiplier*n - commission. Never negative.
func (c Costs) Proceeds(price float64, contracts int) float64 {
	p := price*c.Multiplier*float64(contracts) - c.Commission(contracts)
	if p < 0 {
		return 0
	}
	return p
}
