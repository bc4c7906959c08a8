// Package ledger is the durable record of simulated account state: open
// positions, closed-trade outcomes and an append-only cash history. Every
// balance change flows through paired debit/credit operations that also
// write a human-readable history entry, and nothing is considered committed
// until the durable write succeeds. That discipline is what makes
// restore-on-startup safe for a host process that restarts often.
package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/optsim/pricing"
)

var (
	// ErrInsufficientFunds is returned when opening a position would drive
	// the balance negative. The account fails closed: no debit, no position.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrPersistence wraps any durable-write failure. The in-memory state is
	// rolled back before this surfaces; for a live engine it is fatal.
	ErrPersistence = errors.New("persistence failure")

	// ErrNotFound is returned for lookups of unknown positions.
	ErrNotFound = errors.New("position not found")
)

// Status of a position. CLOSED is terminal.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Position is one open simulated options trade. It is owned by exactly one
// account, created from an execution fill and destroyed by its single
// terminal transition to an Outcome.
type Position struct {
	ID         string
	StrategyID string
	Contract   pricing.Contract
	EntryPrice float64 // per-share fill price, slippage included
	Contracts  int
	EntryCost  decimal.Decimal // total debit including commission, cents
	EntryTime  time.Time
	Target     float64 // profit-target premium
	Stop       float64 // stop-loss premium
	OrigDTE    float64 // days to expiry at entry
	Status     Status
}

// Outcome is the immutable forensic record of a closed position. One per
// position, never mutated or deleted.
type Outcome struct {
	Position
	ExitPrice  float64
	ExitReason string
	ExitTime   time.Time
	DaysHeld   float64
	PnL        decimal.Decimal // realized, cents
	PnLPct     float64
}

// Win reports whether the outcome realized a profit.
func (o Outcome) Win() bool { return o.PnL.IsPositive() }

// Entry is one append-only history line. BalanceAfter is always exactly
// BalanceBefore plus or minus Amount, to the cent.
type Entry struct {
	Time          time.Time
	StrategyID    string
	PositionID    string
	Action        string // DEPOSIT, OPEN, CLOSE
	Amount        decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Detail        string
}

// Cents rounds v to the smallest currency unit.
func Cents(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}
