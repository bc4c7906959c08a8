package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/optsim/internal/logger"
	"github.com/rustyeddy/optsim/pkg/id"
	"github.com/rustyeddy/optsim/sim"
)

// Account is the single-writer view of one strategy's cash and open
// positions. All mutation happens through OpenPosition and ClosePosition;
// the balance is never assigned directly. Memory is only updated after the
// durable write succeeds, so a crash between the two can never leave the
// store behind the process.
type Account struct {
	StrategyID string

	store    Store
	balance  decimal.Decimal
	realized decimal.Decimal
	open     map[string]*Position
}

// NewAccount creates or restores the account for strategyID. A fresh store
// receives an initial DEPOSIT entry for initialBalance; an existing one is
// restored purely from durable state and initialBalance is ignored.
func NewAccount(strategyID string, initialBalance float64, store Store) (*Account, error) {
	a := &Account{
		StrategyID: strategyID,
		store:      store,
		open:       make(map[string]*Position),
	}

	bal, found, err := store.LastBalance(strategyID)
	if err != nil {
		return nil, fmt.Errorf("%w: read balance: %w", ErrPersistence, err)
	}
	if found {
		if err := a.restore(bal); err != nil {
			return nil, err
		}
		return a, nil
	}

	dep := Cents(initialBalance)
	e := Entry{
		Time:          time.Now().UTC(),
		StrategyID:    strategyID,
		Action:        "DEPOSIT",
		Amount:        dep,
		BalanceBefore: decimal.Zero,
		BalanceAfter:  dep,
		Detail:        "initial deposit",
	}
	if err := store.Deposit(e); err != nil {
		return nil, fmt.Errorf("%w: initial deposit: %w", ErrPersistence, err)
	}
	a.balance = dep
	return a, nil
}

// restore rebuilds in-memory state purely from the store.
func (a *Account) restore(balance decimal.Decimal) error {
	open, err := a.store.OpenPositions(a.StrategyID)
	if err != nil {
		return fmt.Errorf("%w: restore positions: %w", ErrPersistence, err)
	}
	for _, p := range open {
		a.open[p.ID] = p
	}

	outs, err := a.store.Outcomes(a.StrategyID)
	if err != nil {
		return fmt.Errorf("%w: restore outcomes: %w", ErrPersistence, err)
	}
	realized := decimal.Zero
	for _, o := range outs {
		realized = realized.Add(o.PnL)
	}

	a.balance = balance
	a.realized = realized
	logger.Info("account restored",
		"strategy", a.StrategyID, "balance", balance.String(), "open", len(open))
	return nil
}

// Balance returns the current cash balance.
func (a *Account) Balance() decimal.Decimal { return a.balance }

// Realized returns cumulative realized P&L.
func (a *Account) Realized() decimal.Decimal { return a.realized }

// OpenPositions returns a snapshot of the open positions in ID (creation)
// order. It is served from memory, never the store: a transient read failure
// must not make live positions vanish from exit evaluation or let the caller
// open past its position limit.
func (a *Account) OpenPositions() []*Position {
	out := make([]*Position, 0, len(a.open))
	for _, p := range a.open {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Outcomes returns every closed-trade record for this account, oldest first.
func (a *Account) Outcomes() ([]*Outcome, error) {
	return a.store.Outcomes(a.StrategyID)
}

// History returns the append-only ledger entries for this account.
func (a *Account) History() ([]Entry, error) {
	return a.store.History(a.StrategyID)
}

// Position returns one open position by ID.
func (a *Account) Position(posID string) (*Position, bool) {
	p, ok := a.open[posID]
	return p, ok
}

// OpenPosition debits the account by the fill's total cost and records an
// OPEN position, atomically. It fails closed with ErrInsufficientFunds
// rather than allow a negative balance.
func (a *Account) OpenPosition(fill sim.Fill, target, stop float64) (*Position, error) {
	cost := Cents(fill.TotalCost)
	if cost.GreaterThan(a.balance) {
		return nil, fmt.Errorf("open %s: cost %s exceeds balance %s: %w",
			fill.Contract, cost, a.balance, ErrInsufficientFunds)
	}

	entryTime := fill.Time.UTC()
	pos := &Position{
		ID:         id.NewAt(entryTime),
		StrategyID: a.StrategyID,
		Contract:   fill.Contract,
		EntryPrice: fill.Price,
		Contracts:  fill.Contracts,
		EntryCost:  cost,
		EntryTime:  entryTime,
		Target:     target,
		Stop:       stop,
		OrigDTE:    fill.Contract.DTE(entryTime),
		Status:     StatusOpen,
	}

	after := a.balance.Sub(cost)
	e := Entry{
		Time:          entryTime,
		StrategyID:    a.StrategyID,
		PositionID:    pos.ID,
		Action:        "OPEN",
		Amount:        cost,
		BalanceBefore: a.balance,
		BalanceAfter:  after,
		Detail: fmt.Sprintf("open %dx %s @ %.4f (comm %.2f)",
			fill.Contracts, fill.Contract, fill.Price, fill.Commission),
	}

	if err := a.store.SaveOpen(pos, e); err != nil {
		// Memory untouched; nothing to roll back.
		return nil, fmt.Errorf("open %s: %w: %w", fill.Contract, ErrPersistence, err)
	}

	a.balance = after
	a.open[pos.ID] = pos
	return pos, nil
}

// ClosePosition credits the account with proceeds (exit value minus exit
// commission), writes the immutable Outcome and marks the position CLOSED,
// atomically. On a persistence failure the in-memory state is rolled back
// before the error surfaces.
func (a *Account) ClosePosition(posID string, exitPrice, proceeds float64, reason string, at time.Time) (*Outcome, error) {
	pos, ok := a.open[posID]
	if !ok {
		return nil, fmt.Errorf("close %s: %w", posID, ErrNotFound)
	}

	at = at.UTC()
	credit := Cents(proceeds)
	pnl := credit.Sub(pos.EntryCost)

	pnlPct := 0.0
	if pos.EntryCost.IsPositive() {
		pnlPct, _ = pnl.Div(pos.EntryCost).Float64()
	}

	out := &Outcome{
		Position:   *pos,
		ExitPrice:  exitPrice,
		ExitReason: reason,
		ExitTime:   at,
		DaysHeld:   at.Sub(pos.EntryTime).Hours() / 24,
		PnL:        pnl,
		PnLPct:     pnlPct,
	}
	out.Position.Status = StatusClosed

	after := a.balance.Add(credit)
	e := Entry{
		Time:          at,
		StrategyID:    a.StrategyID,
		PositionID:    posID,
		Action:        "CLOSE",
		Amount:        credit,
		BalanceBefore: a.balance,
		BalanceAfter:  after,
		Detail: fmt.Sprintf("close %dx %s @ %.4f [%s] pnl %s",
			pos.Contracts, pos.Contract, exitPrice, reason, pnl),
	}

	if err := a.store.SaveClose(out, e); err != nil {
		return nil, fmt.Errorf("close %s: %w: %w", posID, ErrPersistence, err)
	}

	a.balance = after
	a.realized = a.realized.Add(pnl)
	pos.Status = StatusClosed
	delete(a.open, posID)
	return out, nil
}
