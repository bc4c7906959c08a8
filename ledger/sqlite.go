package ledger

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/optsim/pricing"
)

const timeLayout = time.RFC3339Nano

// SQLiteStore persists ledger state in a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the ledger database at path and applies the
// schema.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveOpen(pos *Position, e Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO positions
		(strategy_id, position_id, underlying, option_type, strike, expiry,
		 entry_price, contracts, entry_cost, entry_time, target, stop, orig_dte, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pos.StrategyID, pos.ID, pos.Contract.Underlying, string(pos.Contract.Type),
		pos.Contract.Strike, pos.Contract.Expiry.UTC().Format(timeLayout),
		pos.EntryPrice, pos.Contracts, pos.EntryCost.String(),
		pos.EntryTime.UTC().Format(timeLayout), pos.Target, pos.Stop,
		pos.OrigDTE, string(pos.Status),
	)
	if err != nil {
		return err
	}
	if err := insertEntry(tx, e); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) SaveClose(out *Outcome, e Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE positions SET status = ?
		WHERE strategy_id = ? AND position_id = ? AND status = ?`,
		string(StatusClosed), out.StrategyID, out.ID, string(StatusOpen),
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	_, err = tx.Exec(`
		INSERT INTO outcomes
		(strategy_id, position_id, exit_price, exit_reason, exit_time, days_held, pnl, pnl_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		out.StrategyID, out.ID, out.ExitPrice, out.ExitReason,
		out.ExitTime.UTC().Format(timeLayout), out.DaysHeld,
		out.PnL.String(), out.PnLPct,
	)
	if err != nil {
		return err
	}
	if err := insertEntry(tx, e); err != nil {
		return err
	}
	return tx.Commit()
}

func insertEntry(tx *sql.Tx, e Entry) error {
	_, err := tx.Exec(`
		INSERT INTO history
		(strategy_id, position_id, time, action, amount, balance_before, balance_after, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.StrategyID, e.PositionID, e.Time.UTC().Format(timeLayout), e.Action,
		e.Amount.String(), e.BalanceBefore.String(), e.BalanceAfter.String(), e.Detail,
	)
	return err
}

func (s *SQLiteStore) Deposit(e Entry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertEntry(tx, e); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) OpenPositions(strategyID string) ([]*Position, error) {
	rows, err := s.db.Query(`
		SELECT strategy_id, position_id, underlying, option_type, strike, expiry,
		       entry_price, contracts, entry_cost, entry_time, target, stop, orig_dte, status
		FROM positions
		WHERE strategy_id = ? AND status = ?
		ORDER BY position_id`, strategyID, string(StatusOpen))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPosition(rows *sql.Rows) (*Position, error) {
	var (
		p                            Position
		optType, status              string
		expiry, entryTime, entryCost string
	)
	err := rows.Scan(
		&p.StrategyID, &p.ID, &p.Contract.Underlying, &optType, &p.Contract.Strike,
		&expiry, &p.EntryPrice, &p.Contracts, &entryCost, &entryTime,
		&p.Target, &p.Stop, &p.OrigDTE, &status,
	)
	if err != nil {
		return nil, err
	}
	p.Contract.Type = pricing.OptionType(optType)
	p.Status = Status(status)
	if p.Contract.Expiry, err = time.Parse(timeLayout, expiry); err != nil {
		return nil, fmt.Errorf("parse expiry: %w", err)
	}
	if p.EntryTime, err = time.Parse(timeLayout, entryTime); err != nil {
		return nil, fmt.Errorf("parse entry_time: %w", err)
	}
	if p.EntryCost, err = decimal.NewFromString(entryCost); err != nil {
		return nil, fmt.Errorf("parse entry_cost: %w", err)
	}
	return &p, nil
}

func (s *SQLiteStore) Outcomes(strategyID string) ([]*Outcome, error) {
	rows, err := s.db.Query(`
		SELECT p.strategy_id, p.position_id, p.underlying, p.option_type, p.strike, p.expiry,
		       p.entry_price, p.contracts, p.entry_cost, p.entry_time, p.target, p.stop,
		       p.orig_dte, p.status,
		       o.exit_price, o.exit_reason, o.exit_time, o.days_held, o.pnl, o.pnl_pct
		FROM outcomes o
		JOIN positions p
		  ON p.strategy_id = o.strategy_id AND p.position_id = o.position_id
		WHERE o.strategy_id = ?
		ORDER BY o.exit_time, o.position_id`, strategyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Outcome
	for rows.Next() {
		var (
			o                            Outcome
			optType, status              string
			expiry, entryTime, entryCost string
			exitTime, pnl                string
		)
		err := rows.Scan(
			&o.StrategyID, &o.ID, &o.Contract.Underlying, &optType, &o.Contract.Strike,
			&expiry, &o.EntryPrice, &o.Contracts, &entryCost, &entryTime,
			&o.Target, &o.Stop, &o.OrigDTE, &status,
			&o.ExitPrice, &o.ExitReason, &exitTime, &o.DaysHeld, &pnl, &o.PnLPct,
		)
		if err != nil {
			return nil, err
		}
		o.Contract.Type = pricing.OptionType(optType)
		o.Position.Status = Status(status)
		if o.Contract.Expiry, err = time.Parse(timeLayout, expiry); err != nil {
			return nil, err
		}
		if o.EntryTime, err = time.Parse(timeLayout, entryTime); err != nil {
			return nil, err
		}
		if o.EntryCost, err = decimal.NewFromString(entryCost); err != nil {
			return nil, err
		}
		if o.ExitTime, err = time.Parse(timeLayout, exitTime); err != nil {
			return nil, err
		}
		if o.PnL, err = decimal.NewFromString(pnl); err != nil {
			return nil, err
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) History(strategyID string) ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT strategy_id, position_id, time, action, amount, balance_before, balance_after, detail
		FROM history
		WHERE strategy_id = ?
		ORDER BY id`, strategyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                        Entry
			posID                    sql.NullString
			ts, amount, before, after string
		)
		if err := rows.Scan(&e.StrategyID, &posID, &ts, &e.Action, &amount, &before, &after, &e.Detail); err != nil {
			return nil, err
		}
		e.PositionID = posID.String
		if e.Time, err = time.Parse(timeLayout, ts); err != nil {
			return nil, err
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		if e.BalanceBefore, err = decimal.NewFromString(before); err != nil {
			return nil, err
		}
		if e.BalanceAfter, err = decimal.NewFromString(after); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) LastBalance(strategyID string) (decimal.Decimal, bool, error) {
	var after string
	err := s.db.QueryRow(`
		SELECT balance_after FROM history
		WHERE strategy_id = ?
		ORDER BY id DESC LIMIT 1`, strategyID).Scan(&after)
	if err == sql.ErrNoRows {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	d, err := decimal.NewFromString(after)
	if err != nil {
		return decimal.Zero, false, err
	}
	return d, true, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
