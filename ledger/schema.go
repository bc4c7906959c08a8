package ledger

// Schema for the SQLite store. One set of tables serves every strategy,
// keyed by (strategy_id, position_id). Money columns are stored as exact
// decimal strings; times as RFC 3339 text in UTC so a persisted position
// restores field-identical.
const Schema = `
CREATE TABLE IF NOT EXISTS positions (
	strategy_id  TEXT NOT NULL,
	position_id  TEXT NOT NULL,
	underlying   TEXT NOT NULL,
	option_type  TEXT NOT NULL,
	strike       REAL NOT NULL,
	expiry       TEXT NOT NULL,
	entry_price  REAL NOT NULL,
	contracts    INTEGER NOT NULL CHECK (contracts > 0),
	entry_cost   TEXT NOT NULL,
	entry_time   TEXT NOT NULL,
	target       REAL NOT NULL,
	stop         REAL NOT NULL,
	orig_dte     REAL NOT NULL,
	status       TEXT NOT NULL,
	PRIMARY KEY (strategy_id, position_id)
);

CREATE TABLE IF NOT EXISTS outcomes (
	strategy_id  TEXT NOT NULL,
	position_id  TEXT NOT NULL,
	exit_price   REAL NOT NULL,
	exit_reason  TEXT NOT NULL,
	exit_time    TEXT NOT NULL,
	days_held    REAL NOT NULL,
	pnl          TEXT NOT NULL,
	pnl_pct      REAL NOT NULL,
	PRIMARY KEY (strategy_id, position_id),
	FOREIGN KEY (strategy_id, position_id) REFERENCES positions(strategy_id, position_id)
);

CREATE TABLE IF NOT EXISTS history (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	strategy_id    TEXT NOT NULL,
	position_id    TEXT,
	time           TEXT NOT NULL,
	action         TEXT NOT NULL,
	amount         TEXT NOT NULL,
	balance_before TEXT NOT NULL,
	balance_after  TEXT NOT NULL,
	detail         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(strategy_id, status);
CREATE INDEX IF NOT EXISTS idx_history_strategy ON history(strategy_id, id);
`
