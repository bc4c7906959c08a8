package ledger

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/optsim/pricing"
	"github.com/rustyeddy/optsim/sim"
)

func newTestSQLite(t *testing.T) (*SQLiteStore, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	_, path := newTestSQLite(t)

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('positions','outcomes','history')`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())
	assert.True(t, found["positions"])
	assert.True(t, found["outcomes"])
	assert.True(t, found["history"])
}

func TestSQLitePositionRoundTrip(t *testing.T) {
	t.Parallel()

	s, _ := newTestSQLite(t)

	pos := &Position{
		ID:         "01HTESTPOSITION0000000000A",
		StrategyID: "strat-1",
		Contract: pricing.Contract{
			Underlying: "SPY",
			Type:       pricing.Put,
			Strike:     455.5,
			Expiry:     time.Date(2024, 4, 19, 0, 0, 0, 0, time.UTC),
		},
		EntryPrice: 2.502,
		Contracts:  3,
		EntryCost:  Cents(752.55),
		EntryTime:  time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC),
		Target:     5.004,
		Stop:       1.251,
		OrigDTE:    49,
		Status:     StatusOpen,
	}
	e := Entry{
		Time:          pos.EntryTime,
		StrategyID:    "strat-1",
		PositionID:    pos.ID,
		Action:        "OPEN",
		Amount:        pos.EntryCost,
		BalanceBefore: Cents(1000),
		BalanceAfter:  Cents(247.45),
		Detail:        "open 3x SPY 455.50 put 2024-04-19",
	}
	require.NoError(t, s.SaveOpen(pos, e))

	got, err := s.OpenPositions("strat-1")
	require.NoError(t, err)
	require.Len(t, got, 1)

	// Round-trip law: every field identical.
	assert.Equal(t, pos.ID, got[0].ID)
	assert.Equal(t, pos.Contract, got[0].Contract)
	assert.Equal(t, pos.EntryPrice, got[0].EntryPrice)
	assert.Equal(t, pos.Contracts, got[0].Contracts)
	assert.True(t, pos.EntryCost.Equal(got[0].EntryCost))
	assert.True(t, pos.EntryTime.Equal(got[0].EntryTime))
	assert.Equal(t, pos.Target, got[0].Target)
	assert.Equal(t, pos.Stop, got[0].Stop)
	assert.Equal(t, pos.OrigDTE, got[0].OrigDTE)
	assert.Equal(t, pos.Status, got[0].Status)
}

func TestSQLiteCloseIsTerminal(t *testing.T) {
	t.Parallel()

	s, _ := newTestSQLite(t)
	a, err := NewAccount("strat-1", 1000, s)
	require.NoError(t, err)

	fill := sim.Fill{
		Contract: pricing.Contract{
			Underlying: "SPY", Type: pricing.Call, Strike: 470,
			Expiry: time.Date(2024, 4, 19, 0, 0, 0, 0, time.UTC),
		},
		Side: sim.Buy, Price: 2.45, Contracts: 1, TotalCost: 245,
		Time: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	pos, err := a.OpenPosition(fill, 4.9, 1.2)
	require.NoError(t, err)

	_, err = a.ClosePosition(pos.ID, 4.95, 494.35, "PROFIT_TARGET", fill.Time.AddDate(0, 0, 5))
	require.NoError(t, err)

	// No reopen: the CLOSED row refuses another transition.
	err = s.SaveClose(&Outcome{Position: *pos}, Entry{StrategyID: "strat-1"})
	assert.ErrorIs(t, err, ErrNotFound)

	outs, err := s.Outcomes("strat-1")
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, "PROFIT_TARGET", outs[0].ExitReason)
	assert.Equal(t, "249.35", outs[0].PnL.String())
}

func TestSQLiteRestoreAfterReopen(t *testing.T) {
	t.Parallel()

	s, path := newTestSQLite(t)
	a, err := NewAccount("strat-1", 1000, s)
	require.NoError(t, err)

	fill := sim.Fill{
		Contract: pricing.Contract{
			Underlying: "SPY", Type: pricing.Call, Strike: 470,
			Expiry: time.Date(2024, 4, 19, 0, 0, 0, 0, time.UTC),
		},
		Side: sim.Buy, Price: 2.45, Contracts: 1, TotalCost: 245.65,
		Time: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	pos, err := a.OpenPosition(fill, 4.9, 1.2)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Simulated process restart: fresh store handle, fresh account.
	s2, err := NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s2.Close() })

	b, err := NewAccount("strat-1", 0, s2)
	require.NoError(t, err)
	assert.Equal(t, "754.35", b.Balance().String())

	open := b.OpenPositions()
	require.Len(t, open, 1)
	assert.Equal(t, pos.ID, open[0].ID)
	assert.True(t, pos.EntryCost.Equal(open[0].EntryCost))
}

func TestSQLiteStrategiesShareSchema(t *testing.T) {
	t.Parallel()

	s, _ := newTestSQLite(t)

	// Two strategies, one store, no cross-talk.
	a1, err := NewAccount("alpha", 500, s)
	require.NoError(t, err)
	a2, err := NewAccount("beta", 900, s)
	require.NoError(t, err)

	assert.Equal(t, "500", a1.Balance().String())
	assert.Equal(t, "900", a2.Balance().String())

	h1, err := s.History("alpha")
	require.NoError(t, err)
	assert.Len(t, h1, 1)
}
