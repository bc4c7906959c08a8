package ledger

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// Store is the durable backend for one or more strategy accounts. A single
// schema serves every strategy, keyed by (strategy_id, position_id); there
// is never one physical store per strategy.
//
// SaveOpen and SaveClose must be atomic: the position/outcome row and its
// history entry land together or not at all.
type Store interface {
	SaveOpen(pos *Position, e Entry) error
	SaveClose(out *Outcome, e Entry) error
	OpenPositions(strategyID string) ([]*Position, error)
	Outcomes(strategyID string) ([]*Outcome, error)
	History(strategyID string) ([]Entry, error)
	Deposit(e Entry) error
	LastBalance(strategyID string) (decimal.Decimal, bool, error)
	Close() error
}

// MemStore is an in-memory Store. Backtest windows use one each so parallel
// windows share no mutable state; tests use it to avoid disk.
type MemStore struct {
	mu        sync.Mutex
	positions map[string]map[string]*Position // strategy -> id -> position
	outcomes  map[string][]*Outcome
	history   map[string][]Entry
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		positions: make(map[string]map[string]*Position),
		outcomes:  make(map[string][]*Outcome),
		history:   make(map[string][]Entry),
	}
}

func (m *MemStore) SaveOpen(pos *Position, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID := m.positions[pos.StrategyID]
	if byID == nil {
		byID = make(map[string]*Position)
		m.positions[pos.StrategyID] = byID
	}
	cp := *pos
	byID[pos.ID] = &cp
	m.history[e.StrategyID] = append(m.history[e.StrategyID], e)
	return nil
}

func (m *MemStore) SaveClose(out *Outcome, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID := m.positions[out.StrategyID]
	if byID == nil || byID[out.ID] == nil {
		return ErrNotFound
	}
	byID[out.ID].Status = StatusClosed

	cp := *out
	cp.Position.Status = StatusClosed
	m.outcomes[out.StrategyID] = append(m.outcomes[out.StrategyID], &cp)
	m.history[e.StrategyID] = append(m.history[e.StrategyID], e)
	return nil
}

func (m *MemStore) OpenPositions(strategyID string) ([]*Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Position
	for _, p := range m.positions[strategyID] {
		if p.Status == StatusOpen {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) Outcomes(strategyID string) ([]*Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*Outcome, 0, len(m.outcomes[strategyID]))
	for _, o := range m.outcomes[strategyID] {
		cp := *o
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemStore) History(strategyID string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Entry, len(m.history[strategyID]))
	copy(out, m.history[strategyID])
	return out, nil
}

func (m *MemStore) Deposit(e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history[e.StrategyID] = append(m.history[e.StrategyID], e)
	return nil
}

func (m *MemStore) LastBalance(strategyID string) (decimal.Decimal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.history[strategyID]
	if len(h) == 0 {
		return decimal.Zero, false, nil
	}
	return h[len(h)-1].BalanceAfter, true, nil
}

func (m *MemStore) Close() error { return nil }
