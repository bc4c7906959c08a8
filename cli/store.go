package cli

import (
	"fmt"
	"time"

	"github.com/rustyeddy/optsim/config"
	"github.com/rustyeddy/optsim/ledger"
)

func openStore(cfg *config.Config) (ledger.Store, error) {
	switch cfg.Ledger.Type {
	case "sqlite":
		store, err := ledger.NewSQLite(cfg.Ledger.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open ledger db: %w", err)
		}
		return store, nil
	case "memory":
		return ledger.NewMemStore(), nil
	default:
		return nil, fmt.Errorf("unknown ledger type %q", cfg.Ledger.Type)
	}
}

// barTicker paces the replay loop. In realtime mode it wraps a time.Ticker;
// otherwise its channel is always ready so bars drain as fast as they tick.
type barTicker struct {
	ticker *time.Ticker
	always chan time.Time
}

func newBarTicker(realtime bool, interval time.Duration) *barTicker {
	if realtime && interval > 0 {
		return &barTicker{ticker: time.NewTicker(interval)}
	}
	ch := make(chan time.Time)
	close(ch)
	return &barTicker{always: ch}
}

func (b *barTicker) C() <-chan time.Time {
	if b.ticker != nil {
		return b.ticker.C
	}
	return b.always
}

func (b *barTicker) Stop() {
	if b.ticker != nil {
		b.ticker.Stop()
	}
}
