// Package id generates ULID identifiers for positions, outcomes and
// backtest runs. ULIDs sort lexicographically by creation time, which keeps
// SQLite indexes and ledger listings in chronological order for free.
package id

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptorand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	// Monotonic entropy keeps IDs minted within the same millisecond ordered.
	entropy = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns a fresh ULID string.
func New() string {
	return NewAt(time.Now().UTC())
}

// NewAt returns a ULID whose timestamp component is taken from t. Backtests
// use this so replayed position IDs sort by simulated time, not wall clock.
func NewAt(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()

	u, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		panic(err)
	}
	return u.String()
}
