// Package game is the client-side state reconciliation engine: it merges
// asynchronous, out-of-order, partially-overlapping relay messages with
// locally-initiated signed transactions into one consistent view of the
// game. All state in this package is owned by a single engine goroutine.
package game

import (
	"sort"

	"stonkroyale.gg/internal/protocol"
)

// Portfolio is one participant's authoritative balance and holdings as of
// the latest position snapshot. Values are trusted as-is, not re-derived.
type Portfolio struct {
	Balance  uint64
	Holdings uint64
}

// Ledger maps participant identity to portfolio. Position snapshots carry
// no ordering token, so application is last-write-wins: a stale snapshot
// arriving late can regress displayed state until the next one.
type Ledger struct {
	positions map[string]Portfolio
}

func NewLedger() *Ledger {
	return &Ledger{positions: make(map[string]Portfolio)}
}

// ApplyPosition overwrites the stored portfolio for address and returns
// the previous value, if any, so callers can synthesize trade notices.
func (l *Ledger) ApplyPosition(address string, balance, holdings uint64) (prev Portfolio, existed bool) {
	key := protocol.NormalizeAddress(address)
	prev, existed = l.positions[key]
	l.positions[key] = Portfolio{Balance: balance, Holdings: holdings}
	return prev, existed
}

// Get returns the portfolio for address, if one has been observed.
func (l *Ledger) Get(address string) (Portfolio, bool) {
	p, ok := l.positions[protocol.NormalizeAddress(address)]
	return p, ok
}

// Addresses returns all known participants in stable order.
func (l *Ledger) Addresses() []string {
	out := make([]string, 0, len(l.positions))
	for a := range l.positions {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func (l *Ledger) Len() int { return len(l.positions) }
