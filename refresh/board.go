package refresh

import (
	"fmt"
	"sync"

	"github.com/etnz/kabuka"
)

// StalePolicy decides what the board does with results that arrive late,
// after a stop or behind a newer cycle.
type StalePolicy int

const (
	// ApplyLate shows every result as it arrives, whatever its cycle.
	ApplyLate StalePolicy = iota
	// DiscardStale drops results from cycles issued before the last reset,
	// or older than what is already shown.
	DiscardStale
)

// ParseStalePolicy reads "apply" or "discard".
func ParseStalePolicy(s string) (StalePolicy, error) {
	switch s {
	case "apply", "":
		return ApplyLate, nil
	case "discard":
		return DiscardStale, nil
	}
	return ApplyLate, fmt.Errorf("unknown stale result policy %q", s)
}

func (p StalePolicy) String() string {
	if p == DiscardStale {
		return "discard"
	}
	return "apply"
}

// Board holds the last known entry of every tracked instrument, and the
// last published snapshot. It is what the presentation layer reads.
type Board struct {
	policy StalePolicy

	mu      sync.RWMutex
	order   []string
	entries map[string]kabuka.Entry
	floor   uint64
	last    *kabuka.Snapshot
}

// NewBoard returns a board showing tracked, with nothing fetched yet.
func NewBoard(tracked []kabuka.Tracked, policy StalePolicy) *Board {
	b := &Board{
		policy:  policy,
		entries: make(map[string]kabuka.Entry, len(tracked)),
	}
	for _, t := range tracked {
		b.order = append(b.order, t.Key)
		b.entries[t.Key] = kabuka.Entry{Instrument: t.Instrument, Holding: t.Holding}
	}
	return b
}

// Policy returns the stale result policy of b.
func (b *Board) Policy() StalePolicy { return b.policy }

func (b *Board) stale(cycle, shown uint64) bool {
	return b.policy == DiscardStale && (cycle < b.floor || cycle < shown)
}

// Apply shows en, unless the policy says it is stale. It reports whether
// en was applied.
func (b *Board) Apply(en kabuka.Entry) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.entries[en.Instrument.Key]
	if !ok {
		return false
	}
	if b.stale(en.Cycle, cur.Cycle) {
		return false
	}
	b.entries[en.Instrument.Key] = en
	return true
}

// Publish records s as the latest snapshot, unless the policy says it is
// stale.
func (b *Board) Publish(s kabuka.Snapshot) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	var shown uint64
	if b.last != nil {
		shown = b.last.Cycle
	}
	if b.stale(s.Cycle, shown) {
		return false
	}
	b.last = &s
	return true
}

// Reset makes results of cycles below floor stale. It has no effect with
// ApplyLate.
func (b *Board) Reset(floor uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if floor > b.floor {
		b.floor = floor
	}
}

// Entries returns the shown entries, in tracking order.
func (b *Board) Entries() []kabuka.Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]kabuka.Entry, 0, len(b.order))
	for _, k := range b.order {
		out = append(out, b.entries[k])
	}
	return out
}

// Entry returns the shown entry of key.
func (b *Board) Entry(key string) (kabuka.Entry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	en, ok := b.entries[key]
	return en, ok
}

// Snapshot returns the last published snapshot, if any.
func (b *Board) Snapshot() (kabuka.Snapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.last == nil {
		return kabuka.Snapshot{}, false
	}
	return *b.last, true
}
