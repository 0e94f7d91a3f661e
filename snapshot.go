package kabuka

import "time"

// Snapshot is the outcome of one refresh cycle.
type Snapshot struct {
	// Cycle is the monotonic token of the refresh cycle.
	Cycle    uint64    `json:"cycle"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Engine   string    `json:"engine"`
	// Entries follow the configured instrument order.
	Entries []Entry          `json:"entries"`
	Summary PortfolioSummary `json:"summary"`
}

// Entry returns the entry of the instrument with key.
func (s Snapshot) Entry(key string) (Entry, bool) {
	for _, en := range s.Entries {
		if en.Instrument.Key == key {
			return en, true
		}
	}
	return Entry{}, false
}

// Errors returns the entries whose fetch failed.
func (s Snapshot) Errors() []Entry {
	var failed []Entry
	for _, en := range s.Entries {
		if en.Error != "" {
			failed = append(failed, en)
		}
	}
	return failed
}
