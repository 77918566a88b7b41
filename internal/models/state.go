package models

import (
	"sort"
	"time"
)

// SymbolState is the sync lifecycle position of a holding.
type SymbolState string

// Symbol states. A holding starts unknown, is prefetched, computed and then
// clean; any change to its inputs moves it to dirty.
const (
	StateUnknown     SymbolState = "unknown"
	StatePrefetching SymbolState = "prefetching"
	StateComputing   SymbolState = "computing"
	StateClean       SymbolState = "clean"
	StateDirty       SymbolState = "dirty"
)

// CanTransition reports whether moving from s to next is a legal step.
// Any state may become dirty; errors park the holding in dirty for retry.
func (s SymbolState) CanTransition(next SymbolState) bool {
	if next == StateDirty {
		return true
	}
	switch s {
	case StateUnknown, StateDirty, StateClean:
		return next == StatePrefetching || next == StateComputing
	case StatePrefetching:
		return next == StateComputing
	case StateComputing:
		return next == StateClean
	default:
		return false
	}
}

// SymbolStatus is the per-holding entry of the sync status file.
type SymbolStatus struct {
	Portfolio string      `json:"portfolio"`
	Symbol    string      `json:"symbol"`
	State     SymbolState `json:"state"`

	// Freshness timestamps, updated when the corresponding step completes
	PricesFetchedAt    time.Time `json:"prices_fetched_at"`
	DividendsFetchedAt time.Time `json:"dividends_fetched_at"`
	ComputedAt         time.Time `json:"computed_at"`
	RealtimeAt         time.Time `json:"realtime_at"`

	LastError string    `json:"last_error,omitempty"`
	Warnings  []string  `json:"warnings,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key returns the holding key of the status entry.
func (s *SymbolStatus) Key() HoldingKey {
	return HoldingKey{Portfolio: s.Portfolio, Symbol: s.Symbol}
}

// SyncStatus is the persisted status of the background scheduler.
type SyncStatus struct {
	Running         bool                     `json:"running"`
	LastCycleAt     time.Time                `json:"last_cycle_at"`
	LastCycleMS     int64                    `json:"last_cycle_ms"`
	LastRealtimeAt  time.Time                `json:"last_realtime_at"`
	LastError       string                   `json:"last_error,omitempty"`
	Symbols         map[string]*SymbolStatus `json:"symbols"`
	JournalsBuiltAt map[string]time.Time     `json:"journals_built_at,omitempty"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

// NewSyncStatus returns an empty status.
func NewSyncStatus() *SyncStatus {
	return &SyncStatus{
		Symbols:         make(map[string]*SymbolStatus),
		JournalsBuiltAt: make(map[string]time.Time),
	}
}

// Symbol returns the status entry for key, creating an unknown one if absent.
func (s *SyncStatus) Symbol(key HoldingKey) *SymbolStatus {
	if s.Symbols == nil {
		s.Symbols = make(map[string]*SymbolStatus)
	}
	st, ok := s.Symbols[key.String()]
	if !ok {
		st = &SymbolStatus{Portfolio: key.Portfolio, Symbol: key.Symbol, State: StateUnknown}
		s.Symbols[key.String()] = st
	}
	return st
}

// SortedKeys returns the status keys in order.
func (s *SyncStatus) SortedKeys() []string {
	keys := make([]string, 0, len(s.Symbols))
	for k := range s.Symbols {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DirtyEntry is one pending recomputation. Generation increases on every mark,
// so a clear only removes the entry it was issued for.
type DirtyEntry struct {
	Key        HoldingKey `json:"key"`
	MarkedAt   time.Time  `json:"marked_at"`
	Generation uint64     `json:"generation"`
	Reason     string     `json:"reason,omitempty"`
}

// DirtySet is the persisted form of the dirty tracker.
type DirtySet struct {
	NextGeneration uint64                `json:"next_generation"`
	Entries        map[string]DirtyEntry `json:"entries"`
}

// NewDirtySet returns an empty dirty set.
func NewDirtySet() *DirtySet {
	return &DirtySet{NextGeneration: 1, Entries: make(map[string]DirtyEntry)}
}

// Mark adds or refreshes the entry for key, returning its new generation.
func (d *DirtySet) Mark(key HoldingKey, reason string, now time.Time) uint64 {
	if d.Entries == nil {
		d.Entries = make(map[string]DirtyEntry)
	}
	if d.NextGeneration == 0 {
		d.NextGeneration = 1
	}
	gen := d.NextGeneration
	d.NextGeneration++
	d.Entries[key.String()] = DirtyEntry{Key: key, MarkedAt: now, Generation: gen, Reason: reason}
	return gen
}

// Clear removes the entry for key if it is still at generation. It returns true if removed.
func (d *DirtySet) Clear(key HoldingKey, generation uint64) bool {
	e, ok := d.Entries[key.String()]
	if !ok || e.Generation != generation {
		return false
	}
	delete(d.Entries, key.String())
	return true
}

// Sorted returns the entries ordered by mark time, then key.
func (d *DirtySet) Sorted() []DirtyEntry {
	out := make([]DirtyEntry, 0, len(d.Entries))
	for _, e := range d.Entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].MarkedAt.Equal(out[j].MarkedAt) {
			return out[i].MarkedAt.Before(out[j].MarkedAt)
		}
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}

// HoldingStatus is the foreground view of one holding, built from cache
// artifacts only. Stale is set when the value series is absent or dirty.
type HoldingStatus struct {
	Symbol        string      `json:"symbol"`
	State         SymbolState `json:"state"`
	Stale         bool        `json:"stale"`
	ValueAsOf     time.Time   `json:"value_as_of"`
	SharesHeld    float64     `json:"shares_held"`
	MarketValue   float64     `json:"market_value"`
	CostBasis     float64     `json:"cost_basis"`
	Dividends     float64     `json:"dividends"`
	RealtimePrice float64     `json:"realtime_price,omitempty"`
	RealtimeAsOf  time.Time   `json:"realtime_as_of,omitempty"`
	Warnings      []string    `json:"warnings,omitempty"`
	LastError     string      `json:"last_error,omitempty"`
}

// PortfolioStatus aggregates holding status for a portfolio.
type PortfolioStatus struct {
	Portfolio   string          `json:"portfolio"`
	Holdings    []HoldingStatus `json:"holdings"`
	TotalValue  float64         `json:"total_value"`
	Stale       bool            `json:"stale"`
	Pending     int             `json:"pending"`
	LastCycleAt time.Time       `json:"last_cycle_at"`

	Capital *CapitalPerformance `json:"capital,omitempty"`
}
