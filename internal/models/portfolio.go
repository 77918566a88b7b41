// Package models defines data structures for folio
package models

import (
	"sort"
	"strings"
	"time"
)

// EventKind categorizes a per-symbol portfolio event.
type EventKind string

const (
	EventPurchase EventKind = "purchase"
	EventSale     EventKind = "sale"
	EventDividend EventKind = "dividend"
)

// ValidEventKind returns true if k is a known event kind.
func ValidEventKind(k EventKind) bool {
	switch k {
	case EventPurchase, EventSale, EventDividend:
		return true
	default:
		return false
	}
}

// Event is a single purchase, sale or dividend for a symbol.
// Shares, Price and Amount are nullable; a dividend may carry only Amount (cash)
// or only Price (per share).
type Event struct {
	ID     string    `json:"id"`
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Kind   EventKind `json:"kind"`
	Shares *float64  `json:"shares,omitempty"`
	Price  *float64  `json:"price,omitempty"`
	Amount *float64  `json:"amount,omitempty"`
	Note   string    `json:"note,omitempty"`
	Seq    int       `json:"seq"` // insertion order, breaks ties between events on the same date
}

// SharesValue returns Shares or 0 when unset.
func (e Event) SharesValue() float64 { return floatOr(e.Shares, 0) }

// PriceValue returns Price or 0 when unset.
func (e Event) PriceValue() float64 { return floatOr(e.Price, 0) }

// AmountValue returns Amount or 0 when unset.
func (e Event) AmountValue() float64 { return floatOr(e.Amount, 0) }

// Float returns a pointer to v, for populating nullable event fields.
func Float(v float64) *float64 { return &v }

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// HoldingKey identifies one symbol inside one portfolio: the unit of valuation.
type HoldingKey struct {
	Portfolio string `json:"portfolio"`
	Symbol    string `json:"symbol"`
}

// NewHoldingKey builds a key with a normalised symbol.
func NewHoldingKey(portfolio, symbol string) HoldingKey {
	return HoldingKey{Portfolio: portfolio, Symbol: NormalizeSymbol(symbol)}
}

// String renders the key as "portfolio/SYMBOL".
func (k HoldingKey) String() string {
	return k.Portfolio + "/" + k.Symbol
}

// ParseHoldingKey parses the "portfolio/SYMBOL" form. Portfolio names never
// contain "/", so the first one separates them; symbols such as BRK/B may.
func ParseHoldingKey(s string) (HoldingKey, bool) {
	i := strings.Index(s, "/")
	if i <= 0 || i == len(s)-1 {
		return HoldingKey{}, false
	}
	return HoldingKey{Portfolio: s[:i], Symbol: s[i+1:]}, true
}

// NormalizeSymbol upper-cases and trims a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Portfolio is the authoritative event log of one portfolio file.
type Portfolio struct {
	Name       string      `json:"name"`
	Events     []Event     `json:"events"`
	CashEvents []CashEvent `json:"cash_events"`
}

// Symbols returns the sorted set of symbols referenced by events.
func (p *Portfolio) Symbols() []string {
	seen := make(map[string]bool)
	for _, e := range p.Events {
		if s := NormalizeSymbol(e.Symbol); s != "" {
			seen[s] = true
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// EventsFor returns the events of one symbol in insertion order.
func (p *Portfolio) EventsFor(symbol string) []Event {
	symbol = NormalizeSymbol(symbol)
	var out []Event
	for _, e := range p.Events {
		if NormalizeSymbol(e.Symbol) == symbol {
			out = append(out, e)
		}
	}
	return out
}

// FirstEventDate returns the earliest event date for symbol, or for all symbols when symbol is "".
func (p *Portfolio) FirstEventDate(symbol string) time.Time {
	symbol = NormalizeSymbol(symbol)
	var earliest time.Time
	for _, e := range p.Events {
		if symbol != "" && NormalizeSymbol(e.Symbol) != symbol {
			continue
		}
		if e.Date.IsZero() {
			continue
		}
		if earliest.IsZero() || e.Date.Before(earliest) {
			earliest = e.Date
		}
	}
	return earliest
}

// NextSeq returns the next insertion sequence number across events and cash events.
func (p *Portfolio) NextSeq() int {
	next := 0
	for _, e := range p.Events {
		if e.Seq >= next {
			next = e.Seq + 1
		}
	}
	for _, c := range p.CashEvents {
		if c.Seq >= next {
			next = c.Seq + 1
		}
	}
	return next
}
