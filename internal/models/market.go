package models

import "time"

// PricePoint is one daily close.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// DividendPoint is one per-share dividend at its ex-date.
type DividendPoint struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// Coverage records the date range a cached series has been fetched for.
// Dates inside the range with no point were confirmed as non-trading (or no dividend).
type Coverage struct {
	From      time.Time `json:"covered_from"`
	To        time.Time `json:"covered_to"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Covers reports whether [from, to] lies within the coverage.
func (c Coverage) Covers(from, to time.Time) bool {
	if c.From.IsZero() || c.To.IsZero() {
		return false
	}
	return !from.Before(c.From) && !to.After(c.To)
}

// PriceSeries is the cached daily close history of a symbol, sorted by date with no duplicates.
type PriceSeries struct {
	Symbol string       `json:"symbol"`
	Points []PricePoint `json:"points"`
	Coverage
}

// DividendSeries is the cached per-share dividend history of a symbol, sorted by date.
type DividendSeries struct {
	Symbol string          `json:"symbol"`
	Points []DividendPoint `json:"points"`
	Coverage
}

// RealtimeQuote is a live price from the market data source.
type RealtimeQuote struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	AsOf   time.Time `json:"as_of"`
}

// RealtimeSnapshot is the persisted lightweight realtime price of a symbol,
// kept independently of the daily close caches.
type RealtimeSnapshot struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	AsOf      time.Time `json:"as_of"`
	FetchedAt time.Time `json:"fetched_at"`
}
