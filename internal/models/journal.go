package models

import "time"

// Journal is the cross-symbol daily market value matrix of a portfolio.
type Journal struct {
	Portfolio string         `json:"portfolio"`
	AsOf      time.Time      `json:"as_of"`
	Symbols   []string       `json:"symbols"`
	Rows      []JournalRow   `json:"rows"`
	Summary   JournalSummary `json:"summary"`
	BuiltAt   time.Time      `json:"built_at"`
}

// JournalRow holds one date's market value per symbol and their total.
// ATH flags the symbols whose all-time-high date is this row.
type JournalRow struct {
	Date     time.Time          `json:"date"`
	Values   map[string]float64 `json:"values"`
	Total    float64            `json:"total"`
	ATH      map[string]bool    `json:"ath,omitempty"`
	TotalATH bool               `json:"total_ath,omitempty"`
}

// JournalSummary is the trailing "since all-time-high" row.
type JournalSummary struct {
	PeakDate       time.Time            `json:"peak_date"`
	PeakTotal      float64              `json:"peak_total"`
	CurrentTotal   float64              `json:"current_total"`
	SinceATH       float64              `json:"since_ath"`
	SymbolPeakDate map[string]time.Time `json:"symbol_peak_date,omitempty"`
	SymbolSinceATH map[string]float64   `json:"symbol_since_ath"`
}

// HasSymbols reports whether the journal columns equal symbols (both sorted).
func (j *Journal) HasSymbols(symbols []string) bool {
	if j == nil || len(j.Symbols) != len(symbols) {
		return false
	}
	for i := range symbols {
		if j.Symbols[i] != symbols[i] {
			return false
		}
	}
	return true
}
