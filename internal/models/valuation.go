package models

import "time"

// ValuePoint is one calendar day of a holding's valuation.
type ValuePoint struct {
	Date                time.Time `json:"date"`
	Close               float64   `json:"close"`
	SharesHeld          float64   `json:"shares_held"`
	MarketValue         float64   `json:"market_value"`
	CostBasis           float64   `json:"cost_basis"`
	CumulativeDividends float64   `json:"cumulative_dividends"`
}

// ValueSeries is the derived daily valuation of a holding from its first event to AsOf.
// It is a rebuildable cache artifact and is never edited by hand.
type ValueSeries struct {
	Portfolio  string       `json:"portfolio"`
	Symbol     string       `json:"symbol"`
	From       time.Time    `json:"from"`
	AsOf       time.Time    `json:"as_of"`
	Points     []ValuePoint `json:"points"`
	Warnings   []string     `json:"warnings,omitempty"`
	ComputedAt time.Time    `json:"computed_at"`

	// SourceModTime is the portfolio file's modification time as read before
	// the events this series was computed from.
	SourceModTime time.Time `json:"source_mod_time"`
}

// Key returns the holding key of the series.
func (v *ValueSeries) Key() HoldingKey {
	return HoldingKey{Portfolio: v.Portfolio, Symbol: v.Symbol}
}

// Last returns the final point, or false for an empty series.
func (v *ValueSeries) Last() (ValuePoint, bool) {
	if v == nil || len(v.Points) == 0 {
		return ValuePoint{}, false
	}
	return v.Points[len(v.Points)-1], true
}

// At returns the point on date, or false when the date is outside the series.
// Points are one per calendar day, so the lookup is positional.
func (v *ValueSeries) At(date time.Time) (ValuePoint, bool) {
	if v == nil || len(v.Points) == 0 {
		return ValuePoint{}, false
	}
	offset := int(date.Sub(v.Points[0].Date).Hours() / 24)
	if offset < 0 || offset >= len(v.Points) {
		return ValuePoint{}, false
	}
	p := v.Points[offset]
	if !p.Date.Equal(date) {
		for _, q := range v.Points {
			if q.Date.Equal(date) {
				return q, true
			}
		}
		return ValuePoint{}, false
	}
	return p, true
}
