// Package journal merges a portfolio's holding value series into one daily
// matrix with all-time-high annotations.
package journal

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

// peak tracks a running maximum and the date it was last raised.
type peak struct {
	value decimal.Decimal
	date  time.Time
}

// observe raises the peak when v is strictly greater and positive. A later
// day that only ties the peak does not move it.
func (p *peak) observe(date time.Time, v decimal.Decimal) {
	if v.IsPositive() && v.GreaterThan(p.value) {
		p.value = v
		p.date = date
	}
}

// BuildJournal outer-joins the value series of symbols over calendar days
// from..asOf. A symbol without a series or without a point on a date
// contributes zero. Cells are rounded to cents and each total is the sum of
// its row's cells. When from is zero the earliest series start is used.
func BuildJournal(portfolio string, symbols []string, series map[string]*models.ValueSeries, from, asOf time.Time) *models.Journal {
	cols := normaliseSymbols(symbols)
	from, asOf = common.Day(from), common.Day(asOf)
	if from.IsZero() {
		for _, sym := range cols {
			if vs := series[sym]; vs != nil && len(vs.Points) > 0 {
				from = common.MinDate(from, common.Day(vs.Points[0].Date))
			}
		}
	}

	j := &models.Journal{
		Portfolio: portfolio,
		AsOf:      asOf,
		Symbols:   cols,
		Rows:      []models.JournalRow{},
		Summary: models.JournalSummary{
			SymbolPeakDate: map[string]time.Time{},
			SymbolSinceATH: map[string]float64{},
		},
	}
	if from.IsZero() || asOf.IsZero() || asOf.Before(from) {
		for _, sym := range cols {
			j.Summary.SymbolSinceATH[sym] = 0
		}
		return j
	}

	lookup := make(map[string]map[time.Time]float64, len(cols))
	for _, sym := range cols {
		m := map[time.Time]float64{}
		if vs := series[sym]; vs != nil {
			for _, p := range vs.Points {
				m[common.Day(p.Date)] = p.MarketValue
			}
		}
		lookup[sym] = m
	}

	symPeaks := make(map[string]*peak, len(cols))
	for _, sym := range cols {
		symPeaks[sym] = &peak{}
	}
	var totalPeak peak
	current := make(map[string]decimal.Decimal, len(cols))
	var currentTotal decimal.Decimal

	for _, day := range common.CalendarDays(from, asOf) {
		row := models.JournalRow{Date: day, Values: make(map[string]float64, len(cols))}
		total := decimal.Zero
		for _, sym := range cols {
			cell := decimal.NewFromFloat(lookup[sym][day]).Round(2)
			row.Values[sym] = cell.InexactFloat64()
			total = total.Add(cell)
			symPeaks[sym].observe(day, cell)
			current[sym] = cell
		}
		row.Total = total.InexactFloat64()
		totalPeak.observe(day, total)
		currentTotal = total
		j.Rows = append(j.Rows, row)
	}

	// Only the most recent peak of each column is flagged
	index := make(map[time.Time]int, len(j.Rows))
	for i, r := range j.Rows {
		index[r.Date] = i
	}
	for _, sym := range cols {
		p := symPeaks[sym]
		if p.date.IsZero() {
			j.Summary.SymbolSinceATH[sym] = current[sym].InexactFloat64()
			continue
		}
		row := &j.Rows[index[p.date]]
		if row.ATH == nil {
			row.ATH = map[string]bool{}
		}
		row.ATH[sym] = true
		j.Summary.SymbolPeakDate[sym] = p.date
		j.Summary.SymbolSinceATH[sym] = current[sym].Sub(p.value).InexactFloat64()
	}

	j.Summary.CurrentTotal = currentTotal.InexactFloat64()
	if !totalPeak.date.IsZero() {
		j.Rows[index[totalPeak.date]].TotalATH = true
		j.Summary.PeakDate = totalPeak.date
		j.Summary.PeakTotal = totalPeak.value.InexactFloat64()
		j.Summary.SinceATH = currentTotal.Sub(totalPeak.value).InexactFloat64()
	}
	return j
}

func normaliseSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = models.NormalizeSymbol(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
