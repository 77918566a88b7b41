// Package valuation replays a holding's event log against cached prices and
// dividends to produce its daily value series.
package valuation

import (
	"fmt"
	"sort"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

// shareEpsilon absorbs float noise when comparing share counts.
const shareEpsilon = 1e-9

// Input is everything needed to value one holding. Prices and Dividends may
// be nil. From defaults to the first event date.
type Input struct {
	Key        models.HoldingKey
	Events     []models.Event
	CashEvents []models.CashEvent
	Prices     *models.PriceSeries
	Dividends  *models.DividendSeries
	From       time.Time
	AsOf       time.Time
	Settings   common.SymbolConfig
}

// step is one replayable change to the holding, ordered by (Date, Seq).
type step struct {
	date   time.Time
	seq    int
	event  *models.Event
	cashIn float64 // attributed cash dividend
}

// holdingState tracks incremental replay state for a holding. Steps and
// prices are sorted by date ascending; cursors advance as dates progress.
type holdingState struct {
	key      models.HoldingKey
	settings common.SymbolConfig

	steps      []step
	stepCursor int

	prices      []models.PricePoint
	priceCursor int
	close       float64
	haveClose   bool

	dividends   []models.DividendPoint
	divCursor   int
	overridden  map[time.Time]bool // dates with an explicit dividend
	shares      float64
	costBasis   float64
	cumDividend float64
	warnings    []string
}

// ComputeValueSeries produces one point per calendar day from in.From to
// in.AsOf inclusive. It is pure: identical inputs give an identical series.
// Missing price coverage yields zero market value rather than an error.
func ComputeValueSeries(in Input) (*models.ValueSeries, error) {
	key := models.HoldingKey{Portfolio: in.Key.Portfolio, Symbol: models.NormalizeSymbol(in.Key.Symbol)}
	state := newHoldingState(key, in)

	from := common.Day(in.From)
	if from.IsZero() && len(state.steps) > 0 {
		from = state.steps[0].date
	}
	asOf := common.Day(in.AsOf)

	series := &models.ValueSeries{
		Portfolio: key.Portfolio,
		Symbol:    key.Symbol,
		From:      from,
		AsOf:      asOf,
		Points:    []models.ValuePoint{},
	}
	if from.IsZero() || asOf.IsZero() || asOf.Before(from) {
		return series, nil
	}

	// Replay from whichever is earlier so state entering From is correct
	start := from
	if len(state.steps) > 0 && state.steps[0].date.Before(start) {
		start = state.steps[0].date
	}

	series.Points = make([]models.ValuePoint, 0, int(asOf.Sub(from).Hours()/24)+1)
	for _, day := range common.CalendarDays(start, asOf) {
		if err := state.advanceTo(day); err != nil {
			return nil, err
		}
		if day.Before(from) {
			continue
		}
		series.Points = append(series.Points, state.point(day))
	}
	series.Warnings = state.warnings
	return series, nil
}

func newHoldingState(key models.HoldingKey, in Input) *holdingState {
	s := &holdingState{
		key:        key,
		settings:   in.Settings,
		overridden: make(map[time.Time]bool),
	}

	for i := range in.Events {
		e := in.Events[i]
		if models.NormalizeSymbol(e.Symbol) != key.Symbol {
			continue
		}
		e.Date = common.Day(e.Date)
		s.steps = append(s.steps, step{date: e.Date, seq: e.Seq, event: &e})
		if e.Kind == models.EventDividend {
			s.overridden[e.Date] = true
		}
	}
	for _, c := range in.CashEvents {
		if c.DividendSymbol() != key.Symbol {
			continue
		}
		date := common.Day(c.Date)
		s.steps = append(s.steps, step{date: date, seq: c.Seq, cashIn: c.Amount})
		s.overridden[date] = true
	}
	sort.SliceStable(s.steps, func(i, j int) bool {
		if !s.steps[i].date.Equal(s.steps[j].date) {
			return s.steps[i].date.Before(s.steps[j].date)
		}
		return s.steps[i].seq < s.steps[j].seq
	})

	if in.Prices != nil {
		s.prices = sortedPrices(in.Prices.Points)
	}
	if in.Dividends != nil {
		s.dividends = sortedDividends(in.Dividends.Points)
	}
	return s
}

// advanceTo applies the price, provider dividend and steps dated day.
func (s *holdingState) advanceTo(day time.Time) error {
	for s.priceCursor < len(s.prices) && !s.prices[s.priceCursor].Date.After(day) {
		if c := s.prices[s.priceCursor].Close; c > 0 {
			s.close = c
			s.haveClose = true
		}
		s.priceCursor++
	}

	sharesEntering := s.shares

	// Provider dividends pay on shares held entering the ex-date
	for s.divCursor < len(s.dividends) && !s.dividends[s.divCursor].Date.After(day) {
		div := s.dividends[s.divCursor]
		s.divCursor++
		if !div.Date.Equal(day) || s.overridden[day] || sharesEntering <= shareEpsilon {
			continue
		}
		s.applyDividend(day, div.Amount*sharesEntering)
	}

	for s.stepCursor < len(s.steps) && !s.steps[s.stepCursor].date.After(day) {
		st := s.steps[s.stepCursor]
		s.stepCursor++
		if st.event == nil {
			s.applyDividend(day, st.cashIn)
			continue
		}
		if err := s.applyEvent(day, st.event, sharesEntering); err != nil {
			return err
		}
	}
	return nil
}

func (s *holdingState) applyEvent(day time.Time, e *models.Event, sharesEntering float64) error {
	switch e.Kind {
	case models.EventPurchase:
		qty := e.SharesValue()
		if qty <= 0 {
			return &models.ComputationError{Key: s.key, Date: day, Reason: fmt.Sprintf("purchase %s has no positive share count", e.ID)}
		}
		s.shares += qty
		s.costBasis += s.purchaseCost(day, e, qty)

	case models.EventSale:
		qty := e.SharesValue()
		if qty <= 0 {
			return &models.ComputationError{Key: s.key, Date: day, Reason: fmt.Sprintf("sale %s has no positive share count", e.ID)}
		}
		if qty > s.shares+shareEpsilon {
			return &models.ComputationError{Key: s.key, Date: day,
				Reason: fmt.Sprintf("sale of %g shares exceeds %g held", qty, s.shares)}
		}
		// Share-weighted average cost leaves with the sold shares
		if s.shares > 0 {
			s.costBasis -= s.costBasis * (qty / s.shares)
		}
		s.shares -= qty
		if s.shares < shareEpsilon {
			s.shares = 0
			s.costBasis = 0
		}

	case models.EventDividend:
		var cash float64
		switch {
		case e.Amount != nil:
			cash = *e.Amount
		case e.Price != nil:
			cash = *e.Price * sharesEntering
		}
		if cash > 0 {
			s.applyDividend(day, cash)
		}

	default:
		return &models.ComputationError{Key: s.key, Date: day, Reason: fmt.Sprintf("unknown event kind %q", e.Kind)}
	}
	return nil
}

// purchaseCost prefers the recorded price, then the recorded amount, then the
// close carried forward to the purchase date.
func (s *holdingState) purchaseCost(day time.Time, e *models.Event, qty float64) float64 {
	switch {
	case e.Price != nil && *e.Price > 0:
		return qty * *e.Price
	case e.Amount != nil && *e.Amount > 0:
		return *e.Amount
	case s.haveClose:
		return qty * s.close
	default:
		s.warn("purchase on %s has no price and no close is cached; cost basis excludes it", common.FormatDate(day))
		return 0
	}
}

// applyDividend books cash, and with reinvestment on converts it to shares at
// the day's close.
func (s *holdingState) applyDividend(day time.Time, cash float64) {
	if cash <= 0 {
		return
	}
	s.cumDividend += cash
	if !s.settings.ReinvestDividends {
		return
	}
	if !s.haveClose {
		s.warn("dividend on %s not reinvested: no close price available", common.FormatDate(day))
		return
	}
	s.shares += cash / s.close
	s.costBasis += cash
}

func (s *holdingState) point(day time.Time) models.ValuePoint {
	p := models.ValuePoint{
		Date:                day,
		SharesHeld:          s.shares,
		CostBasis:           s.costBasis,
		CumulativeDividends: s.cumDividend,
	}
	if s.haveClose {
		p.Close = s.close
		p.MarketValue = s.shares * s.close
	}
	return p
}

func (s *holdingState) warn(format string, args ...interface{}) {
	s.warnings = append(s.warnings, fmt.Sprintf(format, args...))
}

func sortedPrices(points []models.PricePoint) []models.PricePoint {
	out := make([]models.PricePoint, len(points))
	for i, p := range points {
		out[i] = models.PricePoint{Date: common.Day(p.Date), Close: p.Close}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func sortedDividends(points []models.DividendPoint) []models.DividendPoint {
	out := make([]models.DividendPoint, len(points))
	for i, p := range points {
		out[i] = models.DividendPoint{Date: common.Day(p.Date), Amount: p.Amount}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
