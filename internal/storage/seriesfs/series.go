package seriesfs

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

// LoadPriceSeries returns the cached price history, or nil when absent.
func (s *Store) LoadPriceSeries(_ context.Context, symbol string) (*models.PriceSeries, error) {
	var series models.PriceSeries
	ok, err := s.load(s.dir(pricesDir), models.NormalizeSymbol(symbol), &series)
	if err != nil || !ok {
		return nil, err
	}
	return &series, nil
}

// MergePriceSeries unions points into the cached history keyed by date, with
// new points winning on conflict, and widens the coverage. It reports whether
// any point was added or changed.
func (s *Store) MergePriceSeries(ctx context.Context, symbol string, points []models.PricePoint, covered models.Coverage) (bool, error) {
	symbol = models.NormalizeSymbol(symbol)

	s.seriesMu.Lock()
	defer s.seriesMu.Unlock()

	existing, err := s.LoadPriceSeries(ctx, symbol)
	if err != nil {
		return false, err
	}
	if existing == nil {
		existing = &models.PriceSeries{Symbol: symbol}
	}

	byDate := make(map[time.Time]float64, len(existing.Points)+len(points))
	for _, p := range existing.Points {
		byDate[common.Day(p.Date)] = p.Close
	}
	changed := false
	for _, p := range points {
		d := common.Day(p.Date)
		if old, ok := byDate[d]; !ok || old != p.Close {
			changed = true
		}
		byDate[d] = p.Close
	}

	merged := make([]models.PricePoint, 0, len(byDate))
	for d, c := range byDate {
		merged = append(merged, models.PricePoint{Date: d, Close: c})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Date.Before(merged[j].Date) })

	existing.Symbol = symbol
	existing.Points = merged
	existing.Coverage = mergeCoverage(existing.Coverage, covered)

	if err := writeJSON(s.dir(pricesDir), symbol, existing); err != nil {
		return false, fmt.Errorf("failed to save price series for %s: %w", symbol, err)
	}
	s.logger.Debug().Str("symbol", symbol).Int("points", len(merged)).Bool("changed", changed).Msg("Price series merged")
	return changed, nil
}

// LoadDividendSeries returns the cached dividend history, or nil when absent.
func (s *Store) LoadDividendSeries(_ context.Context, symbol string) (*models.DividendSeries, error) {
	var series models.DividendSeries
	ok, err := s.load(s.dir(dividendsDir), models.NormalizeSymbol(symbol), &series)
	if err != nil || !ok {
		return nil, err
	}
	return &series, nil
}

// MergeDividendSeries is the dividend counterpart of MergePriceSeries.
func (s *Store) MergeDividendSeries(ctx context.Context, symbol string, points []models.DividendPoint, covered models.Coverage) (bool, error) {
	symbol = models.NormalizeSymbol(symbol)

	s.seriesMu.Lock()
	defer s.seriesMu.Unlock()

	existing, err := s.LoadDividendSeries(ctx, symbol)
	if err != nil {
		return false, err
	}
	if existing == nil {
		existing = &models.DividendSeries{Symbol: symbol}
	}

	byDate := make(map[time.Time]float64, len(existing.Points)+len(points))
	for _, p := range existing.Points {
		byDate[common.Day(p.Date)] = p.Amount
	}
	changed := false
	for _, p := range points {
		d := common.Day(p.Date)
		if old, ok := byDate[d]; !ok || old != p.Amount {
			changed = true
		}
		byDate[d] = p.Amount
	}

	merged := make([]models.DividendPoint, 0, len(byDate))
	for d, a := range byDate {
		merged = append(merged, models.DividendPoint{Date: d, Amount: a})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Date.Before(merged[j].Date) })

	existing.Symbol = symbol
	existing.Points = merged
	existing.Coverage = mergeCoverage(existing.Coverage, covered)

	if err := writeJSON(s.dir(dividendsDir), symbol, existing); err != nil {
		return false, fmt.Errorf("failed to save dividend series for %s: %w", symbol, err)
	}
	return changed, nil
}

// mergeCoverage widens cur by next when the two ranges touch or overlap.
// A disjoint range is not merged so the gap between them is fetched later.
func mergeCoverage(cur, next models.Coverage) models.Coverage {
	if next.From.IsZero() || next.To.IsZero() {
		return cur
	}
	next.From, next.To = common.Day(next.From), common.Day(next.To)
	if cur.From.IsZero() || cur.To.IsZero() {
		return next
	}
	if next.From.After(cur.To.AddDate(0, 0, 1)) || next.To.Before(cur.From.AddDate(0, 0, -1)) {
		return cur
	}

	out := models.Coverage{
		From:      common.MinDate(cur.From, next.From),
		To:        common.MaxDate(cur.To, next.To),
		FetchedAt: cur.FetchedAt,
	}
	// FetchedAt tracks the freshness of the tail
	if !next.To.Before(cur.To) {
		out.FetchedAt = next.FetchedAt
	}
	return out
}
