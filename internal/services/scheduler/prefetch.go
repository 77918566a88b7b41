package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

// dateRange is an inclusive span of calendar days.
type dateRange struct {
	From time.Time
	To   time.Time
}

// missingRanges returns the spans of [first, today] that coverage does not
// satisfy: a head range before the covered span and a tail range after it.
// The last covered day is re-fetched if it was fetched before it closed, and
// today is re-fetched once its bar is older than FreshnessTodayBar.
func missingRanges(cov models.Coverage, first, today, now time.Time) []dateRange {
	first = common.Day(first)
	today = common.Day(today)
	if first.After(today) {
		return nil
	}
	if cov.From.IsZero() || cov.To.IsZero() {
		return []dateRange{{From: first, To: today}}
	}

	var out []dateRange
	if first.Before(cov.From) {
		out = append(out, dateRange{From: first, To: cov.From.AddDate(0, 0, -1)})
	}

	tailFrom := cov.To.AddDate(0, 0, 1)
	if cov.FetchedAt.Before(tailFrom) {
		tailFrom = cov.To
	}
	switch {
	case tailFrom.After(today):
	case !cov.To.Before(today) && now.Sub(cov.FetchedAt) < common.FreshnessTodayBar:
	default:
		out = append(out, dateRange{From: tailFrom, To: today})
	}
	return out
}

// prefetch brings the cached price and dividend history of symbol up to
// [first, today]. It reports whether any cached point changed. Ranges that
// come back empty are recorded as covered so they are not fetched again.
func (s *Scheduler) prefetch(ctx context.Context, symbol string, first time.Time) (bool, error) {
	if s.source == nil {
		return false, nil
	}
	today := s.today()
	if first.IsZero() {
		first = today.AddDate(-s.historyYears(), 0, 0)
	}

	pricesChanged, err := s.prefetchPrices(ctx, symbol, first, today)
	if err != nil {
		return pricesChanged, err
	}
	divsChanged, err := s.prefetchDividends(ctx, symbol, first, today)
	return pricesChanged || divsChanged, err
}

func (s *Scheduler) prefetchPrices(ctx context.Context, symbol string, first, today time.Time) (bool, error) {
	cached, err := s.series.LoadPriceSeries(ctx, symbol)
	if err != nil {
		return false, err
	}
	var cov models.Coverage
	if cached != nil {
		cov = cached.Coverage
	}

	changed := false
	for _, r := range missingRanges(cov, first, today, s.now()) {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		points, err := s.source.FetchPrices(ctx, symbol, r.From, r.To)
		if err != nil {
			return changed, err
		}
		if len(points) == 0 {
			s.noteGap(symbol, "prices", r, today)
		}
		merged, err := s.series.MergePriceSeries(ctx, symbol, points, models.Coverage{From: r.From, To: r.To, FetchedAt: s.now()})
		if err != nil {
			return changed, fmt.Errorf("failed to merge prices for %s: %w", symbol, err)
		}
		changed = changed || merged
		s.logger.Debug().
			Str("symbol", symbol).
			Str("from", common.FormatDate(r.From)).
			Str("to", common.FormatDate(r.To)).
			Int("points", len(points)).
			Bool("changed", merged).
			Msg("Prices fetched")
	}
	return changed, nil
}

func (s *Scheduler) prefetchDividends(ctx context.Context, symbol string, first, today time.Time) (bool, error) {
	cached, err := s.series.LoadDividendSeries(ctx, symbol)
	if err != nil {
		return false, err
	}
	var cov models.Coverage
	if cached != nil {
		cov = cached.Coverage
	}

	changed := false
	for _, r := range missingRanges(cov, first, today, s.now()) {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		points, err := s.source.FetchDividends(ctx, symbol, r.From, r.To)
		if err != nil {
			return changed, err
		}
		merged, err := s.series.MergeDividendSeries(ctx, symbol, points, models.Coverage{From: r.From, To: r.To, FetchedAt: s.now()})
		if err != nil {
			return changed, fmt.Errorf("failed to merge dividends for %s: %w", symbol, err)
		}
		changed = changed || merged
	}
	return changed, nil
}

// noteGap logs a confirmed-empty historical range. Ranges touching today are
// ordinary (market not yet closed, weekend) and not reported.
func (s *Scheduler) noteGap(symbol, op string, r dateRange, today time.Time) {
	if !r.To.Before(today) {
		return
	}
	gap := &models.DataGapError{Symbol: symbol, From: r.From, To: r.To}
	s.logger.Info().Str("op", op).Err(gap).Msg("Source returned no data for range")
}

func (s *Scheduler) historyYears() int {
	if s.config.Scheduler.HistoryYears > 0 {
		return s.config.Scheduler.HistoryYears
	}
	return 10
}

// fetchErrorText renders a fetch failure for the status file.
func fetchErrorText(err error) string {
	var te *models.TransientFetchError
	if errors.As(err, &te) {
		return fmt.Sprintf("fetch %s failed (will retry): %v", te.Op, te.Err)
	}
	return err.Error()
}
