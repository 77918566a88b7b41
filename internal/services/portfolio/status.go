package portfolio

import (
	"context"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
	"github.com/bobmcallan/folio/internal/services/cashflow"
)

// Status reports each holding from cache artifacts only. A holding whose
// series is absent, dirty or behind today is stale; nothing is recomputed.
func (s *Service) Status(ctx context.Context, portfolio string) (*models.PortfolioStatus, error) {
	p, err := s.GetPortfolio(ctx, portfolio)
	if err != nil {
		return nil, err
	}
	today := common.Day(s.now())

	syncStatus, err := s.series.LoadStatus(ctx)
	if err != nil {
		return nil, err
	}
	var dividends float64
	out := &models.PortfolioStatus{
		Portfolio:   portfolio,
		Holdings:    make([]models.HoldingStatus, 0),
		LastCycleAt: syncStatus.LastCycleAt,
	}
	for _, sym := range p.Symbols() {
		key := models.NewHoldingKey(portfolio, sym)
		h := models.HoldingStatus{Symbol: sym, State: models.StateUnknown}
		if st, ok := syncStatus.Symbols[key.String()]; ok {
			h.State = st.State
			h.LastError = st.LastError
			h.Warnings = st.Warnings
		}

		dirty, err := s.tracker.IsDirty(ctx, key)
		if err != nil {
			return nil, err
		}
		if dirty {
			out.Pending++
		}

		vs, err := s.series.LoadValueSeries(ctx, key)
		if err != nil {
			return nil, err
		}
		if last, ok := vs.Last(); ok {
			h.ValueAsOf = last.Date
			h.SharesHeld = last.SharesHeld
			h.MarketValue = last.MarketValue
			h.CostBasis = last.CostBasis
			h.Dividends = last.CumulativeDividends
		}
		h.Stale = vs == nil || dirty || vs.AsOf.Before(today)
		if dirty {
			h.State = models.StateDirty
		}

		if snap, err := s.series.LoadRealtime(ctx, sym); err == nil && snap != nil {
			h.RealtimePrice = snap.Price
			h.RealtimeAsOf = snap.AsOf
			if h.SharesHeld > 0 && s.now().Sub(snap.FetchedAt) < common.FreshnessRealtime {
				h.MarketValue = h.SharesHeld * snap.Price
			}
		}

		out.TotalValue += h.MarketValue
		dividends += h.Dividends
		out.Stale = out.Stale || h.Stale
		out.Holdings = append(out.Holdings, h)
	}
	out.Capital = cashflow.Performance(p, out.TotalValue, dividends, today)
	return out, nil
}

// Journal returns the cached journal and whether it is stale. It never builds
// one; a missing journal is reported as (nil, true, nil).
func (s *Service) Journal(ctx context.Context, portfolio string) (*models.Journal, bool, error) {
	p, err := s.GetPortfolio(ctx, portfolio)
	if err != nil {
		return nil, true, err
	}
	j, err := s.series.LoadJournal(ctx, portfolio)
	if err != nil || j == nil {
		return nil, true, err
	}

	stale := !j.HasSymbols(p.Symbols()) || j.AsOf.Before(common.Day(s.now()))
	for _, sym := range p.Symbols() {
		if stale {
			break
		}
		dirty, err := s.tracker.IsDirty(ctx, models.NewHoldingKey(portfolio, sym))
		if err != nil {
			return j, true, err
		}
		stale = dirty
	}
	return j, stale, nil
}
