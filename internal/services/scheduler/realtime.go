package scheduler

import (
	"context"

	"github.com/bobmcallan/folio/internal/models"
)

// RefreshRealtime stores a fresh realtime snapshot for every symbol that is
// currently held. Snapshots live apart from the daily history and never
// mark anything dirty. A failure for one symbol does not stop the others.
func (s *Scheduler) RefreshRealtime(ctx context.Context) error {
	if s.source == nil {
		return nil
	}
	s.unitMu.Lock()
	defer s.unitMu.Unlock()

	b, err := s.loadBook(ctx)
	if err != nil {
		return err
	}

	refreshed, failed := 0, 0
	for _, sym := range b.symbols() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !s.isHeld(ctx, b, sym) {
			continue
		}

		quote, err := s.source.FetchRealtime(ctx, sym)
		if err != nil {
			failed++
			s.logger.Debug().Str("symbol", sym).Err(err).Msg("Realtime fetch failed")
			continue
		}
		snap := &models.RealtimeSnapshot{
			Symbol:    sym,
			Price:     quote.Price,
			AsOf:      quote.AsOf,
			FetchedAt: s.now(),
		}
		if err := s.series.SaveRealtime(ctx, snap); err != nil {
			failed++
			s.logger.Warn().Str("symbol", sym).Err(err).Msg("Failed to save realtime snapshot")
			continue
		}
		refreshed++

		holders := b.holders[sym]
		s.updateStatus(ctx, func(st *models.SyncStatus) {
			for _, name := range holders {
				st.Symbol(models.NewHoldingKey(name, sym)).RealtimeAt = snap.FetchedAt
			}
		})
	}

	s.updateStatus(ctx, func(st *models.SyncStatus) { st.LastRealtimeAt = s.now() })
	s.logger.Debug().Int("refreshed", refreshed).Int("failed", failed).Msg("Realtime refresh complete")
	return nil
}

// isHeld reports whether any portfolio holds a position in symbol according
// to its latest cached value point. Holdings never computed count as held.
func (s *Scheduler) isHeld(ctx context.Context, b *book, symbol string) bool {
	for _, name := range b.holders[symbol] {
		vs, err := s.series.LoadValueSeries(ctx, models.NewHoldingKey(name, symbol))
		if err != nil || vs == nil {
			return true
		}
		if last, ok := vs.Last(); !ok || last.SharesHeld > 0 {
			return true
		}
	}
	return false
}
