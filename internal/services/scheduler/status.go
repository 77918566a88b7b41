package scheduler

import (
	"context"

	"github.com/bobmcallan/folio/internal/models"
)

// updateStatus applies fn to the persisted status. Status is advisory, so a
// failed write is logged rather than failing the unit of work.
func (s *Scheduler) updateStatus(ctx context.Context, fn func(st *models.SyncStatus)) {
	err := s.series.UpdateStatus(ctx, func(st *models.SyncStatus) error {
		fn(st)
		st.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to update sync status")
	}
}

// setState moves each key to state and applies fn to its entry.
func (s *Scheduler) setState(ctx context.Context, state models.SymbolState, fn func(st *models.SymbolStatus), keys ...models.HoldingKey) {
	if len(keys) == 0 {
		return
	}
	now := s.now()
	s.updateStatus(ctx, func(st *models.SyncStatus) {
		for _, key := range keys {
			entry := st.Symbol(key)
			if entry.State != state && !entry.State.CanTransition(state) {
				s.logger.Debug().
					Str("key", key.String()).
					Str("from", string(entry.State)).
					Str("to", string(state)).
					Msg("Unexpected state transition")
			}
			entry.State = state
			entry.UpdatedAt = now
			if fn != nil {
				fn(entry)
			}
		}
	})
}

// dropStatus removes entries for holdings that no longer exist.
func (s *Scheduler) dropStatus(ctx context.Context, keys ...models.HoldingKey) {
	if len(keys) == 0 {
		return
	}
	s.updateStatus(ctx, func(st *models.SyncStatus) {
		for _, key := range keys {
			delete(st.Symbols, key.String())
		}
	})
}
