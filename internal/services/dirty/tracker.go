// Package dirty tracks which holdings need their value series recomputed.
// The set lives in the series store, so the foreground and the scheduler
// communicate only through persisted state.
package dirty

import (
	"context"
	"iter"
	"sync/atomic"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// Tracker implements interfaces.DirtyTracker over a SeriesStore.
type Tracker struct {
	store     interfaces.SeriesStore
	logger    *common.Logger
	corrupted atomic.Bool
	now       func() time.Time
}

// NewTracker creates a new dirty tracker
func NewTracker(store interfaces.SeriesStore, logger *common.Logger) *Tracker {
	return &Tracker{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// MarkDirty persists a dirty mark for each key before returning.
func (t *Tracker) MarkDirty(ctx context.Context, reason string, keys ...models.HoldingKey) error {
	if len(keys) == 0 {
		return nil
	}
	err := t.store.UpdateDirtySet(ctx, func(set *models.DirtySet, corrupted bool) error {
		t.noteCorruption(corrupted)
		now := t.now()
		for _, k := range keys {
			set.Mark(k, reason, now)
		}
		return nil
	})
	if err != nil {
		return err
	}
	t.logger.Debug().Int("keys", len(keys)).Str("reason", reason).Msg("Marked dirty")
	return nil
}

// MarkSymbol marks symbol dirty in each of the given portfolios.
func (t *Tracker) MarkSymbol(ctx context.Context, reason, symbol string, portfolios ...string) error {
	keys := make([]models.HoldingKey, 0, len(portfolios))
	for _, p := range portfolios {
		keys = append(keys, models.NewHoldingKey(p, symbol))
	}
	return t.MarkDirty(ctx, reason, keys...)
}

// MarkPortfolio marks every listed symbol of a portfolio dirty.
func (t *Tracker) MarkPortfolio(ctx context.Context, reason, portfolio string, symbols ...string) error {
	keys := make([]models.HoldingKey, 0, len(symbols))
	for _, s := range symbols {
		keys = append(keys, models.NewHoldingKey(portfolio, s))
	}
	return t.MarkDirty(ctx, reason, keys...)
}

// Drain returns a finite sequence over the entries dirty at first iteration,
// oldest mark first. Once consumed it yields nothing; call Drain again for a
// fresh snapshot. Entries stay persisted until Clear.
func (t *Tracker) Drain(ctx context.Context) iter.Seq[models.DirtyEntry] {
	var consumed atomic.Bool
	return func(yield func(models.DirtyEntry) bool) {
		if consumed.Swap(true) {
			return
		}
		set, corrupted, err := t.store.LoadDirtySet(ctx)
		if err != nil {
			t.logger.Warn().Err(err).Msg("Failed to load dirty set")
			return
		}
		t.noteCorruption(corrupted)
		for _, entry := range set.Sorted() {
			if ctx.Err() != nil {
				return
			}
			if !yield(entry) {
				return
			}
		}
	}
}

// Clear removes the drained entry unless the key was marked again since.
func (t *Tracker) Clear(ctx context.Context, entry models.DirtyEntry) (bool, error) {
	var cleared bool
	err := t.store.UpdateDirtySet(ctx, func(set *models.DirtySet, corrupted bool) error {
		t.noteCorruption(corrupted)
		cleared = set.Clear(entry.Key, entry.Generation)
		return nil
	})
	if err != nil {
		return false, err
	}
	if !cleared {
		t.logger.Debug().Str("key", entry.Key.String()).Msg("Dirty mark superseded, left in place")
	}
	return cleared, nil
}

// IsDirty reports whether key has a pending mark. A corrupt set reports true.
func (t *Tracker) IsDirty(ctx context.Context, key models.HoldingKey) (bool, error) {
	set, corrupted, err := t.store.LoadDirtySet(ctx)
	if err != nil {
		return true, err
	}
	if corrupted {
		t.noteCorruption(true)
		return true, nil
	}
	_, ok := set.Entries[key.String()]
	return ok, nil
}

// Pending returns the current entries, oldest mark first.
func (t *Tracker) Pending(ctx context.Context) ([]models.DirtyEntry, error) {
	set, corrupted, err := t.store.LoadDirtySet(ctx)
	if err != nil {
		return nil, err
	}
	t.noteCorruption(corrupted)
	return set.Sorted(), nil
}

// Len returns the number of pending entries.
func (t *Tracker) Len(ctx context.Context) (int, error) {
	set, corrupted, err := t.store.LoadDirtySet(ctx)
	if err != nil {
		return 0, err
	}
	t.noteCorruption(corrupted)
	return len(set.Entries), nil
}

// Corrupted reports, and resets, whether a corrupt dirty file was seen.
func (t *Tracker) Corrupted() bool {
	return t.corrupted.Swap(false)
}

func (t *Tracker) noteCorruption(corrupted bool) {
	if corrupted {
		t.corrupted.Store(true)
	}
}

// Compile-time check
var _ interfaces.DirtyTracker = (*Tracker)(nil)
