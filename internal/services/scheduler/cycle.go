package scheduler

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/bobmcallan/folio/internal/models"
)

// book is the portfolio view of one unit of work.
type book struct {
	listed     []string // every portfolio file, including unreadable ones
	portfolios map[string]*models.Portfolio
	modTimes   map[string]time.Time
	holders    map[string][]string // symbol -> portfolios holding it
}

func (b *book) symbols() []string {
	out := make([]string, 0, len(b.holders))
	for sym := range b.holders {
		out = append(out, sym)
	}
	slices.Sort(out)
	return out
}

func (b *book) names() []string {
	out := make([]string, 0, len(b.portfolios))
	for name := range b.portfolios {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// pass carries per-drain bookkeeping so a symbol is fetched at most once.
type pass struct {
	fetched map[string]error
	touched map[string]bool // portfolios whose journals need rebuilding
}

func newPass() *pass {
	return &pass{fetched: map[string]error{}, touched: map[string]bool{}}
}

// loadBook reads every portfolio. An unreadable portfolio is skipped and
// logged; the rest of the book still syncs.
func (s *Scheduler) loadBook(ctx context.Context) (*book, error) {
	names, err := s.portfolios.ListPortfolios(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	b := &book{
		listed:     names,
		portfolios: make(map[string]*models.Portfolio, len(names)),
		modTimes:   make(map[string]time.Time, len(names)),
		holders:    map[string][]string{},
	}
	for _, name := range names {
		// stat before reading so a concurrent edit can only make the
		// recorded time older than the events, never newer
		mt, mtErr := s.portfolios.ModTime(ctx, name)
		events, cash, err := s.portfolios.LoadEvents(ctx, name)
		if err != nil {
			s.logger.Warn().Str("portfolio", name).Err(err).Msg("Failed to load portfolio, skipping")
			continue
		}
		p := &models.Portfolio{Name: name, Events: events, CashEvents: cash}
		b.portfolios[name] = p
		if mtErr == nil {
			b.modTimes[name] = mt
		}
		for _, sym := range p.Symbols() {
			b.holders[sym] = append(b.holders[sym], name)
		}
	}
	return b, nil
}

// RunCycle performs one full sync: reconcile the dirty set with the book,
// prefetch every symbol, drain dirty holdings, rebuild journals and record
// status.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	s.unitMu.Lock()
	defer s.unitMu.Unlock()

	start := s.now()
	b, err := s.loadBook(ctx)
	if err != nil {
		s.updateStatus(ctx, func(st *models.SyncStatus) { st.LastError = err.Error() })
		return err
	}

	if err := s.reconcile(ctx, b); err != nil {
		return err
	}

	p := newPass()
	for _, sym := range b.symbols() {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.prefetchSymbol(ctx, b, p, sym)
	}

	if err := s.drain(ctx, b, p); err != nil {
		return err
	}
	s.rebuildJournals(ctx, b, p)

	elapsed := s.now().Sub(start)
	s.updateStatus(ctx, func(st *models.SyncStatus) {
		st.LastCycleAt = start
		st.LastCycleMS = elapsed.Milliseconds()
		st.LastError = ""
	})
	s.logger.Info().
		Int("portfolios", len(b.portfolios)).
		Int("symbols", len(b.holders)).
		Int("journals", len(p.touched)).
		Dur("elapsed", elapsed).
		Msg("Sync cycle complete")
	return nil
}

// DrainDirty recomputes whatever is dirty without a full prefetch pass.
// Symbols with no cached history are fetched on the way.
func (s *Scheduler) DrainDirty(ctx context.Context) error {
	s.unitMu.Lock()
	defer s.unitMu.Unlock()

	b, err := s.loadBook(ctx)
	if err != nil {
		return err
	}
	p := newPass()
	if err := s.drain(ctx, b, p); err != nil {
		return err
	}
	s.rebuildJournals(ctx, b, p)
	return nil
}

// reconcile marks dirty every holding whose cached series cannot be trusted:
// absent, behind today, older than its portfolio file, or everything when
// the dirty set itself was lost to corruption. Series for holdings that no
// longer exist are removed.
func (s *Scheduler) reconcile(ctx context.Context, b *book) error {
	today := s.today()
	// loading the set surfaces a corrupt file before the flag is read
	if _, err := s.tracker.Len(ctx); err != nil {
		return err
	}
	if s.tracker.Corrupted() {
		s.logger.Warn().Msg("Dirty set was corrupt, marking every holding dirty")
		var all []models.HoldingKey
		for _, name := range b.names() {
			for _, sym := range b.portfolios[name].Symbols() {
				all = append(all, models.NewHoldingKey(name, sym))
			}
		}
		if err := s.tracker.MarkDirty(ctx, "dirty set recovered", all...); err != nil {
			return err
		}
		// the write above read the same corrupt file before replacing it
		s.tracker.Corrupted()
	}

	for _, name := range b.names() {
		p := b.portfolios[name]
		held := map[string]bool{}
		var stale []models.HoldingKey
		for _, sym := range p.Symbols() {
			held[sym] = true
			key := models.NewHoldingKey(name, sym)
			vs, err := s.series.LoadValueSeries(ctx, key)
			if err != nil {
				return err
			}
			switch {
			case vs == nil:
				stale = append(stale, key)
			case vs.AsOf.Before(today):
				stale = append(stale, key)
			case !b.modTimes[name].Equal(vs.SourceModTime):
				stale = append(stale, key)
			}
		}
		if err := s.tracker.MarkDirty(ctx, "reconcile", stale...); err != nil {
			return err
		}

		cached, err := s.series.ListValueKeys(ctx, name)
		if err != nil {
			return err
		}
		var orphans []models.HoldingKey
		for _, key := range cached {
			if !held[key.Symbol] {
				orphans = append(orphans, key)
			}
		}
		for _, key := range orphans {
			if err := s.series.DeleteValueSeries(ctx, key); err != nil {
				s.logger.Warn().Str("key", key.String()).Err(err).Msg("Failed to remove orphaned value series")
			}
		}
		s.dropStatus(ctx, orphans...)
	}

	s.purgeDeletedPortfolios(ctx, b)
	return nil
}

// purgeDeletedPortfolios removes cached series, journals and status of
// portfolios whose file is gone. Unreadable portfolios still count as present.
func (s *Scheduler) purgeDeletedPortfolios(ctx context.Context, b *book) {
	removed, err := s.series.PurgePortfolios(ctx, b.listed)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to purge cache of deleted portfolios")
	} else if len(removed) > 0 {
		s.logger.Info().Strs("portfolios", removed).Msg("Purged cache of deleted portfolios")
	}

	st, err := s.series.LoadStatus(ctx)
	if err != nil {
		return
	}
	var gone []models.HoldingKey
	for _, entry := range st.Symbols {
		if !slices.Contains(b.listed, entry.Portfolio) {
			gone = append(gone, entry.Key())
		}
	}
	var goneJournals []string
	for name := range st.JournalsBuiltAt {
		if !slices.Contains(b.listed, name) {
			goneJournals = append(goneJournals, name)
		}
	}
	if len(gone) == 0 && len(goneJournals) == 0 {
		return
	}
	s.updateStatus(ctx, func(st *models.SyncStatus) {
		for _, key := range gone {
			delete(st.Symbols, key.String())
		}
		for _, name := range goneJournals {
			delete(st.JournalsBuiltAt, name)
		}
	})
}

// prefetchSymbol fetches a symbol's history once per pass and marks every
// holding of it dirty when cached points changed. Only holdings already
// awaiting recomputation move through the prefetching state.
func (s *Scheduler) prefetchSymbol(ctx context.Context, b *book, p *pass, symbol string) error {
	if err, done := p.fetched[symbol]; done {
		return err
	}

	first := time.Time{}
	var keys, pending []models.HoldingKey
	for _, name := range b.holders[symbol] {
		key := models.NewHoldingKey(name, symbol)
		keys = append(keys, key)
		if dirty, err := s.tracker.IsDirty(ctx, key); err == nil && dirty {
			pending = append(pending, key)
		}
		if d := b.portfolios[name].FirstEventDate(symbol); !d.IsZero() && (first.IsZero() || d.Before(first)) {
			first = d
		}
	}

	if s.source != nil {
		s.setState(ctx, models.StatePrefetching, nil, pending...)
	}
	changed, err := s.prefetch(ctx, symbol, first)
	p.fetched[symbol] = err

	if err != nil {
		s.logger.Warn().Str("symbol", symbol).Err(err).Msg("Prefetch failed")
		s.setState(ctx, models.StateDirty, func(st *models.SymbolStatus) {
			st.LastError = fetchErrorText(err)
		}, keys...)
	} else if s.source != nil {
		now := s.now()
		s.updateStatus(ctx, func(st *models.SyncStatus) {
			for _, key := range keys {
				entry := st.Symbol(key)
				entry.PricesFetchedAt = now
				entry.DividendsFetchedAt = now
			}
		})
	}

	if changed {
		if merr := s.tracker.MarkDirty(ctx, "market data changed", keys...); merr != nil {
			s.logger.Warn().Str("symbol", symbol).Err(merr).Msg("Failed to mark holdings dirty")
		}
		if err == nil {
			var settled []models.HoldingKey
			for _, key := range keys {
				if !slices.Contains(pending, key) {
					settled = append(settled, key)
				}
			}
			s.setState(ctx, models.StateDirty, nil, settled...)
		}
	}
	return err
}

// drain recomputes every entry of a dirty snapshot. An entry is cleared only
// after its series is saved through today with complete inputs; a failed
// fetch or computation leaves it dirty for the next pass.
func (s *Scheduler) drain(ctx context.Context, b *book, p *pass) error {
	for entry := range s.tracker.Drain(ctx) {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.processEntry(ctx, b, p, entry)
	}
	return ctx.Err()
}

func (s *Scheduler) processEntry(ctx context.Context, b *book, p *pass, entry models.DirtyEntry) {
	key := entry.Key
	port, ok := b.portfolios[key.Portfolio]
	if !ok || !slices.Contains(b.holders[key.Symbol], key.Portfolio) {
		// holding no longer exists
		if err := s.series.DeleteValueSeries(ctx, key); err != nil {
			s.logger.Warn().Str("key", key.String()).Err(err).Msg("Failed to remove value series")
		}
		s.dropStatus(ctx, key)
		s.clear(ctx, entry)
		if ok {
			p.touched[key.Portfolio] = true
		}
		return
	}

	fetchErr := s.prefetchSymbol(ctx, b, p, key.Symbol)

	s.setState(ctx, models.StateComputing, nil, key)
	today := s.today()
	vs, err := s.valuation.Compute(ctx, port, key.Symbol, today)
	if err != nil {
		s.logger.Warn().Str("key", key.String()).Err(err).Msg("Computation failed, keeping previous series")
		s.setState(ctx, models.StateDirty, func(st *models.SymbolStatus) {
			st.LastError = err.Error()
		}, key)
		return
	}

	vs.ComputedAt = s.now()
	vs.SourceModTime = b.modTimes[key.Portfolio]
	if err := s.series.SaveValueSeries(ctx, vs); err != nil {
		s.logger.Warn().Str("key", key.String()).Err(err).Msg("Failed to save value series")
		s.setState(ctx, models.StateDirty, func(st *models.SymbolStatus) {
			st.LastError = err.Error()
		}, key)
		return
	}
	p.touched[key.Portfolio] = true

	if fetchErr != nil {
		// partial inputs: keep the fresh series but retry the fetch next pass
		s.setState(ctx, models.StateDirty, func(st *models.SymbolStatus) {
			st.ComputedAt = vs.ComputedAt
			st.Warnings = vs.Warnings
			st.LastError = fetchErrorText(fetchErr)
		}, key)
		return
	}

	if !s.clear(ctx, entry) {
		// re-marked while computing
		s.setState(ctx, models.StateDirty, func(st *models.SymbolStatus) {
			st.ComputedAt = vs.ComputedAt
			st.Warnings = vs.Warnings
		}, key)
		return
	}
	s.setState(ctx, models.StateClean, func(st *models.SymbolStatus) {
		st.ComputedAt = vs.ComputedAt
		st.Warnings = vs.Warnings
		st.LastError = ""
	}, key)
}

func (s *Scheduler) clear(ctx context.Context, entry models.DirtyEntry) bool {
	cleared, err := s.tracker.Clear(ctx, entry)
	if err != nil {
		s.logger.Warn().Str("key", entry.Key.String()).Err(err).Msg("Failed to clear dirty entry")
		return false
	}
	return cleared
}

// rebuildJournals rebuilds journals for portfolios touched in this pass and
// for any whose journal is missing, behind today or lists other symbols.
func (s *Scheduler) rebuildJournals(ctx context.Context, b *book, p *pass) {
	today := s.today()
	for _, name := range b.names() {
		if ctx.Err() != nil {
			return
		}
		port := b.portfolios[name]
		if !p.touched[name] {
			j, err := s.series.LoadJournal(ctx, name)
			if err == nil && j != nil && !j.AsOf.Before(today) && slices.Equal(j.Symbols, port.Symbols()) {
				continue
			}
		}

		j, err := s.journals.Rebuild(ctx, port, today)
		if err != nil {
			s.logger.Warn().Str("portfolio", name).Err(err).Msg("Journal rebuild failed")
			continue
		}
		p.touched[name] = true
		builtAt := j.BuiltAt
		s.updateStatus(ctx, func(st *models.SyncStatus) {
			if st.JournalsBuiltAt == nil {
				st.JournalsBuiltAt = map[string]time.Time{}
			}
			st.JournalsBuiltAt[name] = builtAt
		})
	}
}
