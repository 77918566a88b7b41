package seriesfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"github.com/bobmcallan/folio/internal/models"
)

func (s *Store) valuesDirFor(portfolio string) string {
	return filepath.Join(s.dir(valuesDir), sanitizeKey(portfolio))
}

// LoadValueSeries returns the computed series of a holding, or nil when absent.
func (s *Store) LoadValueSeries(_ context.Context, key models.HoldingKey) (*models.ValueSeries, error) {
	var series models.ValueSeries
	ok, err := s.load(s.valuesDirFor(key.Portfolio), key.Symbol, &series)
	if err != nil || !ok {
		return nil, err
	}
	return &series, nil
}

// SaveValueSeries atomically replaces the computed series of a holding.
func (s *Store) SaveValueSeries(_ context.Context, series *models.ValueSeries) error {
	if series.Portfolio == "" || series.Symbol == "" {
		return fmt.Errorf("value series requires portfolio and symbol")
	}
	if series.ComputedAt.IsZero() {
		series.ComputedAt = time.Now()
	}
	if err := writeJSON(s.valuesDirFor(series.Portfolio), series.Symbol, series); err != nil {
		return fmt.Errorf("failed to save value series %s: %w", series.Key(), err)
	}
	s.logger.Debug().Str("key", series.Key().String()).Int("points", len(series.Points)).Msg("Value series saved")
	return nil
}

// DeleteValueSeries removes a holding's computed series.
func (s *Store) DeleteValueSeries(_ context.Context, key models.HoldingKey) error {
	return deleteJSON(s.valuesDirFor(key.Portfolio), key.Symbol)
}

// ListValueKeys lists the holdings with a computed series in a portfolio.
func (s *Store) ListValueKeys(_ context.Context, portfolio string) ([]models.HoldingKey, error) {
	keys, err := listKeys(s.valuesDirFor(portfolio))
	if err != nil {
		return nil, err
	}
	out := make([]models.HoldingKey, 0, len(keys))
	for _, k := range keys {
		// file names are sanitized, so the symbol comes from the file itself
		var head struct {
			Symbol string `json:"symbol"`
		}
		symbol := k
		if err := readJSON(s.valuesDirFor(portfolio), k, &head); err == nil && head.Symbol != "" {
			symbol = head.Symbol
		}
		out = append(out, models.HoldingKey{Portfolio: portfolio, Symbol: symbol})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// LoadRealtime returns the realtime snapshot of a symbol, or nil when absent.
func (s *Store) LoadRealtime(_ context.Context, symbol string) (*models.RealtimeSnapshot, error) {
	var snap models.RealtimeSnapshot
	ok, err := s.load(s.dir(realtimeDir), models.NormalizeSymbol(symbol), &snap)
	if err != nil || !ok {
		return nil, err
	}
	return &snap, nil
}

// SaveRealtime atomically replaces the realtime snapshot of a symbol.
func (s *Store) SaveRealtime(_ context.Context, snap *models.RealtimeSnapshot) error {
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now()
	}
	if err := writeJSON(s.dir(realtimeDir), models.NormalizeSymbol(snap.Symbol), snap); err != nil {
		return fmt.Errorf("failed to save realtime snapshot for %s: %w", snap.Symbol, err)
	}
	return nil
}

// LoadJournal returns the journal of a portfolio, or nil when absent.
func (s *Store) LoadJournal(_ context.Context, portfolio string) (*models.Journal, error) {
	var journal models.Journal
	ok, err := s.load(s.dir(journalsDir), portfolio, &journal)
	if err != nil || !ok {
		return nil, err
	}
	return &journal, nil
}

// SaveJournal atomically replaces the journal of a portfolio.
func (s *Store) SaveJournal(_ context.Context, journal *models.Journal) error {
	if journal.BuiltAt.IsZero() {
		journal.BuiltAt = time.Now()
	}
	if err := writeJSON(s.dir(journalsDir), journal.Portfolio, journal); err != nil {
		return fmt.Errorf("failed to save journal %s: %w", journal.Portfolio, err)
	}
	s.logger.Debug().Str("portfolio", journal.Portfolio).Int("rows", len(journal.Rows)).Msg("Journal saved")
	return nil
}

// DeleteJournal removes the journal of a portfolio.
func (s *Store) DeleteJournal(_ context.Context, portfolio string) error {
	return deleteJSON(s.dir(journalsDir), portfolio)
}

// PurgePortfolios removes the value series and journal of every portfolio not
// in keep. It returns the cache names it removed.
func (s *Store) PurgePortfolios(_ context.Context, keep []string) ([]string, error) {
	kept := make(map[string]bool, len(keep))
	for _, name := range keep {
		kept[sanitizeKey(name)] = true
	}

	var removed []string
	entries, err := os.ReadDir(s.dir(valuesDir))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read values directory: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() || kept[e.Name()] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir(valuesDir), e.Name())); err != nil {
			return removed, fmt.Errorf("failed to remove values of %s: %w", e.Name(), err)
		}
		removed = append(removed, e.Name())
	}

	journals, err := listKeys(s.dir(journalsDir))
	if err != nil {
		return removed, err
	}
	for _, name := range journals {
		if kept[name] {
			continue
		}
		if err := deleteJSON(s.dir(journalsDir), name); err != nil {
			return removed, fmt.Errorf("failed to remove journal of %s: %w", name, err)
		}
		if !slices.Contains(removed, name) {
			removed = append(removed, name)
		}
	}
	sort.Strings(removed)
	return removed, nil
}
