package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// Service rebuilds and persists portfolio journals from cached value series.
type Service struct {
	store  interfaces.SeriesStore
	logger *common.Logger
}

// NewService creates a new journal service
func NewService(store interfaces.SeriesStore, logger *common.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Rebuild builds the journal of portfolio through asOf and saves it. Holdings
// without a cached series contribute an all-zero column.
func (s *Service) Rebuild(ctx context.Context, portfolio *models.Portfolio, asOf time.Time) (*models.Journal, error) {
	symbols := portfolio.Symbols()
	series := make(map[string]*models.ValueSeries, len(symbols))
	for _, sym := range symbols {
		vs, err := s.store.LoadValueSeries(ctx, models.NewHoldingKey(portfolio.Name, sym))
		if err != nil {
			return nil, fmt.Errorf("failed to load value series %s/%s: %w", portfolio.Name, sym, err)
		}
		if vs == nil {
			s.logger.Debug().Str("portfolio", portfolio.Name).Str("symbol", sym).Msg("No value series yet, journal column is zero")
			continue
		}
		series[sym] = vs
	}

	j := BuildJournal(portfolio.Name, symbols, series, portfolio.FirstEventDate(""), asOf)
	if err := s.store.SaveJournal(ctx, j); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("portfolio", portfolio.Name).
		Int("symbols", len(symbols)).
		Int("rows", len(j.Rows)).
		Msg("Journal rebuilt")
	return j, nil
}
