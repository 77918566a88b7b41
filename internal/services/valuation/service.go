package valuation

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// Service loads a holding's cached inputs and runs ComputeValueSeries.
type Service struct {
	store  interfaces.SeriesStore
	config *common.Config
	logger *common.Logger
}

// NewService creates a new valuation service
func NewService(store interfaces.SeriesStore, config *common.Config, logger *common.Logger) *Service {
	return &Service{
		store:  store,
		config: config,
		logger: logger,
	}
}

// Compute values symbol within portfolio through asOf from cached data only.
// It never fetches; missing prices simply produce zero market value.
func (s *Service) Compute(ctx context.Context, portfolio *models.Portfolio, symbol string, asOf time.Time) (*models.ValueSeries, error) {
	key := models.NewHoldingKey(portfolio.Name, symbol)

	prices, err := s.store.LoadPriceSeries(ctx, key.Symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to load prices for %s: %w", key.Symbol, err)
	}
	dividends, err := s.store.LoadDividendSeries(ctx, key.Symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to load dividends for %s: %w", key.Symbol, err)
	}

	start := time.Now()
	series, err := ComputeValueSeries(Input{
		Key:        key,
		Events:     portfolio.EventsFor(key.Symbol),
		CashEvents: portfolio.CashEvents,
		Prices:     prices,
		Dividends:  dividends,
		From:       portfolio.FirstEventDate(key.Symbol),
		AsOf:       asOf,
		Settings:   s.config.SymbolSettings(key.Symbol),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("key", key.String()).
		Int("points", len(series.Points)).
		Dur("elapsed", time.Since(start)).
		Msg("Value series computed")
	return series, nil
}
