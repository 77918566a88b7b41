// Package storage provides the top-level StorageManager that coordinates
// the 2 storage tiers: portfoliofs (authoritative) and seriesfs (rebuildable cache).
package storage

import (
	"fmt"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/storage/portfoliofs"
	"github.com/bobmcallan/folio/internal/storage/seriesfs"
)

// Manager implements interfaces.StorageManager using 2 storage tiers.
type Manager struct {
	portfolios *portfoliofs.Store
	series     *seriesfs.Store
	dataPath   string
	logger     *common.Logger
}

// NewManager creates a new StorageManager with both tiers under the configured data path.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	portfolioStore, err := portfoliofs.NewStore(logger, config.Storage.PortfoliosPath())
	if err != nil {
		return nil, fmt.Errorf("failed to create portfolio store: %w", err)
	}

	seriesStore, err := seriesfs.NewStore(logger, config.Storage.CachePath())
	if err != nil {
		return nil, fmt.Errorf("failed to create series store: %w", err)
	}

	logger.Debug().
		Str("portfolios", config.Storage.PortfoliosPath()).
		Str("cache", config.Storage.CachePath()).
		Msg("Storage manager initialized (2 tiers)")

	return &Manager{
		portfolios: portfolioStore,
		series:     seriesStore,
		dataPath:   config.Storage.DataPath,
		logger:     logger,
	}, nil
}

func (m *Manager) PortfolioStore() interfaces.PortfolioStore {
	return m.portfolios
}

func (m *Manager) SeriesStore() interfaces.SeriesStore {
	return m.series
}

func (m *Manager) DataPath() string {
	return m.dataPath
}

func (m *Manager) Close() error {
	return m.series.Close()
}

// Compile-time checks
var (
	_ interfaces.StorageManager = (*Manager)(nil)
	_ interfaces.PortfolioStore = (*portfoliofs.Store)(nil)
	_ interfaces.SeriesStore    = (*seriesfs.Store)(nil)
)
