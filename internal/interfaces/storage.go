// Package interfaces defines service contracts for folio
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/folio/internal/models"
)

// StorageManager coordinates the authoritative portfolio tier and the
// rebuildable cache tier.
type StorageManager interface {
	PortfolioStore() PortfolioStore
	SeriesStore() SeriesStore

	// DataPath returns the base data directory path.
	DataPath() string

	Close() error
}

// PortfolioStore persists portfolio event logs. It is the authoritative tier
// and is never rebuilt.
type PortfolioStore interface {
	ListPortfolios(ctx context.Context) ([]string, error)

	// LoadEvents returns models.ErrNotFound when the portfolio does not exist
	LoadEvents(ctx context.Context, name string) ([]models.Event, []models.CashEvent, error)

	// SaveEvents atomically replaces the portfolio file, creating it if needed
	SaveEvents(ctx context.Context, name string, events []models.Event, cash []models.CashEvent) error

	DeletePortfolio(ctx context.Context, name string) error

	// ModTime returns the last write time of the portfolio file
	ModTime(ctx context.Context, name string) (time.Time, error)
}

// SeriesStore owns every derived and cached artifact. Loads return (nil, nil)
// when an artifact is absent or unreadable; every save is an atomic replace.
type SeriesStore interface {
	// Price history
	LoadPriceSeries(ctx context.Context, symbol string) (*models.PriceSeries, error)
	MergePriceSeries(ctx context.Context, symbol string, points []models.PricePoint, covered models.Coverage) (bool, error)

	// Dividend history
	LoadDividendSeries(ctx context.Context, symbol string) (*models.DividendSeries, error)
	MergeDividendSeries(ctx context.Context, symbol string, points []models.DividendPoint, covered models.Coverage) (bool, error)

	// Computed values, keyed by holding
	LoadValueSeries(ctx context.Context, key models.HoldingKey) (*models.ValueSeries, error)
	SaveValueSeries(ctx context.Context, series *models.ValueSeries) error
	DeleteValueSeries(ctx context.Context, key models.HoldingKey) error
	ListValueKeys(ctx context.Context, portfolio string) ([]models.HoldingKey, error)

	// Realtime snapshots
	LoadRealtime(ctx context.Context, symbol string) (*models.RealtimeSnapshot, error)
	SaveRealtime(ctx context.Context, snap *models.RealtimeSnapshot) error

	// Journals
	LoadJournal(ctx context.Context, portfolio string) (*models.Journal, error)
	SaveJournal(ctx context.Context, journal *models.Journal) error
	DeleteJournal(ctx context.Context, portfolio string) error

	// PurgePortfolios drops value series and journals of portfolios not in keep
	PurgePortfolios(ctx context.Context, keep []string) ([]string, error)

	// Dirty set. UpdateDirtySet runs fn under the store's lock and persists the
	// result before returning. A corrupt file is presented as an empty set with
	// corrupted=true.
	LoadDirtySet(ctx context.Context) (set *models.DirtySet, corrupted bool, err error)
	UpdateDirtySet(ctx context.Context, fn func(set *models.DirtySet, corrupted bool) error) error

	// Sync status
	LoadStatus(ctx context.Context) (*models.SyncStatus, error)
	UpdateStatus(ctx context.Context, fn func(status *models.SyncStatus) error) error

	// Cache schema version, used to invalidate derived data after upgrades
	LoadSchemaVersion(ctx context.Context) (string, error)
	SaveSchemaVersion(ctx context.Context, version string) error

	// PurgeDerived deletes computed values, journals and status. Returns counts
	// of deleted items per type.
	PurgeDerived(ctx context.Context) (map[string]int, error)
}
