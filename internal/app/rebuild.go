package app

import (
	"context"
	"fmt"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
)

// checkSchemaVersion compares the cache's recorded schema version against
// common.SchemaVersion. On mismatch (or missing version) it purges derived
// data and stores the new version; the next cycle recomputes everything
// because every value series is then absent. Returns true if a purge occurred.
func checkSchemaVersion(ctx context.Context, series interfaces.SeriesStore, logger *common.Logger) bool {
	stored, err := series.LoadSchemaVersion(ctx)
	if err == nil && stored == common.SchemaVersion {
		logger.Debug().
			Str("version", common.SchemaVersion).
			Msg("Cache schema version matches")
		return false
	}

	if stored == "" {
		logger.Info().
			Str("current", common.SchemaVersion).
			Msg("Cache schema version not found, initializing")
	} else {
		logger.Warn().
			Str("stored", stored).
			Str("current", common.SchemaVersion).
			Msg("Cache schema version mismatch, purging derived data")
	}

	counts, purgeErr := series.PurgeDerived(ctx)
	if purgeErr != nil {
		logger.Error().Err(purgeErr).Msg("Failed to purge derived data during schema migration")
		return false
	}

	logger.Info().
		Int("values", counts["values"]).
		Int("journals", counts["journals"]).
		Str("new_version", common.SchemaVersion).
		Msg("Cache schema migration complete")

	if err := series.SaveSchemaVersion(ctx, common.SchemaVersion); err != nil {
		logger.Error().Err(err).Msg("Failed to store new cache schema version")
	}
	return true
}

// Rebuild discards every derived artifact, marks all holdings dirty and runs
// one full cycle. Price and dividend histories are kept, so only what changed
// at the provider is fetched again.
func (a *App) Rebuild(ctx context.Context) (map[string]int, error) {
	counts, err := a.Storage.SeriesStore().PurgeDerived(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to purge derived data: %w", err)
	}

	names, err := a.PortfolioService.ListPortfolios(ctx)
	if err != nil {
		return counts, err
	}
	for _, name := range names {
		if err := a.PortfolioService.RequestRecompute(ctx, name); err != nil {
			return counts, err
		}
	}

	if err := a.Scheduler.RunCycle(ctx); err != nil {
		return counts, err
	}
	a.Logger.Info().
		Int("values", counts["values"]).
		Int("journals", counts["journals"]).
		Int("portfolios", len(names)).
		Msg("Rebuild complete")
	return counts, nil
}
