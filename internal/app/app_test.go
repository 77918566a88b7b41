package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

// writeTestConfig writes a config file pointing storage at a temp dir.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := `environment = "test"

[storage]
data_path = "data"

[scheduler]
cycle_schedule = "@every 1h"
realtime_schedule = "@every 1h"

[logging]
level = "error"
`
	path := filepath.Join(dir, "folio.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	t.Setenv("EODHD_API_KEY", "")
	t.Setenv("FOLIO_EODHD_API_KEY", "")
	a, err := NewApp(writeTestConfig(t), false)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestNewApp_InitializesAllServices(t *testing.T) {
	a := newTestApp(t)

	assert.NotNil(t, a.Config)
	assert.NotNil(t, a.Logger)
	assert.NotNil(t, a.Storage)
	assert.NotNil(t, a.Tracker)
	assert.NotNil(t, a.PortfolioService)
	assert.NotNil(t, a.Scheduler)
	assert.Nil(t, a.MarketSource, "no API key means offline")
	assert.False(t, a.StartupTime.IsZero())
}

func TestNewApp_DataPathRelativeToConfig(t *testing.T) {
	configPath := writeTestConfig(t)
	t.Setenv("EODHD_API_KEY", "")
	a, err := NewApp(configPath, true)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, filepath.Join(filepath.Dir(configPath), "data"), a.Config.Storage.DataPath)
	assert.Equal(t, "debug", a.Config.Logging.Level)
	_, err = os.Stat(a.Config.Storage.CachePath())
	assert.NoError(t, err)
}

func TestNewApp_WithAPIKeyCreatesSource(t *testing.T) {
	t.Setenv("EODHD_API_KEY", "test-key")
	a, err := NewApp(writeTestConfig(t), false)
	require.NoError(t, err)
	defer a.Close()
	assert.NotNil(t, a.MarketSource)
}

func TestCheckSchemaVersion(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	series := a.Storage.SeriesStore()

	// NewApp recorded the current version
	v, err := series.LoadSchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, common.SchemaVersion, v)
	assert.False(t, checkSchemaVersion(ctx, series, a.Logger))

	key := models.NewHoldingKey("main", "AAPL")
	require.NoError(t, series.SaveValueSeries(ctx, &models.ValueSeries{Portfolio: "main", Symbol: "AAPL"}))
	require.NoError(t, series.SaveSchemaVersion(ctx, "0"))

	assert.True(t, checkSchemaVersion(ctx, series, a.Logger))
	vs, err := series.LoadValueSeries(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, vs)
	v, err = series.LoadSchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, common.SchemaVersion, v)
}

func TestRebuild_RecomputesEverything(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	_, err := a.PortfolioService.AddEvent(ctx, "main", models.Event{
		Symbol: "AAPL",
		Date:   common.Today().AddDate(0, 0, -3),
		Kind:   models.EventPurchase,
		Shares: models.Float(10),
		Price:  models.Float(100),
	})
	require.NoError(t, err)
	require.NoError(t, a.Scheduler.RunCycle(ctx))

	counts, err := a.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts["values"])
	assert.Equal(t, 1, counts["journals"])

	vs, err := a.Storage.SeriesStore().LoadValueSeries(ctx, models.NewHoldingKey("main", "AAPL"))
	require.NoError(t, err)
	require.NotNil(t, vs)
	last, ok := vs.Last()
	require.True(t, ok)
	assert.Equal(t, 10.0, last.SharesHeld)

	n, err := a.Tracker.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestImportEventsFromFile(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	content := `{
  "events": [
    {"id": "e1", "symbol": "aapl", "date": "2024-01-02", "type": "purchase", "shares": 10, "price": 185.5},
    {"id": "e2", "symbol": "AAPL", "date": "2024-02-09", "type": "dividend", "amount": 2.4},
    {"id": "e3", "symbol": "MSFT", "date": "not-a-date", "type": "purchase", "shares": 1},
    {"id": "e4", "symbol": "MSFT", "date": "2024-01-05", "type": "sale"}
  ],
  "cash": [
    {"id": "c1", "date": "2024-01-01", "type": "cash_deposit", "amount": 5000}
  ]
}`
	path := filepath.Join(t.TempDir(), "events.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	imported, skipped, err := ImportEventsFromFile(ctx, a.PortfolioService, a.Logger, "main", path)
	require.NoError(t, err)
	assert.Equal(t, 3, imported)
	assert.Equal(t, 2, skipped)

	p, err := a.PortfolioService.GetPortfolio(ctx, "main")
	require.NoError(t, err)
	assert.Len(t, p.Events, 2)
	assert.Len(t, p.CashEvents, 1)

	// second import is a no-op
	imported, skipped, err = ImportEventsFromFile(ctx, a.PortfolioService, a.Logger, "main", path)
	require.NoError(t, err)
	assert.Equal(t, 0, imported)
	assert.Equal(t, 5, skipped)

	dirty, err := a.Tracker.IsDirty(ctx, models.NewHoldingKey("main", "AAPL"))
	require.NoError(t, err)
	assert.True(t, dirty)
}

func TestImportEventsFromFile_BadFile(t *testing.T) {
	a := newTestApp(t)
	_, _, err := ImportEventsFromFile(context.Background(), a.PortfolioService, a.Logger, "main", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
