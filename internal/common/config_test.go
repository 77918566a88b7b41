package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.Scheduler.RealtimeSchedule != "@every 60s" {
		t.Errorf("RealtimeSchedule default = %q, want %q", cfg.Scheduler.RealtimeSchedule, "@every 60s")
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level default = %q, want warn", cfg.Logging.Level)
	}
	assert.Equal(t, filepath.Join("data", "cache"), cfg.Storage.CachePath())
	assert.Equal(t, filepath.Join("data", "portfolios"), cfg.Storage.PortfoliosPath())
}

func TestConfig_DataPathEnvOverride(t *testing.T) {
	t.Setenv("FOLIO_DATA_PATH", "/tmp/folio")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	assert.Equal(t, "/tmp/folio", cfg.Storage.DataPath)
}

func TestConfig_EODHDKeyEnvOverride(t *testing.T) {
	t.Setenv("EODHD_API_KEY", "from-env")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Clients.EODHD.APIKey != "from-env" {
		t.Errorf("EODHD.APIKey = %q, want %q", cfg.Clients.EODHD.APIKey, "from-env")
	}
}

func TestConfig_LoadTOMLWithSymbols(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "folio.toml")
	content := `
environment = "production"

[scheduler]
cycle_schedule = "@every 10m"
dirty_poll = "2s"

[defaults]
reinvest_dividends = false

[symbols.aapl]
reinvest_dividends = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "@every 10m", cfg.Scheduler.CycleSchedule)
	assert.Equal(t, 2*time.Second, cfg.Scheduler.GetDirtyPoll())
	assert.True(t, cfg.SymbolSettings("AAPL").ReinvestDividends)
	assert.True(t, cfg.SymbolSettings("aapl").ReinvestDividends)
	assert.False(t, cfg.SymbolSettings("MSFT").ReinvestDividends)
}

func TestConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, "@every 3m", cfg.Scheduler.CycleSchedule)
}

func TestConfig_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler = [unterminated"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestEODHDConfig_GetTimeoutFallback(t *testing.T) {
	c := EODHDConfig{Timeout: "nonsense"}
	assert.Equal(t, 30*time.Second, c.GetTimeout())
}
