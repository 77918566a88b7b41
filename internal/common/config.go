package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for folio
type Config struct {
	Environment string                  `toml:"environment"`
	Storage     StorageConfig           `toml:"storage"`
	Clients     ClientsConfig           `toml:"clients"`
	Scheduler   SchedulerConfig         `toml:"scheduler"`
	Logging     LoggingConfig           `toml:"logging"`
	Defaults    SymbolConfig            `toml:"defaults"`
	Symbols     map[string]SymbolConfig `toml:"symbols"`
}

// StorageConfig holds the data directory layout.
// Portfolios (authoritative) live under <data_path>/portfolios, the rebuildable cache under <data_path>/cache.
type StorageConfig struct {
	DataPath string `toml:"data_path"`
}

// PortfoliosPath returns the directory holding portfolio files.
func (c StorageConfig) PortfoliosPath() string {
	return filepath.Join(c.DataPath, "portfolios")
}

// CachePath returns the directory holding derived cache artifacts.
func (c StorageConfig) CachePath() string {
	return filepath.Join(c.DataPath, "cache")
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	EODHD EODHDConfig `toml:"eodhd"`
}

// EODHDConfig holds EODHD API configuration
type EODHDConfig struct {
	BaseURL         string `toml:"base_url"`
	APIKey          string `toml:"api_key"`
	RateLimit       int    `toml:"rate_limit"`
	Timeout         string `toml:"timeout"`
	DefaultExchange string `toml:"default_exchange"`
}

// GetTimeout parses and returns the timeout duration
func (c *EODHDConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// SchedulerConfig controls the background synchronisation cadence.
// Schedules use robfig/cron syntax ("@every 60s", "0 */5 * * * *").
type SchedulerConfig struct {
	CycleSchedule    string `toml:"cycle_schedule"`
	RealtimeSchedule string `toml:"realtime_schedule"`
	DirtyPoll        string `toml:"dirty_poll"`
	HistoryYears     int    `toml:"history_years"`
}

// GetDirtyPoll parses and returns the dirty set poll interval
func (c *SchedulerConfig) GetDirtyPoll() time.Duration {
	d, err := time.ParseDuration(c.DirtyPoll)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// SymbolConfig is the per-symbol configuration record.
// ReinvestDividends controls synthetic purchase injection in the valuation engine.
type SymbolConfig struct {
	ReinvestDividends bool `toml:"reinvest_dividends"`
}

// SymbolSettings resolves the configuration record for a symbol, falling back to [defaults].
func (c *Config) SymbolSettings(symbol string) SymbolConfig {
	if sc, ok := c.Symbols[strings.ToUpper(symbol)]; ok {
		return sc
	}
	return c.Defaults
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			DataPath: "data",
		},
		Clients: ClientsConfig{
			EODHD: EODHDConfig{
				BaseURL:         "https://eodhd.com/api",
				RateLimit:       10,
				Timeout:         "30s",
				DefaultExchange: "US",
			},
		},
		Scheduler: SchedulerConfig{
			CycleSchedule:    "@every 3m",
			RealtimeSchedule: "@every 60s",
			DirtyPoll:        "5s",
			HistoryYears:     10,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
		Symbols: map[string]SymbolConfig{},
	}
}

// LoadConfig loads configuration from files with .env and environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// .env never overrides variables already present in the environment
	_ = godotenv.Load()

	applyEnvOverrides(config)
	normaliseSymbols(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FOLIO_ENV"); env != "" {
		config.Environment = env
	}

	if path := os.Getenv("FOLIO_DATA_PATH"); path != "" {
		config.Storage.DataPath = path
	}

	if level := os.Getenv("FOLIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	for _, name := range []string{"EODHD_API_KEY", "FOLIO_EODHD_API_KEY"} {
		if key := os.Getenv(name); key != "" {
			config.Clients.EODHD.APIKey = key
		}
	}

	if rl := os.Getenv("FOLIO_EODHD_RATE_LIMIT"); rl != "" {
		if n, err := strconv.Atoi(rl); err == nil && n > 0 {
			config.Clients.EODHD.RateLimit = n
		}
	}

	if s := os.Getenv("FOLIO_CYCLE_SCHEDULE"); s != "" {
		config.Scheduler.CycleSchedule = s
	}
	if s := os.Getenv("FOLIO_REALTIME_SCHEDULE"); s != "" {
		config.Scheduler.RealtimeSchedule = s
	}
}

// normaliseSymbols upper-cases symbol keys so lookups are case-insensitive.
func normaliseSymbols(config *Config) {
	if len(config.Symbols) == 0 {
		config.Symbols = map[string]SymbolConfig{}
		return
	}
	normalised := make(map[string]SymbolConfig, len(config.Symbols))
	for k, v := range config.Symbols {
		normalised[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	config.Symbols = normalised
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
