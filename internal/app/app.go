package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/folio/internal/clients/eodhd"
	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/services/dirty"
	"github.com/bobmcallan/folio/internal/services/portfolio"
	"github.com/bobmcallan/folio/internal/services/scheduler"
	"github.com/bobmcallan/folio/internal/storage"
)

// App holds the initialized stores, market data client and services.
// It is the shared core behind every cmd/folio subcommand.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	Storage          interfaces.StorageManager
	MarketSource     interfaces.MarketDataSource // nil when no API key is configured
	Tracker          *dirty.Tracker
	PortfolioService interfaces.PortfolioService
	Scheduler        *scheduler.Scheduler
	StartupTime      time.Time

	schedulerRunning bool
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// resolveConfigPath checks the provided path, FOLIO_CONFIG, then the binary
// dir, then the working directory fallback.
func resolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("FOLIO_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "folio.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/folio.toml" // fallback for development
		}
	}
	return configPath
}

// NewApp initializes config, logging, storage, the market data client and
// services. configPath may be empty, in which case the default resolution
// logic is used. verbose forces debug logging.
func NewApp(configPath string, verbose bool) (*App, error) {
	startupStart := time.Now()

	configPath = resolveConfigPath(configPath)
	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Relative data paths are anchored at the config file when one exists
	if config.Storage.DataPath != "" && !filepath.IsAbs(config.Storage.DataPath) {
		if _, err := os.Stat(configPath); err == nil {
			config.Storage.DataPath = filepath.Join(filepath.Dir(configPath), config.Storage.DataPath)
		}
	}

	if verbose {
		config.Logging.Level = "debug"
	}
	logger := common.NewLoggerFromConfig(config.Logging)

	storageManager, err := storage.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	ctx := context.Background()
	checkSchemaVersion(ctx, storageManager.SeriesStore(), logger)

	var source interfaces.MarketDataSource
	if config.Clients.EODHD.APIKey != "" {
		source = eodhd.NewClient(config.Clients.EODHD.APIKey,
			eodhd.WithLogger(logger),
			eodhd.WithBaseURL(config.Clients.EODHD.BaseURL),
			eodhd.WithRateLimit(config.Clients.EODHD.RateLimit),
			eodhd.WithTimeout(config.Clients.EODHD.GetTimeout()),
			eodhd.WithDefaultExchange(config.Clients.EODHD.DefaultExchange),
		)
	} else {
		logger.Warn().Msg("EODHD API key not configured - valuing from cached market data only")
	}

	tracker := dirty.NewTracker(storageManager.SeriesStore(), logger)
	portfolioService := portfolio.NewService(storageManager, tracker, logger)
	sched := scheduler.NewScheduler(storageManager, source, tracker, config, logger)

	a := &App{
		Config:           config,
		Logger:           logger,
		Storage:          storageManager,
		MarketSource:     source,
		Tracker:          tracker,
		PortfolioService: portfolioService,
		Scheduler:        sched,
		StartupTime:      startupStart,
	}

	logger.Debug().Dur("startup", time.Since(startupStart)).Msg("App initialized")
	return a, nil
}

// StartScheduler launches the background sync loop.
func (a *App) StartScheduler() error {
	if err := a.Scheduler.Start(); err != nil {
		return err
	}
	a.schedulerRunning = true
	return nil
}

// Close releases all resources held by the App.
// Shutdown order: stop scheduler, close storage.
func (a *App) Close() {
	if a.schedulerRunning {
		a.Scheduler.Stop()
		a.schedulerRunning = false
	}
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}
