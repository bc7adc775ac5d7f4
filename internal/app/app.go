// Package app wires configuration, storage, provider clients, and services
// into a runnable application core.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/levfolio/levfolio/internal/clients/alphavantage"
	"github.com/levfolio/levfolio/internal/clients/finnhub"
	"github.com/levfolio/levfolio/internal/clients/tiingo"
	"github.com/levfolio/levfolio/internal/common"
	"github.com/levfolio/levfolio/internal/interfaces"
	"github.com/levfolio/levfolio/internal/services/maintenance"
	"github.com/levfolio/levfolio/internal/services/stocks"
	"github.com/levfolio/levfolio/internal/storage/surrealdb"
)

// App holds all initialized services and clients. It is the shared core used
// by cmd/levfolio-server.
type App struct {
	Config             *common.Config
	Logger             *common.Logger
	Storage            interfaces.StorageManager
	Providers          []interfaces.MarketProvider
	StockService       interfaces.StockService
	MaintenanceService interfaces.MaintenanceService
	StartupTime        time.Time

	cron            *cron.Cron
	schedulerCancel context.CancelFunc
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes storage, provider clients, and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	// Load configuration: provided path, FOLIO_CONFIG, binary dir, then the
	// development fallback.
	if configPath == "" {
		configPath = os.Getenv("FOLIO_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "levfolio.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/levfolio.toml"
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	storageManager, err := surrealdb.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Provider clients in priority order: primary daily history, secondary
	// daily history, tertiary quote-only.
	providers := buildProviders(config, logger)
	if len(providers) == 0 {
		logger.Warn().Msg("No provider API keys configured - serving from cache only")
	}

	stockService := stocks.NewService(storageManager, providers, logger)
	maintenanceService := maintenance.NewService(storageManager, providers, logger)

	a := &App{
		Config:             config,
		Logger:             logger,
		Storage:            storageManager,
		Providers:          providers,
		StockService:       stockService,
		MaintenanceService: maintenanceService,
		StartupTime:        time.Now(),
	}

	logger.Info().
		Str("environment", config.Environment).
		Strs("symbols", config.Symbols).
		Int("providers", len(providers)).
		Msg("Application initialized")

	return a, nil
}

// buildProviders constructs the configured provider clients in priority
// order, skipping any without an API key.
func buildProviders(config *common.Config, logger *common.Logger) []interfaces.MarketProvider {
	var providers []interfaces.MarketProvider

	if cfg := config.Clients.Tiingo; cfg.APIKey != "" {
		providers = append(providers, tiingo.NewClient(cfg.APIKey,
			tiingo.WithBaseURL(cfg.BaseURL),
			tiingo.WithLogger(logger),
			tiingo.WithRateLimit(cfg.RateLimit),
			tiingo.WithTimeout(cfg.GetTimeout()),
		))
	} else {
		logger.Warn().Msg("Tiingo API key not configured - primary provider unavailable")
	}

	if cfg := config.Clients.AlphaVantage; cfg.APIKey != "" {
		providers = append(providers, alphavantage.NewClient(cfg.APIKey,
			alphavantage.WithBaseURL(cfg.BaseURL),
			alphavantage.WithLogger(logger),
			alphavantage.WithRateLimit(cfg.RateLimit),
			alphavantage.WithTimeout(cfg.GetTimeout()),
		))
	} else {
		logger.Warn().Msg("Alpha Vantage API key not configured - secondary provider unavailable")
	}

	if cfg := config.Clients.Finnhub; cfg.APIKey != "" {
		providers = append(providers, finnhub.NewClient(cfg.APIKey,
			finnhub.WithBaseURL(cfg.BaseURL),
			finnhub.WithLogger(logger),
			finnhub.WithRateLimit(cfg.RateLimit),
			finnhub.WithTimeout(cfg.GetTimeout()),
		))
	} else {
		logger.Warn().Msg("Finnhub API key not configured - quote fallback unavailable")
	}

	return providers
}

// Close stops background work and releases storage connections.
func (a *App) Close() {
	a.StopScheduler()
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Storage close failed")
		}
	}
}
