// Package common provides shared utilities for levfolio
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for levfolio
type Config struct {
	Environment string            `toml:"environment"`
	Symbols     []string          `toml:"symbols"` // tracked tickers (e.g. TQQQ, SOXL, UPRO)
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	Clients     ClientsConfig     `toml:"clients"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
	Logging     LoggingConfig     `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds SurrealDB connection configuration.
type StorageConfig struct {
	Address   string `toml:"address"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Tiingo       ProviderConfig `toml:"tiingo"`
	AlphaVantage ProviderConfig `toml:"alphavantage"`
	Finnhub      ProviderConfig `toml:"finnhub"`
}

// ProviderConfig holds a market-data provider's client configuration.
type ProviderConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"` // requests per second
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *ProviderConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// MaintenanceConfig holds sweeper scheduling configuration.
type MaintenanceConfig struct {
	Schedule        string `toml:"schedule"`          // cron expression for the nightly sweep
	LookbackDays    int    `toml:"lookback_days"`     // gap-scan window
	ForceRefreshDay int    `toml:"force_refresh_days"` // default window for manual force refresh
	RefreshInterval string `toml:"refresh_interval"`  // live price refresh interval
}

// GetRefreshInterval parses and returns the price refresh interval.
func (c *MaintenanceConfig) GetRefreshInterval() time.Duration {
	d, err := time.ParseDuration(c.RefreshInterval)
	if err != nil {
		return 20 * time.Minute
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Symbols:     []string{"TQQQ", "SOXL", "UPRO", "TECL"},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Address:   "ws://localhost:8000",
			Namespace: "levfolio",
			Database:  "levfolio",
			Username:  "root",
			Password:  "root",
		},
		Clients: ClientsConfig{
			Tiingo: ProviderConfig{
				BaseURL:   "https://api.tiingo.com",
				RateLimit: 2,
				Timeout:   "10s",
			},
			AlphaVantage: ProviderConfig{
				BaseURL:   "https://www.alphavantage.co",
				RateLimit: 1,
				Timeout:   "10s",
			},
			Finnhub: ProviderConfig{
				BaseURL:   "https://finnhub.io/api/v1",
				RateLimit: 2,
				Timeout:   "10s",
			},
		},
		Maintenance: MaintenanceConfig{
			Schedule:        "0 30 18 * * MON-FRI", // after US market close
			LookbackDays:    30,
			ForceRefreshDay: 20,
			RefreshInterval: "20m",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	normalizeSymbols(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FOLIO_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("FOLIO_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("FOLIO_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("FOLIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if addr := os.Getenv("FOLIO_SURREAL_ADDR"); addr != "" {
		config.Storage.Address = addr
	}
	if user := os.Getenv("FOLIO_SURREAL_USER"); user != "" {
		config.Storage.Username = user
	}
	if pass := os.Getenv("FOLIO_SURREAL_PASS"); pass != "" {
		config.Storage.Password = pass
	}

	if symbols := os.Getenv("FOLIO_SYMBOLS"); symbols != "" {
		config.Symbols = strings.Split(symbols, ",")
	}

	if key := os.Getenv("TIINGO_API_KEY"); key != "" {
		config.Clients.Tiingo.APIKey = key
	}
	if key := os.Getenv("ALPHAVANTAGE_API_KEY"); key != "" {
		config.Clients.AlphaVantage.APIKey = key
	}
	if key := os.Getenv("FINNHUB_API_KEY"); key != "" {
		config.Clients.Finnhub.APIKey = key
	}
}

// normalizeSymbols uppercases and trims configured tickers, dropping empties.
func normalizeSymbols(config *Config) {
	out := make([]string, 0, len(config.Symbols))
	for _, s := range config.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	config.Symbols = out
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
