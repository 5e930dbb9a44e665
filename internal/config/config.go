// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Defaults for quantitative analysis configuration.
const (
	// DefaultRiskFreeRate is the annual risk-free rate used for Sharpe and
	// Sortino calculations (4% = Treasury yield).
	DefaultRiskFreeRate = 0.04

	// DefaultBenchmarkSymbol is the market proxy used for beta calculations.
	DefaultBenchmarkSymbol = "SPY"
)

// Config holds application configuration
type Config struct {
	DataDir         string  // Base directory for all databases (always absolute)
	Port            int     // HTTP listen port
	LogLevel        string  // debug, info, warn, error
	DevMode         bool    // Relaxed CORS, pretty logging
	RiskFreeRate    float64 // Annual risk-free rate for Sharpe/Sortino
	BenchmarkSymbol string  // Market proxy symbol for beta
	MarketDataURL   string  // Override for the market data base URL (tests)
}

// Load reads configuration from the environment, with .env as a fallback
// source for local development.
func Load() (*Config, error) {
	// .env is optional; environment variables win
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:         getEnv("DATA_DIR", "./data"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DevMode:         getEnvBool("DEV_MODE", false),
		BenchmarkSymbol: getEnv("BENCHMARK_SYMBOL", DefaultBenchmarkSymbol),
		MarketDataURL:   getEnv("MARKET_DATA_URL", ""),
	}

	port, err := strconv.Atoi(getEnv("PORT", "8000"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	cfg.Port = port

	rate, err := strconv.ParseFloat(getEnv("RISK_FREE_RATE", ""), 64)
	if err != nil {
		rate = DefaultRiskFreeRate
	}
	cfg.RiskFreeRate = rate

	// Resolve data dir to an absolute path so database files end up in a
	// predictable location regardless of working directory.
	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir: %w", err)
	}
	cfg.DataDir = absDataDir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.RiskFreeRate < 0 || c.RiskFreeRate >= 1 {
		return fmt.Errorf("risk-free rate must be a decimal in [0, 1), got %f", c.RiskFreeRate)
	}
	if c.BenchmarkSymbol == "" {
		return fmt.Errorf("benchmark symbol must not be empty")
	}
	return nil
}

// getEnv retrieves an environment variable value, returning a fallback if the
// variable is not set or is empty.
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvBool retrieves a boolean environment variable.
func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
