package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("RISK_FREE_RATE", "")
	t.Setenv("BENCHMARK_SYMBOL", "")
	t.Setenv("DEV_MODE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, DefaultRiskFreeRate, cfg.RiskFreeRate)
	assert.Equal(t, DefaultBenchmarkSymbol, cfg.BenchmarkSymbol)
	assert.False(t, cfg.DevMode)
	assert.True(t, len(cfg.DataDir) > 0)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("RISK_FREE_RATE", "0.02")
	t.Setenv("BENCHMARK_SYMBOL", "VTI")
	t.Setenv("DEV_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 0.02, cfg.RiskFreeRate)
	assert.Equal(t, "VTI", cfg.BenchmarkSymbol)
	assert.True(t, cfg.DevMode)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("PORT", "not-a-port")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{Port: 0, RiskFreeRate: 0.04, BenchmarkSymbol: "SPY"}
	assert.Error(t, cfg.Validate())

	cfg = &Config{Port: 8000, RiskFreeRate: 1.5, BenchmarkSymbol: "SPY"}
	assert.Error(t, cfg.Validate())

	cfg = &Config{Port: 8000, RiskFreeRate: 0.04, BenchmarkSymbol: ""}
	assert.Error(t, cfg.Validate())

	cfg = &Config{Port: 8000, RiskFreeRate: 0.04, BenchmarkSymbol: "SPY"}
	assert.NoError(t, cfg.Validate())
}
