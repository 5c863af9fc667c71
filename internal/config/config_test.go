package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macroflow/macrorisk/internal/score"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, _, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, string(score.ScalingFull), cfg.Scoring.Mode)
	assert.True(t, cfg.Scoring.ForwardFill)
	assert.Equal(t, 5, cfg.Regime.SmoothingWindow)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /srv/macro/data
scoring:
  mode: robust
  weights:
    liquidity: 0.25
    curve: 0.20
    credit: 0.18
    fx: 0.13
    funding: 0.09
    volatility: 0.10
    growth: 0.05
regime:
  threshold_policy: quantile
`), 0o644))

	cfg, _, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/macro/data", cfg.DataDir)
	assert.Equal(t, string(score.ScalingRobust), cfg.Scoring.Mode)
	assert.Equal(t, 0.25, cfg.Scoring.Weights["liquidity"])
	assert.Equal(t, "quantile", cfg.Regime.ThresholdPolicy)
	// Untouched sections keep their defaults.
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MACRORISK_HTTP_PORT", "9099")
	t.Setenv("MACRORISK_DATA_DIR", "/tmp/series")

	cfg, env, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9099, cfg.Server.Port)
	assert.Equal(t, "/tmp/series", cfg.DataDir)
	assert.Equal(t, "/tmp/series", env.DataDir)
}

func TestValidate_Rejections(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Scoring.Mode = "loose" }},
		{"weights not summing", func(c *Config) { c.Scoring.Weights["liquidity"] = 0.9 }},
		{"missing weight", func(c *Config) { delete(c.Scoring.Weights, "credit") }},
		{"zero smoothing", func(c *Config) { c.Regime.SmoothingWindow = 0 }},
		{"bad policy", func(c *Config) { c.Regime.ThresholdPolicy = "adaptive" }},
		{"inverted thresholds", func(c *Config) { c.Regime.RiskOffMax = 70 }},
		{"bad quantiles", func(c *Config) { c.Regime.LowerQuantile = 0.8 }},
		{"bad horizon", func(c *Config) { c.Backtest.Horizons = []int{0} }},
		{"negative fill limit", func(c *Config) { c.Scoring.FillLimit = -1 }},
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestAffinePolicy_DisabledWhenScaleZero(t *testing.T) {
	cfg := Default()
	assert.Nil(t, cfg.Scoring.AffinePolicy())

	cfg.Scoring.Affine.Scale = 1.5
	policy := cfg.Scoring.AffinePolicy()
	require.NotNil(t, policy)
	assert.Equal(t, 50.0, policy.Center)
	assert.Equal(t, 1.5, policy.Scale)
}
