package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"github.com/macroflow/macrorisk/internal/score"
)

// Config is the full application configuration, loaded from YAML with
// environment overrides for deployment-specific settings.
type Config struct {
	DataDir  string         `yaml:"data_dir"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Regime   RegimeConfig   `yaml:"regime"`
	Backtest BacktestConfig `yaml:"backtest"`
	Prices   PricesConfig   `yaml:"prices"`
	Server   ServerConfig   `yaml:"server"`
}

// ScoringConfig controls the aggregation engine.
type ScoringConfig struct {
	// Mode is the scaling policy: "full" or "robust".
	Mode string `yaml:"mode"`
	// Weights is the component weight table; must cover all seven
	// components and sum to ~1.0.
	Weights map[string]float64 `yaml:"weights"`
	// ForwardFill carries stale component scores across gaps before
	// aggregation (staleness tolerance for mixed-frequency inputs).
	ForwardFill bool `yaml:"forward_fill"`
	// FillLimit bounds the forward fill in rows; 0 means unlimited.
	FillLimit int `yaml:"fill_limit"`
	// Affine optionally re-centers the composite: score' = center +
	// scale*(score-center), clipped to [0,100]. Scale 0 disables it.
	Affine AffineConfig `yaml:"affine"`
}

// AffineConfig mirrors score.AffinePolicy in YAML.
type AffineConfig struct {
	Center float64 `yaml:"center"`
	Scale  float64 `yaml:"scale"`
}

// RegimeConfig controls smoothing and regime classification thresholds.
type RegimeConfig struct {
	// SmoothingWindow is the trailing moving-average window in rows.
	SmoothingWindow int `yaml:"smoothing_window"`
	// ThresholdPolicy is "fixed" or "quantile".
	ThresholdPolicy string `yaml:"threshold_policy"`
	// RiskOnMin / RiskOffMax are the fixed-policy score thresholds.
	RiskOnMin  float64 `yaml:"risk_on_min"`
	RiskOffMax float64 `yaml:"risk_off_max"`
	// UpperQuantile / LowerQuantile are the quantile-policy cut points
	// over the smoothed score's own history.
	UpperQuantile float64 `yaml:"upper_quantile"`
	LowerQuantile float64 `yaml:"lower_quantile"`
}

// BacktestConfig controls the regime vs forward-return panel.
type BacktestConfig struct {
	Assets   []string `yaml:"assets"`
	Horizons []int    `yaml:"horizons"`
}

// PricesConfig controls the external price-history client.
type PricesConfig struct {
	BaseURL         string  `yaml:"base_url"`
	CacheTTLMinutes int     `yaml:"cache_ttl_minutes"`
	RatePerSec      float64 `yaml:"rate_per_sec"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
}

// CacheTTL returns the price cache TTL as a duration.
func (p PricesConfig) CacheTTL() time.Duration {
	return time.Duration(p.CacheTTLMinutes) * time.Minute
}

// Timeout returns the HTTP client timeout as a duration.
func (p PricesConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// ServerConfig controls the read-only HTTP API.
type ServerConfig struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	IdleTimeoutSeconds  int    `yaml:"idle_timeout_seconds"`
}

// ReadTimeout returns the server read timeout as a duration.
func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the server write timeout as a duration.
func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSeconds) * time.Second
}

// IdleTimeout returns the server idle timeout as a duration.
func (s ServerConfig) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutSeconds) * time.Second
}

// Env holds deployment overrides sourced from the environment, applied on
// top of the YAML file after parsing.
type Env struct {
	HTTPHost  string `envconfig:"HTTP_HOST"`
	HTTPPort  int    `envconfig:"HTTP_PORT"`
	DataDir   string `envconfig:"DATA_DIR"`
	RedisAddr string `envconfig:"REDIS_ADDR"`
}

// Default returns the built-in configuration, used when no YAML file is
// given and as the base that a YAML file overrides.
func Default() Config {
	return Config{
		DataDir: "data/processed",
		Scoring: ScoringConfig{
			Mode:        string(score.ScalingFull),
			Weights:     score.DefaultWeights(),
			ForwardFill: true,
			FillLimit:   0,
			Affine:      AffineConfig{Center: 50, Scale: 0},
		},
		Regime: RegimeConfig{
			SmoothingWindow: 5,
			ThresholdPolicy: "fixed",
			RiskOnMin:       65,
			RiskOffMax:      35,
			UpperQuantile:   0.67,
			LowerQuantile:   0.33,
		},
		Backtest: BacktestConfig{
			Assets:   []string{"spy.us", "iwm.us", "eem.us", "tlt.us"},
			Horizons: []int{5, 21, 63},
		},
		Prices: PricesConfig{
			BaseURL:         "https://stooq.com",
			CacheTTLMinutes: 360,
			RatePerSec:      2,
			TimeoutSeconds:  15,
		},
		Server: ServerConfig{
			Host:                "127.0.0.1",
			Port:                8080,
			ReadTimeoutSeconds:  10,
			WriteTimeoutSeconds: 30,
			IdleTimeoutSeconds:  60,
		},
	}
}

// Load reads the YAML config at path (optional), applies environment
// overrides, and validates the result. An empty path returns the validated
// defaults.
func Load(path string) (Config, Env, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, Env{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, Env{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	var env Env
	if err := envconfig.Process("macrorisk", &env); err != nil {
		return cfg, Env{}, fmt.Errorf("failed to read environment overrides: %w", err)
	}
	if env.HTTPHost != "" {
		cfg.Server.Host = env.HTTPHost
	}
	if env.HTTPPort != 0 {
		cfg.Server.Port = env.HTTPPort
	}
	if env.DataDir != "" {
		cfg.DataDir = env.DataDir
	}

	if err := cfg.Validate(); err != nil {
		return cfg, env, err
	}
	return cfg, env, nil
}

// Validate checks cross-field constraints that YAML parsing cannot.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if _, err := score.ParseScalingMode(c.Scoring.Mode); err != nil {
		return fmt.Errorf("scoring.mode: %w", err)
	}
	if err := score.ValidateWeights(c.Scoring.Weights); err != nil {
		return fmt.Errorf("scoring.weights: %w", err)
	}
	if c.Scoring.FillLimit < 0 {
		return fmt.Errorf("scoring.fill_limit must be >= 0, got %d", c.Scoring.FillLimit)
	}
	if c.Regime.SmoothingWindow < 1 {
		return fmt.Errorf("regime.smoothing_window must be >= 1, got %d", c.Regime.SmoothingWindow)
	}
	switch c.Regime.ThresholdPolicy {
	case "fixed", "quantile":
	default:
		return fmt.Errorf("regime.threshold_policy must be \"fixed\" or \"quantile\", got %q", c.Regime.ThresholdPolicy)
	}
	if c.Regime.RiskOffMax >= c.Regime.RiskOnMin {
		return fmt.Errorf("regime.risk_off_max (%f) must be below risk_on_min (%f)",
			c.Regime.RiskOffMax, c.Regime.RiskOnMin)
	}
	if c.Regime.LowerQuantile <= 0 || c.Regime.UpperQuantile >= 1 ||
		c.Regime.LowerQuantile >= c.Regime.UpperQuantile {
		return fmt.Errorf("regime quantiles must satisfy 0 < lower < upper < 1, got %f/%f",
			c.Regime.LowerQuantile, c.Regime.UpperQuantile)
	}
	for _, h := range c.Backtest.Horizons {
		if h < 1 {
			return fmt.Errorf("backtest horizons must be >= 1 day, got %d", h)
		}
	}
	return nil
}

// AffinePolicy converts the YAML affine section into the engine's policy,
// nil when disabled.
func (c ScoringConfig) AffinePolicy() *score.AffinePolicy {
	if c.Affine.Scale == 0 {
		return nil
	}
	return &score.AffinePolicy{Center: c.Affine.Center, Scale: c.Affine.Scale}
}
