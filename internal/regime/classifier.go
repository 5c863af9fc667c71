package regime

import (
	"encoding/json"
	"math"
	"time"

	"github.com/macroflow/macrorisk/internal/score"
)

// Label is the three-way regime classification derived from the smoothed
// macro score. It feeds the backtest panel only and is never stored.
type Label int

const (
	// Unknown marks dates where the smoothed score is missing.
	Unknown Label = iota
	RiskOff
	Mixed
	RiskOn
)

func (l Label) String() string {
	switch l {
	case RiskOn:
		return "risk_on"
	case Mixed:
		return "mixed"
	case RiskOff:
		return "risk_off"
	default:
		return "unknown"
	}
}

// ThresholdPolicy selects how the risk-on/risk-off cut points are derived.
type ThresholdPolicy string

const (
	// PolicyFixed uses absolute score thresholds (e.g. >=65 / <=35).
	PolicyFixed ThresholdPolicy = "fixed"
	// PolicyQuantile derives the thresholds from the smoothed score's own
	// history (e.g. its 33rd/67th percentiles), so the three buckets stay
	// populated even when the composite drifts.
	PolicyQuantile ThresholdPolicy = "quantile"
)

// Config holds the classifier parameters. Both threshold policies are
// supported behind the explicit Policy switch.
type Config struct {
	SmoothingWindow int
	Policy          ThresholdPolicy

	// Fixed-policy thresholds.
	RiskOnMin  float64
	RiskOffMax float64

	// Quantile-policy cut points, in (0,1).
	UpperQuantile float64
	LowerQuantile float64
}

// DefaultConfig returns the classifier defaults: 5-row trailing smoothing
// and fixed 65/35 thresholds.
func DefaultConfig() Config {
	return Config{
		SmoothingWindow: 5,
		Policy:          PolicyFixed,
		RiskOnMin:       65,
		RiskOffMax:      35,
		UpperQuantile:   0.67,
		LowerQuantile:   0.33,
	}
}

// Classification is one dated regime observation.
type Classification struct {
	Date     time.Time
	Score    float64
	Smoothed float64
	Label    Label
	Regime   string
}

// MarshalJSON renders missing scores as null; encoding/json rejects NaN.
func (c Classification) MarshalJSON() ([]byte, error) {
	nullable := func(v float64) *float64 {
		if math.IsNaN(v) {
			return nil
		}
		return &v
	}
	return json.Marshal(struct {
		Date     string   `json:"date"`
		Score    *float64 `json:"score"`
		Smoothed *float64 `json:"smoothed"`
		Regime   string   `json:"regime"`
	}{
		Date:     c.Date.Format("2006-01-02"),
		Score:    nullable(c.Score),
		Smoothed: nullable(c.Smoothed),
		Regime:   c.Regime,
	})
}

// Classifier turns a macro score series into regime labels.
type Classifier struct {
	cfg Config
}

// NewClassifier creates a classifier; zero-value fields in cfg fall back to
// defaults.
func NewClassifier(cfg Config) *Classifier {
	def := DefaultConfig()
	if cfg.SmoothingWindow < 1 {
		cfg.SmoothingWindow = def.SmoothingWindow
	}
	if cfg.Policy == "" {
		cfg.Policy = def.Policy
	}
	if cfg.RiskOnMin == 0 && cfg.RiskOffMax == 0 {
		cfg.RiskOnMin = def.RiskOnMin
		cfg.RiskOffMax = def.RiskOffMax
	}
	if cfg.UpperQuantile == 0 && cfg.LowerQuantile == 0 {
		cfg.UpperQuantile = def.UpperQuantile
		cfg.LowerQuantile = def.LowerQuantile
	}
	return &Classifier{cfg: cfg}
}

// Thresholds returns the active (riskOnMin, riskOffMax) pair for a smoothed
// history. Under the quantile policy the pair is data-driven.
func (c *Classifier) Thresholds(smoothed []float64) (float64, float64) {
	if c.cfg.Policy == PolicyQuantile {
		hi := score.Quantile(smoothed, c.cfg.UpperQuantile)
		lo := score.Quantile(smoothed, c.cfg.LowerQuantile)
		if !math.IsNaN(hi) && !math.IsNaN(lo) {
			return hi, lo
		}
		// Degenerate history: fall back to the fixed thresholds.
	}
	return c.cfg.RiskOnMin, c.cfg.RiskOffMax
}

// Classify smooths the macro score with a trailing moving average (so a
// single-day spike cannot flip the regime) and buckets each date into
// risk-on / mixed / risk-off. Dates without a smoothed value are labeled
// Unknown and skipped by the backtest.
func (c *Classifier) Classify(dates []time.Time, macro []float64) []Classification {
	smoothed := trailingMean(macro, c.cfg.SmoothingWindow)
	riskOnMin, riskOffMax := c.Thresholds(smoothed)

	out := make([]Classification, len(dates))
	for i, d := range dates {
		cls := Classification{Date: d, Score: macro[i], Smoothed: smoothed[i]}
		switch {
		case math.IsNaN(smoothed[i]):
			cls.Label = Unknown
		case smoothed[i] >= riskOnMin:
			cls.Label = RiskOn
		case smoothed[i] <= riskOffMax:
			cls.Label = RiskOff
		default:
			cls.Label = Mixed
		}
		cls.Regime = cls.Label.String()
		out[i] = cls
	}
	return out
}

// trailingMean is a NaN-aware trailing moving average: the mean of the
// non-NaN values in the lookback window, NaN when the window is empty.
func trailingMean(xs []float64, window int) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		sum, n := 0.0, 0
		for j := start; j <= i; j++ {
			if !math.IsNaN(xs[j]) {
				sum += xs[j]
				n++
			}
		}
		if n == 0 {
			out[i] = math.NaN()
		} else {
			out[i] = sum / float64(n)
		}
	}
	return out
}
