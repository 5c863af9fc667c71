package score

import (
	"fmt"
	"math"
)

// ScalingMode selects how a component indicator is rescaled to [0,100].
// The mode is a run-time global: one invocation applies the same mode to
// all seven components.
type ScalingMode string

const (
	// ScalingFull maps the full-history min/max linearly onto [0,100].
	ScalingFull ScalingMode = "full"
	// ScalingRobust clips to the [5th, 95th] percentile band before the
	// linear map, which keeps one-off data glitches from compressing the
	// scale for everything else.
	ScalingRobust ScalingMode = "robust"
)

const (
	robustLowerPct = 0.05
	robustUpperPct = 0.95
)

// ParseScalingMode validates a mode string from config or CLI flags.
func ParseScalingMode(s string) (ScalingMode, error) {
	switch ScalingMode(s) {
	case ScalingFull:
		return ScalingFull, nil
	case ScalingRobust:
		return ScalingRobust, nil
	default:
		return "", fmt.Errorf("unknown scaling mode %q (want %q or %q)", s, ScalingFull, ScalingRobust)
	}
}

// Rescale maps an indicator series onto [0,100] under the given mode.
// A degenerate band (min==max, or p5==p95) maps every valid value to the
// neutral 50. NaN inputs stay NaN. The mapping depends on the full history
// present at call time: recomputing with more history can shift the scale
// of all past scores, which is an accepted property of the indicator.
func Rescale(xs []float64, mode ScalingMode) []float64 {
	var lo, hi float64
	switch mode {
	case ScalingRobust:
		lo = Quantile(xs, robustLowerPct)
		hi = Quantile(xs, robustUpperPct)
	default:
		lo, hi = math.Inf(1), math.Inf(-1)
		for _, x := range xs {
			if math.IsNaN(x) {
				continue
			}
			lo = math.Min(lo, x)
			hi = math.Max(hi, x)
		}
	}

	out := make([]float64, len(xs))
	degenerate := math.IsNaN(lo) || math.IsNaN(hi) || lo >= hi
	for i, x := range xs {
		if math.IsNaN(x) {
			out[i] = math.NaN()
			continue
		}
		if degenerate {
			out[i] = 50
			continue
		}
		v := (x - lo) / (hi - lo) * 100
		out[i] = math.Max(0, math.Min(100, v))
	}
	return out
}
