package score

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// weightSumTolerance allows for floating point drift when validating that
// component weights sum to 1.0.
const weightSumTolerance = 0.01

// DefaultWeights is the canonical component weight table. Liquidity carries
// the largest share, curve and credit next, then FX, with funding,
// volatility, and leading growth rounding out the composite.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		ComponentLiquidity:  0.22,
		ComponentCurve:      0.18,
		ComponentCredit:     0.18,
		ComponentFX:         0.14,
		ComponentFunding:    0.09,
		ComponentVolatility: 0.10,
		ComponentGrowth:     0.09,
	}
}

// ValidateWeights checks that a weight table covers every component with a
// non-negative weight and sums to approximately 1.0.
func ValidateWeights(weights map[string]float64) error {
	sum := 0.0
	for _, key := range ComponentKeys {
		w, ok := weights[key]
		if !ok {
			return fmt.Errorf("missing required weight: %s", key)
		}
		if w < 0 {
			return fmt.Errorf("negative weight for %s: %f", key, w)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("weights sum to %f, expected ~1.0", sum)
	}
	return nil
}

// AffinePolicy optionally re-centers the composite around 50 and stretches
// it by Scale before the final clip to [0,100]. Scale 1.0 is the identity.
type AffinePolicy struct {
	Center float64
	Scale  float64
}

// AggregateOptions controls the per-date weighted combination.
type AggregateOptions struct {
	Weights map[string]float64

	// ForwardFill carries each component's last known score across gaps
	// before aggregation. Components update at different native
	// frequencies (weekly TGA, monthly orders data, daily market data);
	// without the fill the composite's variance would spike on days where
	// only the daily components report. This is a deliberate
	// staleness-tolerance choice. FillLimit bounds the carry in rows;
	// zero means unlimited.
	ForwardFill bool
	FillLimit   int

	Affine *AffinePolicy
}

// Aggregate combines the component scores into one macro score per date.
// The date index of the result is the sorted union of the component
// indices. For each date, the weights of the non-missing components are
// renormalized to sum to 1 over that subset; a date where every component
// is missing stays missing rather than defaulting to a neutral value.
func Aggregate(components map[string]Series, opts AggregateOptions) (Series, map[string][]float64, error) {
	weights := opts.Weights
	if weights == nil {
		weights = DefaultWeights()
	}
	if err := ValidateWeights(weights); err != nil {
		return Series{}, nil, fmt.Errorf("invalid weights: %w", err)
	}

	dates := unionDates(components)
	aligned := make(map[string][]float64, len(components))
	for key, s := range components {
		col := alignSeries(dates, s)
		if opts.ForwardFill {
			forwardFill(col, opts.FillLimit)
		}
		aligned[key] = col
	}

	macro := make([]float64, len(dates))
	for i := range dates {
		// Accumulate in the fixed component order, not map order: float
		// summation is order-sensitive, and recomputing from unchanged
		// inputs must be bit-identical.
		sum, wsum := 0.0, 0.0
		for _, key := range ComponentKeys {
			col, ok := aligned[key]
			if !ok {
				continue
			}
			v := col[i]
			if math.IsNaN(v) {
				continue
			}
			w := weights[key]
			sum += v * w
			wsum += w
		}
		if wsum == 0 {
			macro[i] = math.NaN()
			continue
		}
		v := sum / wsum
		if opts.Affine != nil && opts.Affine.Scale != 0 {
			v = opts.Affine.Center + opts.Affine.Scale*(v-opts.Affine.Center)
		}
		macro[i] = math.Max(0, math.Min(100, v))
	}

	return Series{Dates: dates, Values: macro}, aligned, nil
}

// unionDates returns the sorted union of all component date indices.
func unionDates(components map[string]Series) []time.Time {
	seen := make(map[int64]time.Time)
	for _, s := range components {
		for _, d := range s.Dates {
			seen[d.Unix()] = d
		}
	}
	dates := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// alignSeries re-indexes a series onto the union date index, NaN where the
// series has no observation.
func alignSeries(dates []time.Time, s Series) []float64 {
	byDate := make(map[int64]float64, len(s.Dates))
	for i, d := range s.Dates {
		byDate[d.Unix()] = s.Values[i]
	}
	out := make([]float64, len(dates))
	for i, d := range dates {
		if v, ok := byDate[d.Unix()]; ok {
			out[i] = v
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// forwardFill carries the last non-NaN value across gaps, at most limit
// rows when limit > 0. Leading NaNs are left alone.
func forwardFill(xs []float64, limit int) {
	last := math.NaN()
	run := 0
	for i, x := range xs {
		if !math.IsNaN(x) {
			last = x
			run = 0
			continue
		}
		if math.IsNaN(last) {
			continue
		}
		run++
		if limit > 0 && run > limit {
			continue
		}
		xs[i] = last
	}
}
