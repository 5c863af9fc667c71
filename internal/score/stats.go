package score

import (
	"math"
	"sort"
)

// mean returns the arithmetic mean over non-NaN values, or NaN when the
// series has no valid values.
func mean(xs []float64) float64 {
	sum, n := 0.0, 0
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		sum += x
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// popStdDev returns the population standard deviation over non-NaN values.
func popStdDev(xs []float64) float64 {
	m := mean(xs)
	if math.IsNaN(m) {
		return math.NaN()
	}
	sumSq, n := 0.0, 0
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		d := x - m
		sumSq += d * d
		n++
	}
	return math.Sqrt(sumSq / float64(n))
}

// zscore standardizes a series against its own full history. A zero or
// undefined standard deviation yields all-zero z-scores rather than blowing
// up a constant series into +/-Inf. NaN inputs stay NaN.
func zscore(xs []float64) []float64 {
	out := make([]float64, len(xs))
	m := mean(xs)
	sd := popStdDev(xs)

	if sd == 0 || math.IsNaN(sd) {
		for i, x := range xs {
			if math.IsNaN(x) {
				out[i] = math.NaN()
			} else {
				out[i] = 0
			}
		}
		return out
	}

	for i, x := range xs {
		if math.IsNaN(x) {
			out[i] = math.NaN()
		} else {
			out[i] = (x - m) / sd
		}
	}
	return out
}

// pctChange returns the n-period percent change of a series. The first n
// positions are NaN, as is any position where either endpoint is missing or
// the base is zero.
func pctChange(xs []float64, n int) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		if i < n {
			out[i] = math.NaN()
			continue
		}
		base := xs[i-n]
		if math.IsNaN(xs[i]) || math.IsNaN(base) || base == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (xs[i] - base) / base
	}
	return out
}

// Quantile returns the p-quantile (0..1) of the non-NaN values using
// linear interpolation between order statistics. Returns NaN for an empty
// series.
func Quantile(xs []float64, p float64) float64 {
	valid := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			valid = append(valid, x)
		}
	}
	if len(valid) == 0 {
		return math.NaN()
	}
	sort.Float64s(valid)

	if p <= 0 {
		return valid[0]
	}
	if p >= 1 {
		return valid[len(valid)-1]
	}

	pos := p * float64(len(valid)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return valid[lo]
	}
	frac := pos - float64(lo)
	return valid[lo]*(1-frac) + valid[hi]*frac
}

// rowMean averages aligned series position-by-position, skipping NaN
// entries. A position where every series is NaN stays NaN.
func rowMean(series ...[]float64) []float64 {
	if len(series) == 0 {
		return nil
	}
	out := make([]float64, len(series[0]))
	for i := range out {
		sum, n := 0.0, 0
		for _, s := range series {
			if i < len(s) && !math.IsNaN(s[i]) {
				sum += s[i]
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
