// Package analysis derives flight statistics from telemetry samples.
//
// Series helpers follow the usual dataframe conventions: an output is NaN
// whenever its window is incomplete or contains a NaN.
package analysis

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrNoAltitude is returned when a flight has no usable altitude values.
var ErrNoAltitude = errors.New("analysis: no altitude data")

// Diff returns xs[i]-xs[i-1], with NaN at index 0.
func Diff(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = xs[i] - xs[i-1]
	}
	return out
}

// Rate returns dy/dt between consecutive samples, NaN at index 0.
func Rate(t, y []float64) []float64 {
	dy, dt := Diff(y), Diff(t)
	out := make([]float64, len(y))
	for i := range out {
		out[i] = dy[i] / dt[i]
		if math.IsInf(out[i], 0) {
			out[i] = math.NaN()
		}
	}
	return out
}

func windowBounds(i, n, window int, centered bool) (int, int, bool) {
	lo := i - window + 1
	if centered {
		lo = i - window/2
	}
	hi := lo + window - 1
	return lo, hi, lo >= 0 && hi < n
}

// RollingMean is the mean over a window of the given size. A centered window
// is labelled at its middle element.
func RollingMean(xs []float64, window int, centered bool) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		lo, hi, ok := windowBounds(i, len(xs), window, centered)
		if !ok || window <= 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = Mean(xs[lo : hi+1])
	}
	return out
}

// RollingMedian is the centered median over window elements.
func RollingMedian(xs []float64, window int) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		lo, hi, ok := windowBounds(i, len(xs), window, true)
		if !ok || window <= 0 || len(Valid(xs[lo:hi+1])) != window {
			out[i] = math.NaN()
			continue
		}
		out[i] = Median(xs[lo : hi+1])
	}
	return out
}

// RollingStd is the trailing sample standard deviation over window elements.
func RollingStd(xs []float64, window int) []float64 {
	out := make([]float64, len(xs))
	for i := range xs {
		lo, hi, ok := windowBounds(i, len(xs), window, false)
		if !ok || window < 2 {
			out[i] = math.NaN()
			continue
		}
		out[i] = Std(xs[lo : hi+1])
	}
	return out
}

// Mean of xs; NaN if xs is empty or holds a NaN.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}

// Std is the sample (n-1) standard deviation.
func Std(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.StdDev(xs, nil)
}

// Valid returns xs without NaN values.
func Valid(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

// NanMean is the mean of the non-NaN values.
func NanMean(xs []float64) float64 { return Mean(Valid(xs)) }

// NanMax is the maximum of the non-NaN values, NaN if there are none.
func NanMax(xs []float64) float64 {
	i := ArgMax(xs)
	if i < 0 {
		return math.NaN()
	}
	return xs[i]
}

// NanMin is the minimum of the non-NaN values, NaN if there are none.
func NanMin(xs []float64) float64 {
	i := ArgMin(xs)
	if i < 0 {
		return math.NaN()
	}
	return xs[i]
}

// ArgMax returns the first index of the maximum, skipping NaN; -1 if none.
func ArgMax(xs []float64) int {
	vals, idx := indexed(xs)
	if len(vals) == 0 {
		return -1
	}
	return idx[floats.MaxIdx(vals)]
}

// ArgMin returns the first index of the minimum, skipping NaN; -1 if none.
func ArgMin(xs []float64) int {
	vals, idx := indexed(xs)
	if len(vals) == 0 {
		return -1
	}
	return idx[floats.MinIdx(vals)]
}

// indexed returns the non-NaN values of xs with their original indices.
func indexed(xs []float64) ([]float64, []int) {
	vals := make([]float64, 0, len(xs))
	idx := make([]int, 0, len(xs))
	for i, x := range xs {
		if !math.IsNaN(x) {
			vals = append(vals, x)
			idx = append(idx, i)
		}
	}
	return vals, idx
}

// Median of the non-NaN values. Even counts average the two middle values.
func Median(xs []float64) float64 {
	v := Valid(xs)
	if len(v) == 0 {
		return math.NaN()
	}
	sort.Float64s(v)
	m := stat.Quantile(0.5, stat.Empirical, v, nil)
	if len(v)%2 == 0 {
		m = (m + v[len(v)/2]) / 2
	}
	return m
}

// Derivative uses central differences inside the series and one-sided
// differences at the ends.
func Derivative(t, y []float64) []float64 {
	n := len(y)
	out := make([]float64, n)
	for i := range out {
		lo, hi := i-1, i+1
		if lo < 0 {
			lo = 0
		}
		if hi >= n {
			hi = n - 1
		}
		dt := t[hi] - t[lo]
		if hi == lo || dt == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (y[hi] - y[lo]) / dt
	}
	return out
}

// FillNaN replaces NaN values with v.
func FillNaN(xs []float64, v float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		if math.IsNaN(x) {
			x = v
		}
		out[i] = x
	}
	return out
}

// Round rounds x to the given number of decimals.
func Round(x float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(x*p) / p
}
