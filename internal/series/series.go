// Package series holds the per-region numeric kernels used by the pipeline:
// rolling windows, gap filling, interpolation and running sums.
//
// All kernels operate on one region's date-ordered values and treat
// sql.NullFloat64{Valid: false} as an undefined cell. Undefined cells never
// take part in an arithmetic result; they are skipped or propagated.
package series

import (
	"database/sql"
	"math"
)

// Known returns a defined value.
func Known(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

// Unknown returns an undefined value.
func Unknown() sql.NullFloat64 {
	return sql.NullFloat64{}
}

// Round rounds v to the given number of decimals, half to even.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.RoundToEven(v*p) / p
}

// RollingMean computes a trailing rolling mean over window positions.
// Undefined cells inside the window are skipped; the result is defined only
// when at least minPeriods defined cells fall inside the window.
// A negative decimals disables rounding.
func RollingMean(values []sql.NullFloat64, window, minPeriods, decimals int) []sql.NullFloat64 {
	out := make([]sql.NullFloat64, len(values))
	if window <= 0 {
		return out
	}
	if minPeriods < 1 {
		minPeriods = 1
	}

	for i := range values {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}

		var sum float64
		count := 0
		for _, v := range values[lo : i+1] {
			if v.Valid {
				sum += v.Float64
				count++
			}
		}
		if count < minPeriods {
			continue
		}

		mean := sum / float64(count)
		if decimals >= 0 {
			mean = Round(mean, decimals)
		}
		out[i] = Known(mean)
	}

	return out
}

// MeanStd returns the mean and the sample standard deviation (one degree of
// freedom) of xs. ok is false when fewer than two values are given.
func MeanStd(xs []float64) (mean, std float64, ok bool) {
	n := len(xs)
	if n < 2 {
		return 0, 0, false
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(n)

	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(n-1)), true
}

// CumSum returns the running sum of the defined values. Positions before the
// first defined value stay undefined; every later position carries the
// running total, so trailing gaps are forward filled.
func CumSum(values []sql.NullFloat64) []sql.NullFloat64 {
	out := make([]sql.NullFloat64, len(values))
	var sum float64
	seen := false
	for i, v := range values {
		if v.Valid {
			sum += v.Float64
			seen = true
		}
		if seen {
			out[i] = Known(sum)
		}
	}
	return out
}

// Sum adds the defined values. The result is undefined when none is defined.
func Sum(values []sql.NullFloat64) sql.NullFloat64 {
	var sum float64
	seen := false
	for _, v := range values {
		if v.Valid {
			sum += v.Float64
			seen = true
		}
	}
	if !seen {
		return Unknown()
	}
	return Known(sum)
}

// Interpolate fills undefined cells lying strictly between two defined cells
// by linear interpolation over positions. Leading and trailing gaps are left
// undefined.
func Interpolate(values []sql.NullFloat64) []sql.NullFloat64 {
	out := make([]sql.NullFloat64, len(values))
	copy(out, values)

	prev := -1
	for i, v := range values {
		if !v.Valid {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			lo, hi := values[prev].Float64, v.Float64
			span := float64(i - prev)
			for k := prev + 1; k < i; k++ {
				out[k] = Known(lo + (hi-lo)*float64(k-prev)/span)
			}
		}
		prev = i
	}

	return out
}

// FillIndex maps every position to the position whose value should fill it:
// the closest defined position before it, or failing that the first defined
// position after it. Positions map to -1 when nothing is defined.
func FillIndex(known []bool) []int {
	idx := make([]int, len(known))
	first := -1
	for i, k := range known {
		if k {
			first = i
			break
		}
	}

	last := first
	for i, k := range known {
		if k {
			last = i
		}
		if first < 0 {
			idx[i] = -1
		} else if i < first {
			idx[i] = first
		} else {
			idx[i] = last
		}
	}

	return idx
}
