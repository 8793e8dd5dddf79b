package oect

import (
	"sort"
)

// gradient returns dy/dx using second-order central differences in the
// interior and first-order one-sided differences at the ends. Spacing may be
// non-uniform.
func gradient(y, x []float64) []float64 {
	n := len(y)
	out := make([]float64, n)
	if n < 2 {
		return out
	}
	out[0] = (y[1] - y[0]) / (x[1] - x[0])
	out[n-1] = (y[n-1] - y[n-2]) / (x[n-1] - x[n-2])
	for i := 1; i < n-1; i++ {
		hs := x[i] - x[i-1]
		hd := x[i+1] - x[i]
		out[i] = (hs*hs*y[i+1] + (hd*hd-hs*hs)*y[i] - hd*hd*y[i-1]) / (hs * hd * (hd + hs))
	}
	return out
}

// unitGradient is gradient with unit sample spacing.
func unitGradient(y []float64) []float64 {
	n := len(y)
	out := make([]float64, n)
	if n < 2 {
		return out
	}
	out[0] = y[1] - y[0]
	out[n-1] = y[n-1] - y[n-2]
	for i := 1; i < n-1; i++ {
		out[i] = (y[i+1] - y[i-1]) / 2
	}
	return out
}

// searchSorted returns the leftmost insertion point of x in the ascending
// slice a.
func searchSorted(a []float64, x float64) int {
	return sort.SearchFloat64s(a, x)
}

// uniformGrid returns start, start+step, ... for all values below stop.
func uniformGrid(start, stop, step float64) []float64 {
	if step <= 0 || stop <= start {
		return nil
	}
	n := int((stop - start) / step)
	if start+float64(n)*step < stop {
		n++
	}
	grid := make([]float64, n)
	for i := range grid {
		grid[i] = start + float64(i)*step
	}
	return grid
}
