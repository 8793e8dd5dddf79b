package oect

import (
	"math"
)

const (
	// DefaultPeakWidth is the widest wavelet used by the transition search.
	DefaultPeakWidth = 15

	splineDegree    = 5
	splineSmoothing = 1e-7
	splineGridStep  = 0.005 // V
	splineScale     = 1000  // conditions the spline for sub-mA currents
	edgeGuard       = 5
)

// FindTransitionCandidates locates candidate knees between the sub-threshold
// and above-threshold regimes of current vs voltage. Voltage must be
// ascending. The returned values index into voltage and are in ascending
// order of the underlying curvature peaks.
//
// When the first search finds nothing it is repeated once at DefaultPeakWidth.
// A search that already ran at DefaultPeakWidth is not repeated, since it
// would give the same answer. If nothing is found the error is a
// *NoTransitionFoundError.
func FindTransitionCandidates(current, voltage []float64, width int) ([]int, error) {
	if width <= 0 {
		width = DefaultPeakWidth
	}
	if len(current) != len(voltage) {
		return nil, &MalformedSweepError{Reason: "current and voltage lengths differ"}
	}

	if idx := transitionPeaks(current, voltage, width); len(idx) > 0 {
		return idx, nil
	}
	if width == DefaultPeakWidth {
		return nil, &NoTransitionFoundError{Widths: []int{width}}
	}
	if idx := transitionPeaks(current, voltage, DefaultPeakWidth); len(idx) > 0 {
		return idx, nil
	}
	return nil, &NoTransitionFoundError{Widths: []int{width, DefaultPeakWidth}}
}

func transitionPeaks(current, voltage []float64, width int) []int {
	n := len(voltage)
	if n <= splineDegree {
		return nil
	}

	scaled := make([]float64, n)
	for i, c := range current {
		scaled[i] = c * splineScale
	}
	spl, err := fitSmoothingSpline(voltage, scaled, splineDegree, splineSmoothing)
	if err != nil {
		return nil
	}

	grid := uniformGrid(voltage[0], voltage[n-1], splineGridStep)
	if len(grid) <= 2*edgeGuard+2 {
		return nil
	}
	resampled := make([]float64, len(grid))
	for i, v := range grid {
		resampled[i] = spl.At(v)
	}
	d2 := unitGradient(unitGradient(resampled))

	flat := true
	for _, v := range d2 {
		if v != 0 && !math.IsNaN(v) {
			flat = false
			break
		}
	}
	if flat {
		return nil
	}

	widths := make([]float64, width)
	for i := range widths {
		widths[i] = float64(i + 1)
	}

	var out []int
	seen := make(map[int]bool)
	for _, p := range findPeaksCWT(d2, widths) {
		if p <= edgeGuard || p >= len(grid)-1-edgeGuard {
			continue
		}
		idx := searchSorted(voltage, grid[p])
		if seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, idx)
	}
	return out
}
