package oect

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Quadrant is the operating quadrant of the device, derived from the sign of
// the gate voltage at which transconductance peaks.
type Quadrant string

const (
	// QuadrantIII devices conduct at negative gate voltage (p-type depletion).
	QuadrantIII Quadrant = "III"
	// QuadrantI devices conduct at positive gate voltage.
	QuadrantI Quadrant = "I"
)

// ascendingPrefix is how many leading samples vote on sweep direction.
const ascendingPrefix = 16

// QuadrantFromPeaks picks the quadrant by majority vote over the signs of the
// peak voltages. A tie, including no signed peaks at all, resolves to
// QuadrantIII.
func QuadrantFromPeaks(peaks []Peak) Quadrant {
	var neg, pos int
	for _, p := range peaks {
		switch {
		case p.Voltage < 0:
			neg++
		case p.Voltage > 0:
			pos++
		}
	}
	if pos > neg {
		return QuadrantI
	}
	return QuadrantIII
}

// ThresholdFit is the winning line sqrt(I) = Slope*V + Intercept in the
// canonical orientation. Slope <= 0 and Intercept >= 0 always hold.
// TransitionIndex is the candidate knee, an index into the canonical voltage
// array used for fitting.
type ThresholdFit struct {
	Slope           float64
	Intercept       float64
	TransitionIndex int
	Residual        float64
	Quadrant        Quadrant
}

// XIntercept is the line's zero crossing in the canonical orientation.
func (f ThresholdFit) XIntercept() float64 {
	return -f.Intercept / f.Slope
}

// Threshold is the threshold voltage in the measured orientation.
func (f ThresholdFit) Threshold() float64 {
	if f.Quadrant == QuadrantI {
		return -f.XIntercept()
	}
	return f.XIntercept()
}

// Line evaluates the fitted offset-corrected sqrt(|I|) at a measured voltage.
func (f ThresholdFit) Line(v float64) float64 {
	if f.Quadrant == QuadrantI {
		v = -v
	}
	return f.Slope*v + f.Intercept
}

// ThresholdOptions tunes FitThreshold.
type ThresholdOptions struct {
	PeakWidth int // widest CWT wavelet; DefaultPeakWidth when zero
}

// FitThreshold extracts the threshold fit of one transfer curve.
//
// Current is converted to sqrt(|I|) with its minimum subtracted, the arrays
// are put in ascending voltage order and, for quadrant I, reflected into the
// canonical orientation. Transition candidates come from
// FindTransitionCandidates and the best line is chosen by SelectFit.
func FitThreshold(current, voltage []float64, quad Quadrant, opts ThresholdOptions) (ThresholdFit, error) {
	if err := (Sweep{Voltage: voltage, Current: current}).Validate(); err != nil {
		return ThresholdFit{}, err
	}

	y := make([]float64, len(current))
	for i, c := range current {
		y[i] = math.Sqrt(math.Abs(c))
	}
	floats.AddConst(-floats.Min(y), y)
	v := slices.Clone(voltage)

	if !ascending(v) {
		slices.Reverse(v)
		slices.Reverse(y)
	}
	if quad == QuadrantI {
		slices.Reverse(v)
		slices.Reverse(y)
		floats.Scale(-1, v)
	}

	candidates, err := FindTransitionCandidates(y, v, opts.PeakWidth)
	if err != nil {
		return ThresholdFit{}, err
	}

	fit, err := SelectFit(y, v, candidates)
	if err != nil {
		return ThresholdFit{}, err
	}
	fit.Quadrant = quad
	if fit.Quadrant == "" {
		fit.Quadrant = QuadrantIII
	}
	return fit, nil
}

// SelectFit fits a bound-constrained line to the first m samples for every
// candidate m and returns the fit with the smallest residual. The residual of
// a candidate is summed from the start of the sweep up to where its
// x-intercept falls in voltage (or over the fitted samples when that window
// holds fewer than two). Inputs must already be in canonical orientation.
func SelectFit(sqrtI, voltage []float64, candidates []int) (ThresholdFit, error) {
	if len(sqrtI) != len(voltage) {
		return ThresholdFit{}, &MalformedSweepError{Reason: "current and voltage lengths differ"}
	}
	if len(candidates) == 0 {
		return ThresholdFit{}, &NoTransitionFoundError{}
	}

	best := ThresholdFit{Residual: math.Inf(1)}
	found := false
	var last error
	for _, m := range candidates {
		if m < 2 || m > len(voltage) {
			last = fmt.Errorf("candidate %d leaves fewer than 2 samples to fit", m)
			continue
		}
		slope, intercept, err := fitBoundedLine(voltage[:m], sqrtI[:m])
		if err != nil {
			last = err
			continue
		}
		if slope == 0 {
			last = fmt.Errorf("candidate %d: flat fit has no x-intercept", m)
			continue
		}

		window := searchSorted(voltage, -intercept/slope)
		if window < 2 {
			window = m
		}
		res := lineResidual(voltage[:window], sqrtI[:window], slope, intercept)
		if res < best.Residual {
			best = ThresholdFit{Slope: slope, Intercept: intercept, TransitionIndex: m, Residual: res}
			found = true
		}
	}
	if !found {
		return ThresholdFit{}, &FitDivergenceError{Candidates: len(candidates), Last: last}
	}
	return best, nil
}

// fitBoundedLine solves min sum (y - f0*x - f1)^2 subject to f0 <= 0 and
// f1 >= 0. The problem is a convex quadratic in two variables, so the
// optimum is either the unconstrained fit or lies on one of the two faces
// f0 = 0 and f1 = 0, each of which has a closed form.
func fitBoundedLine(x, y []float64) (f0, f1 float64, err error) {
	if len(x) < 2 {
		return 0, 0, fmt.Errorf("line fit needs at least 2 samples, got %d", len(x))
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	if finite(alpha) && finite(beta) && beta <= 0 && alpha >= 0 {
		return beta, alpha, nil
	}

	best := math.Inf(1)
	try := func(a, b float64) {
		if r := lineResidual(x, y, a, b); r < best {
			best, f0, f1 = r, a, b
		}
	}
	try(0, math.Max(stat.Mean(y, nil), 0))
	if sxx := floats.Dot(x, x); sxx > 0 {
		try(math.Min(floats.Dot(x, y)/sxx, 0), 0)
	}
	if math.IsInf(best, 1) || math.IsNaN(best) {
		return 0, 0, fmt.Errorf("line fit did not converge")
	}
	return f0, f1, nil
}

func lineResidual(x, y []float64, slope, intercept float64) float64 {
	var res float64
	for i := range x {
		d := y[i] - (slope*x[i] + intercept)
		res += d * d
	}
	return res
}

// ascending reports whether the leading samples trend upward, by the sign
// of their least-squares slope against sample index.
func ascending(v []float64) bool {
	k := min(len(v), ascendingPrefix)
	if k < 2 {
		return true
	}
	idx := make([]float64, k)
	for i := range idx {
		idx[i] = float64(i)
	}
	_, beta := stat.LinearRegression(idx, v[:k], nil, false)
	return !(beta < 0)
}
