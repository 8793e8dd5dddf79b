package oect

import (
	"fmt"
	"math"
	"slices"
)

// MinSamples is the smallest sweep the pipeline accepts.
const MinSamples = 3

// allclose tolerances, matching numpy defaults
const (
	splitRTol = 1e-5
	splitATol = 1e-8
)

// Sweep is one measured trace. Companion is the fixed voltage of the other
// terminal: drain voltage for a transfer sweep, gate voltage for an output
// sweep.
type Sweep struct {
	Voltage   []float64
	Current   []float64
	Companion float64
}

// Len returns the number of samples.
func (s Sweep) Len() int {
	return len(s.Voltage)
}

// Validate checks the sweep has matching, finite voltage and current samples.
func (s Sweep) Validate() error {
	if len(s.Voltage) != len(s.Current) {
		return &MalformedSweepError{Reason: fmt.Sprintf("voltage has %d samples, current has %d", len(s.Voltage), len(s.Current))}
	}
	if len(s.Voltage) < MinSamples {
		return &MalformedSweepError{Reason: fmt.Sprintf("need at least %d samples, got %d", MinSamples, len(s.Voltage))}
	}
	for i := range s.Voltage {
		if !finite(s.Voltage[i]) || !finite(s.Current[i]) {
			return &MalformedSweepError{Reason: fmt.Sprintf("non-finite sample at row %d", i)}
		}
	}
	return nil
}

// Legs splits the sweep into forward and reverse legs. The reverse leg is
// returned in measured order and is empty when the sweep has none.
func (s Sweep) Legs(split SplitResult) (fwd, rev Sweep) {
	fwdEnd, revStart := split.Bounds(s.Len())
	fwd = Sweep{Voltage: s.Voltage[:fwdEnd], Current: s.Current[:fwdEnd], Companion: s.Companion}
	rev = Sweep{Voltage: s.Voltage[revStart:], Current: s.Current[revStart:], Companion: s.Companion}
	return fwd, rev
}

// Leg identifies which part of a sweep a curve came from.
type Leg int

const (
	LegForward Leg = iota + 1
	LegReverse
	// LegAverage marks a curve built by averaging several legs.
	LegAverage
)

func (l Leg) String() string {
	switch l {
	case LegForward:
		return "fwd"
	case LegReverse:
		return "bwd"
	case LegAverage:
		return "avg"
	default:
		return "unknown"
	}
}

// SplitResult locates the boundary between the forward and reverse legs.
type SplitResult struct {
	SplitIndex int
	HasReverse bool
}

// Bounds returns the exclusive end of the forward leg and the start of the
// reverse leg for a sweep of n samples. Without a reverse leg the forward leg
// spans the whole sweep.
func (r SplitResult) Bounds(n int) (fwdEnd, revStart int) {
	if !r.HasReverse || r.SplitIndex <= 0 || r.SplitIndex > n {
		return n, n
	}
	return r.SplitIndex, r.SplitIndex
}

// Split detects a mirrored reverse leg. A sweep that retraces its own path
// is symmetric about its midpoint, so the first half compared against the
// reversed second half decides the split. The midpoint sample is excluded
// from both windows; for even lengths the first sample is excluded too.
func Split(voltage []float64) SplitResult {
	n := len(voltage)
	if n < MinSamples {
		return SplitResult{SplitIndex: n - 1}
	}

	mid := n/2 + 1
	var head []float64
	if n%2 == 1 {
		head = voltage[:n/2]
	} else {
		head = voltage[1 : n/2]
	}
	tail := reversed(voltage[mid:])

	if allClose(head, tail) {
		return SplitResult{SplitIndex: mid, HasReverse: true}
	}
	return SplitResult{SplitIndex: n - 1}
}

func allClose(a, b []float64) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > splitATol+splitRTol*math.Abs(b[i]) {
			return false
		}
	}
	return true
}

func reversed(x []float64) []float64 {
	out := slices.Clone(x)
	slices.Reverse(out)
	return out
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
