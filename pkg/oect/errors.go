package oect

import (
	"errors"
	"fmt"
)

// ErrNoTransitionFound is matched by NoTransitionFoundError through errors.Is.
var ErrNoTransitionFound = errors.New("no transition point found")

// MalformedSweepError reports a sweep that cannot be processed: too few
// samples, mismatched lengths or non-finite values.
type MalformedSweepError struct {
	Reason string
}

func (e *MalformedSweepError) Error() string {
	return "malformed sweep: " + e.Reason
}

// NoTransitionFoundError is returned when the spline/wavelet search yields no
// transition candidates for any of the attempted peak widths.
type NoTransitionFoundError struct {
	Widths []int
}

func (e *NoTransitionFoundError) Error() string {
	return fmt.Sprintf("no transition point found (peak widths tried: %v)", e.Widths)
}

func (e *NoTransitionFoundError) Is(target error) bool {
	return target == ErrNoTransitionFound
}

// FitDivergenceError is returned when no candidate produced a usable line fit.
type FitDivergenceError struct {
	Candidates int
	Last       error
}

func (e *FitDivergenceError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("threshold fit diverged for all %d candidates", e.Candidates)
	}
	return fmt.Sprintf("threshold fit diverged for all %d candidates: %v", e.Candidates, e.Last)
}

func (e *FitDivergenceError) Unwrap() error {
	return e.Last
}

// StateOrderError is returned when a pipeline stage runs before the stage it
// depends on.
type StateOrderError struct {
	Op   string
	Need string
	Have string
}

func (e *StateOrderError) Error() string {
	return fmt.Sprintf("%s requires state %s, dataset is %s", e.Op, e.Need, e.Have)
}
