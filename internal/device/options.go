package device

import (
	"github.com/RMahshie/oect/pkg/oect"
)

// Options control how a device folder is processed.
type Options struct {
	GmMethod  oect.GmMethod
	Reverse   bool // process reverse legs when the sweep has them
	Average   bool // collapse all transfer columns into their mean
	VLow      bool // cut transfer columns at the low-voltage inversion
	PeakWidth int  // widest wavelet for the transition search
}

// DefaultOptions returns the options used when neither the config file nor
// the caller sets anything.
func DefaultOptions() Options {
	return Options{
		GmMethod:  oect.GmSmoothed,
		Reverse:   true,
		PeakWidth: oect.DefaultPeakWidth,
	}
}

// State is the pipeline stage a Dataset has reached.
type State int

const (
	StateUninitialized State = iota
	StateLoaded
	StateGmComputed
	StateThresholdComputed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoaded:
		return "loaded"
	case StateGmComputed:
		return "gm_computed"
	case StateThresholdComputed:
		return "threshold_computed"
	default:
		return "unknown"
	}
}
