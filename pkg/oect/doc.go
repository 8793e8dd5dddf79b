// Package oect extracts transistor figures of merit from measured
// current-voltage sweeps.
//
// The package is organised around four stages that run once per curve:
//
//   - Split: detects whether a voltage sweep contains a forward and a mirrored
//     reverse leg and returns the index that separates them.
//   - Transconductance: differentiates drain current with respect to gate
//     voltage using a Savitzky-Golay smoothed derivative, a raw finite
//     difference or an analytic polynomial derivative.
//   - FindTransitionCandidates: fits a quintic smoothing spline, takes its
//     second derivative on a fine grid and runs a continuous wavelet transform
//     peak finder to locate the knee between sub-threshold and above-threshold
//     conduction.
//   - SelectFit / FitThreshold: fits a bound-constrained line to sqrt(|I|) up
//     to each candidate knee and keeps the candidate with the smallest
//     residual. The x-intercept of the winning line is the threshold voltage.
//
// # Usage
//
//	split := oect.Split(sweep.Voltage)
//	legs, err := oect.TransconductanceLegs(sweep, split, oect.GmSmoothed, oect.DefaultGmParams(len(sweep.Voltage)))
//	quad := oect.QuadrantFromPeaks(legs.Peaks)
//	fit, err := oect.FitThreshold(sweep.Current, sweep.Voltage, quad, oect.ThresholdOptions{})
//	vt := fit.Threshold()
//
// # Orientation
//
// Threshold fitting always works in a canonical orientation where current
// grows as voltage decreases. Devices whose transconductance peaks at positive
// gate voltage (quadrant I) are reflected before fitting; [ThresholdFit]
// keeps the canonical slope and intercept and maps the threshold back through
// [ThresholdFit.Threshold].
//
// Nothing in this package logs or touches the filesystem. All functions are
// safe for concurrent use on distinct inputs.
package oect
