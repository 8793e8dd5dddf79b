package oect

import (
	"fmt"
	"math"
	"strings"
)

// GmMethod selects how transconductance is differentiated from a transfer
// curve.
type GmMethod string

const (
	// GmSmoothed smooths current with a Savitzky-Golay filter before
	// differentiating.
	GmSmoothed GmMethod = "smoothed"
	// GmRaw differentiates the measured current directly.
	GmRaw GmMethod = "raw"
	// GmPolynomial differentiates a high-order polynomial fit analytically.
	GmPolynomial GmMethod = "polynomial"
)

// ParseGmMethod accepts the canonical names and the short forms used in
// device config files ("sg", "poly").
func ParseGmMethod(s string) (GmMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "smoothed", "sg", "savgol":
		return GmSmoothed, nil
	case "raw":
		return GmRaw, nil
	case "polynomial", "poly":
		return GmPolynomial, nil
	}
	return "", fmt.Errorf("unknown gm method %q", s)
}

// GmParams holds the tuning of the differentiation strategies.
type GmParams struct {
	Window    int // Savitzky-Golay window length
	PolyOrder int // Savitzky-Golay polynomial order
	Degree    int // polynomial fit degree
}

// DefaultGmParams sizes the smoothing window at 4% of the transfer table's
// row count, never below 3 samples.
func DefaultGmParams(totalSamples int) GmParams {
	window := int(0.04 * float64(totalSamples))
	if window < 3 {
		window = 3
	}
	return GmParams{Window: window, PolyOrder: 2, Degree: 8}
}

// Curve is an ordered mapping from voltage to a derived quantity.
type Curve struct {
	Voltage []float64
	Value   []float64
}

// Len returns the number of samples.
func (c Curve) Len() int {
	return len(c.Voltage)
}

// Empty reports whether the curve has no samples.
func (c Curve) Empty() bool {
	return len(c.Voltage) == 0
}

// Peak is the largest-magnitude value of a curve and where it occurs.
type Peak struct {
	Voltage float64
	Value   float64
}

// PeakOf returns the sample of largest magnitude; ties keep the first.
func PeakOf(c Curve) Peak {
	best := -1
	for i, v := range c.Value {
		if best < 0 || math.Abs(v) > math.Abs(c.Value[best]) {
			best = i
		}
	}
	if best < 0 {
		return Peak{Voltage: math.NaN(), Value: math.NaN()}
	}
	return Peak{Voltage: c.Voltage[best], Value: c.Value[best]}
}

// Transconductance computes gm = dI/dV for one monotonic leg, one value per
// voltage sample, together with its peak.
func Transconductance(voltage, current []float64, method GmMethod, p GmParams) (Curve, Peak, error) {
	if len(voltage) != len(current) {
		return Curve{}, Peak{}, &MalformedSweepError{Reason: fmt.Sprintf("voltage has %d samples, current has %d", len(voltage), len(current))}
	}
	if len(voltage) < 2 {
		return Curve{}, Peak{}, &MalformedSweepError{Reason: fmt.Sprintf("need at least 2 samples to differentiate, got %d", len(voltage))}
	}

	var gm []float64
	switch method {
	case GmSmoothed, "":
		window := oddWindow(p.Window, len(current))
		if window <= p.PolyOrder {
			gm = gradient(current, voltage)
			break
		}
		smoothed, err := savgolSmooth(current, window, p.PolyOrder)
		if err != nil {
			return Curve{}, Peak{}, fmt.Errorf("smoothed derivative: %w", err)
		}
		gm = gradient(smoothed, voltage)
	case GmRaw:
		gm = gradient(current, voltage)
	case GmPolynomial:
		fit, err := fitPolynomial(voltage, current, p.Degree)
		if err != nil {
			return Curve{}, Peak{}, fmt.Errorf("polynomial derivative: %w", err)
		}
		gm = make([]float64, len(voltage))
		for i, v := range voltage {
			gm[i] = fit.Derivative(v)
		}
	default:
		return Curve{}, Peak{}, fmt.Errorf("unknown gm method %q", method)
	}

	c := Curve{Voltage: append([]float64(nil), voltage...), Value: gm}
	return c, PeakOf(c), nil
}

// oddWindow forces the window odd and no longer than n samples.
func oddWindow(window, n int) int {
	if window%2 == 0 {
		window++
	}
	if window > n {
		window = n
		if window%2 == 0 {
			window--
		}
	}
	return window
}

// LegGm holds the transconductance of both legs of a sweep. Peaks lists the
// forward peak first and the backward peak when a reverse leg exists.
type LegGm struct {
	Forward  Curve
	Backward Curve
	Peaks    []Peak
}

// TransconductanceLegs runs Transconductance on the forward leg and, when the
// split found one, on the reverse leg with its samples reversed.
func TransconductanceLegs(s Sweep, split SplitResult, method GmMethod, p GmParams) (LegGm, error) {
	fwd, rev := s.Legs(split)

	var out LegGm
	gm, peak, err := Transconductance(fwd.Voltage, fwd.Current, method, p)
	if err != nil {
		return LegGm{}, fmt.Errorf("forward leg: %w", err)
	}
	out.Forward = gm
	out.Peaks = append(out.Peaks, peak)

	if split.HasReverse && rev.Len() >= 2 {
		gm, peak, err := Transconductance(reversed(rev.Voltage), reversed(rev.Current), method, p)
		if err != nil {
			return LegGm{}, fmt.Errorf("reverse leg: %w", err)
		}
		out.Backward = gm
		out.Peaks = append(out.Peaks, peak)
	}
	return out, nil
}
