package oect

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// savgolSmooth applies a Savitzky-Golay filter. Each output sample is the
// value, at that sample, of the least-squares polynomial of the given order
// fitted over the window. Samples closer than half a window to either end
// are evaluated on the polynomial of the first or last full window.
func savgolSmooth(y []float64, window, order int) ([]float64, error) {
	n := len(y)
	if window%2 == 0 || window < 1 {
		return nil, fmt.Errorf("savgol window must be odd and positive, got %d", window)
	}
	if order >= window {
		return nil, fmt.Errorf("savgol order %d must be less than window %d", order, window)
	}
	if window > n {
		return nil, fmt.Errorf("savgol window %d exceeds %d samples", window, n)
	}

	hat, err := savgolHat(window, order)
	if err != nil {
		return nil, err
	}

	half := window / 2
	out := make([]float64, n)
	for i := range y {
		start, pos := i-half, half
		switch {
		case i < half:
			start, pos = 0, i
		case i >= n-half:
			start, pos = n-window, i-(n-window)
		}
		var acc float64
		for j := 0; j < window; j++ {
			acc += hat.At(pos, j) * y[start+j]
		}
		out[i] = acc
	}
	return out, nil
}

// savgolHat returns the projection V (V^T V)^-1 V^T for a window of
// Vandermonde rows centred on zero. Row p holds the weights that evaluate the
// fitted polynomial at window position p.
func savgolHat(window, order int) (*mat.Dense, error) {
	half := float64(window / 2)
	v := mat.NewDense(window, order+1, nil)
	for r := 0; r < window; r++ {
		x := float64(r) - half
		p := 1.0
		for c := 0; c <= order; c++ {
			v.Set(r, c, p)
			p *= x
		}
	}

	var vtv mat.Dense
	vtv.Mul(v.T(), v)
	var inv mat.Dense
	if err := inv.Inverse(&vtv); err != nil {
		return nil, fmt.Errorf("savgol normal matrix: %w", err)
	}

	var tmp, hat mat.Dense
	tmp.Mul(v, &inv)
	hat.Mul(&tmp, v.T())
	return &hat, nil
}
