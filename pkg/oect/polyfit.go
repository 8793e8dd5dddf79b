package oect

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// polyFit is a least-squares polynomial in a centred and scaled abscissa
// t = (x - center) / scale, which keeps the Vandermonde matrix well
// conditioned for high degrees.
type polyFit struct {
	coef   []float64
	center float64
	scale  float64
}

// fitPolynomial fits a polynomial of the given degree. The degree is lowered
// to len(x)-1 when there are too few samples.
func fitPolynomial(x, y []float64, degree int) (*polyFit, error) {
	n := len(x)
	if n < 2 {
		return nil, fmt.Errorf("polynomial fit needs at least 2 samples, got %d", n)
	}
	if degree > n-1 {
		degree = n - 1
	}

	center := stat.Mean(x, nil)
	scale := math.Max(math.Abs(floats.Max(x)-center), math.Abs(floats.Min(x)-center))
	if scale == 0 {
		return nil, fmt.Errorf("polynomial fit needs distinct abscissae")
	}

	a := mat.NewDense(n, degree+1, nil)
	for r := 0; r < n; r++ {
		t := (x[r] - center) / scale
		p := 1.0
		for c := 0; c <= degree; c++ {
			a.Set(r, c, p)
			p *= t
		}
	}

	var qr mat.QR
	qr.Factorize(a)

	var c mat.VecDense
	if err := qr.SolveVecTo(&c, false, mat.NewVecDense(n, y)); err != nil {
		return nil, fmt.Errorf("polynomial least squares: %w", err)
	}

	coef := make([]float64, degree+1)
	for i := range coef {
		coef[i] = c.AtVec(i)
	}
	return &polyFit{coef: coef, center: center, scale: scale}, nil
}

// Derivative evaluates dy/dx of the fitted polynomial at x.
func (p *polyFit) Derivative(x float64) float64 {
	t := (x - p.center) / p.scale
	var d, tp float64 = 0, 1
	for k := 1; k < len(p.coef); k++ {
		d += float64(k) * p.coef[k] * tp
		tp *= t
	}
	return d / p.scale
}
