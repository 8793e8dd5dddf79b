package oect

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// smoothingSpline is a penalized B-spline (P-spline) on uniformly spaced
// knots: least squares against the data plus lambda times the squared second
// differences of the coefficients. With one basis function per sample and a
// small lambda it behaves like an interpolating spline that stays well posed
// when samples crowd into few knot spans.
type smoothingSpline struct {
	degree int
	lo, dx float64
	nseg   int
	coef   []float64
}

func fitSmoothingSpline(x, y []float64, degree int, lambda float64) (*smoothingSpline, error) {
	n := len(x)
	if n != len(y) {
		return nil, fmt.Errorf("spline: %d abscissae, %d ordinates", n, len(y))
	}
	if n <= degree {
		return nil, fmt.Errorf("spline of degree %d needs more than %d samples, got %d", degree, degree, n)
	}
	lo, hi := x[0], x[n-1]
	if !(hi > lo) {
		return nil, fmt.Errorf("spline abscissae must be ascending")
	}

	s := &smoothingSpline{degree: degree, lo: lo, nseg: n - degree}
	s.dx = (hi - lo) / float64(s.nseg)
	m := s.nseg + degree

	// normal equations B^T B + lambda D^T D
	ata := mat.NewSymDense(m, nil)
	aty := mat.NewVecDense(m, nil)
	for i := range x {
		span, basis := s.basis(x[i])
		first := span - degree
		for a := 0; a <= degree; a++ {
			aty.SetVec(first+a, aty.AtVec(first+a)+basis[a]*y[i])
			for b := a; b <= degree; b++ {
				ata.SetSym(first+a, first+b, ata.At(first+a, first+b)+basis[a]*basis[b])
			}
		}
	}
	if m > 2 {
		// D^T D for the second-difference operator rows (1, -2, 1)
		d := [3]float64{1, -2, 1}
		for r := 0; r < m-2; r++ {
			for a := 0; a < 3; a++ {
				for b := a; b < 3; b++ {
					i, j := r+a, r+b
					ata.SetSym(i, j, ata.At(i, j)+lambda*d[a]*d[b])
				}
			}
		}
	}

	var coef mat.VecDense
	var chol mat.Cholesky
	if ok := chol.Factorize(ata); ok {
		if err := chol.SolveVecTo(&coef, aty); err != nil {
			return nil, fmt.Errorf("spline solve: %w", err)
		}
	} else if err := coef.SolveVec(ata, aty); err != nil {
		return nil, fmt.Errorf("spline solve: %w", err)
	}

	s.coef = make([]float64, m)
	for i := range s.coef {
		s.coef[i] = coef.AtVec(i)
	}
	return s, nil
}

// At evaluates the spline at x.
func (s *smoothingSpline) At(x float64) float64 {
	span, basis := s.basis(x)
	first := span - s.degree
	var v float64
	for a, b := range basis {
		v += s.coef[first+a] * b
	}
	return v
}

// basis returns the knot span containing x and the degree+1 non-zero basis
// functions on it (Cox-de Boor recursion). Knot j sits at lo + (j-degree)*dx.
func (s *smoothingSpline) basis(x float64) (int, []float64) {
	p := s.degree
	seg := int(math.Floor((x - s.lo) / s.dx))
	if seg < 0 {
		seg = 0
	}
	if seg > s.nseg-1 {
		seg = s.nseg - 1
	}
	span := seg + p

	knot := func(j int) float64 { return s.lo + float64(j-p)*s.dx }

	n := make([]float64, p+1)
	left := make([]float64, p+1)
	right := make([]float64, p+1)
	n[0] = 1
	for j := 1; j <= p; j++ {
		left[j] = x - knot(span+1-j)
		right[j] = knot(span+j) - x
		saved := 0.0
		for r := 0; r < j; r++ {
			tmp := n[r] / (right[r+1] + left[j-r])
			n[r] = saved + right[r+1]*tmp
			saved = left[j-r] * tmp
		}
		n[j] = saved
	}
	return span, n
}
