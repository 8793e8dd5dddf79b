package oect

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// Peak detection by continuous wavelet transform: the signal is convolved
// with Ricker wavelets of increasing width, local maxima are chained into
// ridge lines across widths, and ridges that are long enough and stand out
// of the local noise floor mark peaks. Each peak is reported where its ridge
// sits at the narrowest width.

const (
	cwtMinSNR    = 1.0
	cwtNoisePerc = 0.10
	// roundoff is the relative size below which transform output is zero.
	roundoff = 1e-12
)

// ridgeLine is built from the widest row down, so rows are descending and
// the last entry is the narrowest width.
type ridgeLine struct {
	rows []int
	cols []int
	gap  int
}

func (l *ridgeLine) narrowest() (row, col int) {
	last := len(l.rows) - 1
	return l.rows[last], l.cols[last]
}

// findPeaksCWT returns the sorted column indices of peaks in data.
func findPeaksCWT(data []float64, widths []float64) []int {
	if len(data) == 0 || len(widths) == 0 {
		return nil
	}
	gapThresh := int(math.Ceil(widths[0]))
	maxDistances := make([]float64, len(widths))
	for i, w := range widths {
		maxDistances[i] = w / 4
	}

	coeffs := cwt(data, widths)
	lines := identifyRidgeLines(coeffs, maxDistances, gapThresh)
	lines = filterRidgeLines(coeffs, lines)

	peaks := make([]int, 0, len(lines))
	for _, l := range lines {
		_, col := l.narrowest()
		peaks = append(peaks, col)
	}
	sort.Ints(peaks)
	return peaks
}

// ricker is the Mexican hat wavelet sampled on points samples with width a.
func ricker(points int, a float64) []float64 {
	amp := 2 / (math.Sqrt(3*a) * math.Pow(math.Pi, 0.25))
	wsq := a * a
	out := make([]float64, points)
	for i := range out {
		t := float64(i) - float64(points-1)/2
		tsq := t * t
		out[i] = amp * (1 - tsq/wsq) * math.Exp(-tsq/(2*wsq))
	}
	return out
}

// cwt returns one row of wavelet coefficients per width.
func cwt(data []float64, widths []float64) [][]float64 {
	points := make([]int, len(widths))
	longest := 1
	for r, w := range widths {
		points[r] = max(int(math.Min(10*w, float64(len(data)))), 1)
		longest = max(longest, points[r])
	}

	conv := newSameConvolver(data, longest)
	out := make([][]float64, len(widths))
	for r, w := range widths {
		out[r] = conv.convolve(ricker(points[r], w))
	}
	return out
}

// sameConvolver convolves one signal with kernels of up to maxKernel samples
// through the real FFT, returning the centred len(data) samples of each full
// convolution. The signal spectrum is computed once.
type sameConvolver struct {
	n    int
	fft  *fourier.FFT
	spec []complex128
	buf  []float64
}

func newSameConvolver(data []float64, maxKernel int) *sameConvolver {
	size := len(data) + maxKernel - 1
	c := &sameConvolver{
		n:   len(data),
		fft: fourier.NewFFT(size),
		buf: make([]float64, size),
	}
	copy(c.buf, data)
	c.spec = c.fft.Coefficients(nil, c.buf)
	return c
}

func (c *sameConvolver) convolve(kernel []float64) []float64 {
	clear(c.buf)
	copy(c.buf, kernel)
	coeff := c.fft.Coefficients(nil, c.buf)
	for i := range coeff {
		coeff[i] *= c.spec[i]
	}
	full := c.fft.Sequence(c.buf, coeff)

	offset := (len(kernel) - 1) / 2
	scale := 1 / float64(len(full))
	out := make([]float64, c.n)
	var peak float64
	for i := range out {
		out[i] = full[i+offset] * scale
		peak = math.Max(peak, math.Abs(out[i]))
	}
	for i, v := range out {
		if math.Abs(v) <= roundoff*peak {
			out[i] = 0
		}
	}
	return out
}

// relativeMaxima marks samples greater than both neighbours by more than
// transform roundoff.
func relativeMaxima(row []float64) []int {
	var peak float64
	for _, v := range row {
		peak = math.Max(peak, math.Abs(v))
	}
	tol := roundoff * peak

	var out []int
	for i := 1; i < len(row)-1; i++ {
		if row[i]-row[i-1] > tol && row[i]-row[i+1] > tol {
			out = append(out, i)
		}
	}
	return out
}

// identifyRidgeLines chains relative maxima from the widest row down to the
// narrowest. A maximum joins the ridge whose last column is closest, if
// within maxDistances[row]; ridges that miss more than gapThresh rows are
// closed.
func identifyRidgeLines(coeffs [][]float64, maxDistances []float64, gapThresh int) []*ridgeLine {
	maxima := make([][]int, len(coeffs))
	start := -1
	for r, row := range coeffs {
		maxima[r] = relativeMaxima(row)
		if len(maxima[r]) > 0 {
			start = r
		}
	}
	if start < 0 {
		return nil
	}

	var open, closed []*ridgeLine
	for _, c := range maxima[start] {
		open = append(open, &ridgeLine{rows: []int{start}, cols: []int{c}})
	}

	for row := start - 1; row >= 0; row-- {
		for _, l := range open {
			l.gap++
		}
		prevCols := make([]int, len(open))
		for i, l := range open {
			prevCols[i] = l.cols[len(l.cols)-1]
		}

		for _, c := range maxima[row] {
			var line *ridgeLine
			if len(prevCols) > 0 {
				closest, best := 0, math.Inf(1)
				for i, pc := range prevCols {
					if d := math.Abs(float64(c - pc)); d < best {
						closest, best = i, d
					}
				}
				if best <= maxDistances[row] {
					line = open[closest]
				}
			}
			if line != nil {
				line.rows = append(line.rows, row)
				line.cols = append(line.cols, c)
				line.gap = 0
			} else {
				open = append(open, &ridgeLine{rows: []int{row}, cols: []int{c}})
			}
		}

		for i := len(open) - 1; i >= 0; i-- {
			if open[i].gap > gapThresh {
				closed = append(closed, open[i])
				open = append(open[:i], open[i+1:]...)
			}
		}
	}
	return append(closed, open...)
}

// filterRidgeLines keeps ridges spanning at least a quarter of the widths
// whose narrowest-width coefficient stands out of the local noise floor,
// estimated as the 10th percentile of the narrowest-width coefficients.
func filterRidgeLines(coeffs [][]float64, lines []*ridgeLine) []*ridgeLine {
	if len(lines) == 0 {
		return nil
	}
	rows := len(coeffs)
	cols := len(coeffs[0])
	minLength := int(math.Ceil(float64(rows) / 4))
	window := int(math.Ceil(float64(cols) / 20))
	half, odd := window/2, window%2

	first := coeffs[0]
	noise := make([]float64, cols)
	buf := make([]float64, 0, window+1)
	for i := range first {
		lo := max(i-half, 0)
		hi := min(i+half+odd, cols)
		buf = append(buf[:0], first[lo:hi]...)
		sort.Float64s(buf)
		noise[i] = stat.Quantile(cwtNoisePerc, stat.LinInterp, buf, nil)
	}

	var kept []*ridgeLine
	for _, l := range lines {
		if len(l.rows) < minLength {
			continue
		}
		row, col := l.narrowest()
		signal := coeffs[row][col]
		floor := noise[col]
		var snr float64
		switch {
		case floor != 0:
			snr = math.Abs(signal / floor)
		case signal != 0:
			snr = math.Inf(1)
		}
		if snr < cwtMinSNR {
			continue
		}
		kept = append(kept, l)
	}
	return kept
}
