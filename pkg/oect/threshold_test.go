package oect

import (
	"errors"
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// knee returns I(V) with sqrt(I) = k*s*softplus((vt-V)/s): linear in V well
// below vt, exponentially small above it.
func knee(v []float64, vt, k, s float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		u := (vt - x) / s
		sp := u
		if u < 30 {
			sp = math.Log1p(math.Exp(u))
		}
		r := k * s * sp
		out[i] = r * r
	}
	return out
}

func TestSelectFit_ExactLine(t *testing.T) {
	v := linspace(-2, 0.5, 26)
	y := make([]float64, len(v))
	for i, x := range v {
		y[i] = -2*x + 1
	}

	fit, err := SelectFit(y, v, []int{5, 13, 26})
	require.NoError(t, err)
	assert.InDelta(t, -2.0, fit.Slope, 1e-9)
	assert.InDelta(t, 1.0, fit.Intercept, 1e-9)
	assert.InDelta(t, 0.5, fit.XIntercept(), 1e-9)
	assert.InDelta(t, 0.0, fit.Residual, 1e-12)
	assert.Contains(t, []int{5, 13, 26}, fit.TransitionIndex)
}

func TestSelectFit_PicksSmallestResidual(t *testing.T) {
	// linear through the x-intercept at 0.1, then bends back up
	v := linspace(-1, 1, 41)
	y := make([]float64, len(v))
	for i, x := range v {
		y[i] = -x + 0.1
		if i > 22 {
			y[i] = 0.5 * (x - 0.1)
		}
	}

	fit, err := SelectFit(y, v, []int{40, 15, 20})
	require.NoError(t, err)
	assert.Contains(t, []int{15, 20}, fit.TransitionIndex)
	assert.InDelta(t, -1.0, fit.Slope, 1e-9)
	assert.InDelta(t, 0.1, fit.XIntercept(), 1e-9)
}

func TestSelectFit_BoundsAlwaysHold(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		n := 5 + rng.Intn(40)
		v := linspace(rng.Float64()*4-3, rng.Float64()*2+1.01, n)
		slope := rng.Float64()*4 - 2
		offset := rng.Float64()*2 - 1
		y := make([]float64, n)
		for i, x := range v {
			y[i] = slope*x + offset + 0.05*rng.NormFloat64()
		}

		fit, err := SelectFit(y, v, []int{n / 2, n})
		if err != nil {
			var diverged *FitDivergenceError
			require.ErrorAs(t, err, &diverged)
			continue
		}
		assert.LessOrEqual(t, fit.Slope, 0.0)
		assert.GreaterOrEqual(t, fit.Intercept, 0.0)
	}
}

func TestSelectFit_NegativeOffsetClampsIntercept(t *testing.T) {
	v := linspace(-2, -1, 11)
	y := make([]float64, len(v))
	for i, x := range v {
		y[i] = -x - 0.5
	}

	fit, err := SelectFit(y, v, []int{11})
	require.NoError(t, err)
	assert.Equal(t, 0.0, fit.Intercept)
	assert.Less(t, fit.Slope, 0.0)
}

func TestSelectFit_Diverges(t *testing.T) {
	v := linspace(0, 1, 11)
	y := make([]float64, len(v))
	for i, x := range v {
		y[i] = 2*x + 1
	}

	_, err := SelectFit(y, v, []int{1, 6, 11})
	var diverged *FitDivergenceError
	require.ErrorAs(t, err, &diverged)
	assert.Equal(t, 3, diverged.Candidates)

	_, err = SelectFit(y, v, nil)
	assert.True(t, errors.Is(err, ErrNoTransitionFound))
}

func TestFitThreshold_QuadrantIII(t *testing.T) {
	v := linspace(-0.8, 0.6, 141)
	i := knee(v, 0.2, 0.01, 0.05)

	fit, err := FitThreshold(i, v, QuadrantIII, ThresholdOptions{})
	require.NoError(t, err)
	assert.InDelta(t, 0.2, fit.Threshold(), 0.05)
	assert.LessOrEqual(t, fit.Slope, 0.0)
	assert.GreaterOrEqual(t, fit.Intercept, 0.0)
	assert.Equal(t, QuadrantIII, fit.Quadrant)
}

func TestFitThreshold_QuadrantI(t *testing.T) {
	v := linspace(-0.6, 0.8, 141)
	mirrored := make([]float64, len(v))
	for k, x := range v {
		mirrored[k] = -x
	}
	i := knee(mirrored, 0.2, 0.01, 0.05) // conducts at positive V, threshold -0.2

	fit, err := FitThreshold(i, v, QuadrantI, ThresholdOptions{})
	require.NoError(t, err)
	assert.InDelta(t, -0.2, fit.Threshold(), 0.05)
	assert.LessOrEqual(t, fit.Slope, 0.0)
	assert.InDelta(t, 0.0, fit.Line(fit.Threshold()), 1e-12)
}

func TestFitThreshold_DescendingSweepMatchesAscending(t *testing.T) {
	v := linspace(-0.8, 0.6, 141)
	i := knee(v, 0.2, 0.01, 0.05)

	up, err := FitThreshold(i, v, QuadrantIII, ThresholdOptions{})
	require.NoError(t, err)

	dv, di := slices.Clone(v), slices.Clone(i)
	slices.Reverse(dv)
	slices.Reverse(di)
	down, err := FitThreshold(di, dv, QuadrantIII, ThresholdOptions{})
	require.NoError(t, err)

	assert.Equal(t, up, down)
}

func TestFitThreshold_ZeroCurrent(t *testing.T) {
	v := linspace(-0.8, 0.6, 141)
	i := make([]float64, len(v))

	_, err := FitThreshold(i, v, QuadrantIII, ThresholdOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoTransitionFound))
}

func TestFitThreshold_Malformed(t *testing.T) {
	_, err := FitThreshold([]float64{1, 2}, []float64{0, 1, 2}, QuadrantIII, ThresholdOptions{})
	var malformed *MalformedSweepError
	assert.ErrorAs(t, err, &malformed)
}

func TestQuadrantFromPeaks(t *testing.T) {
	tests := []struct {
		name  string
		peaks []Peak
		want  Quadrant
	}{
		{name: "all negative", peaks: []Peak{{Voltage: -0.5}, {Voltage: -0.4}}, want: QuadrantIII},
		{name: "all positive", peaks: []Peak{{Voltage: 0.5}}, want: QuadrantI},
		{name: "tie resolves to III", peaks: []Peak{{Voltage: 0.5}, {Voltage: -0.5}}, want: QuadrantIII},
		{name: "majority positive", peaks: []Peak{{Voltage: 0.5}, {Voltage: 0.3}, {Voltage: -0.5}}, want: QuadrantI},
		{name: "no peaks", peaks: nil, want: QuadrantIII},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QuadrantFromPeaks(tt.peaks))
		})
	}
}

func TestAscending(t *testing.T) {
	assert.True(t, ascending(linspace(-1, 1, 30)))
	assert.False(t, ascending(linspace(1, -1, 30)))

	// a noisy second sample does not flip the verdict
	v := linspace(-1, 1, 30)
	v[2] = v[0] - 0.5
	assert.True(t, ascending(v))
}
