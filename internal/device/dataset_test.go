package device

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/oect/internal/ingest"
	"github.com/RMahshie/oect/pkg/models"
	"github.com/RMahshie/oect/pkg/oect"
)

const (
	testVt   = 0.2
	testVds  = -0.6
	testStep = 0.01
)

// sweepVoltage runs -0.8 -> 0.6 V and back without repeating the apex.
func sweepVoltage(withReverse bool) []float64 {
	var fwd []float64
	for i := 0; i <= 140; i++ {
		fwd = append(fwd, -0.8+float64(i)*testStep)
	}
	if !withReverse {
		return fwd
	}
	back := slices.Clone(fwd[:len(fwd)-1])
	slices.Reverse(back)
	return append(fwd, back...)
}

// deviceCurrent has sqrt(|I|) linear below vt and vanishing above it.
func deviceCurrent(v []float64, vt float64) []float64 {
	const k, s = 0.01, 0.05
	out := make([]float64, len(v))
	for i, x := range v {
		u := (vt - x) / s
		sp := u
		if u < 30 {
			sp = math.Log1p(math.Exp(u))
		}
		r := k * s * sp
		out[i] = -r * r
	}
	return out
}

func transferCurve(name string, vds float64, withReverse bool) ingest.Curve {
	v := sweepVoltage(withReverse)
	return ingest.Curve{
		Name:  name,
		Kind:  ingest.KindTransfer,
		Meta:  ingest.Metadata{Vds: vds, HasVds: true, Width: 2000, Length: 20},
		Sweep: oect.Sweep{Voltage: v, Current: deviceCurrent(v, testVt), Companion: vds},
	}
}

func outputCurve(name string, vg float64) ingest.Curve {
	v := []float64{0, -0.1, -0.2, -0.3, -0.4, -0.5, -0.6}
	i := make([]float64, len(v))
	for k, x := range v {
		i[k] = 1e-4 * x
	}
	return ingest.Curve{
		Name:  name,
		Kind:  ingest.KindOutput,
		Meta:  ingest.Metadata{Vg: vg, HasVg: true},
		Sweep: oect.Sweep{Voltage: v, Current: i, Companion: vg},
	}
}

func newTestDataset(opts Options) *Dataset {
	return New(models.DeviceParams{Width: 2000, Length: 20}, opts)
}

func TestDataset_StateOrder(t *testing.T) {
	d := newTestDataset(DefaultOptions())

	var order *oect.StateOrderError
	err := d.CalcGms()
	require.ErrorAs(t, err, &order)
	assert.Equal(t, "CalcGms", order.Op)
	assert.Equal(t, StateUninitialized.String(), order.Have)

	err = d.Thresh()
	require.ErrorAs(t, err, &order)
	assert.Equal(t, "Thresh", order.Op)

	require.NoError(t, d.Load([]ingest.Curve{transferCurve("transfer.txt", testVds, true)}))
	err = d.Thresh()
	require.ErrorAs(t, err, &order)
	assert.Equal(t, StateLoaded.String(), order.Have)
	assert.Equal(t, StateLoaded, d.State())
}

func TestDataset_FullPipeline(t *testing.T) {
	d := newTestDataset(DefaultOptions())
	curves := []ingest.Curve{
		transferCurve("transfer_1.txt", testVds, true),
		outputCurve("output_1.txt", -0.3),
		transferCurve("transfer_2.txt", testVds, true),
	}

	require.NoError(t, d.Load(curves))
	require.NoError(t, d.CalcGms())
	require.NoError(t, d.Thresh())
	assert.Equal(t, StateThresholdComputed, d.State())

	transfers := d.Transfers()
	require.Equal(t, 4, transfers.Len())
	assert.Equal(t, CurveKey{Companion: testVds, Repeat: 0, Leg: oect.LegForward}, transfers.Columns[0].Key)
	assert.Equal(t, CurveKey{Companion: testVds, Repeat: 0, Leg: oect.LegReverse}, transfers.Columns[1].Key)
	assert.Equal(t, CurveKey{Companion: testVds, Repeat: 1, Leg: oect.LegForward}, transfers.Columns[2].Key)
	assert.True(t, slices.IsSorted(transfers.Columns[1].Voltage))
	assert.Equal(t, 1, d.Outputs().Len())

	gms := d.Gms()
	require.Equal(t, 4, gms.Len())
	assert.Equal(t, oect.LegForward, gms.Columns[0].Key.Leg)
	assert.Equal(t, oect.LegForward, gms.Columns[1].Key.Leg)
	assert.Equal(t, oect.LegReverse, gms.Columns[2].Key.Leg)
	require.Len(t, d.Peaks(), 4)
	assert.InDelta(t, -0.8, d.Peaks()[0].Peak.Voltage, 1e-9)

	assert.Equal(t, oect.QuadrantIII, d.Quadrant())
	vts := d.Vts()
	require.Len(t, vts, 4)
	for _, vt := range vts {
		assert.InDelta(t, testVt, vt, 0.05)
	}
	vt, ok := d.Vt()
	require.True(t, ok)
	assert.InDelta(t, testVt, vt, 0.05)
	for _, th := range d.Thresholds() {
		assert.InDelta(t, math.Abs(-0.8-th.Vt), th.VgVt, 1e-9)
		assert.LessOrEqual(t, th.Fit.Slope, 0.0)
		assert.GreaterOrEqual(t, th.Fit.Intercept, 0.0)
	}

	res := d.Results()
	assert.Equal(t, "III", res.Quadrant)
	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 4, res.NumTransfers)
	assert.Equal(t, "-0.6_1_fwd", res.Thresholds[2].Key)
	require.NotNil(t, res.Vt)
	assert.InDelta(t, 2000*40e-9/20, res.WdL, 1e-15)
	assert.Empty(t, res.Failures)

	obs := d.Observation()
	assert.Equal(t, 2000.0, obs.Width)
	assert.Equal(t, []float64{-0.3}, obs.Vgs)
}

func TestDataset_ZeroCurrentColumnIsOmitted(t *testing.T) {
	flat := transferCurve("transfer_flat.txt", testVds, false)
	flat.Sweep.Current = make([]float64, flat.Sweep.Len())

	d := newTestDataset(DefaultOptions())
	require.NoError(t, d.Load([]ingest.Curve{transferCurve("transfer_1.txt", testVds, false), flat}))
	require.NoError(t, d.CalcGms())
	require.NoError(t, d.Thresh())

	assert.Equal(t, 2, d.Transfers().Len())
	assert.Len(t, d.Vts(), 1)

	require.Len(t, d.Failures(), 1)
	f := d.Failures()[0]
	assert.Equal(t, StageThreshold, f.Stage)
	assert.True(t, errors.Is(f, oect.ErrNoTransitionFound))
	assert.Equal(t, CurveKey{Companion: testVds, Repeat: 1, Leg: oect.LegForward}, f.Key)
}

// perturbed scales the current of c sample by sample.
func perturbed(c ingest.Curve, amp, freq float64) ingest.Curve {
	cur := slices.Clone(c.Sweep.Current)
	for i := range cur {
		cur[i] *= 1 + amp*math.Sin(freq*float64(i))
	}
	c.Sweep.Current = cur
	return c
}

func TestDataset_Average(t *testing.T) {
	opts := DefaultOptions()
	opts.Average = true
	d := newTestDataset(opts)

	curves := []ingest.Curve{
		perturbed(transferCurve("transfer_1.txt", testVds, true), 0.02, 0.7),
		perturbed(transferCurve("transfer_2.txt", testVds, true), -0.03, 1.3),
	}
	require.NoError(t, d.Load(curves))
	require.Equal(t, 1, d.Transfers().Len())
	col := d.Transfers().Columns[0]
	assert.Equal(t, CurveKey{Companion: testVds, Leg: oect.LegAverage}, col.Key)

	// every leg of both sweeps contributes at its voltages
	samples := make(map[float64][]float64)
	for _, c := range curves {
		for i, v := range c.Sweep.Voltage {
			samples[v] = append(samples[v], c.Sweep.Current[i])
		}
	}
	require.Len(t, col.Voltage, len(samples))
	assert.True(t, slices.IsSorted(col.Voltage))
	for i, v := range col.Voltage {
		vals := samples[v]
		require.NotEmpty(t, vals, "voltage %g", v)
		var sum float64
		for _, y := range vals {
			sum += y
		}
		assert.InDelta(t, sum/float64(len(vals)), col.Value[i], 1e-15, "voltage %g", v)
	}
	// the apex is only in the forward legs, the rest in all four
	assert.Len(t, samples[col.Voltage[len(col.Voltage)-1]], 2)
	assert.Len(t, samples[col.Voltage[0]], 4)
	assert.NotEqual(t, curves[0].Sweep.Current[0], col.Value[0])

	require.NoError(t, d.CalcGms())
	require.NoError(t, d.Thresh())
	require.Len(t, d.Thresholds(), 1)
	th := d.Thresholds()[0]
	assert.InDelta(t, testVt, th.Vt, 0.05)
	assert.InDelta(t, math.Abs(d.Peaks()[0].Peak.Voltage-th.Vt), th.VgVt, 1e-12)
}

func TestDataset_NoReverse(t *testing.T) {
	opts := DefaultOptions()
	opts.Reverse = false
	d := newTestDataset(opts)

	require.NoError(t, d.Load([]ingest.Curve{transferCurve("transfer.txt", testVds, true)}))
	require.NoError(t, d.CalcGms())
	assert.Equal(t, 1, d.Transfers().Len())
	assert.Equal(t, 1, d.Gms().Len())
	assert.Len(t, d.Peaks(), 1)
	// the forward leg still stops at the apex
	assert.Equal(t, 141, d.Transfers().Columns[0].Len())
}

func TestDataset_StagesAreIdempotent(t *testing.T) {
	d := newTestDataset(DefaultOptions())
	require.NoError(t, d.Load([]ingest.Curve{transferCurve("transfer.txt", testVds, true)}))
	require.NoError(t, d.CalcGms())
	require.NoError(t, d.Thresh())
	first := d.Results()

	require.NoError(t, d.CalcGms())
	assert.Empty(t, d.Thresholds())
	require.NoError(t, d.Thresh())
	require.NoError(t, d.Thresh())
	assert.Equal(t, first, d.Results())
}

func TestDataset_LoadRecordsBadCurves(t *testing.T) {
	short := ingest.Curve{
		Name:  "transfer_short.txt",
		Kind:  ingest.KindTransfer,
		Sweep: oect.Sweep{Voltage: []float64{0, 1}, Current: []float64{0, 1}},
	}
	parseErr := &ingest.FileError{Name: "transfer_bad.txt", Err: errors.New("boom")}

	d := newTestDataset(DefaultOptions())
	require.NoError(t, d.Load([]ingest.Curve{short, transferCurve("transfer.txt", testVds, false)}, parseErr))
	assert.Equal(t, 1, d.Transfers().Len())
	require.Len(t, d.Failures(), 2)
	assert.Equal(t, "transfer_bad.txt", d.Failures()[0].File)

	var malformed *oect.MalformedSweepError
	assert.ErrorAs(t, d.Failures()[1], &malformed)

	empty := newTestDataset(DefaultOptions())
	assert.ErrorIs(t, empty.Load([]ingest.Curve{short}), ErrNoCurves)
	assert.Equal(t, StateUninitialized, empty.State())
}

func TestDataset_MissingMetadataInheritsBias(t *testing.T) {
	second := transferCurve("transfer_2.txt", 0, false)
	second.Meta.HasVds = false

	d := newTestDataset(DefaultOptions())
	require.NoError(t, d.Load([]ingest.Curve{transferCurve("transfer_1.txt", -0.4, false), second}))
	require.Equal(t, 2, d.Transfers().Len())
	assert.Equal(t, CurveKey{Companion: -0.4, Repeat: 1, Leg: oect.LegForward}, d.Transfers().Columns[1].Key)
}

func TestCurveKey_String(t *testing.T) {
	assert.Equal(t, "-0.6_0_fwd", CurveKey{Companion: -0.6, Leg: oect.LegForward}.String())
	assert.Equal(t, "0.3_2_bwd", CurveKey{Companion: 0.3, Repeat: 2, Leg: oect.LegReverse}.String())
	assert.Equal(t, "-0.6_0_avg", CurveKey{Companion: -0.6, Leg: oect.LegAverage}.String())
}

func TestCutLowVoltage(t *testing.T) {
	s := Series{
		Voltage: []float64{-0.5, -0.4, -0.3, -0.2, -0.1, 0},
		Value:   []float64{5, 3, 1, 2, 4, 6},
	}
	out := cutLowVoltage(s)
	assert.Equal(t, []float64{-0.3, -0.2, -0.1, 0}, out.Voltage)
	assert.Equal(t, []float64{1, 2, 4, 6}, out.Value)

	monotone := Series{Voltage: []float64{0, 1, 2, 3}, Value: []float64{4, 3, 2, 1}}
	assert.Equal(t, monotone, cutLowVoltage(monotone))
}

func TestAverageColumns(t *testing.T) {
	tbl := Table{Columns: []Series{
		{Key: CurveKey{Companion: -0.6, Leg: oect.LegForward}, Voltage: []float64{0, 1, 2}, Value: []float64{1, 2, 3}},
		{Key: CurveKey{Companion: -0.6, Leg: oect.LegReverse}, Voltage: []float64{0, 1}, Value: []float64{3, 4}},
		{Key: CurveKey{Companion: -0.6, Repeat: 1, Leg: oect.LegForward}, Voltage: []float64{1e-10, 1 + 1e-9, 2, 3}, Value: []float64{8, 9, 5, 7}},
	}}
	out := averageColumns(tbl)
	require.Equal(t, 1, out.Len())
	col := out.Columns[0]
	assert.Equal(t, CurveKey{Companion: -0.6, Leg: oect.LegAverage}, col.Key)
	assert.InDeltaSlice(t, []float64{0, 1, 2, 3}, col.Voltage, 1e-8)
	assert.InDeltaSlice(t, []float64{4, 5, 4, 7}, col.Value, 1e-12)
}
