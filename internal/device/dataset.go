// Package device turns the curve files of one transistor into its
// characterization: transfer and output tables, transconductance, and
// threshold voltages.
package device

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/RMahshie/oect/internal/ingest"
	"github.com/RMahshie/oect/pkg/models"
	"github.com/RMahshie/oect/pkg/oect"
)

// Stage names the pipeline step a curve failed in.
type Stage string

const (
	StageLoad      Stage = "load"
	StageGm        Stage = "gm"
	StageThreshold Stage = "threshold"
)

// CurveError records a curve that was dropped from the results.
type CurveError struct {
	Stage Stage
	File  string
	Key   CurveKey // zero for load failures
	Err   error
}

func (e *CurveError) Error() string {
	switch {
	case e.Key.Leg != 0:
		return fmt.Sprintf("%s %s: %v", e.Stage, e.Key, e.Err)
	case e.File != "":
		return fmt.Sprintf("%s %s: %v", e.Stage, e.File, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
}

func (e *CurveError) Unwrap() error {
	return e.Err
}

// ErrNoCurves is returned by Load when not a single curve could be used.
var ErrNoCurves = errors.New("no usable curves")

// PeakGm is the transconductance peak of one leg.
type PeakGm struct {
	Key  CurveKey
	Peak oect.Peak
}

// Threshold is the fit of one transfer column.
type Threshold struct {
	Key  CurveKey
	Fit  oect.ThresholdFit
	Vt   float64
	VgVt float64
}

// Observation is what the curve files report about the device, used to
// write the device config back.
type Observation struct {
	Width  float64
	Length float64
	Vds    float64
	HasVds bool
	Vgs    []float64
}

type transferSweep struct {
	key   CurveKey // Leg unset
	file  string
	sweep oect.Sweep
	split oect.SplitResult
}

// Dataset is the characterization of one device. Stages run in order:
// Load, CalcGms, Thresh. Each may be rerun; rerunning a stage discards the
// results of the stages after it.
type Dataset struct {
	params models.DeviceParams
	opts   Options
	state  State

	outputs   Table
	transfers Table
	gms       Table
	sweeps    []transferSweep
	peaks     []PeakGm
	fits      []Threshold
	quadrant  oect.Quadrant
	failures  []*CurveError
	processed int
	observed  Observation
}

// New creates an empty Dataset.
func New(params models.DeviceParams, opts Options) *Dataset {
	if opts.GmMethod == "" {
		opts.GmMethod = oect.GmSmoothed
	}
	if opts.PeakWidth <= 0 {
		opts.PeakWidth = oect.DefaultPeakWidth
	}
	return &Dataset{params: params.Normalize(), opts: opts}
}

// State returns the last completed stage.
func (d *Dataset) State() State { return d.state }

// Options returns the effective options.
func (d *Dataset) Options() Options { return d.opts }

// Params returns the normalized device geometry.
func (d *Dataset) Params() models.DeviceParams { return d.params }

// Outputs returns the output table.
func (d *Dataset) Outputs() Table { return d.outputs }

// Transfers returns the transfer table, columns in ascending voltage order.
func (d *Dataset) Transfers() Table { return d.transfers }

// Gms returns the transconductance table: forward columns, then backward.
func (d *Dataset) Gms() Table { return d.gms }

// Peaks returns the gm peak of every leg, in gm table order.
func (d *Dataset) Peaks() []PeakGm { return d.peaks }

// Thresholds returns the successful threshold fits in transfer table order.
func (d *Dataset) Thresholds() []Threshold { return d.fits }

// Quadrant returns the operating quadrant chosen by Thresh.
func (d *Dataset) Quadrant() oect.Quadrant { return d.quadrant }

// Failures returns every curve dropped so far.
func (d *Dataset) Failures() []*CurveError { return d.failures }

// Observation returns the geometry and biases read from the curve files.
func (d *Dataset) Observation() Observation { return d.observed }

// Vts returns the per-column threshold voltages.
func (d *Dataset) Vts() []float64 {
	out := make([]float64, len(d.fits))
	for i, f := range d.fits {
		out[i] = f.Vt
	}
	return out
}

// Vt returns the mean threshold voltage, false when no column produced one.
func (d *Dataset) Vt() (float64, bool) {
	if len(d.fits) == 0 {
		return math.NaN(), false
	}
	var sum float64
	for _, f := range d.fits {
		sum += f.Vt
	}
	return sum / float64(len(d.fits)), true
}

// Load builds the output and transfer tables. Curves that fail validation
// are recorded and skipped; so are the file errors passed in from parsing.
// Curves without bias metadata inherit the value of the previous file of the
// same kind.
func (d *Dataset) Load(curves []ingest.Curve, parseErrs ...*ingest.FileError) error {
	*d = Dataset{params: d.params, opts: d.opts}
	for _, e := range parseErrs {
		d.fail(StageLoad, e.Name, CurveKey{}, e.Err)
	}

	var vds, vg float64
	repeats := make(map[float64]int)
	outputRepeats := make(map[float64]int)
	for _, c := range curves {
		if err := c.Sweep.Validate(); err != nil {
			d.fail(StageLoad, c.Name, CurveKey{}, err)
			continue
		}
		d.observe(c.Meta)

		s := c.Sweep
		split := oect.Split(s.Voltage)
		fwd, rev := s.Legs(split)
		withReverse := split.HasReverse && rev.Len() >= oect.MinSamples

		switch c.Kind {
		case ingest.KindTransfer:
			if c.Meta.HasVds {
				vds = c.Meta.Vds
			}
			s.Companion = vds
			key := CurveKey{Companion: vds, Repeat: repeats[vds]}
			repeats[vds]++

			d.sweeps = append(d.sweeps, transferSweep{key: key, file: c.Name, sweep: s, split: split})
			d.transfers.Columns = append(d.transfers.Columns, ascendingSeries(withLeg(key, oect.LegForward), fwd.Voltage, fwd.Current))
			if withReverse && d.opts.Reverse {
				d.transfers.Columns = append(d.transfers.Columns, ascendingSeries(withLeg(key, oect.LegReverse), rev.Voltage, rev.Current))
			}

		case ingest.KindOutput:
			if c.Meta.HasVg {
				vg = c.Meta.Vg
			}
			key := CurveKey{Companion: vg, Repeat: outputRepeats[vg]}
			outputRepeats[vg]++
			d.observed.Vgs = append(d.observed.Vgs, vg)
			d.outputs.Columns = append(d.outputs.Columns, measuredSeries(withLeg(key, oect.LegForward), fwd.Voltage, fwd.Current))
			if withReverse {
				d.outputs.Columns = append(d.outputs.Columns, measuredSeries(withLeg(key, oect.LegReverse), rev.Voltage, rev.Current))
			}

		default:
			d.fail(StageLoad, c.Name, CurveKey{}, ingest.ErrUnknownKind)
			continue
		}
		d.processed++
	}

	if d.processed == 0 {
		return ErrNoCurves
	}
	if d.opts.Average && d.transfers.Len() > 1 {
		d.transfers = averageColumns(d.transfers)
	}
	if d.opts.VLow {
		for i, col := range d.transfers.Columns {
			d.transfers.Columns[i] = cutLowVoltage(col)
		}
	}

	d.state = StateLoaded
	log.Info().
		Int("processed", d.processed).
		Int("transfers", d.transfers.Len()).
		Int("outputs", d.outputs.Len()).
		Int("failures", len(d.failures)).
		Msg("Loaded device curves")
	return nil
}

// CalcGms differentiates every transfer sweep.
func (d *Dataset) CalcGms() error {
	if d.state < StateLoaded {
		return &oect.StateOrderError{Op: "CalcGms", Need: StateLoaded.String(), Have: d.state.String()}
	}
	d.dropFailures(StageGm, StageThreshold)
	d.gms, d.peaks, d.fits, d.quadrant = Table{}, nil, nil, ""

	params := oect.DefaultGmParams(d.transfers.Rows())
	var backward []Series
	var backwardPeaks []PeakGm
	for _, ts := range d.sweeps {
		legs, err := oect.TransconductanceLegs(ts.sweep, ts.split, d.opts.GmMethod, params)
		if err != nil {
			d.fail(StageGm, ts.file, withLeg(ts.key, oect.LegForward), err)
			continue
		}

		key := withLeg(ts.key, oect.LegForward)
		d.gms.Columns = append(d.gms.Columns, ascendingSeries(key, legs.Forward.Voltage, legs.Forward.Value))
		d.peaks = append(d.peaks, PeakGm{Key: key, Peak: legs.Peaks[0]})

		if d.opts.Reverse && !legs.Backward.Empty() {
			key := withLeg(ts.key, oect.LegReverse)
			backward = append(backward, ascendingSeries(key, legs.Backward.Voltage, legs.Backward.Value))
			backwardPeaks = append(backwardPeaks, PeakGm{Key: key, Peak: legs.Peaks[1]})
		}
	}
	d.gms.Columns = append(d.gms.Columns, backward...)
	d.peaks = append(d.peaks, backwardPeaks...)

	d.state = StateGmComputed
	log.Debug().
		Str("method", string(d.opts.GmMethod)).
		Int("window", params.Window).
		Int("columns", d.gms.Len()).
		Msg("Computed transconductance")
	return nil
}

// Thresh fits the threshold voltage of every transfer column. Columns with
// no transition or no usable fit are recorded as failures and left out of
// Vts.
func (d *Dataset) Thresh() error {
	if d.state < StateGmComputed {
		return &oect.StateOrderError{Op: "Thresh", Need: StateGmComputed.String(), Have: d.state.String()}
	}
	d.dropFailures(StageThreshold)
	d.fits = nil

	peaks := make([]oect.Peak, len(d.peaks))
	for i, p := range d.peaks {
		peaks[i] = p.Peak
	}
	d.quadrant = oect.QuadrantFromPeaks(peaks)

	opts := oect.ThresholdOptions{PeakWidth: d.opts.PeakWidth}
	for _, col := range d.transfers.Columns {
		fit, err := oect.FitThreshold(col.Value, col.Voltage, d.quadrant, opts)
		if err != nil {
			log.Warn().Err(err).Str("curve", col.Key.String()).Msg("Threshold fit failed")
			d.fail(StageThreshold, "", col.Key, err)
			continue
		}

		vt := fit.Threshold()
		th := Threshold{Key: col.Key, Fit: fit, Vt: vt}
		if pk, ok := d.peakFor(col.Key); ok {
			th.VgVt = math.Abs(pk.Voltage - vt)
		}
		d.fits = append(d.fits, th)
	}

	d.state = StateThresholdComputed
	vt, _ := d.Vt()
	log.Info().
		Str("quadrant", string(d.quadrant)).
		Float64("vt", vt).
		Int("fitted", len(d.fits)).
		Int("columns", d.transfers.Len()).
		Msg("Computed threshold voltages")
	return nil
}

// Results summarizes everything computed so far.
func (d *Dataset) Results() models.DeviceResults {
	wdl := d.params.WdL()
	r := models.DeviceResults{
		Params:       d.params,
		WdL:          wdl,
		Quadrant:     string(d.quadrant),
		Outputs:      d.outputs.curveData(),
		Transfers:    d.transfers.curveData(),
		Gms:          d.gms.curveData(),
		NumOutputs:   d.outputs.Len(),
		NumTransfers: d.transfers.Len(),
		Processed:    d.processed,
		Thresholds:   make([]models.ThresholdResult, 0, len(d.fits)),
		PeakGms:      make([]models.PeakGm, 0, len(d.peaks)),
	}

	for _, p := range d.peaks {
		pg := models.PeakGm{Key: p.Key.String(), Voltage: p.Peak.Voltage, Gm: p.Peak.Value}
		if wdl > 0 {
			pg.Normalized = p.Peak.Value / wdl
		}
		r.PeakGms = append(r.PeakGms, pg)
	}

	var vgvt float64
	for _, f := range d.fits {
		r.Thresholds = append(r.Thresholds, models.ThresholdResult{
			Key:             f.Key.String(),
			Vt:              f.Vt,
			VgVt:            f.VgVt,
			Slope:           f.Fit.Slope,
			Intercept:       f.Fit.Intercept,
			TransitionIndex: f.Fit.TransitionIndex,
			Residual:        f.Fit.Residual,
		})
		vgvt += f.VgVt
	}
	if vt, ok := d.Vt(); ok {
		vgvt /= float64(len(d.fits))
		r.Vt, r.VgVt = &vt, &vgvt
	}

	for _, f := range d.failures {
		cf := models.CurveFailure{File: f.File, Stage: string(f.Stage), Error: f.Err.Error()}
		if f.Key.Leg != 0 {
			cf.Key = f.Key.String()
		}
		r.Failures = append(r.Failures, cf)
	}
	return r
}

// peakFor pairs a transfer column with the gm peak of the same leg. The
// averaged column takes the first peak.
func (d *Dataset) peakFor(k CurveKey) (oect.Peak, bool) {
	if len(d.peaks) == 0 {
		return oect.Peak{}, false
	}
	if k.Leg == oect.LegAverage {
		return d.peaks[0].Peak, true
	}
	for _, p := range d.peaks {
		if p.Key == k {
			return p.Peak, true
		}
	}
	return oect.Peak{}, false
}

func (d *Dataset) observe(m ingest.Metadata) {
	if m.Width > 0 {
		d.observed.Width = m.Width
	}
	if m.Length > 0 {
		d.observed.Length = m.Length
	}
	if m.HasVds {
		d.observed.Vds, d.observed.HasVds = m.Vds, true
	}
}

func (d *Dataset) fail(stage Stage, file string, key CurveKey, err error) {
	d.failures = append(d.failures, &CurveError{Stage: stage, File: file, Key: key, Err: err})
}

func (d *Dataset) dropFailures(stages ...Stage) {
	var kept []*CurveError
	for _, f := range d.failures {
		drop := false
		for _, s := range stages {
			if f.Stage == s {
				drop = true
			}
		}
		if !drop {
			kept = append(kept, f)
		}
	}
	d.failures = kept
}

func withLeg(k CurveKey, leg oect.Leg) CurveKey {
	k.Leg = leg
	return k
}
