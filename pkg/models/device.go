package models

// DefaultThickness is the channel thickness assumed when none is configured,
// in metres.
const DefaultThickness = 40e-9

// DeviceParams holds transistor geometry. Width and Length are in microns,
// Thickness in metres once normalized.
type DeviceParams struct {
	Width     float64 `json:"width_um" doc:"Channel width in microns"`
	Length    float64 `json:"length_um" doc:"Channel length in microns"`
	Thickness float64 `json:"thickness_m" doc:"Channel thickness in metres"`
}

// Normalize fills in the default thickness and converts a thickness given in
// nanometres (any value above 1) to metres.
func (p DeviceParams) Normalize() DeviceParams {
	switch {
	case p.Thickness <= 0:
		p.Thickness = DefaultThickness
	case p.Thickness > 1:
		p.Thickness *= 1e-9
	}
	return p
}

// WdL is W*d/L, the geometric factor transconductance is normalized by.
// It is zero when the length is unknown.
func (p DeviceParams) WdL() float64 {
	if p.Length == 0 {
		return 0
	}
	return p.Width * p.Thickness / p.Length
}

// Point is one sample of a curve.
type Point struct {
	V float64 `json:"v" doc:"Swept voltage in volts"`
	Y float64 `json:"y" doc:"Current in amperes or transconductance in siemens"`
}

// CurveData is one column of the output, transfer or gm table.
type CurveData struct {
	Key       string  `json:"key" doc:"Curve identifier, e.g. -0.6_0_fwd"`
	Companion float64 `json:"companion" doc:"Fixed drain (transfer) or gate (output) voltage"`
	Repeat    int     `json:"repeat" doc:"Repeat index among curves with the same companion voltage"`
	Leg       string  `json:"leg" enum:"fwd,bwd,avg" doc:"Sweep leg"`
	Points    []Point `json:"points"`
}

// PeakGm is the transconductance peak of one leg.
type PeakGm struct {
	Key        string  `json:"key"`
	Voltage    float64 `json:"voltage" doc:"Gate voltage at the peak"`
	Gm         float64 `json:"gm" doc:"Peak transconductance in siemens"`
	Normalized float64 `json:"gm_normalized,omitempty" doc:"Peak gm divided by W*d/L"`
}

// ThresholdResult is the threshold fit of one transfer column.
type ThresholdResult struct {
	Key             string  `json:"key"`
	Vt              float64 `json:"vt" doc:"Threshold voltage in volts"`
	VgVt            float64 `json:"vg_vt" doc:"|V_peak_gm - Vt| in volts"`
	Slope           float64 `json:"slope"`
	Intercept       float64 `json:"intercept"`
	TransitionIndex int     `json:"transition_index"`
	Residual        float64 `json:"residual"`
}

// CurveFailure records a curve that could not be processed.
type CurveFailure struct {
	Key   string `json:"key,omitempty"`
	File  string `json:"file,omitempty"`
	Stage string `json:"stage" enum:"load,gm,threshold"`
	Error string `json:"error"`
}

// DeviceResults summarizes the characterization of one device.
type DeviceResults struct {
	Params       DeviceParams      `json:"params"`
	WdL          float64           `json:"wdl" doc:"W*d/L in m"`
	Quadrant     string            `json:"quadrant,omitempty" enum:"I,III"`
	Vt           *float64          `json:"vt,omitempty" doc:"Mean threshold voltage"`
	VgVt         *float64          `json:"vg_vt,omitempty" doc:"Mean |V_peak_gm - Vt|"`
	Thresholds   []ThresholdResult `json:"thresholds"`
	PeakGms      []PeakGm          `json:"peak_gms"`
	Outputs      []CurveData       `json:"outputs"`
	Transfers    []CurveData       `json:"transfers"`
	Gms          []CurveData       `json:"gms"`
	Failures     []CurveFailure    `json:"failures,omitempty"`
	NumOutputs   int               `json:"num_outputs"`
	NumTransfers int               `json:"num_transfers"`
	Processed    int               `json:"processed" doc:"Curve files loaded successfully"`
}

// Vts returns the per-column threshold voltages in table order.
func (r DeviceResults) Vts() []float64 {
	out := make([]float64, len(r.Thresholds))
	for i, t := range r.Thresholds {
		out[i] = t.Vt
	}
	return out
}

// VgVts returns the per-column |V_peak_gm - Vt| in table order.
func (r DeviceResults) VgVts() []float64 {
	out := make([]float64, len(r.Thresholds))
	for i, t := range r.Thresholds {
		out[i] = t.VgVt
	}
	return out
}
