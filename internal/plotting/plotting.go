// Package plotting renders device results as PNG figures: sqrt(|I_DS|) of
// every transfer column with its fitted threshold line on the left, and the
// transconductance curves on the right.
package plotting

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/RMahshie/oect/pkg/models"
	"github.com/RMahshie/oect/pkg/oect"
)

const (
	figureWidth  = 12 * vg.Inch
	figureHeight = 5 * vg.Inch
)

// Render writes the threshold figure for r as PNG.
func Render(w io.Writer, r models.DeviceResults) error {
	if len(r.Transfers) == 0 {
		return fmt.Errorf("no transfer curves to plot")
	}

	thresh, err := thresholdPlot(r)
	if err != nil {
		return err
	}
	gm, err := gmPlot(r)
	if err != nil {
		return err
	}

	img := vgimg.New(figureWidth, figureHeight)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 1, Cols: 2, PadX: vg.Millimeter * 4, PadY: vg.Millimeter * 2,
		PadTop: vg.Millimeter * 2, PadBottom: vg.Millimeter * 2, PadLeft: vg.Millimeter * 2, PadRight: vg.Millimeter * 2}

	plots := [][]*plot.Plot{{thresh, gm}}
	canvases := plot.Align(plots, tiles, dc)
	for j, p := range plots[0] {
		p.Draw(canvases[0][j])
	}

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

// PNG renders r into memory.
func PNG(r models.DeviceResults) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func thresholdPlot(r models.DeviceResults) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Threshold"
	if r.Vt != nil {
		p.Title.Text = fmt.Sprintf("Threshold, mean Vt = %.3f V", *r.Vt)
	}
	p.X.Label.Text = "V_G (V)"
	p.Y.Label.Text = "sqrt(|I_DS|) (A^1/2)"
	p.Legend.Top = true

	fits := make(map[string]models.ThresholdResult, len(r.Thresholds))
	for _, t := range r.Thresholds {
		fits[t.Key] = t
	}
	quad := oect.Quadrant(r.Quadrant)

	for i, c := range r.Transfers {
		pts := sqrtPoints(c.Points)
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("transfer %s: %w", c.Key, err)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(c.Key, line)

		t, ok := fits[c.Key]
		if !ok {
			continue
		}
		fit := oect.ThresholdFit{Slope: t.Slope, Intercept: t.Intercept, Quadrant: quad}
		if fitted := fitPoints(fit, c.Points, floor(c.Points)); len(fitted) >= 2 {
			fl, err := plotter.NewLine(fitted)
			if err != nil {
				return nil, fmt.Errorf("threshold %s: %w", c.Key, err)
			}
			fl.Color = plotutil.Color(i)
			fl.Dashes = plotutil.Dashes(1)
			p.Add(fl)
		}
	}
	return p, nil
}

func gmPlot(r models.DeviceResults) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Transconductance"
	p.X.Label.Text = "V_G (V)"
	p.Y.Label.Text = "gm (S)"
	p.Legend.Top = true

	for i, c := range r.Gms {
		pts := make(plotter.XYs, len(c.Points))
		for k, pt := range c.Points {
			pts[k] = plotter.XY{X: pt.V, Y: pt.Y}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("gm %s: %w", c.Key, err)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(c.Key, line)
	}
	return p, nil
}

// sqrtPoints maps current to sqrt(|I|), dropping samples the plotter would
// reject.
func sqrtPoints(points []models.Point) plotter.XYs {
	out := make(plotter.XYs, 0, len(points))
	for _, pt := range points {
		y := math.Sqrt(math.Abs(pt.Y))
		if math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		out = append(out, plotter.XY{X: pt.V, Y: y})
	}
	return out
}

// floor is the minimum of sqrt(|I|), the offset removed before fitting.
func floor(points []models.Point) float64 {
	m := math.Inf(1)
	for _, pt := range points {
		if y := math.Sqrt(math.Abs(pt.Y)); y < m {
			m = y
		}
	}
	if math.IsInf(m, 1) {
		return 0
	}
	return m
}

// fitPoints samples the fitted line over the column's voltage range, shifted
// back by the fitting offset and kept where it lies above the offset.
func fitPoints(fit oect.ThresholdFit, points []models.Point, offset float64) plotter.XYs {
	var out plotter.XYs
	for _, pt := range points {
		y := fit.Line(pt.V)
		if y < 0 || math.IsNaN(y) {
			continue
		}
		out = append(out, plotter.XY{X: pt.V, Y: y + offset})
	}
	return out
}
