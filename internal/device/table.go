package device

import (
	"sort"
	"strconv"

	"github.com/RMahshie/oect/pkg/models"
	"github.com/RMahshie/oect/pkg/oect"
)

// CurveKey identifies a column of the output, transfer or gm table.
// Companion is the fixed drain or gate voltage, Repeat numbers curves taken
// at the same companion voltage in discovery order.
type CurveKey struct {
	Companion float64
	Repeat    int
	Leg       oect.Leg
}

// String renders the key as companion_repeat_leg, e.g. "-0.6_0_fwd".
func (k CurveKey) String() string {
	return strconv.FormatFloat(k.Companion, 'g', -1, 64) + "_" + strconv.Itoa(k.Repeat) + "_" + k.Leg.String()
}

// Series is one table column: a value per voltage sample.
type Series struct {
	Key     CurveKey
	Voltage []float64
	Value   []float64
}

// Len returns the number of samples.
func (s Series) Len() int {
	return len(s.Voltage)
}

func (s Series) curveData() models.CurveData {
	pts := make([]models.Point, len(s.Voltage))
	for i := range s.Voltage {
		pts[i] = models.Point{V: s.Voltage[i], Y: s.Value[i]}
	}
	return models.CurveData{
		Key:       s.Key.String(),
		Companion: s.Key.Companion,
		Repeat:    s.Key.Repeat,
		Leg:       s.Key.Leg.String(),
		Points:    pts,
	}
}

// Table is an ordered set of columns.
type Table struct {
	Columns []Series
}

// Len returns the number of columns.
func (t Table) Len() int {
	return len(t.Columns)
}

// Rows returns the length of the longest column.
func (t Table) Rows() int {
	var n int
	for _, c := range t.Columns {
		n = max(n, c.Len())
	}
	return n
}

func (t Table) curveData() []models.CurveData {
	out := make([]models.CurveData, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.curveData()
	}
	return out
}

// ascendingSeries copies the samples into ascending voltage order.
func ascendingSeries(key CurveKey, voltage, value []float64) Series {
	idx := make([]int, len(voltage))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return voltage[idx[a]] < voltage[idx[b]] })

	s := Series{Key: key, Voltage: make([]float64, len(idx)), Value: make([]float64, len(idx))}
	for i, j := range idx {
		s.Voltage[i] = voltage[j]
		s.Value[i] = value[j]
	}
	return s
}

func measuredSeries(key CurveKey, voltage, value []float64) Series {
	return Series{
		Key:     key,
		Voltage: append([]float64(nil), voltage...),
		Value:   append([]float64(nil), value...),
	}
}
