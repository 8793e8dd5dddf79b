package device

import (
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/RMahshie/oect/pkg/oect"
)

// averageColumns replaces the transfer columns by one column holding, at
// every voltage sampled by any column, the mean over the columns sampled
// there. Voltages within grid tolerance of each other are one sample, so
// forward and reverse legs of different lengths average together.
func averageColumns(t Table) Table {
	type sample struct{ v, y float64 }
	var all []sample
	for _, c := range t.Columns {
		for i, v := range c.Voltage {
			if !math.IsNaN(c.Value[i]) {
				all = append(all, sample{v: v, y: c.Value[i]})
			}
		}
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].v < all[b].v })

	key := t.Columns[0].Key
	key.Repeat, key.Leg = 0, oect.LegAverage
	out := Series{Key: key}
	for i := 0; i < len(all); {
		v := all[i].v
		var sum float64
		j := i
		for ; j < len(all) && sameVoltage(all[j].v, v); j++ {
			sum += all[j].y
		}
		out.Voltage = append(out.Voltage, v)
		out.Value = append(out.Value, sum/float64(j-i))
		i = j
	}

	log.Debug().Int("columns", t.Len()).Int("samples", out.Len()).Msg("Averaged transfer curves")
	return Table{Columns: []Series{out}}
}

func sameVoltage(a, b float64) bool {
	return math.Abs(a-b) <= 1e-8+1e-5*math.Abs(b)
}

// cutLowVoltage drops the samples below the first point, scanning up in
// voltage, where current starts to increase. A column the cut would leave
// with too few samples is kept whole.
func cutLowVoltage(s Series) Series {
	n := s.Len()
	if n < 2 {
		return s
	}
	x := 0
	for ; x < n-2; x++ {
		if s.Value[x+1]-s.Value[x] > 0 {
			break
		}
	}
	cut := s.Voltage[x]

	out := Series{Key: s.Key}
	for i, v := range s.Voltage {
		if v >= cut {
			out.Voltage = append(out.Voltage, v)
			out.Value = append(out.Value, s.Value[i])
		}
	}
	if out.Len() < oect.MinSamples {
		log.Warn().Str("curve", s.Key.String()).Float64("cut", cut).Msg("Low-voltage cut leaves too few samples, keeping full curve")
		return s
	}
	return out
}
