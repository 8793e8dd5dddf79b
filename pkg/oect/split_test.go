package oect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestSplit(t *testing.T) {
	forward := linspace(-1, 1, 11)

	tests := []struct {
		name        string
		voltage     []float64
		wantSplit   int
		wantReverse bool
	}{
		{
			name:        "forward leg with mirrored reverse leg",
			voltage:     append(append([]float64{}, forward...), reversed(forward[:10])...),
			wantSplit:   11,
			wantReverse: true,
		},
		{
			name:        "even length mirrored sweep",
			voltage:     []float64{0, 1, 2, 3, 4, 3, 2, 1},
			wantSplit:   5,
			wantReverse: true,
		},
		{
			name:        "strictly increasing",
			voltage:     forward,
			wantSplit:   10,
			wantReverse: false,
		},
		{
			name:        "strictly decreasing",
			voltage:     reversed(forward),
			wantSplit:   10,
			wantReverse: false,
		},
		{
			name:        "too short",
			voltage:     []float64{0, 1},
			wantSplit:   1,
			wantReverse: false,
		},
		{
			name:        "reverse leg does not retrace",
			voltage:     []float64{0, 1, 2, 3, 4, 3.5, 2.5, 1.5, 0.5},
			wantSplit:   8,
			wantReverse: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.voltage)
			assert.Equal(t, tt.wantReverse, got.HasReverse)
			assert.Equal(t, tt.wantSplit, got.SplitIndex)
		})
	}
}

func TestSplit_SymmetricSweepsAlwaysSplitAtMidpoint(t *testing.T) {
	for n := 2; n <= 40; n++ {
		leg := linspace(-0.5, 0.7, n)
		v := append(append([]float64{}, leg...), reversed(leg[:n-1])...)

		got := Split(v)
		require.True(t, got.HasReverse, "forward length %d", n)
		assert.Equal(t, n, got.SplitIndex, "forward length %d", n)
	}
}

func TestSplit_MonotonicSweepsNeverSplit(t *testing.T) {
	for n := 3; n <= 40; n++ {
		got := Split(linspace(-0.9, 0.3, n))
		assert.False(t, got.HasReverse, "length %d", n)
		assert.Equal(t, n-1, got.SplitIndex)
	}
}

func TestSweep_Legs(t *testing.T) {
	s := Sweep{
		Voltage: []float64{0, 1, 2, 1, 0},
		Current: []float64{10, 11, 12, 13, 14},
	}

	fwd, rev := s.Legs(Split(s.Voltage))
	assert.Equal(t, []float64{0, 1, 2}, fwd.Voltage)
	assert.Equal(t, []float64{10, 11, 12}, fwd.Current)
	assert.Equal(t, []float64{1, 0}, rev.Voltage)
	assert.Equal(t, []float64{13, 14}, rev.Current)

	mono := Sweep{Voltage: []float64{0, 1, 2}, Current: []float64{1, 2, 3}}
	fwd, rev = mono.Legs(Split(mono.Voltage))
	assert.Equal(t, 3, fwd.Len())
	assert.Equal(t, 0, rev.Len())
}

func TestSweep_Validate(t *testing.T) {
	tests := []struct {
		name    string
		sweep   Sweep
		wantErr bool
	}{
		{name: "valid", sweep: Sweep{Voltage: []float64{0, 1, 2}, Current: []float64{0, 1, 2}}},
		{name: "length mismatch", sweep: Sweep{Voltage: []float64{0, 1, 2}, Current: []float64{0, 1}}, wantErr: true},
		{name: "too few samples", sweep: Sweep{Voltage: []float64{0, 1}, Current: []float64{0, 1}}, wantErr: true},
		{name: "empty", sweep: Sweep{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sweep.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var malformed *MalformedSweepError
			assert.ErrorAs(t, err, &malformed)
		})
	}
}
