package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceParams_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   DeviceParams
		want float64
	}{
		{name: "missing thickness", in: DeviceParams{Width: 2000, Length: 20}, want: 40e-9},
		{name: "nanometres", in: DeviceParams{Width: 2000, Length: 20, Thickness: 100}, want: 100e-9},
		{name: "already metres", in: DeviceParams{Width: 2000, Length: 20, Thickness: 5e-8}, want: 5e-8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			assert.InDelta(t, tt.want, got.Thickness, 1e-15)
			assert.Equal(t, tt.in.Width, got.Width)
		})
	}
}

func TestDeviceParams_WdL(t *testing.T) {
	p := DeviceParams{Width: 2000, Length: 20}.Normalize()
	assert.InDelta(t, 2000*40e-9/20, p.WdL(), 1e-18)
	assert.Equal(t, 0.0, DeviceParams{Width: 10}.WdL())
}

func TestDeviceResults_Vts(t *testing.T) {
	r := DeviceResults{Thresholds: []ThresholdResult{
		{Key: "-0.6_0_fwd", Vt: 0.21, VgVt: 0.4},
		{Key: "-0.6_0_bwd", Vt: 0.19, VgVt: 0.5},
	}}
	assert.Equal(t, []float64{0.21, 0.19}, r.Vts())
	assert.Equal(t, []float64{0.4, 0.5}, r.VgVts())
}
