package devicecfg

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/oect/internal/device"
	"github.com/RMahshie/oect/pkg/oect"
)

// written by the rig's own tooling
const rigConfig = `[Dimensions]
Width (um) = 4000
Length (um) = 10
Thickness (nm) = 100

[Transfer]
Preread (ms) = 30000.0
First Bias (ms) = 120000.0
Vds (V) = -0.6

[Output]
Preread (ms) = 500.0
First Bias (ms) = 200.0
Output Vgs = 2
Vgs (V) 0 = -0.1
Vgs (V) 1 = -0.5

[Options]
Reverse = False
Average = True
gm_method = poly
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(rigConfig))
	require.NoError(t, err)

	assert.Equal(t, 4000.0, c.Width)
	assert.Equal(t, 10.0, c.Length)
	assert.Equal(t, 100.0, c.Thickness)
	assert.Equal(t, -0.6, c.Vds)
	assert.Equal(t, 30000.0, c.TransferPreread)
	assert.Equal(t, []float64{-0.1, -0.5}, c.Vgs)

	require.NotNil(t, c.Options.Reverse)
	assert.False(t, *c.Options.Reverse)
	require.NotNil(t, c.Options.Average)
	assert.True(t, *c.Options.Average)
	assert.Nil(t, c.Options.VLow)
	assert.Equal(t, "poly", c.Options.GmMethod)

	p := c.Params()
	assert.InDelta(t, 100e-9, p.Thickness, 1e-18)
	assert.InDelta(t, 4000*100e-9/10, p.WdL(), 1e-15)
}

func TestParse_CaseInsensitive(t *testing.T) {
	c, err := Parse([]byte("[dimensions]\nwidth (UM) = 50\nlength (um) = 5\n"))
	require.NoError(t, err)
	assert.Equal(t, 50.0, c.Width)
	assert.Equal(t, 5.0, c.Length)
}

func TestParse_BadValue(t *testing.T) {
	_, err := Parse([]byte("[Dimensions]\nWidth (um) = wide\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("[Options]\nReverse = maybe\n"))
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	c := Default()
	avg := true
	c.Options.Average = &avg
	c.Options.GmMethod = "raw"
	require.NoError(t, c.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestUpdate(t *testing.T) {
	c := Default()
	c.OutputPreread = 1
	c.Update(device.Observation{Width: 100, Vds: -0.4, HasVds: true, Vgs: []float64{0, -0.2}})

	assert.Equal(t, 100.0, c.Width)
	assert.Equal(t, 20.0, c.Length)
	assert.Equal(t, -0.4, c.Vds)
	assert.Equal(t, 500.0, c.OutputPreread)
	assert.Equal(t, []float64{0, -0.2}, c.Vgs)

	c.Update(device.Observation{})
	assert.Equal(t, -0.4, c.Vds)
	assert.Empty(t, c.Vgs)
}

func TestOptions_Apply(t *testing.T) {
	c, err := Parse([]byte(rigConfig))
	require.NoError(t, err)

	opts, err := c.Options.Apply(device.DefaultOptions())
	require.NoError(t, err)
	assert.False(t, opts.Reverse)
	assert.True(t, opts.Average)
	assert.False(t, opts.VLow)
	assert.Equal(t, oect.GmPolynomial, opts.GmMethod)
	assert.Equal(t, oect.DefaultPeakWidth, opts.PeakWidth)

	_, err = Options{GmMethod: "spline"}.Apply(device.DefaultOptions())
	assert.Error(t, err)

	untouched, err := Options{}.Apply(device.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, device.DefaultOptions(), untouched)
}
