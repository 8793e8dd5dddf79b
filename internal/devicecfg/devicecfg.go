// Package devicecfg reads and writes the per-device config.cfg file that
// sits next to the curve files.
package devicecfg

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/ini.v1"

	"github.com/RMahshie/oect/internal/device"
	"github.com/RMahshie/oect/pkg/models"
	"github.com/RMahshie/oect/pkg/oect"
)

// FileName is the name given to generated config files.
const FileName = "config.cfg"

const (
	secDimensions = "Dimensions"
	secTransfer   = "Transfer"
	secOutput     = "Output"
	secOptions    = "Options"

	keyWidth     = "Width (um)"
	keyLength    = "Length (um)"
	keyThickness = "Thickness (nm)"
	keyPreread   = "Preread (ms)"
	keyFirstBias = "First Bias (ms)"
	keyVds       = "Vds (V)"
	keyOutputVgs = "Output Vgs"
	keyVgsPrefix = "Vgs (V) "

	keyReverse   = "Reverse"
	keyAverage   = "Average"
	keyGmMethod  = "gm_method"
	keyVLow      = "V_low"
	keyPeakWidth = "peak_width"
)

// Options holds the [Options] section. Nil and empty fields were not set.
type Options struct {
	Reverse   *bool
	Average   *bool
	VLow      *bool
	GmMethod  string
	PeakWidth int
}

// Config mirrors config.cfg.
type Config struct {
	Width     float64 // um
	Length    float64 // um
	Thickness float64 // nm, zero when not given

	TransferPreread   float64 // ms
	TransferFirstBias float64 // ms
	Vds               float64 // V

	OutputPreread   float64 // ms
	OutputFirstBias float64 // ms
	Vgs             []float64

	Options Options
}

// Default is the config generated for a folder that has none.
func Default() *Config {
	return &Config{
		Width:             2000,
		Length:            20,
		TransferPreread:   30000,
		TransferFirstBias: 120000,
		Vds:               -0.6,
		OutputPreread:     500,
		OutputFirstBias:   200,
		Vgs:               []float64{-0.1, -0.3, -0.5, -0.9},
	}
}

// Load reads a config file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read device config: %w", err)
	}
	return Parse(data)
}

// Parse reads config content. Section and key names match case-insensitively.
// Absent keys keep their zero value.
func Parse(data []byte) (*Config, error) {
	f, err := ini.LoadSources(ini.LoadOptions{Insensitive: true}, data)
	if err != nil {
		return nil, fmt.Errorf("parse device config: %w", err)
	}

	c := &Config{}
	var perr error
	float := func(sec, key string, dst *float64) {
		s, err := f.GetSection(sec)
		if err != nil {
			return
		}
		k, err := s.GetKey(key)
		if err != nil {
			return
		}
		v, err := k.Float64()
		if err != nil && perr == nil {
			perr = fmt.Errorf("[%s] %s: %w", sec, key, err)
			return
		}
		*dst = v
	}

	float(secDimensions, keyWidth, &c.Width)
	float(secDimensions, keyLength, &c.Length)
	float(secDimensions, keyThickness, &c.Thickness)
	float(secTransfer, keyPreread, &c.TransferPreread)
	float(secTransfer, keyFirstBias, &c.TransferFirstBias)
	float(secTransfer, keyVds, &c.Vds)
	float(secOutput, keyPreread, &c.OutputPreread)
	float(secOutput, keyFirstBias, &c.OutputFirstBias)

	var count float64
	float(secOutput, keyOutputVgs, &count)
	for i := 0; i < int(count); i++ {
		var v float64
		float(secOutput, keyVgsPrefix+strconv.Itoa(i), &v)
		c.Vgs = append(c.Vgs, v)
	}

	if s, err := f.GetSection(secOptions); err == nil {
		boolean := func(key string) *bool {
			k, err := s.GetKey(key)
			if err != nil {
				return nil
			}
			v, err := k.Bool()
			if err != nil {
				if perr == nil {
					perr = fmt.Errorf("[%s] %s: %w", secOptions, key, err)
				}
				return nil
			}
			return &v
		}
		c.Options.Reverse = boolean(keyReverse)
		c.Options.Average = boolean(keyAverage)
		c.Options.VLow = boolean(keyVLow)
		if k, err := s.GetKey(keyGmMethod); err == nil {
			c.Options.GmMethod = k.String()
		}
		if k, err := s.GetKey(keyPeakWidth); err == nil {
			w, err := k.Int()
			if err != nil && perr == nil {
				perr = fmt.Errorf("[%s] %s: %w", secOptions, keyPeakWidth, err)
			}
			c.Options.PeakWidth = w
		}
	}

	if perr != nil {
		return nil, perr
	}
	return c, nil
}

// Apply layers the options set in the file over base.
func (o Options) Apply(base device.Options) (device.Options, error) {
	if o.Reverse != nil {
		base.Reverse = *o.Reverse
	}
	if o.Average != nil {
		base.Average = *o.Average
	}
	if o.VLow != nil {
		base.VLow = *o.VLow
	}
	if o.GmMethod != "" {
		m, err := oect.ParseGmMethod(o.GmMethod)
		if err != nil {
			return base, fmt.Errorf("[%s] %s: %w", secOptions, keyGmMethod, err)
		}
		base.GmMethod = m
	}
	if o.PeakWidth > 0 {
		base.PeakWidth = o.PeakWidth
	}
	return base, nil
}

// Params returns the device geometry, normalized to metres for thickness.
func (c *Config) Params() models.DeviceParams {
	return models.DeviceParams{Width: c.Width, Length: c.Length, Thickness: c.Thickness}.Normalize()
}

// Update overwrites geometry, drain bias and the output gate voltages with
// what was measured. The output timing is reset to the rig defaults.
func (c *Config) Update(o device.Observation) {
	if o.Width > 0 {
		c.Width = o.Width
	}
	if o.Length > 0 {
		c.Length = o.Length
	}
	if o.HasVds {
		c.Vds = o.Vds
	}
	c.OutputPreread = 500
	c.OutputFirstBias = 200
	c.Vgs = append([]float64(nil), o.Vgs...)
}

// WriteTo writes the config in INI form.
func (c *Config) WriteTo(w io.Writer) (int64, error) {
	f := ini.Empty()
	num := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	set := func(sec, key, value string) {
		// NewKey only fails on empty names
		_, _ = f.Section(sec).NewKey(key, value)
	}

	set(secDimensions, keyWidth, num(c.Width))
	set(secDimensions, keyLength, num(c.Length))
	if c.Thickness > 0 {
		set(secDimensions, keyThickness, num(c.Thickness))
	}
	set(secTransfer, keyPreread, num(c.TransferPreread))
	set(secTransfer, keyFirstBias, num(c.TransferFirstBias))
	set(secTransfer, keyVds, num(c.Vds))
	set(secOutput, keyPreread, num(c.OutputPreread))
	set(secOutput, keyFirstBias, num(c.OutputFirstBias))
	set(secOutput, keyOutputVgs, strconv.Itoa(len(c.Vgs)))
	for i, v := range c.Vgs {
		set(secOutput, keyVgsPrefix+strconv.Itoa(i), num(v))
	}

	o := c.Options
	boolean := func(key string, v *bool) {
		if v != nil {
			set(secOptions, key, strconv.FormatBool(*v))
		}
	}
	boolean(keyReverse, o.Reverse)
	boolean(keyAverage, o.Average)
	boolean(keyVLow, o.VLow)
	if o.GmMethod != "" {
		set(secOptions, keyGmMethod, o.GmMethod)
	}
	if o.PeakWidth > 0 {
		set(secOptions, keyPeakWidth, strconv.Itoa(o.PeakWidth))
	}

	return f.WriteTo(w)
}

// Bytes renders the config.
func (c *Config) Bytes() []byte {
	var buf bytes.Buffer
	_, _ = c.WriteTo(&buf)
	return buf.Bytes()
}

// Save writes the config to path, replacing any existing file.
func (c *Config) Save(path string) error {
	if err := os.WriteFile(path, c.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write device config: %w", err)
	}
	return nil
}
