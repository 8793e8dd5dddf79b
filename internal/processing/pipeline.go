package processing

import (
	"fmt"

	"github.com/RMahshie/oect/internal/device"
	"github.com/RMahshie/oect/internal/devicecfg"
	"github.com/RMahshie/oect/internal/ingest"
	"github.com/RMahshie/oect/pkg/models"
	"github.com/RMahshie/oect/pkg/oect"
)

// ResolveOptions layers the options of the device config file and then the
// options set on the request over base.
func ResolveOptions(base device.Options, cfg *devicecfg.Config, req models.AnalysisOptions) (device.Options, error) {
	opts := base
	if cfg != nil {
		var err error
		if opts, err = cfg.Options.Apply(opts); err != nil {
			return base, err
		}
	}

	if req.GmMethod != "" {
		m, err := oect.ParseGmMethod(req.GmMethod)
		if err != nil {
			return base, err
		}
		opts.GmMethod = m
	}
	if req.Reverse != nil {
		opts.Reverse = *req.Reverse
	}
	if req.Average != nil {
		opts.Average = *req.Average
	}
	if req.VLow != nil {
		opts.VLow = *req.VLow
	}
	if req.PeakWidth > 0 {
		opts.PeakWidth = req.PeakWidth
	}
	return opts, nil
}

// Report is the outcome of analyzing one device.
type Report struct {
	Dataset *device.Dataset
	Results models.DeviceResults
	// Config carries the geometry and biases observed in the curve files.
	Config *devicecfg.Config
	// Generated is set when the folder had no config file.
	Generated bool
}

// Analyze runs the device pipeline over parsed curves. A nil cfg is replaced
// by the default config, with the geometry taken from the curve files.
func Analyze(curves []ingest.Curve, parseErrs []*ingest.FileError, cfg *devicecfg.Config, opts device.Options) (*Report, error) {
	report := &Report{Config: cfg}
	if cfg == nil {
		report.Config = devicecfg.Default()
		report.Generated = true
		for _, c := range curves {
			if c.Meta.Width > 0 {
				report.Config.Width = c.Meta.Width
			}
			if c.Meta.Length > 0 {
				report.Config.Length = c.Meta.Length
			}
		}
	}

	ds := device.New(report.Config.Params(), opts)
	if err := ds.Load(curves, parseErrs...); err != nil {
		return nil, fmt.Errorf("load curves: %w", err)
	}
	if err := ds.CalcGms(); err != nil {
		return nil, fmt.Errorf("transconductance: %w", err)
	}
	if err := ds.Thresh(); err != nil {
		return nil, fmt.Errorf("threshold: %w", err)
	}

	report.Config.Update(ds.Observation())
	report.Dataset = ds
	report.Results = ds.Results()
	return report, nil
}
