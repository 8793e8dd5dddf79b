package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/RMahshie/oect/internal/device"
	"github.com/RMahshie/oect/internal/devicecfg"
	"github.com/RMahshie/oect/internal/ingest"
	"github.com/RMahshie/oect/internal/plotting"
	"github.com/RMahshie/oect/internal/processing"
	"github.com/RMahshie/oect/pkg/models"
)

var (
	gmMethod        string
	noReverse       bool
	average         bool
	vLow            bool
	peakWidth       int
	outputJSON      bool
	plotPath        string
	overwriteConfig bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <folder>",
	Short: "Extract threshold voltages from a device folder",
	Long: `Load every transfer and output curve file in the folder, compute
transconductance and fit the threshold voltage of each transfer curve.

Options given on the command line override the [Options] section of the
folder's config.cfg. A folder without a config file gets one generated from
the curve metadata.

Examples:
  oect analyze data/chip4_dev2
  oect analyze --average --gm-method poly data/chip4_dev2
  oect analyze --json --plot vt.png data/chip4_dev2`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&gmMethod, "gm-method", "m", "",
		"transconductance method: smoothed (sg), raw or polynomial (poly)")
	analyzeCmd.Flags().BoolVar(&noReverse, "no-reverse", false,
		"ignore the reverse leg of each sweep")
	analyzeCmd.Flags().BoolVar(&average, "average", false,
		"average all transfer curves before fitting")
	analyzeCmd.Flags().BoolVar(&vLow, "v-low", false,
		"cut transfer curves at the low-voltage inversion")
	analyzeCmd.Flags().IntVar(&peakWidth, "peak-width", 0,
		"widest wavelet used to find the subthreshold transition")
	analyzeCmd.Flags().BoolVar(&outputJSON, "json", false,
		"print the full results as JSON")
	analyzeCmd.Flags().StringVar(&plotPath, "plot", "",
		"write a PNG of the threshold fits to this file")
	analyzeCmd.Flags().BoolVar(&overwriteConfig, "overwrite-config", false,
		"rewrite config.cfg with the dimensions and biases found in the data")
}

// requestOptions collects the flags that were set explicitly.
func requestOptions(cmd *cobra.Command) models.AnalysisOptions {
	var req models.AnalysisOptions
	flags := cmd.Flags()
	if flags.Changed("gm-method") {
		req.GmMethod = gmMethod
	}
	if flags.Changed("no-reverse") {
		reverse := !noReverse
		req.Reverse = &reverse
	}
	if flags.Changed("average") {
		req.Average = &average
	}
	if flags.Changed("v-low") {
		req.VLow = &vLow
	}
	if flags.Changed("peak-width") {
		req.PeakWidth = peakWidth
	}
	return req
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	dir := args[0]

	folder, err := ingest.LoadFolder(dir)
	if err != nil {
		return err
	}

	var cfg *devicecfg.Config
	if folder.ConfigPath != "" {
		if cfg, err = devicecfg.Load(folder.ConfigPath); err != nil {
			return err
		}
	}

	opts, err := processing.ResolveOptions(device.DefaultOptions(), cfg, requestOptions(cmd))
	if err != nil {
		return err
	}

	report, err := processing.Analyze(folder.Curves, folder.Errors, cfg, opts)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", dir, err)
	}

	if report.Generated || overwriteConfig {
		path := folder.ConfigPath
		if path == "" {
			path = filepath.Join(dir, devicecfg.FileName)
		}
		if err := report.Config.Save(path); err != nil {
			return err
		}
		log.Info().Str("path", path).Bool("generated", report.Generated).Msg("Wrote device config")
	}

	if plotPath != "" {
		if err := writePlot(plotPath, report.Results); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report.Results)
	}
	return printSummary(out, dir, report.Results)
}

func writePlot(path string, r models.DeviceResults) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plot: %w", err)
	}
	if err := plotting.Render(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printSummary(w io.Writer, dir string, r models.DeviceResults) error {
	fmt.Fprintf(w, "Device:    %s\n", dir)
	fmt.Fprintf(w, "Curves:    %d transfer, %d output (%d files)\n", r.NumTransfers, r.NumOutputs, r.Processed)
	fmt.Fprintf(w, "Geometry:  W=%g um  L=%g um  d=%g m  WdL=%.4g m\n", r.Params.Width, r.Params.Length, r.Params.Thickness, r.WdL)
	if r.Quadrant != "" {
		fmt.Fprintf(w, "Quadrant:  %s\n", r.Quadrant)
	}
	if r.Vt != nil {
		fmt.Fprintf(w, "Mean Vt:   %.4f V\n", *r.Vt)
	}
	if r.VgVt != nil {
		fmt.Fprintf(w, "Mean VgVt: %.4f V\n", *r.VgVt)
	}
	fmt.Fprintln(w)

	peaks := make(map[string]models.PeakGm, len(r.PeakGms))
	for _, p := range r.PeakGms {
		peaks[p.Key] = p
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CURVE\tVT (V)\t|VG-VT| (V)\tPEAK GM (S)\tAT (V)")
	for _, t := range r.Thresholds {
		line := fmt.Sprintf("%s\t%.4f\t%.4f", t.Key, t.Vt, t.VgVt)
		if p, ok := peaks[t.Key]; ok {
			line += fmt.Sprintf("\t%.4g\t%.3f", p.Gm, p.Voltage)
		} else {
			line += "\t-\t-"
		}
		fmt.Fprintln(tw, line)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, f := range r.Failures {
		name := f.Key
		if name == "" {
			name = f.File
		}
		fmt.Fprintf(w, "skipped %s (%s): %s\n", name, f.Stage, f.Error)
	}
	return nil
}
