// Package ingest reads the tab-delimited curve files written by the
// measurement rig.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/RMahshie/oect/pkg/oect"
)

// Kind is the type of sweep a file holds.
type Kind int

const (
	KindUnknown Kind = iota
	// KindTransfer sweeps the gate at fixed drain voltage.
	KindTransfer
	// KindOutput sweeps the drain at fixed gate voltage.
	KindOutput
)

func (k Kind) String() string {
	switch k {
	case KindTransfer:
		return "transfer"
	case KindOutput:
		return "output"
	default:
		return "unknown"
	}
}

// Column headers
const (
	gateColumn    = "V_G"
	drainColumn   = "V_DS"
	currentColumn = "I_DS (A)"
)

// Classify decides the sweep type from the file name.
func Classify(name string) Kind {
	base := strings.ToLower(filepath.Base(name))
	switch {
	case strings.Contains(base, "transfer"):
		return KindTransfer
	case strings.Contains(base, "output"):
		return KindOutput
	default:
		return KindUnknown
	}
}

// Metadata holds the bias and geometry lines found in a curve file.
type Metadata struct {
	Vds    float64
	HasVds bool
	Vg     float64
	HasVg  bool
	Width  float64 // um, zero when absent
	Length float64 // um, zero when absent
}

// Curve is one parsed file.
type Curve struct {
	Name  string
	Kind  Kind
	Meta  Metadata
	Sweep oect.Sweep
}

// File is raw file content to be parsed.
type File struct {
	Name string
	Data []byte
}

// FileError ties a parse failure to its file.
type FileError struct {
	Name string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// ErrUnknownKind is returned for files that are neither transfer nor output
// curves.
var ErrUnknownKind = errors.New("file name does not identify a transfer or output curve")

// Parse reads one curve file. Rows whose voltage does not parse are dropped;
// metadata lines are picked up wherever they appear. The sweep's companion
// voltage is V_DS for transfer curves and V_G for output curves.
func Parse(name string, r io.Reader) (Curve, error) {
	kind := Classify(name)
	if kind == KindUnknown {
		return Curve{}, ErrUnknownKind
	}

	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	c := Curve{Name: name, Kind: kind}
	wantVoltage := gateColumn
	if kind == KindOutput {
		wantVoltage = drainColumn
	}

	vcol, icol := -1, -1
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Curve{}, fmt.Errorf("read %s: %w", name, err)
		}
		scanMetadata(strings.Join(rec, " "), &c.Meta)

		if vcol < 0 {
			vcol, icol = headerColumns(rec, wantVoltage)
			continue
		}
		if vcol >= len(rec) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[vcol]), 64)
		if err != nil {
			continue
		}
		i := math.NaN()
		if icol < len(rec) {
			if parsed, err := strconv.ParseFloat(strings.TrimSpace(rec[icol]), 64); err == nil {
				i = parsed
			}
		}
		c.Sweep.Voltage = append(c.Sweep.Voltage, v)
		c.Sweep.Current = append(c.Sweep.Current, i)
	}

	if vcol < 0 {
		return Curve{}, &oect.MalformedSweepError{Reason: fmt.Sprintf("no %s header with a current column", wantVoltage)}
	}
	switch {
	case kind == KindTransfer && c.Meta.HasVds:
		c.Sweep.Companion = c.Meta.Vds
	case kind == KindOutput && c.Meta.HasVg:
		c.Sweep.Companion = c.Meta.Vg
	}
	return c, nil
}

// ParseBytes is Parse over an in-memory file.
func ParseBytes(f File) (Curve, error) {
	return Parse(f.Name, bytes.NewReader(f.Data))
}

// headerColumns returns the voltage and current column indices when rec is
// the table header, or -1s otherwise.
func headerColumns(rec []string, voltage string) (int, int) {
	vcol, icol := -1, -1
	for j, h := range rec {
		h = strings.TrimSpace(h)
		switch {
		case h == voltage:
			vcol = j
		case h == currentColumn:
			icol = j
		case icol < 0 && strings.HasPrefix(h, "I_DS") && !strings.Contains(h, "Error"):
			icol = j
		}
	}
	if vcol < 0 || icol < 0 {
		return -1, -1
	}
	return vcol, icol
}

func scanMetadata(line string, m *Metadata) {
	last := func() (float64, bool) {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			return 0, false
		}
		v, err := strconv.ParseFloat(fields[len(fields)-1], 64)
		return v, err == nil
	}

	switch {
	case strings.Contains(line, "V_DS = "):
		if v, ok := last(); ok {
			m.Vds, m.HasVds = v, true
		}
	case strings.Contains(line, "V_G = "):
		if v, ok := last(); ok {
			m.Vg, m.HasVg = v, true
		}
	case strings.Contains(line, "Width/um"):
		if v, ok := last(); ok {
			m.Width = v
		}
	case strings.Contains(line, "Length/um"):
		if v, ok := last(); ok {
			m.Length = v
		}
	}
}
