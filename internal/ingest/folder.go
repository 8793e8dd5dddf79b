package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// ConfigExt is the extension of device config files.
const ConfigExt = ".cfg"

// SelectFiles picks the curve files and the device config out of a folder
// listing. Curve files are .txt files whose names do not mention "config",
// sorted by name; the config is the first .cfg file, or "" when there is none.
func SelectFiles(names []string) (curves []string, config string) {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	for _, name := range sorted {
		base := strings.ToLower(filepath.Base(name))
		switch {
		case strings.HasSuffix(base, ConfigExt):
			if config == "" {
				config = name
			}
		case strings.HasSuffix(base, ".txt") && !strings.Contains(base, "config"):
			curves = append(curves, name)
		}
	}
	return curves, config
}

// ParseAll parses files concurrently, one goroutine per file. Successfully
// parsed curves are returned in input order; files of unknown kind are
// skipped.
func ParseAll(files []File) ([]Curve, []*FileError) {
	type result struct {
		curve Curve
		err   error
	}
	results := make([]result, len(files))

	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(i int, f File) {
			defer wg.Done()
			c, err := ParseBytes(f)
			results[i] = result{curve: c, err: err}
		}(i, f)
	}
	wg.Wait()

	var curves []Curve
	var errs []*FileError
	for i, r := range results {
		switch {
		case r.err == ErrUnknownKind:
			log.Debug().Str("file", files[i].Name).Msg("Skipping file that is neither transfer nor output")
		case r.err != nil:
			log.Warn().Err(r.err).Str("file", files[i].Name).Msg("Failed to parse curve file")
			errs = append(errs, &FileError{Name: files[i].Name, Err: r.err})
		default:
			curves = append(curves, r.curve)
		}
	}
	return curves, errs
}

// Folder is the parsed content of one device folder.
type Folder struct {
	Dir        string
	ConfigPath string // empty when the folder has no config file
	Curves     []Curve
	Errors     []*FileError
}

// LoadFolder reads and parses every curve file in dir. A file that cannot be
// read is recorded in Errors next to the parse failures; only an unreadable
// folder is an error.
func LoadFolder(dir string) (*Folder, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read device folder: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}

	curveNames, config := SelectFiles(names)
	files := make([]File, 0, len(curveNames))
	var readErrs []*FileError
	for _, name := range curveNames {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn().Err(err).Str("file", name).Msg("Failed to read curve file")
			readErrs = append(readErrs, &FileError{Name: name, Err: err})
			continue
		}
		files = append(files, File{Name: name, Data: data})
	}

	folder := &Folder{Dir: dir}
	if config != "" {
		folder.ConfigPath = filepath.Join(dir, config)
	}
	var parseErrs []*FileError
	folder.Curves, parseErrs = ParseAll(files)
	folder.Errors = append(readErrs, parseErrs...)

	log.Info().
		Str("dir", dir).
		Int("files", len(files)).
		Int("curves", len(folder.Curves)).
		Int("errors", len(folder.Errors)).
		Bool("has_config", folder.ConfigPath != "").
		Msg("Loaded device folder")
	return folder, nil
}
