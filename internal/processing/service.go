package processing

import (
	"context"
	"fmt"
	"path"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/oect/internal/device"
	"github.com/RMahshie/oect/internal/devicecfg"
	"github.com/RMahshie/oect/internal/ingest"
	"github.com/RMahshie/oect/internal/plotting"
	"github.com/RMahshie/oect/internal/repository"
	"github.com/RMahshie/oect/internal/storage"
	"github.com/RMahshie/oect/pkg/models"
)

type ProcessingService interface {
	ProcessAnalysis(ctx context.Context, analysisID uuid.UUID) error
}

type processingService struct {
	store      storage.ObjectStore
	repository repository.AnalysisRepository
	defaults   device.Options
	plot       bool
}

func NewProcessingService(store storage.ObjectStore, repo repository.AnalysisRepository, defaults device.Options, plotResults bool) ProcessingService {
	return &processingService{
		store:      store,
		repository: repo,
		defaults:   defaults,
		plot:       plotResults,
	}
}

// ProcessAnalysis downloads the device files of an analysis, characterizes
// the device and stores the results. Problems with the uploaded data mark the
// analysis failed and return nil; repository errors are returned.
func (s *processingService) ProcessAnalysis(ctx context.Context, analysisID uuid.UUID) error {
	// Step 1: Update to processing status
	if err := s.repository.UpdateStatus(ctx, analysisID, models.StatusProcessing, 10); err != nil {
		return err
	}

	analysis, err := s.repository.GetByID(ctx, analysisID)
	if err != nil {
		return err
	}
	logger := log.With().Str("analysisID", analysis.ID).Logger()

	// Step 2: Find the uploaded files
	if err := s.repository.UpdateStatus(ctx, analysisID, models.StatusProcessing, 20); err != nil {
		return err
	}
	keys, err := s.store.ListKeys(ctx, analysis.DataPrefix)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list device files")
		return s.repository.UpdateError(ctx, analysisID, "Failed to list uploaded files")
	}

	byName := make(map[string]string, len(keys))
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		if storage.IsResultKey(key) {
			continue
		}
		name := path.Base(key)
		byName[name] = key
		names = append(names, name)
	}
	curveNames, cfgName := ingest.SelectFiles(names)
	if len(curveNames) == 0 {
		return s.repository.UpdateError(ctx, analysisID, "No curve files were uploaded")
	}

	// Step 3: Download
	if err := s.repository.UpdateStatus(ctx, analysisID, models.StatusProcessing, 35); err != nil {
		return err
	}
	files, fetchErrs := s.download(ctx, curveNames, byName)
	for _, e := range fetchErrs {
		logger.Warn().Err(e.Err).Str("file", e.Name).Msg("Failed to download curve file")
	}
	if len(files) == 0 {
		return s.repository.UpdateError(ctx, analysisID, "Failed to download device files")
	}

	var cfg *devicecfg.Config
	if cfgName != "" {
		data, err := s.store.DownloadFile(ctx, byName[cfgName])
		if err != nil {
			logger.Error().Err(err).Msg("Failed to download device config")
			return s.repository.UpdateError(ctx, analysisID, "Failed to download device config")
		}
		if cfg, err = devicecfg.Parse(data); err != nil {
			return s.repository.UpdateError(ctx, analysisID, fmt.Sprintf("Invalid device config: %v", err))
		}
	}

	opts, err := ResolveOptions(s.defaults, cfg, analysis.Options)
	if err != nil {
		return s.repository.UpdateError(ctx, analysisID, fmt.Sprintf("Invalid options: %v", err))
	}

	// Step 4: Characterize
	if err := s.repository.UpdateStatus(ctx, analysisID, models.StatusProcessing, 50); err != nil {
		return err
	}
	curves, parseErrs := ingest.ParseAll(files)
	report, err := Analyze(curves, append(fetchErrs, parseErrs...), cfg, opts)
	if err != nil {
		logger.Warn().Err(err).Msg("Device analysis failed")
		return s.repository.UpdateError(ctx, analysisID, fmt.Sprintf("Device analysis failed: %v", err))
	}

	// Step 5: Artifacts
	if err := s.repository.UpdateStatus(ctx, analysisID, models.StatusProcessing, 80); err != nil {
		return err
	}
	if report.Generated {
		key := analysis.DataPrefix + devicecfg.FileName
		if err := s.store.UploadFile(ctx, key, report.Config.Bytes(), storage.ContentTypeBinary); err != nil {
			logger.Warn().Err(err).Msg("Failed to write generated device config")
		}
	}

	var plotKey *string
	if s.plot && report.Results.NumTransfers > 0 {
		if key, err := s.uploadPlot(ctx, analysis.ID, report.Results); err != nil {
			logger.Warn().Err(err).Msg("Failed to render threshold plot")
		} else {
			plotKey = &key
		}
	}

	// Step 6: Store results
	if err := s.repository.UpdateStatus(ctx, analysisID, models.StatusProcessing, 90); err != nil {
		return err
	}
	r := report.Results
	results := &models.AnalysisResults{
		ID:         uuid.New().String(),
		AnalysisID: analysis.ID,
		Quadrant:   r.Quadrant,
		Vt:         r.Vt,
		Vts:        r.Vts(),
		VgVts:      r.VgVts(),
		WdL:        r.WdL,
		Device:     &r,
		PlotKey:    plotKey,
	}
	if err := s.repository.StoreResults(ctx, results); err != nil {
		return err
	}

	// Step 7: Mark complete
	if err := s.repository.UpdateStatus(ctx, analysisID, models.StatusCompleted, 100); err != nil {
		return err
	}

	logger.Info().
		Int("transfers", r.NumTransfers).
		Int("fitted", len(r.Thresholds)).
		Int("failures", len(r.Failures)).
		Msg("Analysis completed")
	return nil
}

// download fetches the named curve files concurrently, keeping their order.
// Files that fail to download are returned as errors and left out.
func (s *processingService) download(ctx context.Context, names []string, keys map[string]string) ([]ingest.File, []*ingest.FileError) {
	fetched := make([]ingest.File, len(names))
	errs := make([]error, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			data, err := s.store.DownloadFile(ctx, keys[name])
			if err != nil {
				errs[i] = fmt.Errorf("download: %w", err)
				return
			}
			fetched[i] = ingest.File{Name: name, Data: data}
		}(i, name)
	}
	wg.Wait()

	var files []ingest.File
	var failed []*ingest.FileError
	for i, err := range errs {
		if err != nil {
			failed = append(failed, &ingest.FileError{Name: names[i], Err: err})
			continue
		}
		files = append(files, fetched[i])
	}
	return files, failed
}

func (s *processingService) uploadPlot(ctx context.Context, analysisID string, r models.DeviceResults) (string, error) {
	data, err := plotting.PNG(r)
	if err != nil {
		return "", err
	}
	key := storage.PlotKey(analysisID)
	if err := s.store.UploadFile(ctx, key, data, storage.ContentTypePNG); err != nil {
		return "", err
	}
	return key, nil
}
