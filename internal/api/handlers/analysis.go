package handlers

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/oect/internal/ingest"
	"github.com/RMahshie/oect/internal/processing"
	"github.com/RMahshie/oect/internal/repository"
	"github.com/RMahshie/oect/internal/storage"
	"github.com/RMahshie/oect/pkg/models"
	"github.com/RMahshie/oect/pkg/oect"
)

// maxUploadBytes caps the combined size of the files of one analysis.
const maxUploadBytes = 50 * 1024 * 1024

// AnalysisHandler handles analysis-related HTTP requests
type AnalysisHandler struct {
	repo          repository.AnalysisRepository
	store         storage.ObjectStore
	processingSvc processing.ProcessingService
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(repo repository.AnalysisRepository, store storage.ObjectStore, processingSvc processing.ProcessingService) *AnalysisHandler {
	return &AnalysisHandler{
		repo:          repo,
		store:         store,
		processingSvc: processingSvc,
	}
}

// CreateAnalysis creates a new device analysis and returns one upload URL
// per file
func (h *AnalysisHandler) CreateAnalysis(ctx context.Context, req *models.CreateAnalysisRequest) (*models.CreateAnalysisResponse, error) {
	body := req.Body
	log.Info().Int("files", len(body.Files)).Str("device", body.DeviceName).Msg("Creating new analysis")

	if err := validateFiles(body.Files); err != nil {
		return nil, huma.Error400BadRequest(err.Error(), err)
	}
	if body.Options.GmMethod != "" {
		if _, err := oect.ParseGmMethod(body.Options.GmMethod); err != nil {
			return nil, huma.Error400BadRequest("Unknown transconductance method.", err)
		}
	}

	analysisID := uuid.New()
	prefix := storage.DevicePrefix(analysisID.String())

	uploads := make([]models.UploadTarget, 0, len(body.Files))
	names := make([]string, 0, len(body.Files))
	for _, f := range body.Files {
		key := storage.DeviceFileKey(analysisID.String(), f.Name)
		uploadURL, err := h.store.GenerateUploadURL(ctx, key, storage.ContentTypeFor(f.Name))
		if err != nil {
			if strings.Contains(err.Error(), "invalid content type") {
				return nil, huma.Error400BadRequest("File format not supported.", err)
			}
			return nil, huma.Error400BadRequest("Failed to prepare upload. Please try again.", err)
		}
		uploads = append(uploads, models.UploadTarget{Name: f.Name, Key: key, UploadURL: uploadURL})
		names = append(names, f.Name)
	}

	now := time.Now()
	analysis := &models.Analysis{
		ID:         analysisID.String(),
		SessionID:  body.SessionID,
		DeviceName: body.DeviceName,
		Status:     models.StatusPending,
		Progress:   0,
		DataPrefix: prefix,
		Files:      names,
		Options:    body.Options,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.repo.Create(ctx, analysis); err != nil {
		return nil, huma.Error500InternalServerError("Failed to create analysis", err)
	}

	expiresIn := int(storage.UploadURLExpiry().Seconds())
	log.Info().Str("analysisID", analysis.ID).Int("uploads", len(uploads)).Int("expiresIn", expiresIn).Msg("Analysis created, returning upload URLs")
	return &models.CreateAnalysisResponse{
		Body: models.CreateAnalysisResponseBody{
			ID:        analysis.ID,
			Uploads:   uploads,
			ExpiresIn: expiresIn,
		},
	}, nil
}

// validateFiles requires at least one transfer or output curve, unique names
// and a bounded total size.
func validateFiles(files []models.FileUpload) error {
	seen := make(map[string]bool, len(files))
	var total int64
	curves := 0
	for _, f := range files {
		name := path.Base(f.Name)
		if seen[name] {
			return fmt.Errorf("Duplicate file %s.", name)
		}
		seen[name] = true
		total += f.Size
		if strings.EqualFold(path.Ext(name), ".txt") && ingest.Classify(name) != ingest.KindUnknown {
			curves++
		}
	}
	if curves == 0 {
		return errors.New("At least one transfer or output curve file is required.")
	}
	if total > maxUploadBytes {
		return errors.New("Upload too large. Please split the device into smaller analyses.")
	}
	return nil
}

// GetAnalysisStatus returns the current status of an analysis
func (h *AnalysisHandler) GetAnalysisStatus(ctx context.Context, req *models.GetAnalysisStatusRequest) (*models.GetAnalysisStatusResponse, error) {
	analysisID, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid analysis ID", err)
	}

	analysis, err := h.repo.GetByID(ctx, analysisID)
	if err != nil {
		return nil, notFoundOr500("Analysis not found", err)
	}

	var resultsID *string
	if analysis.Status == models.StatusCompleted {
		results, err := h.repo.GetResults(ctx, analysisID)
		if err == nil && results != nil {
			resultsID = &results.ID
		}
	}

	log.Debug().Str("analysisID", analysis.ID).Str("status", analysis.Status).Int("progress", analysis.Progress).Msg("Returning analysis status")
	return &models.GetAnalysisStatusResponse{
		Body: models.GetAnalysisStatusResponseBody{
			ID:        analysis.ID,
			Status:    analysis.Status,
			Progress:  analysis.Progress,
			Message:   h.generateStatusMessage(analysis.Status, analysis.Progress),
			Error:     analysis.ErrorMsg,
			ResultsID: resultsID,
		},
	}, nil
}

// GetAnalysisResults returns the device characterization
func (h *AnalysisHandler) GetAnalysisResults(ctx context.Context, req *models.GetAnalysisResultsRequest) (*models.GetAnalysisResultsResponse, error) {
	analysisID, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid analysis ID", err)
	}

	analysis, err := h.repo.GetByID(ctx, analysisID)
	if err != nil {
		return nil, notFoundOr500("Analysis not found", err)
	}

	if analysis.Status != models.StatusCompleted {
		return nil, huma.Error409Conflict("Analysis not yet completed",
			fmt.Errorf("analysis status is %s", analysis.Status))
	}

	results, err := h.repo.GetResults(ctx, analysisID)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to get results", err)
	}

	var plotURL *string
	if results.PlotKey != nil {
		u, err := h.store.GenerateDownloadURL(ctx, *results.PlotKey)
		if err != nil {
			log.Warn().Err(err).Str("analysisID", analysis.ID).Msg("Failed to sign plot URL")
		} else {
			plotURL = &u
		}
	}

	return &models.GetAnalysisResultsResponse{
		Body: models.GetAnalysisResultsResponseBody{
			ID:         results.ID,
			AnalysisID: results.AnalysisID,
			Quadrant:   results.Quadrant,
			Vt:         results.Vt,
			Vts:        results.Vts,
			VgVts:      results.VgVts,
			WdL:        results.WdL,
			Device:     results.Device,
			PlotURL:    plotURL,
			CreatedAt:  results.CreatedAt,
		},
	}, nil
}

// StartProcessing starts processing the uploaded files
func (h *AnalysisHandler) StartProcessing(ctx context.Context, req *models.StartProcessingRequest) (*models.StartProcessingResponse, error) {
	log.Info().Str("analysisID", req.ID).Msg("Processing start request received")
	analysisID, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid analysis ID", err)
	}

	analysis, err := h.repo.GetByID(ctx, analysisID)
	if err != nil {
		return nil, notFoundOr500("Analysis not found", err)
	}
	if analysis.Status == models.StatusProcessing {
		return nil, huma.Error409Conflict("Analysis is already processing")
	}

	// Start processing in background (don't wait for completion)
	go func() {
		err := h.processingSvc.ProcessAnalysis(context.Background(), analysisID)
		if err != nil {
			log.Error().Err(err).Str("analysisID", analysisID.String()).Msg("Processing failed")
			h.repo.UpdateError(context.Background(), analysisID, fmt.Sprintf("Processing failed: %v", err))
		}
	}()

	resp := &models.StartProcessingResponse{}
	resp.Body.Message = "Processing started successfully"
	return resp, nil
}

// ListSessionAnalyses returns the analyses of a session, newest first
func (h *AnalysisHandler) ListSessionAnalyses(ctx context.Context, req *models.ListSessionAnalysesRequest) (*models.ListSessionAnalysesResponse, error) {
	analyses, err := h.repo.GetBySessionID(ctx, req.SessionID)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list analyses", err)
	}

	resp := &models.ListSessionAnalysesResponse{}
	resp.Body.Analyses = make([]models.AnalysisSummary, 0, len(analyses))
	for _, a := range analyses {
		resp.Body.Analyses = append(resp.Body.Analyses, models.AnalysisSummary{
			ID:         a.ID,
			DeviceName: a.DeviceName,
			Status:     a.Status,
			Progress:   a.Progress,
			Files:      a.Files,
			CreatedAt:  a.CreatedAt,
		})
	}
	return resp, nil
}

func notFoundOr500(msg string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return huma.Error404NotFound(msg, err)
	}
	return huma.Error500InternalServerError("Failed to load analysis", err)
}

// generateStatusMessage creates a human-readable status message
func (h *AnalysisHandler) generateStatusMessage(status string, progress int) string {
	switch status {
	case models.StatusPending:
		return "Waiting for device files..."
	case models.StatusProcessing:
		if progress < 20 {
			return "Starting analysis..."
		} else if progress < 50 {
			return "Downloading device files..."
		} else if progress < 80 {
			return "Extracting transconductance and threshold voltage..."
		} else {
			return "Finalizing results..."
		}
	case models.StatusCompleted:
		return "Analysis complete!"
	case models.StatusFailed:
		return "Analysis failed. Check the uploaded files and try again."
	default:
		return "Unknown status"
	}
}
