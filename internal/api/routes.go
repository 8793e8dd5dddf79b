package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/RMahshie/oect/internal/api/handlers"
	"github.com/RMahshie/oect/internal/processing"
	"github.com/RMahshie/oect/internal/repository"
	"github.com/RMahshie/oect/internal/storage"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(api huma.API, store storage.ObjectStore, analysisRepo repository.AnalysisRepository, processingSvc processing.ProcessingService) {
	analysisHandler := handlers.NewAnalysisHandler(analysisRepo, store, processingSvc)

	huma.Register(api, huma.Operation{
		OperationID: "createAnalysis",
		Method:      http.MethodPost,
		Path:        "/api/analyses",
		Summary:     "Create a new device analysis",
		Description: "Creates an analysis record and returns one upload URL per curve or config file",
		Tags:        []string{"Analysis"},
	}, analysisHandler.CreateAnalysis)

	huma.Register(api, huma.Operation{
		OperationID: "getAnalysisStatus",
		Method:      http.MethodGet,
		Path:        "/api/analyses/{id}/status",
		Summary:     "Get analysis status",
		Description: "Returns the current status and progress of an analysis",
		Tags:        []string{"Analysis"},
	}, analysisHandler.GetAnalysisStatus)

	huma.Register(api, huma.Operation{
		OperationID: "getAnalysisResults",
		Method:      http.MethodGet,
		Path:        "/api/analyses/{id}/results",
		Summary:     "Get analysis results",
		Description: "Returns threshold voltages, transconductance peaks and the full device tables",
		Tags:        []string{"Analysis"},
	}, analysisHandler.GetAnalysisResults)

	huma.Register(api, huma.Operation{
		OperationID: "startProcessing",
		Method:      http.MethodPost,
		Path:        "/api/analyses/{id}/process",
		Summary:     "Start processing analysis",
		Description: "Starts characterizing the uploaded device files",
		Tags:        []string{"Analysis"},
	}, analysisHandler.StartProcessing)

	huma.Register(api, huma.Operation{
		OperationID: "listSessionAnalyses",
		Method:      http.MethodGet,
		Path:        "/api/sessions/{session_id}/analyses",
		Summary:     "List session analyses",
		Description: "Returns the analyses created by a session, newest first",
		Tags:        []string{"Analysis"},
	}, analysisHandler.ListSessionAnalyses)
}
