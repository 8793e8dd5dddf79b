package models

import (
	"time"
)

// Analysis lifecycle states
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Body struct {
		Status  string    `json:"status" example:"healthy" doc:"Service health status"`
		Version string    `json:"version" example:"1.0.0" doc:"API version"`
		Time    time.Time `json:"time" doc:"Current server time"`
	}
}

// FileUpload describes one curve file the client is about to upload
type FileUpload struct {
	Name string `json:"name" minLength:"5" maxLength:"200" pattern:"^[^/\\\\]+\\.(txt|cfg)$" doc:"File name, e.g. transfer_-0.6V.txt or config.cfg"`
	Size int64  `json:"size" minimum:"1" maximum:"10485760" doc:"File size in bytes"`
}

// AnalysisOptions are per-analysis processing options. Unset fields fall back
// to the device config file and then to the service defaults.
type AnalysisOptions struct {
	GmMethod  string `json:"gm_method,omitempty" enum:"smoothed,raw,polynomial,sg,poly" doc:"Transconductance method"`
	Reverse   *bool  `json:"reverse,omitempty" doc:"Process reverse sweep legs"`
	Average   *bool  `json:"average,omitempty" doc:"Average all transfer columns before fitting"`
	VLow      *bool  `json:"v_low,omitempty" doc:"Cut transfer curves at the low-voltage inversion"`
	PeakWidth int    `json:"peak_width,omitempty" minimum:"0" maximum:"100" doc:"Widest wavelet for the transition search"`
}

// CreateAnalysisRequestBody is the body of a create analysis request
type CreateAnalysisRequestBody struct {
	SessionID  string          `json:"session_id" minLength:"10" maxLength:"50" required:"true" doc:"Client session identifier"`
	DeviceName string          `json:"device_name" maxLength:"100" doc:"Human-readable device label"`
	Files      []FileUpload    `json:"files" minItems:"1" maxItems:"64" required:"true" doc:"Curve and config files to upload"`
	Options    AnalysisOptions `json:"options,omitempty"`
}

// CreateAnalysisRequest represents a request to create a new device analysis
type CreateAnalysisRequest struct {
	Body CreateAnalysisRequestBody
}

// UploadTarget is a pre-signed upload destination for one file
type UploadTarget struct {
	Name      string `json:"name" doc:"File name as requested"`
	Key       string `json:"key" doc:"Object key the file is stored under"`
	UploadURL string `json:"upload_url" doc:"Pre-signed URL for file upload"`
}

// CreateAnalysisResponseBody is the body of the create analysis response
type CreateAnalysisResponseBody struct {
	ID        string         `json:"id" doc:"Analysis unique identifier"`
	Uploads   []UploadTarget `json:"uploads" doc:"One upload URL per requested file"`
	ExpiresIn int            `json:"expires_in" doc:"URL expiration time in seconds"`
}

// CreateAnalysisResponse represents the response from creating an analysis
type CreateAnalysisResponse struct {
	Body CreateAnalysisResponseBody
}

// GetAnalysisStatusRequest represents a request to get analysis status
type GetAnalysisStatusRequest struct {
	ID string `path:"id" doc:"Analysis ID"`
}

// GetAnalysisStatusResponseBody is the body of the status response
type GetAnalysisStatusResponseBody struct {
	ID        string  `json:"id" doc:"Analysis ID"`
	Status    string  `json:"status" enum:"pending,processing,completed,failed" doc:"Analysis status"`
	Progress  int     `json:"progress" minimum:"0" maximum:"100" doc:"Analysis progress percentage"`
	Message   string  `json:"message,omitempty" doc:"Human-readable status message"`
	Error     *string `json:"error,omitempty" doc:"Failure reason when status is failed"`
	ResultsID *string `json:"results_id,omitempty" doc:"Results ID when analysis completes"`
}

// GetAnalysisStatusResponse represents the current status of an analysis
type GetAnalysisStatusResponse struct {
	Body GetAnalysisStatusResponseBody
}

// GetAnalysisResultsRequest represents a request to get analysis results
type GetAnalysisResultsRequest struct {
	ID string `path:"id" doc:"Analysis ID"`
}

// GetAnalysisResultsResponseBody is the body of the results response
type GetAnalysisResultsResponseBody struct {
	ID         string         `json:"id" doc:"Results ID"`
	AnalysisID string         `json:"analysis_id" doc:"Analysis ID"`
	Quadrant   string         `json:"quadrant,omitempty" enum:"I,III" doc:"Operating quadrant"`
	Vt         *float64       `json:"vt,omitempty" doc:"Mean threshold voltage in volts"`
	Vts        []float64      `json:"vts" doc:"Per-curve threshold voltages"`
	VgVts      []float64      `json:"vg_vts" doc:"Per-curve |V_peak_gm - Vt|"`
	WdL        float64        `json:"wdl" doc:"W*d/L"`
	Device     *DeviceResults `json:"device,omitempty" doc:"Full device characterization"`
	PlotURL    *string        `json:"plot_url,omitempty" doc:"Pre-signed URL of the threshold plot"`
	CreatedAt  time.Time      `json:"created_at" doc:"Results creation timestamp"`
}

// GetAnalysisResultsResponse represents the complete analysis results
type GetAnalysisResultsResponse struct {
	Body GetAnalysisResultsResponseBody
}

// StartProcessingRequest represents a request to start processing uploaded files
type StartProcessingRequest struct {
	ID string `path:"id" doc:"Analysis ID"`
}

// StartProcessingResponse represents the response from starting processing
type StartProcessingResponse struct {
	Body struct {
		Message string `json:"message" doc:"Confirmation message"`
	}
}

// ListSessionAnalysesRequest lists the analyses created by one session
type ListSessionAnalysesRequest struct {
	SessionID string `path:"session_id" minLength:"10" maxLength:"50" doc:"Client session identifier"`
}

// AnalysisSummary is one entry of a session listing
type AnalysisSummary struct {
	ID         string    `json:"id" doc:"Analysis ID"`
	DeviceName string    `json:"device_name,omitempty" doc:"Human-readable device label"`
	Status     string    `json:"status" enum:"pending,processing,completed,failed" doc:"Analysis status"`
	Progress   int       `json:"progress" doc:"Analysis progress percentage"`
	Files      []string  `json:"files" doc:"Uploaded file names"`
	CreatedAt  time.Time `json:"created_at" doc:"Analysis creation timestamp"`
}

// ListSessionAnalysesResponse holds the analyses of a session, newest first
type ListSessionAnalysesResponse struct {
	Body struct {
		Analyses []AnalysisSummary `json:"analyses"`
	}
}

// Analysis represents the core analysis entity (for internal use)
type Analysis struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"session_id"`
	DeviceName  string          `json:"device_name"`
	Status      string          `json:"status"`
	Progress    int             `json:"progress"`
	DataPrefix  string          `json:"data_prefix"` // object key prefix holding the device files
	Files       []string        `json:"files"`
	Options     AnalysisOptions `json:"options"`
	ErrorMsg    *string         `json:"error_message,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// AnalysisResults represents the stored analysis results
type AnalysisResults struct {
	ID         string         `json:"id"`
	AnalysisID string         `json:"analysis_id"`
	Quadrant   string         `json:"quadrant"`
	Vt         *float64       `json:"vt,omitempty"`
	Vts        []float64      `json:"vts"`
	VgVts      []float64      `json:"vg_vts"`
	WdL        float64        `json:"wdl"`
	Device     *DeviceResults `json:"device,omitempty"`
	PlotKey    *string        `json:"plot_key,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
