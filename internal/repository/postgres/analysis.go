package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/RMahshie/oect/internal/repository"
	"github.com/RMahshie/oect/pkg/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schema string

// Migrate creates the analysis tables when they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// PostgresAnalysisRepository implements AnalysisRepository for PostgreSQL
type PostgresAnalysisRepository struct {
	db *sql.DB
}

// NewPostgresAnalysisRepository creates a new PostgreSQL analysis repository
func NewPostgresAnalysisRepository(db *sql.DB) repository.AnalysisRepository {
	return &PostgresAnalysisRepository{db: db}
}

const analysisColumns = `id, session_id, device_name, status, progress, data_prefix, files, options,
	error_message, created_at, updated_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*models.Analysis, error) {
	var analysis models.Analysis
	var files pq.StringArray
	var options []byte
	var errorMsg sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&analysis.ID,
		&analysis.SessionID,
		&analysis.DeviceName,
		&analysis.Status,
		&analysis.Progress,
		&analysis.DataPrefix,
		&files,
		&options,
		&errorMsg,
		&analysis.CreatedAt,
		&analysis.UpdatedAt,
		&completedAt)
	if err != nil {
		return nil, err
	}

	analysis.Files = []string(files)
	if len(options) > 0 {
		if err := json.Unmarshal(options, &analysis.Options); err != nil {
			return nil, fmt.Errorf("failed to unmarshal options: %w", err)
		}
	}
	if errorMsg.Valid {
		analysis.ErrorMsg = &errorMsg.String
	}
	if completedAt.Valid {
		analysis.CompletedAt = &completedAt.Time
	}
	return &analysis, nil
}

// Create inserts a new analysis record. A missing ID or timestamp is filled in.
func (r *PostgresAnalysisRepository) Create(ctx context.Context, analysis *models.Analysis) error {
	if analysis.ID == "" {
		analysis.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if analysis.CreatedAt.IsZero() {
		analysis.CreatedAt = now
	}
	if analysis.UpdatedAt.IsZero() {
		analysis.UpdatedAt = now
	}
	if analysis.Status == "" {
		analysis.Status = models.StatusPending
	}

	options, err := json.Marshal(analysis.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}

	query := `
		INSERT INTO analyses (id, session_id, device_name, status, progress, data_prefix, files, options, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.db.ExecContext(ctx, query,
		analysis.ID,
		analysis.SessionID,
		analysis.DeviceName,
		analysis.Status,
		analysis.Progress,
		analysis.DataPrefix,
		pq.StringArray(nonNil(analysis.Files)),
		string(options),
		analysis.CreatedAt,
		analysis.UpdatedAt)

	return err
}

// GetByID retrieves an analysis by ID
func (r *PostgresAnalysisRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE id = $1`

	analysis, err := scanAnalysis(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return analysis, err
}

// GetBySessionID retrieves analyses by session ID, newest first
func (r *PostgresAnalysisRepository) GetBySessionID(ctx context.Context, sessionID string) ([]*models.Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE session_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []*models.Analysis
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, analysis)
	}
	return analyses, rows.Err()
}

// UpdateStatus updates the status and progress of an analysis
func (r *PostgresAnalysisRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress int) error {
	query := `
		UPDATE analyses
		SET status = $1, progress = $2, updated_at = NOW(),
		    completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END
		WHERE id = $3`

	res, err := r.db.ExecContext(ctx, query, status, progress, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// UpdateError marks the analysis failed with errorMsg
func (r *PostgresAnalysisRepository) UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error {
	query := `
		UPDATE analyses
		SET status = 'failed', error_message = $1, updated_at = NOW()
		WHERE id = $2`

	res, err := r.db.ExecContext(ctx, query, errorMsg, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

// StoreResults stores analysis results, replacing earlier results of the
// same analysis
func (r *PostgresAnalysisRepository) StoreResults(ctx context.Context, results *models.AnalysisResults) error {
	if results.ID == "" {
		results.ID = uuid.New().String()
	}
	if results.CreatedAt.IsZero() {
		results.CreatedAt = time.Now().UTC()
	}

	var device []byte
	if results.Device != nil {
		var err error
		device, err = json.Marshal(results.Device)
		if err != nil {
			return fmt.Errorf("failed to marshal device results: %w", err)
		}
	}

	query := `
		INSERT INTO analysis_results (id, analysis_id, quadrant, vt, vts, vg_vts, wdl, device, plot_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (analysis_id) DO UPDATE
		SET quadrant = EXCLUDED.quadrant, vt = EXCLUDED.vt, vts = EXCLUDED.vts, vg_vts = EXCLUDED.vg_vts,
		    wdl = EXCLUDED.wdl, device = EXCLUDED.device, plot_key = EXCLUDED.plot_key`

	_, err := r.db.ExecContext(ctx, query,
		results.ID,
		results.AnalysisID,
		results.Quadrant,
		results.Vt,
		pq.Float64Array(nonNil(results.Vts)),
		pq.Float64Array(nonNil(results.VgVts)),
		results.WdL,
		nullableJSON(device),
		results.PlotKey,
		results.CreatedAt)

	return err
}

// GetResults retrieves analysis results
func (r *PostgresAnalysisRepository) GetResults(ctx context.Context, analysisID uuid.UUID) (*models.AnalysisResults, error) {
	query := `
		SELECT id, analysis_id, quadrant, vt, vts, vg_vts, wdl, device, plot_key, created_at
		FROM analysis_results
		WHERE analysis_id = $1`

	var results models.AnalysisResults
	var vt sql.NullFloat64
	var vts, vgVts pq.Float64Array
	var device []byte
	var plotKey sql.NullString

	err := r.db.QueryRowContext(ctx, query, analysisID).Scan(
		&results.ID,
		&results.AnalysisID,
		&results.Quadrant,
		&vt,
		&vts,
		&vgVts,
		&results.WdL,
		&device,
		&plotKey,
		&results.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	results.Vts = []float64(vts)
	results.VgVts = []float64(vgVts)
	if vt.Valid {
		results.Vt = &vt.Float64
	}
	if plotKey.Valid {
		results.PlotKey = &plotKey.String
	}
	if len(device) > 0 {
		var d models.DeviceResults
		if err := json.Unmarshal(device, &d); err != nil {
			return nil, fmt.Errorf("failed to unmarshal device results: %w", err)
		}
		results.Device = &d
	}

	return &results, nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// nonNil keeps NOT NULL array columns from receiving NULL.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
