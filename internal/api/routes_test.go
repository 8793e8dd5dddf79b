package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/RMahshie/oect/internal/repository"
	"github.com/RMahshie/oect/pkg/models"
)

// stubRepo satisfies repository.AnalysisRepository with nothing stored.
type stubRepo struct{}

func (stubRepo) Create(context.Context, *models.Analysis) error { return nil }
func (stubRepo) GetByID(context.Context, uuid.UUID) (*models.Analysis, error) {
	return nil, repository.ErrNotFound
}
func (stubRepo) GetBySessionID(context.Context, string) ([]*models.Analysis, error) {
	return nil, nil
}
func (stubRepo) UpdateStatus(context.Context, uuid.UUID, string, int) error { return nil }
func (stubRepo) UpdateError(context.Context, uuid.UUID, string) error       { return nil }
func (stubRepo) StoreResults(context.Context, *models.AnalysisResults) error {
	return nil
}
func (stubRepo) GetResults(context.Context, uuid.UUID) (*models.AnalysisResults, error) {
	return nil, repository.ErrNotFound
}

func TestRegisterRoutes(t *testing.T) {
	_, api := humatest.New(t)
	RegisterRoutes(api, nil, stubRepo{}, nil)

	resp := api.Get("/api/analyses/not-a-uuid/status")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = api.Get("/api/analyses/" + uuid.NewString() + "/results")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = api.Get("/api/sessions/test-session-123/analyses")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"analyses":[]`)

	// request validation rejects bodies without files before the handler runs
	resp = api.Post("/api/analyses", map[string]any{"session_id": "test-session-123"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = api.Post("/api/analyses", map[string]any{
		"session_id": "test-session-123",
		"files":      []map[string]any{{"name": "../transfer.txt", "size": 10}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}
