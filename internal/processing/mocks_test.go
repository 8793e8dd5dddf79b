package processing

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/RMahshie/oect/pkg/models"
)

// MockAnalysisRepository implements repository.AnalysisRepository for testing
type MockAnalysisRepository struct {
	mock.Mock
}

func (m *MockAnalysisRepository) Create(ctx context.Context, analysis *models.Analysis) error {
	args := m.Called(ctx, analysis)
	return args.Error(0)
}

func (m *MockAnalysisRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Analysis, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*models.Analysis)
	return a, args.Error(1)
}

func (m *MockAnalysisRepository) GetBySessionID(ctx context.Context, sessionID string) ([]*models.Analysis, error) {
	args := m.Called(ctx, sessionID)
	a, _ := args.Get(0).([]*models.Analysis)
	return a, args.Error(1)
}

func (m *MockAnalysisRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress int) error {
	args := m.Called(ctx, id, status, progress)
	return args.Error(0)
}

func (m *MockAnalysisRepository) UpdateError(ctx context.Context, id uuid.UUID, errorMsg string) error {
	args := m.Called(ctx, id, errorMsg)
	return args.Error(0)
}

func (m *MockAnalysisRepository) StoreResults(ctx context.Context, results *models.AnalysisResults) error {
	args := m.Called(ctx, results)
	return args.Error(0)
}

func (m *MockAnalysisRepository) GetResults(ctx context.Context, analysisID uuid.UUID) (*models.AnalysisResults, error) {
	args := m.Called(ctx, analysisID)
	r, _ := args.Get(0).(*models.AnalysisResults)
	return r, args.Error(1)
}

// MockObjectStore implements storage.ObjectStore for testing
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error) {
	args := m.Called(ctx, key, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockObjectStore) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockObjectStore) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockObjectStore) UploadFile(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

func (m *MockObjectStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	keys, _ := args.Get(0).([]string)
	return keys, args.Error(1)
}

func (m *MockObjectStore) DeleteFile(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
