package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/oect/pkg/oect"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test-defaults")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, BackendS3, cfg.Storage.Backend)
	assert.Equal(t, oect.GmSmoothed, cfg.Processing.GmMethod)
	assert.Equal(t, oect.DefaultPeakWidth, cfg.Processing.PeakWidth)
	assert.True(t, cfg.Processing.PlotResults)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.Server.AllowedOrigins)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test-env")
	t.Setenv("PORT", "9090")
	t.Setenv("GM_METHOD", "poly")
	t.Setenv("PEAK_WIDTH", "20")
	t.Setenv("PLOT_RESULTS", "false")
	t.Setenv("STORAGE_BACKEND", "MinIO")
	t.Setenv("S3_ENDPOINT", "localhost:9000")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, oect.GmPolynomial, cfg.Processing.GmMethod)
	assert.Equal(t, 20, cfg.Processing.PeakWidth)
	assert.False(t, cfg.Processing.PlotResults)
	assert.Equal(t, BackendMinio, cfg.Storage.Backend)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "gm method", env: map[string]string{"GM_METHOD": "spline"}},
		{name: "backend", env: map[string]string{"STORAGE_BACKEND": "ftp"}},
		{name: "minio without endpoint", env: map[string]string{"STORAGE_BACKEND": "minio", "S3_ENDPOINT": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENVIRONMENT", "test-invalid")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
