package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"
)

// ObjectStore handles file storage operations for device data
type ObjectStore interface {
	GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error)
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
	DownloadFile(ctx context.Context, key string) ([]byte, error)
	UploadFile(ctx context.Context, key string, data []byte, contentType string) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	DeleteFile(ctx context.Context, key string) error
}

// Config holds the connection settings shared by both backends
type Config struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

const (
	uploadURLExpiry   = 15 * time.Minute
	downloadURLExpiry = 24 * time.Hour
)

// UploadURLExpiry is how long pre-signed upload URLs stay valid.
func UploadURLExpiry() time.Duration { return uploadURLExpiry }

// Content types
const (
	ContentTypeText   = "text/plain"
	ContentTypeTSV    = "text/tab-separated-values"
	ContentTypeBinary = "application/octet-stream"
	ContentTypePNG    = "image/png"
	ContentTypeJSON   = "application/json"
)

// validateContentType checks the content types clients may upload
func validateContentType(contentType string) error {
	switch contentType {
	case ContentTypeText, ContentTypeTSV, ContentTypeBinary:
		return nil
	}
	return fmt.Errorf("invalid content type: %s. Supported types: %s, %s, %s",
		contentType, ContentTypeText, ContentTypeTSV, ContentTypeBinary)
}

// ContentTypeFor picks the upload content type from a file name.
func ContentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".txt":
		return ContentTypeText
	case ".tsv":
		return ContentTypeTSV
	case ".png":
		return ContentTypePNG
	case ".json":
		return ContentTypeJSON
	default:
		return ContentTypeBinary
	}
}

// DevicePrefix is the key prefix holding one analysis' uploaded files.
func DevicePrefix(analysisID string) string {
	return "devices/" + analysisID + "/"
}

// DeviceFileKey is the key of an uploaded device file.
func DeviceFileKey(analysisID, name string) string {
	return DevicePrefix(analysisID) + path.Base(name)
}

// PlotKey is the key of the rendered threshold plot.
func PlotKey(analysisID string) string {
	return DevicePrefix(analysisID) + "results/threshold.png"
}

// IsResultKey reports whether key lies under a results/ folder.
func IsResultKey(key string) bool {
	return strings.Contains(key, "/results/")
}

func withScheme(endpoint string) string {
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return "http://" + endpoint
	}
	return endpoint
}
