// Package storage persists rendered harness reports on the local filesystem
// or in Google Cloud Storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyDocument is returned when asked to store no data
	ErrEmptyDocument = errors.New("document data is empty")

	// ErrBackendUnavailable is returned when a backend package was not linked in
	ErrBackendUnavailable = errors.New("storage backend not registered")
)

// ReportStorage stores and retrieves report documents
type ReportStorage interface {
	// Store saves a document and returns its location (path or URL)
	Store(ctx context.Context, doc *Document, metadata Metadata) (string, error)

	// Delete removes a document by location
	Delete(ctx context.Context, location string) error

	// Get retrieves document data by location
	Get(ctx context.Context, location string) ([]byte, error)

	// Name returns the storage backend name
	Name() string
}

// Document is a rendered report
type Document struct {
	// Name is the file name, e.g. "report.yaml"
	Name        string
	ContentType string
	Data        []byte
}

// Metadata describes where a document came from
type Metadata struct {
	// HarnessID groups documents of one harness run
	HarnessID string

	Suite string

	// Tags contains custom tags for the document
	Tags map[string]string

	CreatedAt time.Time
}

// Config contains configuration for storage backends
type Config struct {
	// Type is the storage backend type ("local", "gcs")
	Type string

	Local LocalConfig
	GCS   GCSConfig
}

// LocalConfig contains configuration for local filesystem storage
type LocalConfig struct {
	// Path is the base directory for reports
	Path string

	// BaseURL is the URL prefix for accessing stored reports (optional)
	// If empty, file paths will be returned instead of URLs
	BaseURL string
}

// GCSConfig contains configuration for Google Cloud Storage
type GCSConfig struct {
	Bucket string

	// Prefix is the path prefix within the bucket
	Prefix string

	// CredentialsFile is the path to the service account JSON file (optional)
	// If empty, uses Application Default Credentials
	CredentialsFile string

	// CredentialsJSON is the service account JSON content (optional)
	// Can be raw JSON or base64 encoded. Takes precedence over CredentialsFile.
	CredentialsJSON string

	// SignedURLExpiration is the duration for signed URLs (default: 24h)
	SignedURLExpiration time.Duration

	// UseSignedURLs determines whether to return signed URLs or public URLs
	UseSignedURLs bool

	// Endpoint overrides the GCS API endpoint, e.g. for an emulator
	Endpoint string
}

// NewStorageFromConfig creates a storage backend from configuration. The
// backend packages register themselves on import.
func NewStorageFromConfig(ctx context.Context, cfg Config) (ReportStorage, error) {
	switch cfg.Type {
	case "local", "":
		if NewLocalStorage == nil {
			return nil, fmt.Errorf("%w: local", ErrBackendUnavailable)
		}
		return NewLocalStorage(cfg.Local)
	case "gcs":
		if NewGCSStorage == nil {
			return nil, fmt.Errorf("%w: gcs", ErrBackendUnavailable)
		}
		return NewGCSStorage(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// NewLocalStorage is set by the local package
var NewLocalStorage func(cfg LocalConfig) (ReportStorage, error)

// NewGCSStorage is set by the gcs package
var NewGCSStorage func(ctx context.Context, cfg GCSConfig) (ReportStorage, error)

// ObjectName builds the file name documents are stored under:
// <unix-nanos>_<hash>_<name>
func ObjectName(doc *Document, createdAt time.Time, hash string) string {
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	if len(hash) > 12 {
		hash = hash[:12]
	}
	return fmt.Sprintf("%d_%s_%s", createdAt.UnixNano(), hash, SanitizePath(doc.Name))
}
