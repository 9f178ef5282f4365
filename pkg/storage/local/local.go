package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Ingenimax/agent-harness-go/pkg/storage"
)

func init() {
	storage.NewLocalStorage = New
}

// DefaultPath is used when no directory is configured
const DefaultPath = "reports"

// Storage implements ReportStorage on the local filesystem
type Storage struct {
	basePath string
	baseURL  string
}

// Option represents an option for configuring local storage
type Option func(*Storage)

// WithPath sets the base directory
func WithPath(path string) Option {
	return func(s *Storage) {
		s.basePath = path
	}
}

// WithBaseURL sets the URL prefix returned for stored reports
func WithBaseURL(url string) Option {
	return func(s *Storage) {
		s.baseURL = strings.TrimSuffix(url, "/")
	}
}

// New creates a local storage from configuration
func New(cfg storage.LocalConfig) (storage.ReportStorage, error) {
	return NewWithOptions(WithPath(cfg.Path), WithBaseURL(cfg.BaseURL))
}

// NewWithOptions creates a local storage with functional options
func NewWithOptions(options ...Option) (*Storage, error) {
	s := &Storage{}
	for _, opt := range options {
		opt(s)
	}
	if s.basePath == "" {
		s.basePath = DefaultPath
	}

	if err := os.MkdirAll(s.basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return s, nil
}

// Name returns the storage backend name
func (s *Storage) Name() string {
	return "local"
}

// Store writes doc under basePath/harnessID/
func (s *Storage) Store(ctx context.Context, doc *storage.Document, metadata storage.Metadata) (string, error) {
	if doc == nil || len(doc.Data) == 0 {
		return "", storage.ErrEmptyDocument
	}

	dirPath := s.basePath
	if metadata.HarnessID != "" {
		dirPath = filepath.Join(dirPath, storage.SanitizePath(metadata.HarnessID))
	}
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	filename := storage.ObjectName(doc, metadata.CreatedAt, storage.HashData(doc.Data))
	filePath := filepath.Join(dirPath, filename)

	if err := os.WriteFile(filePath, doc.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	if s.baseURL != "" {
		relPath, err := filepath.Rel(s.basePath, filePath)
		if err != nil {
			return "", fmt.Errorf("failed to get relative path: %w", err)
		}
		urlPath := strings.ReplaceAll(relPath, string(filepath.Separator), "/")
		return fmt.Sprintf("%s/%s", s.baseURL, urlPath), nil
	}

	return filePath, nil
}

// Delete removes a report. Missing files are not an error.
func (s *Storage) Delete(ctx context.Context, location string) error {
	filePath := s.locationToFilePath(location)
	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete report file: %w", err)
	}
	return nil
}

// Get reads a report
func (s *Storage) Get(ctx context.Context, location string) ([]byte, error) {
	data, err := os.ReadFile(s.locationToFilePath(location))
	if err != nil {
		return nil, fmt.Errorf("failed to read report file: %w", err)
	}
	return data, nil
}

// locationToFilePath converts a URL, absolute path or path relative to the
// working directory or basePath into a file path
func (s *Storage) locationToFilePath(location string) string {
	if filepath.IsAbs(location) {
		return location
	}

	if s.baseURL != "" && strings.HasPrefix(location, s.baseURL) {
		relPath := strings.TrimPrefix(location, s.baseURL)
		relPath = strings.TrimPrefix(relPath, "/")
		return filepath.Join(s.basePath, relPath)
	}

	// Store returns basePath-prefixed paths for relative base directories
	if strings.HasPrefix(filepath.Clean(location), filepath.Clean(s.basePath)+string(filepath.Separator)) {
		return location
	}

	return filepath.Join(s.basePath, location)
}
