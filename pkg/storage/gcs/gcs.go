package gcs

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	reportstorage "github.com/Ingenimax/agent-harness-go/pkg/storage"
)

func init() {
	reportstorage.NewGCSStorage = New
}

// Storage implements ReportStorage on Google Cloud Storage
type Storage struct {
	client              *storage.Client
	bucket              string
	prefix              string
	signedURLExpiration time.Duration
	useSignedURLs       bool
}

// New creates a GCS storage backend
func New(ctx context.Context, cfg reportstorage.GCSConfig) (reportstorage.ReportStorage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("GCS bucket name is required")
	}

	var opts []option.ClientOption

	// CredentialsJSON takes precedence over CredentialsFile
	if cfg.CredentialsJSON != "" {
		//nolint:staticcheck // SA1019: WithCredentialsJSON is deprecated but needed for programmatic credentials
		opts = append(opts, option.WithCredentialsJSON([]byte(parseCredentialsJSON(cfg.CredentialsJSON))))
	} else if cfg.CredentialsFile != "" {
		//nolint:staticcheck // SA1019: WithCredentialsFile is deprecated but needed for file-based credentials
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	s := &Storage{
		client:              client,
		bucket:              cfg.Bucket,
		prefix:              strings.Trim(cfg.Prefix, "/"),
		signedURLExpiration: cfg.SignedURLExpiration,
		useSignedURLs:       cfg.UseSignedURLs,
	}
	if s.signedURLExpiration == 0 {
		s.signedURLExpiration = 24 * time.Hour
	}
	return s, nil
}

// Name returns the storage backend name
func (s *Storage) Name() string {
	return "gcs"
}

// Store uploads doc to prefix/harnessID/ and returns its URL
func (s *Storage) Store(ctx context.Context, doc *reportstorage.Document, metadata reportstorage.Metadata) (string, error) {
	if doc == nil || len(doc.Data) == 0 {
		return "", reportstorage.ErrEmptyDocument
	}

	objectPath := s.objectPath(doc, metadata)

	wc := s.client.Bucket(s.bucket).Object(objectPath).NewWriter(ctx)
	wc.ContentType = doc.ContentType
	if wc.ContentType == "" {
		wc.ContentType = reportstorage.ContentType(doc.Name)
	}
	wc.Metadata = map[string]string{}
	if metadata.HarnessID != "" {
		wc.Metadata["harness_id"] = metadata.HarnessID
	}
	if metadata.Suite != "" {
		wc.Metadata["suite"] = truncateString(metadata.Suite, 500)
	}
	for k, v := range metadata.Tags {
		wc.Metadata[k] = v
	}

	if _, err := wc.Write(doc.Data); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}

	if s.useSignedURLs {
		return s.generateSignedURL(objectPath), nil
	}
	return s.publicURL(objectPath), nil
}

// Delete removes a report. Missing objects are not an error.
func (s *Storage) Delete(ctx context.Context, location string) error {
	objectPath := s.locationToObjectPath(location)
	if objectPath == "" {
		return fmt.Errorf("invalid URL or object path")
	}

	if err := s.client.Bucket(s.bucket).Object(objectPath).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return fmt.Errorf("failed to delete from GCS: %w", err)
	}
	return nil
}

// Get downloads a report
func (s *Storage) Get(ctx context.Context, location string) ([]byte, error) {
	objectPath := s.locationToObjectPath(location)
	if objectPath == "" {
		return nil, fmt.Errorf("invalid URL or object path")
	}

	rc, err := s.client.Bucket(s.bucket).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read from GCS: %w", err)
	}
	defer func() {
		_ = rc.Close()
	}()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read object data: %w", err)
	}
	return data, nil
}

func (s *Storage) objectPath(doc *reportstorage.Document, metadata reportstorage.Metadata) string {
	objectPath := s.prefix
	if metadata.HarnessID != "" {
		objectPath = joinPath(objectPath, reportstorage.SanitizePath(metadata.HarnessID))
	}
	name := reportstorage.ObjectName(doc, metadata.CreatedAt, reportstorage.HashData(doc.Data))
	return joinPath(objectPath, name)
}

func (s *Storage) publicURL(objectPath string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, objectPath)
}

// generateSignedURL signs a GET URL, falling back to the public URL when the
// credentials cannot sign
func (s *Storage) generateSignedURL(objectPath string) string {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(s.signedURLExpiration),
	}

	url, err := s.client.Bucket(s.bucket).SignedURL(objectPath, opts)
	if err != nil {
		return s.publicURL(objectPath)
	}
	return url
}

// locationToObjectPath extracts the object path from a URL
func (s *Storage) locationToObjectPath(location string) string {
	if !strings.HasPrefix(location, "http") {
		return location
	}

	prefix := fmt.Sprintf("https://storage.googleapis.com/%s/", s.bucket)
	if strings.HasPrefix(location, prefix) {
		return stripQuery(strings.TrimPrefix(location, prefix))
	}

	// Signed URLs keep the bucket in the path
	if parts := strings.SplitN(location, s.bucket+"/", 2); len(parts) == 2 {
		return stripQuery(parts[1])
	}

	return ""
}

func stripQuery(p string) string {
	if idx := strings.Index(p, "?"); idx != -1 {
		return p[:idx]
	}
	return p
}

// joinPath joins path components with forward slashes
func joinPath(base, p string) string {
	if base == "" {
		return p
	}
	if p == "" {
		return base
	}
	return base + "/" + p
}

// truncateString truncates a string to maxLen bytes
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// parseCredentialsJSON accepts base64 encoded or raw JSON credentials
func parseCredentialsJSON(creds string) string {
	if decoded, err := base64.StdEncoding.DecodeString(creds); err == nil {
		if len(decoded) > 0 && decoded[0] == '{' {
			return string(decoded)
		}
	}
	return creds
}
