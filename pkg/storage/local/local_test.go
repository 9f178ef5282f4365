package local

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ingenimax/agent-harness-go/pkg/storage"
)

func TestStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	doc := &storage.Document{Name: "report.yaml", Data: []byte("harness_id: h1\n")}

	tests := []struct {
		name    string
		baseURL string
	}{
		{name: "file path"},
		{name: "base url", baseURL: "http://localhost:8080/reports/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			s, err := NewWithOptions(WithPath(dir), WithBaseURL(tt.baseURL))
			require.NoError(t, err)
			assert.Equal(t, "local", s.Name())

			location, err := s.Store(ctx, doc, storage.Metadata{HarnessID: "h1/../x", CreatedAt: created})
			require.NoError(t, err)

			if tt.baseURL != "" {
				assert.True(t, strings.HasPrefix(location, "http://localhost:8080/reports/h1___x/"), location)
			} else {
				assert.Equal(t, filepath.Join(dir, "h1___x"), filepath.Dir(location))
			}
			assert.True(t, strings.HasSuffix(location, "_report.yaml"), location)

			data, err := s.Get(ctx, location)
			require.NoError(t, err)
			assert.Equal(t, doc.Data, data)

			require.NoError(t, s.Delete(ctx, location))
			_, err = s.Get(ctx, location)
			assert.Error(t, err)

			// deleting twice is fine
			assert.NoError(t, s.Delete(ctx, location))
		})
	}
}

func TestStorage_EmptyDocument(t *testing.T) {
	s, err := NewWithOptions(WithPath(t.TempDir()))
	require.NoError(t, err)

	_, err = s.Store(context.Background(), &storage.Document{Name: "empty.json"}, storage.Metadata{})
	assert.ErrorIs(t, err, storage.ErrEmptyDocument)

	_, err = s.Store(context.Background(), nil, storage.Metadata{})
	assert.ErrorIs(t, err, storage.ErrEmptyDocument)
}

func TestNewStorageFromConfig_Local(t *testing.T) {
	dir := t.TempDir()
	s, err := storage.NewStorageFromConfig(context.Background(), storage.Config{
		Local: storage.LocalConfig{Path: dir},
	})
	require.NoError(t, err)
	assert.Equal(t, "local", s.Name())

	location, err := s.Store(context.Background(), &storage.Document{Name: "r.json", Data: []byte("{}")}, storage.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(location))
}
