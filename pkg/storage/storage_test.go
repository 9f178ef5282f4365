package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectName(t *testing.T) {
	created := time.Unix(0, 1700000000000000000)
	hash := HashData([]byte("report"))
	require.Len(t, hash, 64)

	name := ObjectName(&Document{Name: "../suite:report.yaml"}, created, hash)
	assert.Equal(t, "1700000000000000000_"+hash[:12]+"___suite_report.yaml", name)

	assert.Equal(t, "1_ab_r.json", ObjectName(&Document{Name: "r.json"}, time.Unix(0, 1), "ab"))
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"report.json": "application/json",
		"report.YAML": "application/yaml",
		"report.yml":  "application/yaml",
		"notes.md":    "text/markdown",
		"output":      "text/plain",
	}
	for name, want := range tests {
		assert.Equal(t, want, ContentType(name), name)
	}
}

func TestNewStorageFromConfig_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewStorageFromConfig(ctx, Config{Type: "s3"})
	assert.EqualError(t, err, `unknown storage type "s3"`)

	// the gcs package is not linked into this test binary
	_, err = NewStorageFromConfig(ctx, Config{Type: "gcs"})
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}
