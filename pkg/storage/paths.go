package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
)

// SanitizePath removes potentially dangerous characters from a path component
func SanitizePath(s string) string {
	s = strings.ReplaceAll(s, "..", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}

// HashData returns the hex SHA256 of data
func HashData(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ContentType guesses a report's MIME type from its file name
func ContentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".md":
		return "text/markdown"
	default:
		return "text/plain"
	}
}
