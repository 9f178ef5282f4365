package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
)

// readDotEnv reads a .env file without touching the process environment, so
// real environment variables keep precedence. A missing file yields no values.
func readDotEnv(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return values, nil
}
