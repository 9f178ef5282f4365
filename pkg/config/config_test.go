package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ingenimax/agent-harness-go/pkg/poll"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(KeyProjectEndpoint, "https://example.services.ai.azure.com/api/projects/demo/")
	t.Setenv(KeyAPIKey, "secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://example.services.ai.azure.com/api/projects/demo", cfg.Project.Endpoint)
	assert.Equal(t, DefaultAPIVersion, cfg.Project.APIVersion)
	assert.Equal(t, DefaultTokenScope, cfg.Auth.Scope)
	assert.Equal(t, poll.DefaultInterval, cfg.Poll.Interval)
	assert.Equal(t, 5*time.Minute, cfg.Poll.Timeout)
	assert.Equal(t, 0, cfg.Poll.FetchRetries)
	assert.Equal(t, "local", cfg.Filter.ReportStorage)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(KeyProjectEndpoint, "https://example.test")
	t.Setenv(KeyAPIKey, "secret")
	t.Setenv(KeyPollInterval, "250ms")
	t.Setenv(KeyPollTimeout, "30s")
	t.Setenv(KeyPollFetchRetries, "2")
	t.Setenv(KeyReportStorage, "GCS")
	t.Setenv(KeyGCSBucket, "reports-bucket")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Poll.Interval)
	assert.Equal(t, poll.Policy{Interval: 250 * time.Millisecond, Timeout: 30 * time.Second, FetchRetries: 2}, cfg.PollPolicy())
	assert.Equal(t, "gcs", cfg.Filter.ReportStorage)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	content := "# project\nAZURE_AI_PROJECT_ENDPOINT=https://from-dotenv.test\nexport AZURE_AI_API_KEY=\"dotenv-key\"\nAZURE_AI_AGENT_NAME='mcp-agent'\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))
	t.Setenv(KeyAgentName, "from-env")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://from-dotenv.test", cfg.Project.Endpoint)
	assert.Equal(t, "dotenv-key", cfg.Auth.APIKey)
	assert.Equal(t, "from-env", cfg.Project.AgentName, "real environment wins over .env")

	assert.Equal(t, "dotenv-key", cfg.Lookup(KeyAPIKey))
	assert.Equal(t, "from-env", cfg.Lookup(KeyAgentName))
	assert.Empty(t, cfg.Lookup("NOT_SET_ANYWHERE"))
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "harness.yaml")
	content := "AZURE_AI_PROJECT_ENDPOINT: https://from-file.test\nAZURE_TENANT_ID: tenant\nAZURE_CLIENT_ID: client\nAZURE_CLIENT_SECRET: shh\nPOLL_INTERVAL: 1s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://from-file.test", cfg.Project.Endpoint)
	assert.True(t, cfg.Auth.UsesClientCredentials())
	assert.Equal(t, "https://login.microsoftonline.com/tenant/oauth2/v2.0/token", cfg.Auth.TokenURL())
	assert.Equal(t, time.Second, cfg.Poll.Interval)
	assert.NoError(t, cfg.Validate())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Project: ProjectConfig{Endpoint: "https://example.test"},
			Auth:    AuthConfig{APIKey: "k"},
			Poll:    PollConfig{Interval: time.Second},
			Filter:  FilterConfig{ReportStorage: "local"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing endpoint", mutate: func(c *Config) { c.Project.Endpoint = "" }, wantErr: "AZURE_AI_PROJECT_ENDPOINT is required"},
		{name: "relative endpoint", mutate: func(c *Config) { c.Project.Endpoint = "not a url" }, wantErr: "invalid AZURE_AI_PROJECT_ENDPOINT"},
		{name: "no credentials", mutate: func(c *Config) { c.Auth.APIKey = "" }, wantErr: "must be set"},
		{name: "partial client credentials", mutate: func(c *Config) {
			c.Auth = AuthConfig{TenantID: "t", ClientID: "c"}
		}, wantErr: "must be set"},
		{name: "zero interval", mutate: func(c *Config) { c.Poll.Interval = 0 }, wantErr: "POLL_INTERVAL must be positive"},
		{name: "negative retries", mutate: func(c *Config) { c.Poll.FetchRetries = -1 }, wantErr: "must not be negative"},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Filter.ReportStorage = "gcs" }, wantErr: "GCS_BUCKET is required"},
		{name: "unknown storage", mutate: func(c *Config) { c.Filter.ReportStorage = "s3" }, wantErr: "unsupported REPORT_STORAGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vars.env")
	require.NoError(t, os.WriteFile(path, []byte("MCP_TEST_TOKEN=abc123\nMCP_TEST_URL=\"https://mcp.example.test/mcp\"\n"), 0o600))
	t.Setenv("MCP_TEST_TOKEN", "from-env")

	values, err := readDotEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "abc123", values["MCP_TEST_TOKEN"])
	assert.Equal(t, "https://mcp.example.test/mcp", values["MCP_TEST_URL"])
	assert.Equal(t, "from-env", os.Getenv("MCP_TEST_TOKEN"), "reading must not modify the environment")

	values, err = readDotEnv(filepath.Join(dir, "absent.env"))
	require.NoError(t, err)
	assert.Empty(t, values)

	cfg := &Config{dotenv: map[string]string{"MCP_TEST_TOKEN": "abc123", "MCP_TEST_HOST": "mcp.example.test"}}
	assert.Equal(t, "Bearer from-env", os.Expand("Bearer ${MCP_TEST_TOKEN}", cfg.Lookup))
	assert.Equal(t, "https://mcp.example.test/mcp", os.Expand("https://$MCP_TEST_HOST/mcp", cfg.Lookup))
	assert.Equal(t, "x=", os.Expand("x=${MCP_TEST_UNSET_VAR}", cfg.Lookup))
}

func TestModelOrDefault(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, "gpt-4o", cfg.ModelOrDefault("gpt-4o"))
	cfg.Project.ModelDeployment = "gpt-4.1"
	assert.Equal(t, "gpt-4.1", cfg.ModelOrDefault("gpt-4o"))
}
