package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Ingenimax/agent-harness-go/pkg/poll"
)

// Environment keys. They match the variable names used by the hosted
// service's own samples so an existing .env works unchanged.
const (
	KeyProjectEndpoint = "AZURE_AI_PROJECT_ENDPOINT"
	KeyModelDeployment = "AZURE_AI_MODEL_DEPLOYMENT_NAME"
	KeyAgentName       = "AZURE_AI_AGENT_NAME"
	KeyAgentID         = "AZURE_AI_AGENT_ID"
	KeyAPIKey          = "AZURE_AI_API_KEY"
	KeyAPIVersion      = "AZURE_AI_API_VERSION"
	KeyTenantID        = "AZURE_TENANT_ID"
	KeyClientID        = "AZURE_CLIENT_ID"
	KeyClientSecret    = "AZURE_CLIENT_SECRET"
	KeyAuthorityHost   = "AZURE_AUTHORITY_HOST"
	KeyTokenScope      = "AZURE_AI_TOKEN_SCOPE"

	KeyMCPBearerToken = "CUSTOM_MCP_BEARER_TOKEN"
	KeyMCPConfigFile  = "MCP_CONFIG_FILE"

	KeyPollInterval     = "POLL_INTERVAL"
	KeyPollTimeout      = "POLL_TIMEOUT"
	KeyPollFetchRetries = "POLL_FETCH_RETRIES"

	KeyFilterCasesFile = "FILTER_CASES_FILE"
	KeyReportStorage   = "REPORT_STORAGE"
	KeyReportPath      = "REPORT_PATH"
	KeyGCSBucket       = "GCS_BUCKET"
	KeyGCSPrefix       = "GCS_PREFIX"
	KeyGCSCredentials  = "GCS_CREDENTIALS_FILE"
	KeyRedisAddr       = "REDIS_ADDR"
	KeyRedisPassword   = "REDIS_PASSWORD"
	KeyRedisDB         = "REDIS_DB"

	KeyOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	KeyServiceName  = "OTEL_SERVICE_NAME"

	KeyLogLevel  = "LOG_LEVEL"
	KeyLogFormat = "LOG_FORMAT"
)

const (
	DefaultAPIVersion    = "2025-05-01"
	DefaultAuthorityHost = "https://login.microsoftonline.com"
	DefaultTokenScope    = "https://ai.azure.com/.default"
	DefaultServiceName   = "agent-harness"
)

// ErrMissingEndpoint is returned when no project endpoint is configured
var ErrMissingEndpoint = errors.New(KeyProjectEndpoint + " is required")

// Config is the complete harness configuration
type Config struct {
	Project ProjectConfig
	Auth    AuthConfig
	MCP     MCPConfig
	Poll    PollConfig
	Filter  FilterConfig
	Tracing TracingConfig
	Log     LogConfig

	dotenv map[string]string
}

// ProjectConfig locates the hosted agent project
type ProjectConfig struct {
	Endpoint        string
	APIVersion      string
	ModelDeployment string
	AgentName       string
	AgentID         string
}

// AuthConfig selects between API key and Entra ID client credentials
type AuthConfig struct {
	APIKey        string
	TenantID      string
	ClientID      string
	ClientSecret  string
	AuthorityHost string
	Scope         string
}

// UsesClientCredentials reports whether a service principal is configured
func (a AuthConfig) UsesClientCredentials() bool {
	return a.TenantID != "" && a.ClientID != "" && a.ClientSecret != ""
}

// TokenURL is the OAuth2 token endpoint for the configured tenant
func (a AuthConfig) TokenURL() string {
	return strings.TrimSuffix(a.AuthorityHost, "/") + "/" + a.TenantID + "/oauth2/v2.0/token"
}

// MCPConfig holds MCP server settings
type MCPConfig struct {
	BearerToken string
	ConfigFile  string
}

// PollConfig mirrors poll.Policy
type PollConfig struct {
	Interval     time.Duration
	Timeout      time.Duration
	FetchRetries int
}

// FilterConfig configures the content filter comparison harness
type FilterConfig struct {
	CasesFile      string
	ReportStorage  string
	ReportPath     string
	GCSBucket      string
	GCSPrefix      string
	GCSCredentials string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
}

// TracingConfig configures OpenTelemetry export
type TracingConfig struct {
	Endpoint    string
	ServiceName string
}

// LogConfig configures the logger
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment, .env in the working
// directory and, when path is set, a config file (yaml, json or env).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	dotenv, err := readDotEnv(".env")
	if err != nil {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	for key, value := range dotenv {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := fromViper(v)
	cfg.dotenv = dotenv
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyAPIVersion, DefaultAPIVersion)
	v.SetDefault(KeyAuthorityHost, DefaultAuthorityHost)
	v.SetDefault(KeyTokenScope, DefaultTokenScope)
	v.SetDefault(KeyPollInterval, poll.DefaultInterval)
	v.SetDefault(KeyPollTimeout, 5*time.Minute)
	v.SetDefault(KeyPollFetchRetries, 0)
	v.SetDefault(KeyFilterCasesFile, "filter-cases.yaml")
	v.SetDefault(KeyReportStorage, "local")
	v.SetDefault(KeyReportPath, "reports")
	v.SetDefault(KeyRedisDB, 0)
	v.SetDefault(KeyServiceName, DefaultServiceName)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Project: ProjectConfig{
			Endpoint:        strings.TrimSuffix(v.GetString(KeyProjectEndpoint), "/"),
			APIVersion:      v.GetString(KeyAPIVersion),
			ModelDeployment: v.GetString(KeyModelDeployment),
			AgentName:       v.GetString(KeyAgentName),
			AgentID:         v.GetString(KeyAgentID),
		},
		Auth: AuthConfig{
			APIKey:        v.GetString(KeyAPIKey),
			TenantID:      v.GetString(KeyTenantID),
			ClientID:      v.GetString(KeyClientID),
			ClientSecret:  v.GetString(KeyClientSecret),
			AuthorityHost: v.GetString(KeyAuthorityHost),
			Scope:         v.GetString(KeyTokenScope),
		},
		MCP: MCPConfig{
			BearerToken: v.GetString(KeyMCPBearerToken),
			ConfigFile:  v.GetString(KeyMCPConfigFile),
		},
		Poll: PollConfig{
			Interval:     v.GetDuration(KeyPollInterval),
			Timeout:      v.GetDuration(KeyPollTimeout),
			FetchRetries: v.GetInt(KeyPollFetchRetries),
		},
		Filter: FilterConfig{
			CasesFile:      v.GetString(KeyFilterCasesFile),
			ReportStorage:  strings.ToLower(v.GetString(KeyReportStorage)),
			ReportPath:     v.GetString(KeyReportPath),
			GCSBucket:      v.GetString(KeyGCSBucket),
			GCSPrefix:      v.GetString(KeyGCSPrefix),
			GCSCredentials: v.GetString(KeyGCSCredentials),
			RedisAddr:      v.GetString(KeyRedisAddr),
			RedisPassword:  v.GetString(KeyRedisPassword),
			RedisDB:        v.GetInt(KeyRedisDB),
		},
		Tracing: TracingConfig{
			Endpoint:    v.GetString(KeyOTLPEndpoint),
			ServiceName: v.GetString(KeyServiceName),
		},
		Log: LogConfig{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
		},
	}
}

// Validate checks the settings every command needs
func (c *Config) Validate() error {
	if c.Project.Endpoint == "" {
		return ErrMissingEndpoint
	}
	if _, err := url.ParseRequestURI(c.Project.Endpoint); err != nil {
		return fmt.Errorf("invalid %s: %w", KeyProjectEndpoint, err)
	}
	if c.Auth.APIKey == "" && !c.Auth.UsesClientCredentials() {
		return fmt.Errorf("either %s or %s/%s/%s must be set", KeyAPIKey, KeyTenantID, KeyClientID, KeyClientSecret)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("%s must be positive, got %s", KeyPollInterval, c.Poll.Interval)
	}
	if c.Poll.Timeout < 0 || c.Poll.FetchRetries < 0 {
		return fmt.Errorf("%s and %s must not be negative", KeyPollTimeout, KeyPollFetchRetries)
	}
	switch c.Filter.ReportStorage {
	case "local", "":
	case "gcs":
		if c.Filter.GCSBucket == "" {
			return fmt.Errorf("%s is required when %s=gcs", KeyGCSBucket, KeyReportStorage)
		}
	default:
		return fmt.Errorf("unsupported %s %q (supported: local, gcs)", KeyReportStorage, c.Filter.ReportStorage)
	}
	return nil
}

// Lookup resolves a variable from the process environment, then from the
// .env file read by Load. It suits os.Expand and the MCP config expansion.
func (c *Config) Lookup(key string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return c.dotenv[key]
}

// PollPolicy converts the poll settings into a poll.Policy
func (c *Config) PollPolicy() poll.Policy {
	return poll.Policy{
		Interval:     c.Poll.Interval,
		Timeout:      c.Poll.Timeout,
		FetchRetries: c.Poll.FetchRetries,
	}
}

// ModelOrDefault returns the configured model deployment or fallback
func (c *Config) ModelOrDefault(fallback string) string {
	if c.Project.ModelDeployment != "" {
		return c.Project.ModelDeployment
	}
	return fallback
}
