package mcp

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Ingenimax/agent-harness-go/pkg/interfaces"
)

// Server types
const (
	ServerTypeHTTP  = "http"
	ServerTypeStdio = "stdio"
)

// Approval modes understood by the service
const (
	ApprovalNever  = "never"
	ApprovalAlways = "always"
)

// ToolConfig documents a tool an MCP server is expected to provide
type ToolConfig struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// ServerConfig describes one MCP server. Only http servers can be attached to
// a hosted agent; stdio servers are accepted for local probing.
type ServerConfig struct {
	Name            string            `json:"name" yaml:"name"`
	Type            string            `json:"type" yaml:"type"`
	URL             string            `json:"url,omitempty" yaml:"url,omitempty"`
	Command         string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args            []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env             []string          `json:"env,omitempty" yaml:"env,omitempty"`
	Token           string            `json:"token,omitempty" yaml:"token,omitempty"`
	Headers         map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	RequireApproval string            `json:"require_approval,omitempty" yaml:"require_approval,omitempty"`
	AllowedTools    []string          `json:"allowed_tools,omitempty" yaml:"allowed_tools,omitempty"`
	Enabled         bool              `json:"enabled" yaml:"enabled"`
	Description     string            `json:"description,omitempty" yaml:"description,omitempty"`
	Tools           []ToolConfig      `json:"tools,omitempty" yaml:"tools,omitempty"`
}

// Configuration is a set of MCP servers plus shared settings
type Configuration struct {
	Servers []ServerConfig `json:"servers" yaml:"servers"`
	Global  GlobalConfig   `json:"global,omitempty" yaml:"global,omitempty"`
}

// GlobalConfig holds settings shared by all servers
type GlobalConfig struct {
	Timeout       string `json:"timeout,omitempty" yaml:"timeout,omitempty"` // e.g. "30s"
	RetryAttempts int    `json:"retry_attempts,omitempty" yaml:"retry_attempts,omitempty"`
	// AutoApprove approves every approval request regardless of server
	AutoApprove bool `json:"auto_approve,omitempty" yaml:"auto_approve,omitempty"`
}

// ProbeTimeout parses Global.Timeout, falling back to def
func (g GlobalConfig) ProbeTimeout(def time.Duration) time.Duration {
	if g.Timeout == "" {
		return def
	}
	d, err := time.ParseDuration(g.Timeout)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// LoadConfig reads a configuration file, choosing the format by extension
func LoadConfig(filePath string) (*Configuration, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".json":
		return LoadConfigFromJSON(filePath)
	case ".yaml", ".yml":
		return LoadConfigFromYAML(filePath)
	default:
		return nil, NewConfigurationError("LoadConfig", fmt.Errorf("unsupported config file extension %q", filepath.Ext(filePath)))
	}
}

// LoadConfigFromJSON loads MCP configuration from a JSON file
func LoadConfigFromJSON(filePath string) (*Configuration, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON file: %w", err)
	}

	var config Configuration
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, NewMCPError("LoadConfig", "", "", MCPErrorTypeSerialization, fmt.Errorf("failed to parse JSON: %w", err))
	}

	return &config, nil
}

// LoadConfigFromYAML loads MCP configuration from a YAML file
func LoadConfigFromYAML(filePath string) (*Configuration, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read YAML file: %w", err)
	}

	var config Configuration
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, NewMCPError("LoadConfig", "", "", MCPErrorTypeSerialization, fmt.Errorf("failed to parse YAML: %w", err))
	}

	return &config, nil
}

// SaveConfig writes a configuration file, choosing the format by extension
func SaveConfig(config *Configuration, filePath string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".json":
		data, err = json.MarshalIndent(config, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
	default:
		return NewConfigurationError("SaveConfig", fmt.Errorf("unsupported config file extension %q", filepath.Ext(filePath)))
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ExpandEnv resolves ${VAR} references in URLs, tokens, headers and env
// entries. A nil lookup uses the process environment.
func (c *Configuration) ExpandEnv(lookup func(string) string) {
	for i := range c.Servers {
		c.Servers[i].ExpandEnv(lookup)
	}
}

// ExpandEnv resolves ${VAR} references in the server's settings
func (s *ServerConfig) ExpandEnv(lookup func(string) string) {
	if lookup == nil {
		lookup = os.Getenv
	}
	expand := func(v string) string { return os.Expand(v, lookup) }

	s.URL = expand(s.URL)
	s.Token = expand(s.Token)
	s.Command = expand(s.Command)
	for i, arg := range s.Args {
		s.Args[i] = expand(arg)
	}
	for i, env := range s.Env {
		s.Env[i] = expand(env)
	}
	for k, v := range s.Headers {
		s.Headers[k] = expand(v)
	}
}

// Validate checks the configuration for missing or conflicting settings
func (c *Configuration) Validate() error {
	if c == nil {
		return NewConfigurationError("Validate", fmt.Errorf("config cannot be nil"))
	}

	serverNames := make(map[string]bool)
	for i, server := range c.Servers {
		if server.Name == "" {
			return NewMCPError("Validate", "", "", MCPErrorTypeValidation, fmt.Errorf("server %d: name is required", i))
		}
		if serverNames[server.Name] {
			return NewMCPError("Validate", server.Name, server.Type, MCPErrorTypeValidation, fmt.Errorf("duplicate server name: %s", server.Name))
		}
		serverNames[server.Name] = true

		if err := server.Validate(); err != nil {
			return err
		}
	}

	if _, err := time.ParseDuration(c.Global.Timeout); c.Global.Timeout != "" && err != nil {
		return NewMCPError("Validate", "", "", MCPErrorTypeValidation, fmt.Errorf("invalid global timeout %q: %w", c.Global.Timeout, err))
	}
	return nil
}

// Validate checks a single server
func (s ServerConfig) Validate() error {
	fail := func(err error) error {
		return NewMCPError("Validate", s.Name, s.Type, MCPErrorTypeValidation, err)
	}

	switch s.Type {
	case ServerTypeStdio:
		if s.Command == "" {
			return fail(fmt.Errorf("command is required for stdio type"))
		}
	case ServerTypeHTTP:
		if s.URL == "" {
			return fail(fmt.Errorf("url is required for http type"))
		}
		u, err := url.Parse(s.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fail(fmt.Errorf("url %q must be an absolute http(s) URL", s.URL))
		}
	default:
		return fail(fmt.Errorf("invalid type %q (must be 'stdio' or 'http')", s.Type))
	}

	switch s.RequireApproval {
	case "", ApprovalNever, ApprovalAlways:
	default:
		return fail(fmt.Errorf("invalid require_approval %q (must be 'never' or 'always')", s.RequireApproval))
	}
	return nil
}

// EnabledServers returns the servers marked as enabled
func (c *Configuration) EnabledServers() []ServerConfig {
	var servers []ServerConfig
	for _, s := range c.Servers {
		if s.Enabled {
			servers = append(servers, s)
		}
	}
	return servers
}

// Server returns the server with the given name
func (c *Configuration) Server(name string) (ServerConfig, bool) {
	for _, s := range c.Servers {
		if s.Name == name {
			return s, true
		}
	}
	return ServerConfig{}, false
}

// RequestHeaders returns the headers sent to the server, with the token
// rendered as a bearer Authorization header unless one is set explicitly.
func (s ServerConfig) RequestHeaders() map[string]string {
	if len(s.Headers) == 0 && s.Token == "" {
		return nil
	}
	headers := make(map[string]string, len(s.Headers)+1)
	for k, v := range s.Headers {
		headers[k] = v
	}
	if _, ok := headers["Authorization"]; !ok && s.Token != "" {
		headers["Authorization"] = "Bearer " + s.Token
	}
	return headers
}

// ToolSpec converts an http server into the tool definition attached to an agent
func (s ServerConfig) ToolSpec() (interfaces.ToolSpec, error) {
	if s.Type != ServerTypeHTTP {
		return interfaces.ToolSpec{}, NewConfigurationError("ToolSpec",
			fmt.Errorf("server %s: only http servers can be attached to a hosted agent", s.Name))
	}

	approval := s.RequireApproval
	if approval == "" {
		approval = ApprovalNever
	}
	return interfaces.ToolSpec{
		Type:            interfaces.ToolTypeMCP,
		ServerLabel:     s.Name,
		ServerURL:       s.URL,
		AllowedTools:    s.AllowedTools,
		RequireApproval: approval,
		Headers:         s.RequestHeaders(),
	}, nil
}

// ToolSpecs converts every enabled http server, skipping stdio servers
func (c *Configuration) ToolSpecs() []interfaces.ToolSpec {
	var specs []interfaces.ToolSpec
	for _, s := range c.EnabledServers() {
		if spec, err := s.ToolSpec(); err == nil {
			specs = append(specs, spec)
		}
	}
	return specs
}
