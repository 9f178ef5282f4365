package mcp

import (
	"fmt"
	"os"
	"sort"
)

// Environment variables read by the presets
const (
	EnvCustomBearerToken = "CUSTOM_MCP_BEARER_TOKEN"
	EnvCustomServerURL   = "CUSTOM_MCP_SERVER_URL"
)

// MicrosoftLearnURL is the public Microsoft Learn MCP endpoint
const MicrosoftLearnURL = "https://learn.microsoft.com/api/mcp"

// PresetServer represents a predefined MCP server configuration
type PresetServer struct {
	Name        string
	Label       string
	Description string
	Type        string // "stdio" or "http"
	Command     string
	Args        []string
	URL         string
	URLEnv      string // Environment variable holding the URL, overrides URL
	TokenEnv    string // Environment variable holding a bearer token
	RequiredEnv []string
}

var presets = map[string]PresetServer{
	"microsoft-learn": {
		Name:        "microsoft-learn",
		Label:       "microsoft-learn-mcp",
		Description: "Microsoft Learn documentation search and fetch",
		Type:        ServerTypeHTTP,
		URL:         MicrosoftLearnURL,
	},

	"custom-bearer": {
		Name:        "custom-bearer",
		Label:       "custom-mcp-bearer",
		Description: "Custom remote MCP server protected by a bearer token",
		Type:        ServerTypeHTTP,
		URLEnv:      EnvCustomServerURL,
		TokenEnv:    EnvCustomBearerToken,
		RequiredEnv: []string{EnvCustomServerURL, EnvCustomBearerToken},
	},

	// Local servers, only useful for probing from a workstation
	"filesystem": {
		Name:        "filesystem",
		Label:       "filesystem",
		Description: "MCP server for file system operations",
		Type:        ServerTypeStdio,
		Command:     "npx",
		Args:        []string{"-y", "@modelcontextprotocol/server-filesystem", "."},
	},
	"fetch": {
		Name:        "fetch",
		Label:       "fetch",
		Description: "MCP server for making HTTP requests",
		Type:        ServerTypeStdio,
		Command:     "uvx",
		Args:        []string{"mcp-server-fetch"},
	},
	"everything": {
		Name:        "everything",
		Label:       "everything",
		Description: "Reference MCP server exercising every protocol feature",
		Type:        ServerTypeStdio,
		Command:     "npx",
		Args:        []string{"-y", "@modelcontextprotocol/server-everything"},
	},
}

// GetPreset returns a preset as a server configuration. Required variables are
// read through lookup; nil means the process environment.
func GetPreset(name string, lookup func(string) string) (ServerConfig, error) {
	preset, exists := presets[name]
	if !exists {
		return ServerConfig{}, NewConfigurationError("GetPreset", fmt.Errorf("preset %q not found", name))
	}
	if lookup == nil {
		lookup = os.Getenv
	}

	for _, envVar := range preset.RequiredEnv {
		if lookup(envVar) == "" {
			return ServerConfig{}, NewConfigurationError("GetPreset",
				fmt.Errorf("preset %q requires environment variable %s to be set", name, envVar))
		}
	}

	server := ServerConfig{
		Name:            preset.Label,
		Type:            preset.Type,
		URL:             preset.URL,
		Command:         preset.Command,
		Args:            append([]string(nil), preset.Args...),
		RequireApproval: ApprovalNever,
		Enabled:         true,
		Description:     preset.Description,
	}
	if preset.URLEnv != "" {
		server.URL = lookup(preset.URLEnv)
	}
	if preset.TokenEnv != "" {
		server.Token = lookup(preset.TokenEnv)
	}
	return server, nil
}

// ListPresets returns the available preset names in alphabetical order
func ListPresets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPresetInfo returns information about a preset
func GetPresetInfo(name string) (string, error) {
	preset, exists := presets[name]
	if !exists {
		return "", fmt.Errorf("preset %q not found", name)
	}

	info := fmt.Sprintf("Name: %s\nLabel: %s\nDescription: %s\nType: %s\n",
		preset.Name, preset.Label, preset.Description, preset.Type)

	switch preset.Type {
	case ServerTypeStdio:
		info += fmt.Sprintf("Command: %s\n", preset.Command)
		if len(preset.Args) > 0 {
			info += fmt.Sprintf("Args: %v\n", preset.Args)
		}
	case ServerTypeHTTP:
		if preset.URLEnv != "" {
			info += fmt.Sprintf("URL: $%s\n", preset.URLEnv)
		} else {
			info += fmt.Sprintf("URL: %s\n", preset.URL)
		}
	}

	if len(preset.RequiredEnv) > 0 {
		info += fmt.Sprintf("Required Environment Variables: %v\n", preset.RequiredEnv)
	}

	return info, nil
}
