package mcp

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ingenimax/agent-harness-go/pkg/interfaces"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestGetPreset(t *testing.T) {
	t.Run("microsoft learn needs no environment", func(t *testing.T) {
		server, err := GetPreset("microsoft-learn", envMap(nil))
		require.NoError(t, err)

		assert.Equal(t, "microsoft-learn-mcp", server.Name)
		assert.Equal(t, ServerTypeHTTP, server.Type)
		assert.Equal(t, MicrosoftLearnURL, server.URL)
		assert.Equal(t, ApprovalNever, server.RequireApproval)
		assert.True(t, server.Enabled)
		assert.Empty(t, server.Token)
		assert.NoError(t, server.Validate())
	})

	t.Run("custom bearer reads url and token", func(t *testing.T) {
		server, err := GetPreset("custom-bearer", envMap(map[string]string{
			EnvCustomServerURL:   "https://mcp.example.test/mcp",
			EnvCustomBearerToken: "s3cret",
		}))
		require.NoError(t, err)

		assert.Equal(t, "custom-mcp-bearer", server.Name)
		assert.Equal(t, "https://mcp.example.test/mcp", server.URL)
		assert.Equal(t, map[string]string{"Authorization": "Bearer s3cret"}, server.RequestHeaders())

		spec, err := server.ToolSpec()
		require.NoError(t, err)
		assert.Equal(t, interfaces.ToolTypeMCP, spec.Type)
		assert.Equal(t, "custom-mcp-bearer", spec.ServerLabel)
		assert.Equal(t, "never", spec.RequireApproval)
	})

	t.Run("custom bearer without token", func(t *testing.T) {
		_, err := GetPreset("custom-bearer", envMap(map[string]string{EnvCustomServerURL: "https://mcp.example.test/mcp"}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), EnvCustomBearerToken)

		var mcpErr *MCPError
		require.True(t, errors.As(err, &mcpErr))
		assert.Equal(t, MCPErrorTypeConfiguration, mcpErr.ErrorType)
	})

	t.Run("unknown preset", func(t *testing.T) {
		_, err := GetPreset("nonexistent", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `preset "nonexistent" not found`)
	})

	t.Run("stdio preset args are copied", func(t *testing.T) {
		first, err := GetPreset("filesystem", nil)
		require.NoError(t, err)
		first.Args[0] = "mutated"

		second, err := GetPreset("filesystem", nil)
		require.NoError(t, err)
		assert.Equal(t, "-y", second.Args[0])

		_, err = second.ToolSpec()
		assert.Error(t, err, "stdio servers cannot be attached to a hosted agent")
	})
}

func TestListPresets(t *testing.T) {
	names := ListPresets()
	assert.Equal(t, []string{"custom-bearer", "everything", "fetch", "filesystem", "microsoft-learn"}, names)
}

func TestGetPresetInfo(t *testing.T) {
	tests := []struct {
		name     string
		contains []string
	}{
		{name: "microsoft-learn", contains: []string{"Label: microsoft-learn-mcp", "Type: http", "URL: " + MicrosoftLearnURL}},
		{name: "custom-bearer", contains: []string{"URL: $" + EnvCustomServerURL, "Required Environment Variables"}},
		{name: "filesystem", contains: []string{"Type: stdio", "Command: npx", "Args: "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := GetPresetInfo(tt.name)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, info, want)
			}
			assert.True(t, strings.HasPrefix(info, "Name: "+tt.name+"\n"))
		})
	}

	_, err := GetPresetInfo("missing")
	assert.Error(t, err)
}

func TestPresetStructure(t *testing.T) {
	for _, name := range ListPresets() {
		preset := presets[name]
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, name, preset.Name)
			assert.NotEmpty(t, preset.Label)
			assert.NotEmpty(t, preset.Description)
			switch preset.Type {
			case ServerTypeHTTP:
				assert.True(t, preset.URL != "" || preset.URLEnv != "")
			case ServerTypeStdio:
				assert.NotEmpty(t, preset.Command)
			default:
				t.Fatalf("unexpected preset type %q", preset.Type)
			}
		})
	}
}
