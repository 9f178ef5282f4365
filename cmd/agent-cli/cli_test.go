package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ingenimax/agent-harness-go/pkg/agent"
	"github.com/Ingenimax/agent-harness-go/pkg/config"
	"github.com/Ingenimax/agent-harness-go/pkg/contentfilter"
	"github.com/Ingenimax/agent-harness-go/pkg/interfaces"
	"github.com/Ingenimax/agent-harness-go/pkg/mcp"
)

func testApp(input string) (*app, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &app{
		cfg: &config.Config{},
		in:  bufio.NewReader(strings.NewReader(input)),
		out: out,
	}, out
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()
	assert.Equal(t, "agent-cli", root.Use)
	assert.True(t, root.SilenceUsage)

	for _, path := range [][]string{
		{"chat"},
		{"ask"},
		{"menu"},
		{"mcp", "custom"},
		{"mcp", "existing"},
		{"mcp", "probe"},
		{"mcp", "presets"},
		{"filter", "compare"},
		{"filter", "history"},
		{"filter", "init"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestRunMenu(t *testing.T) {
	var calls []string
	items := []menuItem{
		{"first", func(ctx context.Context, a *app) error { calls = append(calls, "first"); return nil }},
		{"second", func(ctx context.Context, a *app) error { calls = append(calls, "second"); return errors.New("boom") }},
	}

	a, out := testApp("1\nnope\n9\n2\n1\n0\n")
	require.NoError(t, runMenu(context.Background(), a, items))

	assert.Equal(t, []string{"first", "second", "first"}, calls)
	assert.Equal(t, 2, strings.Count(out.String(), "Invalid choice"))
	assert.Contains(t, out.String(), "boom")
}

func TestRunMenu_EndOfInput(t *testing.T) {
	a, _ := testApp("")
	assert.NoError(t, runMenu(context.Background(), a, menuItems()))
}

func TestStdinPrompter(t *testing.T) {
	req := interfaces.ApprovalRequest{ID: "apr_1", ServerLabel: "calc", Name: "multiply", Arguments: `{"a":10,"b":20}`}

	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
	}
	for _, tt := range tests {
		a, out := testApp(tt.input)
		ok, err := a.stdinPrompter()(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, tt.want, ok, tt.input)
		assert.Contains(t, out.String(), "calc wants to call multiply")
	}

	a, _ := testApp("")
	_, err := a.stdinPrompter()(context.Background(), req)
	assert.Error(t, err)
}

func TestMCPServers_Presets(t *testing.T) {
	t.Setenv(mcp.EnvCustomServerURL, "https://mcp.example.test/mcp")

	a, _ := testApp("")
	a.cfg.MCP.BearerToken = "secret"

	servers, err := a.mcpServers([]string{"custom-bearer", "microsoft-learn"})
	require.NoError(t, err)
	require.Len(t, servers.Servers, 2)

	custom := servers.Servers[0]
	assert.Equal(t, "custom-mcp-bearer", custom.Name)
	assert.Equal(t, "https://mcp.example.test/mcp", custom.URL)
	assert.Equal(t, "Bearer secret", custom.RequestHeaders()["Authorization"])

	specs := servers.ToolSpecs()
	require.Len(t, specs, 2)
	assert.Equal(t, mcp.MicrosoftLearnURL, specs[1].ServerURL)

	_, err = a.mcpServers([]string{"no-such-preset"})
	assert.Error(t, err)
}

func TestMCPServers_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`servers:
  - name: calc
    type: http
    url: https://calc.example.test/mcp
    token: ${CALC_TOKEN}
    enabled: true
`), 0o644))
	t.Setenv("CALC_TOKEN", "t0k")

	a, _ := testApp("")
	a.cfg.MCP.ConfigFile = path

	servers, err := a.mcpServers(nil)
	require.NoError(t, err)
	require.Len(t, servers.Servers, 1)
	assert.Equal(t, "t0k", servers.Servers[0].Token)
}

func TestFilterInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.yaml")

	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"filter", "init", path})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	suite, err := contentfilter.ParseSuite(data, "gpt-4o")
	require.NoError(t, err)
	assert.Len(t, suite.Cases, 3)
	assert.Equal(t, []string{"default", "strict"}, suite.VariantNames())
	assert.Equal(t, "gpt-4o", suite.Variants[0].Agent.Model)
	assert.Equal(t, "gpt-4o-strict", suite.Variants[1].Agent.Model)

	root = newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"filter", "init", path})
	assert.ErrorContains(t, root.Execute(), "already exists")
}

func TestPrintSummary(t *testing.T) {
	start := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	report := contentfilter.NewReport("h1", "demo", []string{"default", "strict"}, []contentfilter.Result{
		{CaseID: "recipe", Variant: "default", Outcome: contentfilter.OutcomeCompleted, StartedAt: start},
		{CaseID: "recipe", Variant: "strict", Outcome: contentfilter.OutcomeCompleted, StartedAt: start},
		{CaseID: "lock", Variant: "default", Outcome: contentfilter.OutcomeCompleted, StartedAt: start},
		{CaseID: "lock", Variant: "strict", Outcome: contentfilter.OutcomeFiltered, StartedAt: start},
	})

	out := &bytes.Buffer{}
	printSummary(out, report)

	text := out.String()
	assert.Contains(t, text, "Content filter comparison h1")
	assert.Contains(t, text, "filtered")
	assert.Contains(t, text, "1 divergent case(s): lock")
}

func TestPrintReply(t *testing.T) {
	out := &bytes.Buffer{}
	printReply(out, &agent.Reply{
		RunID:     "run_1",
		Outcome:   agent.OutcomeFiltered,
		Status:    interfaces.RunStatusFailed,
		LastError: &interfaces.RunError{Code: "content_filter", Message: "blocked"},
		Latency:   1500 * time.Millisecond,
	})
	assert.Contains(t, out.String(), "FILTERED")
	assert.Contains(t, out.String(), "content_filter: blocked")
	assert.Contains(t, out.String(), "run run_1")
}

func TestPromptArg(t *testing.T) {
	assert.Equal(t, "def", promptArg(nil, "def"))
	assert.Equal(t, "def", promptArg([]string{"  "}, "def"))
	assert.Equal(t, "hi", promptArg([]string{"hi"}, "def"))
}
