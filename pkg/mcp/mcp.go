// Package mcp configures the MCP servers attached to hosted agents, decides
// which tool calls they may make and probes servers directly for preflight
// checks.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Ingenimax/agent-harness-go/pkg/logging"
)

// DefaultProbeTimeout bounds a probe when the configuration sets no timeout
const DefaultProbeTimeout = 30 * time.Second

var clientInfo = &sdk.Implementation{Name: "agent-harness", Version: "1.0.0"}

// ServerInfo identifies a connected server
type ServerInfo struct {
	Name    string
	Version string
}

// ToolInfo is a tool advertised by a server
type ToolInfo struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
}

// Parameters lists the tool's input properties, required ones marked with *
func (t ToolInfo) Parameters() []string {
	if t.Schema == nil || len(t.Schema.Properties) == 0 {
		return nil
	}
	required := make(map[string]bool, len(t.Schema.Required))
	for _, name := range t.Schema.Required {
		required[name] = true
	}

	params := make([]string, 0, len(t.Schema.Properties))
	for name := range t.Schema.Properties {
		if required[name] {
			name += "*"
		}
		params = append(params, name)
	}
	sort.Strings(params)
	return params
}

// Session is an open connection to one MCP server
type Session struct {
	server  ServerConfig
	session *sdk.ClientSession
	logger  logging.Logger
}

// ConnectOption configures Connect
type ConnectOption func(*connectOptions)

type connectOptions struct {
	httpClient *http.Client
	logger     logging.Logger
}

// WithHTTPClient sets the base HTTP client for http servers
func WithHTTPClient(hc *http.Client) ConnectOption {
	return func(o *connectOptions) {
		o.httpClient = hc
	}
}

// WithLogger sets the logger
func WithLogger(logger logging.Logger) ConnectOption {
	return func(o *connectOptions) {
		o.logger = logger
	}
}

// Connect opens a session to server and completes the MCP handshake
func Connect(ctx context.Context, server ServerConfig, opts ...ConnectOption) (*Session, error) {
	o := connectOptions{httpClient: http.DefaultClient, logger: logging.NoOp()}
	for _, opt := range opts {
		opt(&o)
	}

	if err := server.Validate(); err != nil {
		return nil, err
	}

	var transport sdk.Transport
	switch server.Type {
	case ServerTypeHTTP:
		transport = &sdk.StreamableClientTransport{
			Endpoint:   server.URL,
			HTTPClient: withHeaders(o.httpClient, server.RequestHeaders()),
		}
	case ServerTypeStdio:
		cmd := exec.Command(server.Command, server.Args...)
		cmd.Env = append(os.Environ(), server.Env...)
		transport = &sdk.CommandTransport{Command: cmd}
	}

	client := sdk.NewClient(clientInfo, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, ClassifyError(err, "Connect", server.Name, server.Type)
	}

	s := &Session{server: server, session: session, logger: o.logger}
	info := s.ServerInfo()
	o.logger.Debug(ctx, "Connected to MCP server", map[string]interface{}{
		"server":         server.Name,
		"type":           server.Type,
		"server_name":    info.Name,
		"server_version": info.Version,
	})
	return s, nil
}

// ServerInfo returns the identity the server reported during the handshake
func (s *Session) ServerInfo() ServerInfo {
	res := s.session.InitializeResult()
	if res == nil || res.ServerInfo == nil {
		return ServerInfo{}
	}
	return ServerInfo{Name: res.ServerInfo.Name, Version: res.ServerInfo.Version}
}

// ListTools returns every tool the server advertises, following pagination
func (s *Session) ListTools(ctx context.Context) ([]ToolInfo, error) {
	var tools []ToolInfo
	for tool, err := range s.session.Tools(ctx, nil) {
		if err != nil {
			return nil, ClassifyError(err, "ListTools", s.server.Name, s.server.Type)
		}
		info, err := toToolInfo(tool)
		if err != nil {
			return nil, NewMCPError("ListTools", s.server.Name, s.server.Type, MCPErrorTypeSerialization, err).
				WithMetadata("tool_name", tool.Name)
		}
		tools = append(tools, info)
	}
	return tools, nil
}

// CallTool invokes a tool and returns its text output
func (s *Session) CallTool(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	res, err := s.session.CallTool(ctx, &sdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", ClassifyError(err, "CallTool", s.server.Name, s.server.Type).WithMetadata("tool_name", name)
	}

	var parts []string
	for _, content := range res.Content {
		if text, ok := content.(*sdk.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	output := strings.Join(parts, "\n")

	if res.IsError {
		return output, NewMCPError("CallTool", s.server.Name, s.server.Type, MCPErrorTypeUnknown,
			fmt.Errorf("tool reported an error: %s", output)).WithMetadata("tool_name", name)
	}
	return output, nil
}

// Close ends the session
func (s *Session) Close() error {
	return s.session.Close()
}

// ProbeResult is the outcome of a preflight check
type ProbeResult struct {
	Server  ServerInfo
	Tools   []ToolInfo
	Latency time.Duration
}

// Probe connects to server, lists its tools and disconnects
func Probe(ctx context.Context, server ServerConfig, timeout time.Duration, opts ...ConnectOption) (*ProbeResult, error) {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	session, err := Connect(ctx, server, opts...)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	tools, err := session.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	return &ProbeResult{
		Server:  session.ServerInfo(),
		Tools:   tools,
		Latency: time.Since(start),
	}, nil
}

// toToolInfo decodes the advertised input schema, whatever form the SDK holds it in
func toToolInfo(tool *sdk.Tool) (ToolInfo, error) {
	info := ToolInfo{Name: tool.Name, Description: tool.Description}
	if tool.InputSchema == nil {
		return info, nil
	}

	raw, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return info, fmt.Errorf("failed to encode input schema: %w", err)
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return info, fmt.Errorf("failed to decode input schema: %w", err)
	}
	info.Schema = &schema
	return info, nil
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

func withHeaders(hc *http.Client, headers map[string]string) *http.Client {
	if len(headers) == 0 {
		return hc
	}
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	clone := *hc
	clone.Transport = &headerTransport{base: base, headers: headers}
	return &clone
}
