package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ingenimax/agent-harness-go/pkg/agent"
	"github.com/Ingenimax/agent-harness-go/pkg/config"
	"github.com/Ingenimax/agent-harness-go/pkg/foundry"
	"github.com/Ingenimax/agent-harness-go/pkg/interfaces"
	"github.com/Ingenimax/agent-harness-go/pkg/logging"
	"github.com/Ingenimax/agent-harness-go/pkg/mcp"
	"github.com/Ingenimax/agent-harness-go/pkg/tracing"
)

const shutdownTimeout = 5 * time.Second

// app holds the dependencies shared by every command. It is built once per
// command invocation and passed down explicitly.
type app struct {
	cfg     *config.Config
	logger  *logging.ZeroLogger
	client  *foundry.Client
	agents  interfaces.AgentService
	tracing *tracing.Provider

	in  *bufio.Reader
	out io.Writer
}

// loadConfig reads configuration and applies the command line overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) *logging.ZeroLogger {
	return logging.New(
		logging.WithLevel(cfg.Log.Level),
		logging.WithJSON(cfg.Log.Format == "json"),
		logging.WithOutput(w),
	)
}

// newApp wires configuration, logging, tracing and the service client
func newApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	opts := []foundry.Option{
		foundry.WithAPIVersion(cfg.Project.APIVersion),
		foundry.WithLogger(logger),
	}
	if cfg.Auth.APIKey != "" {
		opts = append(opts, foundry.WithAPIKey(cfg.Auth.APIKey))
	} else {
		hc, err := foundry.CredentialsHTTPClient(ctx, foundry.Credentials{
			TenantID:      cfg.Auth.TenantID,
			ClientID:      cfg.Auth.ClientID,
			ClientSecret:  cfg.Auth.ClientSecret,
			AuthorityHost: cfg.Auth.AuthorityHost,
			Scope:         cfg.Auth.Scope,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, foundry.WithHTTPClient(hc))
	}

	client, err := foundry.New(cfg.Project.Endpoint, opts...)
	if err != nil {
		return nil, err
	}

	provider, err := tracing.Setup(ctx, tracing.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}

	logger.Debug(ctx, "Harness configured", map[string]interface{}{
		"endpoint":    client.Endpoint(),
		"api_version": cfg.Project.APIVersion,
		"auth":        authMode(cfg),
		"tracing":     cfg.Tracing.Endpoint != "",
	})

	return &app{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		agents:  tracing.NewServiceMiddleware(client, provider.Tracer()),
		tracing: provider,
		in:      bufio.NewReader(cmd.InOrStdin()),
		out:     cmd.OutOrStdout(),
	}, nil
}

// newLocalApp wires configuration and logging only, for commands that never
// reach the agent service
func newLocalApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:    cfg,
		logger: newLogger(cfg, cmd.ErrOrStderr()),
		in:     bufio.NewReader(cmd.InOrStdin()),
		out:    cmd.OutOrStdout(),
	}, nil
}

func authMode(cfg *config.Config) string {
	if cfg.Auth.APIKey != "" {
		return "api-key"
	}
	return "client-credentials"
}

// close flushes spans. It runs after the command context may have ended.
func (a *app) close(ctx context.Context) {
	if a.tracing == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := a.tracing.Shutdown(ctx); err != nil {
		a.logger.Warn(ctx, "Failed to flush traces", map[string]interface{}{"error": err.Error()})
	}
}

// sessionOptions returns the options every agent session shares
func (a *app) sessionOptions(extra ...agent.Option) []agent.Option {
	opts := []agent.Option{
		agent.WithLogger(a.logger),
		agent.WithPollPolicy(a.cfg.PollPolicy()),
		agent.WithTracer(a.tracing.Tracer()),
		agent.WithCleanup(!keepAgents),
	}
	return append(opts, extra...)
}

// readLine prints prompt and reads one trimmed line. io.EOF ends input.
func (a *app) readLine(prompt string) (string, error) {
	fmt.Fprint(a.out, promptStyle.Render(prompt))
	line, err := a.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// stdinPrompter asks on the console before an MCP tool runs
func (a *app) stdinPrompter() mcp.Prompter {
	return func(ctx context.Context, req interfaces.ApprovalRequest) (bool, error) {
		fmt.Fprintln(a.out, toolStyle.Render(fmt.Sprintf("%s wants to call %s", req.ServerLabel, req.Name)))
		if req.Arguments != "" {
			fmt.Fprintln(a.out, mutedStyle.Render("  arguments: "+req.Arguments))
		}
		answer, err := a.readLine("Approve? [y/N] ")
		if err != nil {
			return false, err
		}
		answer = strings.ToLower(answer)
		return answer == "y" || answer == "yes", nil
	}
}

// mcpServers resolves MCP servers from preset names, falling back to the
// servers of the configured MCP config file
func (a *app) mcpServers(presets []string) (*mcp.Configuration, error) {
	lookup := func(key string) string {
		if key == mcp.EnvCustomBearerToken && a.cfg.MCP.BearerToken != "" {
			return a.cfg.MCP.BearerToken
		}
		return a.cfg.Lookup(key)
	}

	if len(presets) == 0 && a.cfg.MCP.ConfigFile != "" {
		cfg, err := mcp.LoadConfig(a.cfg.MCP.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg.ExpandEnv(lookup)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cfg := &mcp.Configuration{}
	for _, name := range presets {
		server, err := mcp.GetPreset(name, lookup)
		if err != nil {
			return nil, err
		}
		cfg.Servers = append(cfg.Servers, server)
	}
	return cfg, nil
}
