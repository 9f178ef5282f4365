package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ingenimax/agent-harness-go/pkg/agent"
	"github.com/Ingenimax/agent-harness-go/pkg/foundry"
	"github.com/Ingenimax/agent-harness-go/pkg/interfaces"
	"github.com/Ingenimax/agent-harness-go/pkg/mcp"
)

const (
	defaultCustomAgentName = "mcp-custom-agent"
	defaultCustomPrompt    = "multiply 10 and 20"
	defaultExistingPrompt  = "Please summarize latest features of Azure Cosmos DB from Microsoft Learn."
	mcpInstructions        = "Always use the configured MCP tools when answering queries"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run prompt agents that call MCP tools",
	}
	cmd.AddCommand(newMCPCustomCmd())
	cmd.AddCommand(newMCPExistingCmd())
	cmd.AddCommand(newMCPProbeCmd())
	cmd.AddCommand(newMCPPresetsCmd())
	return cmd
}

func newMCPCustomCmd() *cobra.Command {
	var (
		name    string
		presets []string
	)
	cmd := &cobra.Command{
		Use:   "custom [prompt]",
		Short: "Create a prompt agent version with MCP tools and ask it",
		Long: `custom creates a new version of a prompt agent whose tools are the given MCP
servers (by default the bearer protected server at CUSTOM_MCP_SERVER_URL),
opens a conversation and asks the prompt, answering tool approval requests
on the way. The version is deleted afterwards unless --keep is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())
			return runMCPCustom(cmd.Context(), a, name, presets, promptArg(args, defaultCustomPrompt))
		},
	}
	cmd.Flags().StringVar(&name, "name", defaultCustomAgentName, "prompt agent name")
	cmd.Flags().StringSliceVar(&presets, "preset", []string{"custom-bearer"}, "MCP presets to attach")
	return cmd
}

func newMCPExistingCmd() *cobra.Command {
	var (
		name    string
		presets []string
	)
	cmd := &cobra.Command{
		Use:   "existing [prompt]",
		Short: "Ask the latest version of an existing prompt agent",
		Long: `existing looks up a prompt agent by name (default: AZURE_AI_AGENT_NAME), opens
a conversation and asks the prompt. Approval requests are granted for the
servers named by --preset.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())
			if name == "" {
				name = a.cfg.Project.AgentName
			}
			if name == "" {
				return errors.New("agent name is required: pass --name or set AZURE_AI_AGENT_NAME")
			}
			return runMCPExisting(cmd.Context(), a, name, presets, promptArg(args, defaultExistingPrompt))
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "prompt agent name")
	cmd.Flags().StringSliceVar(&presets, "preset", []string{"microsoft-learn"}, "MCP presets whose approval requests are granted")
	return cmd
}

func newMCPProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe [preset...]",
		Short: "Connect to MCP servers and list their tools",
		Long: `probe connects to each server, completes the MCP handshake and lists the tools
it advertises. Without arguments it probes the servers of MCP_CONFIG_FILE.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newLocalApp(cmd)
			if err != nil {
				return err
			}
			return runMCPProbe(cmd.Context(), a, args)
		},
	}
}

func newMCPPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the built-in MCP server presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, name := range mcp.ListPresets() {
				info, err := mcp.GetPresetInfo(name)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, titleStyle.Render(name))
				fmt.Fprintln(out, info)
			}
			return nil
		},
	}
}

func promptArg(args []string, def string) string {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return args[0]
	}
	return def
}

// approvalPolicy grants requests for the given servers, asking on the
// console for servers that require approval
func (a *app) approvalPolicy(servers *mcp.Configuration) *mcp.ApprovalPolicy {
	policy := mcp.PolicyFromConfig(servers)
	policy.Prompter = a.stdinPrompter()
	return policy
}

func runMCPCustom(ctx context.Context, a *app, name string, presets []string, prompt string) error {
	servers, err := a.mcpServers(presets)
	if err != nil {
		return errors.New(mcp.FormatUserFriendlyError(err))
	}

	spec := interfaces.AgentSpec{
		Name:         name,
		Model:        a.cfg.ModelOrDefault(defaultModel),
		Instructions: mcpInstructions,
	}
	for _, server := range servers.EnabledServers() {
		tool, err := server.ToolSpec()
		if err != nil {
			return errors.New(mcp.FormatUserFriendlyError(err))
		}
		spec.Tools = append(spec.Tools, tool)
	}

	version, err := a.client.CreateAgentVersion(ctx, spec)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, mutedStyle.Render(fmt.Sprintf("agent %s  version %s", version.Name, version.LatestVersion)))

	if !keepAgents {
		defer func() {
			cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := a.client.DeleteAgentVersion(cleanupCtx, version.Name, version.LatestVersion); err != nil {
				a.logger.Warn(ctx, "Failed to delete agent version", map[string]interface{}{
					"agent":   version.Name,
					"version": version.LatestVersion,
					"error":   err.Error(),
				})
			}
		}()
	}

	return converse(ctx, a, version, servers, prompt)
}

func runMCPExisting(ctx context.Context, a *app, name string, presets []string, prompt string) error {
	servers, err := a.mcpServers(presets)
	if err != nil {
		return errors.New(mcp.FormatUserFriendlyError(err))
	}

	existing, err := a.client.GetPromptAgent(ctx, name)
	if err != nil {
		if errors.Is(err, foundry.ErrNotFound) {
			return fmt.Errorf("prompt agent %q does not exist", name)
		}
		return err
	}
	fmt.Fprintln(a.out, mutedStyle.Render(fmt.Sprintf("agent %s  latest version %s", existing.Name, existing.LatestVersion)))

	return converse(ctx, a, existing, servers, prompt)
}

// converse opens a conversation with a prompt agent and asks one prompt
func converse(ctx context.Context, a *app, promptAgent *foundry.PromptAgent, servers *mcp.Configuration, prompt string) error {
	conversation := agent.NewConversation(a.client.Responses(), promptAgent.Ref(),
		agent.WithApprover(a.approvalPolicy(servers)),
		agent.WithConversationLogger(a.logger),
	)
	if err := conversation.Open(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, mutedStyle.Render("conversation "+conversation.ID()))

	fmt.Fprintln(a.out, promptStyle.Render("You:"), prompt)
	exchange, err := conversation.AskWithApprovals(ctx, prompt)
	if err != nil {
		return err
	}
	printExchange(a.out, exchange)
	return nil
}

func runMCPProbe(ctx context.Context, a *app, presets []string) error {
	if len(presets) == 0 && a.cfg.MCP.ConfigFile == "" {
		return errors.New("name presets to probe or set MCP_CONFIG_FILE")
	}
	servers, err := a.mcpServers(presets)
	if err != nil {
		return errors.New(mcp.FormatUserFriendlyError(err))
	}

	timeout := servers.Global.ProbeTimeout(mcp.DefaultProbeTimeout)
	var failed int
	for _, server := range servers.EnabledServers() {
		fmt.Fprintln(a.out, titleStyle.Render(server.Name), mutedStyle.Render(server.Type+" "+serverTarget(server)))

		result, err := mcp.Probe(ctx, server, timeout, mcp.WithLogger(a.logger))
		if err != nil {
			failed++
			fmt.Fprintln(a.out, errorStyle.Render("  "+mcp.FormatUserFriendlyError(err)))
			continue
		}

		fmt.Fprintln(a.out, successStyle.Render(fmt.Sprintf("  %s %s", result.Server.Name, result.Server.Version)),
			mutedStyle.Render(fmt.Sprintf("%d tools in %s", len(result.Tools), result.Latency.Round(time.Millisecond))))
		for _, tool := range result.Tools {
			fmt.Fprintf(a.out, "  %s(%s)\n", toolStyle.Render(tool.Name), strings.Join(tool.Parameters(), ", "))
			if tool.Description != "" {
				fmt.Fprintln(a.out, mutedStyle.Render("    "+firstLine(tool.Description)))
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d MCP server(s) failed the probe", failed)
	}
	return nil
}

func serverTarget(server mcp.ServerConfig) string {
	if server.Type == mcp.ServerTypeStdio {
		return strings.TrimSpace(server.Command + " " + strings.Join(server.Args, " "))
	}
	return server.URL
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
