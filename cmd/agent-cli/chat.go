package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ingenimax/agent-harness-go/pkg/agent"
	"github.com/Ingenimax/agent-harness-go/pkg/interfaces"
)

const (
	defaultAgentName    = "console-agent"
	defaultModel        = "gpt-4o"
	defaultInstructions = "You are a helpful assistant. Answer concisely."
)

type sessionFlags struct {
	agentID      string
	name         string
	instructions string
	mcpPresets   []string
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.agentID, "agent-id", "", "use an existing agent instead of creating one (default: AZURE_AI_AGENT_ID)")
	cmd.Flags().StringVar(&f.name, "name", "", "name of the agent to create (default: AZURE_AI_AGENT_NAME)")
	cmd.Flags().StringVar(&f.instructions, "instructions", defaultInstructions, "instructions of the agent to create")
	cmd.Flags().StringSliceVar(&f.mcpPresets, "mcp", nil, "MCP presets to attach, e.g. microsoft-learn (default: servers from MCP_CONFIG_FILE)")
}

func newChatCmd() *cobra.Command {
	var flags sessionFlags
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with an agent on one thread",
		Long: `chat creates an agent (or attaches to an existing one), opens a thread and
sends every line you type as a message. Type /new for a fresh thread and
/exit to quit. The agent and thread are deleted on exit unless --keep is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())
			return runChat(cmd.Context(), a, flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func newAskCmd() *cobra.Command {
	var flags sessionFlags
	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Send a single prompt and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())
			return runAsk(cmd.Context(), a, flags, strings.Join(args, " "))
		},
	}
	flags.register(cmd)
	return cmd
}

// startSession creates or attaches the agent described by flags
func startSession(ctx context.Context, a *app, flags sessionFlags) (*agent.Session, error) {
	spec := interfaces.AgentSpec{
		Name:         flags.name,
		Model:        a.cfg.ModelOrDefault(defaultModel),
		Instructions: flags.instructions,
	}
	if spec.Name == "" {
		spec.Name = a.cfg.Project.AgentName
	}
	if spec.Name == "" {
		spec.Name = defaultAgentName
	}

	var extra []agent.Option
	if len(flags.mcpPresets) > 0 || a.cfg.MCP.ConfigFile != "" {
		servers, err := a.mcpServers(flags.mcpPresets)
		if err != nil {
			return nil, err
		}
		spec.Tools = servers.ToolSpecs()
		// MCP headers travel with each run, not with the agent definition
		extra = append(extra,
			agent.WithToolResources(spec.Tools...),
			agent.WithRunApprover(a.approvalPolicy(servers)),
		)
	}

	session := agent.NewSession(a.agents, a.sessionOptions(extra...)...)

	agentID := flags.agentID
	if agentID == "" {
		agentID = a.cfg.Project.AgentID
	}
	if agentID != "" {
		if err := session.Attach(ctx, agentID); err != nil {
			return nil, err
		}
	} else if err := session.Start(ctx, spec); err != nil {
		return nil, err
	}

	fmt.Fprintln(a.out, mutedStyle.Render(fmt.Sprintf("agent %s  thread %s", session.AgentID(), session.ThreadID())))
	return session, nil
}

func closeSession(ctx context.Context, a *app, session *agent.Session) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := session.Close(ctx); err != nil {
		a.logger.Warn(ctx, "Failed to clean up agent session", map[string]interface{}{"error": err.Error()})
	}
}

func runAsk(ctx context.Context, a *app, flags sessionFlags, prompt string) error {
	session, err := startSession(ctx, a, flags)
	if err != nil {
		return err
	}
	defer closeSession(ctx, a, session)

	fmt.Fprintln(a.out, promptStyle.Render("You:"), prompt)
	reply, err := session.Ask(ctx, prompt)
	if err != nil {
		return err
	}
	printReply(a.out, reply)
	return nil
}

func runChat(ctx context.Context, a *app, flags sessionFlags) error {
	session, err := startSession(ctx, a, flags)
	if err != nil {
		return err
	}
	defer closeSession(ctx, a, session)

	fmt.Fprintln(a.out, titleStyle.Render("Chat"), mutedStyle.Render("/new for a fresh thread, /exit to quit"))
	for {
		line, err := a.readLine("You: ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch line {
		case "":
			continue
		case "/exit", "/quit", "exit", "quit":
			return nil
		case "/new":
			if err := session.NewThread(ctx); err != nil {
				return err
			}
			fmt.Fprintln(a.out, mutedStyle.Render("thread "+session.ThreadID()))
			continue
		}

		reply, err := session.Ask(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			fmt.Fprintln(a.out, errorStyle.Render("Error:"), err)
			continue
		}
		printReply(a.out, reply)
	}
}
