package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configFile string
	logLevel   string
	keepAgents bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "agent-cli",
		Short: "Console harness for hosted agents",
		Long: `agent-cli creates hosted agents, opens threads, sends messages and waits
for runs to finish. It can attach MCP servers to agents and compare how agents
with different content filter policies answer the same prompts.

Configuration comes from the environment, a .env file in the working
directory, or the file named by --config.`,
		Version: version,
		// errors are reported by the commands themselves
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, json or env)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&keepAgents, "keep", false, "keep created agents and threads instead of deleting them on exit")

	root.AddCommand(newChatCmd())
	root.AddCommand(newAskCmd())
	root.AddCommand(newMCPCmd())
	root.AddCommand(newFilterCmd())
	root.AddCommand(newMenuCmd())
	return root
}

// Execute runs the root command until it finishes or the process is interrupted
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
