package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ingenimax/agent-harness-go/pkg/config"
	"github.com/Ingenimax/agent-harness-go/pkg/mcp"
)

type menuItem struct {
	label string
	run   func(ctx context.Context, a *app) error
}

func newMenuCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Pick a demo from a numbered menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())
			return runMenu(cmd.Context(), a, menuItems())
		},
	}
}

func menuItems() []menuItem {
	return []menuItem{
		{"Chat with a new agent", func(ctx context.Context, a *app) error {
			return runChat(ctx, a, sessionFlags{instructions: defaultInstructions})
		}},
		{"Chat with an agent using Microsoft Learn MCP", func(ctx context.Context, a *app) error {
			return runChat(ctx, a, sessionFlags{instructions: mcpInstructions, mcpPresets: []string{"microsoft-learn"}})
		}},
		{"Prompt agent with the custom MCP server", func(ctx context.Context, a *app) error {
			prompt, err := a.readLine(fmt.Sprintf("Prompt [%s]: ", defaultCustomPrompt))
			if err != nil {
				return err
			}
			return runMCPCustom(ctx, a, defaultCustomAgentName, []string{"custom-bearer"}, promptArg([]string{prompt}, defaultCustomPrompt))
		}},
		{"Existing prompt agent with Microsoft Learn MCP", func(ctx context.Context, a *app) error {
			name := a.cfg.Project.AgentName
			if name == "" {
				var err error
				if name, err = a.readLine("Agent name: "); err != nil {
					return err
				}
			}
			if name == "" {
				return errors.New("agent name is required")
			}
			return runMCPExisting(ctx, a, name, []string{"microsoft-learn"}, defaultExistingPrompt)
		}},
		{"Probe MCP servers", func(ctx context.Context, a *app) error {
			fmt.Fprintln(a.out, mutedStyle.Render("presets: "+strings.Join(mcp.ListPresets(), ", ")))
			line, err := a.readLine("Presets to probe [microsoft-learn]: ")
			if err != nil {
				return err
			}
			presets := strings.Fields(strings.ReplaceAll(line, ",", " "))
			if len(presets) == 0 {
				presets = []string{"microsoft-learn"}
			}
			return runMCPProbe(ctx, a, presets)
		}},
		{"Content filter comparison", func(ctx context.Context, a *app) error {
			return runFilterCompare(ctx, a, a.cfg.Filter.CasesFile, "yaml", true)
		}},
		{"Content filter history", func(ctx context.Context, a *app) error {
			store, err := openResultStore(ctx, a.cfg)
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("%s is not set", config.KeyRedisAddr)
			}
			defer store.Close()
			return listHarnesses(ctx, a, store, 10)
		}},
	}
}

// runMenu shows the menu until the user exits. Errors of a chosen item are
// printed and the menu is shown again.
func runMenu(ctx context.Context, a *app, items []menuItem) error {
	for {
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, titleStyle.Render("Agent harness"))
		for i, item := range items {
			fmt.Fprintf(a.out, "  %s %s\n", promptStyle.Render(fmt.Sprintf("%d.", i+1)), item.label)
		}
		fmt.Fprintf(a.out, "  %s %s\n", promptStyle.Render("0."), "Exit")

		choice, err := a.readLine("Choose: ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		var n int
		if _, err := fmt.Sscanf(choice, "%d", &n); err != nil || n < 0 || n > len(items) {
			fmt.Fprintln(a.out, errorStyle.Render("Invalid choice: "+choice))
			continue
		}
		if n == 0 {
			return nil
		}

		if err := items[n-1].run(ctx, a); err != nil {
			if ctx.Err() != nil {
				return err
			}
			fmt.Fprintln(a.out, errorStyle.Render("Error:"), err)
		}
	}
}
