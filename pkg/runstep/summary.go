package runstep

import (
	"fmt"
	"strings"
)

const maxSummaryField = 120

// Describe renders a single tool call as one console line
func Describe(call ToolCall) string {
	switch c := call.(type) {
	case MCPCall:
		return fmt.Sprintf("mcp %s.%s(%s) -> %s", c.ServerLabel, c.Name, truncate(c.Arguments), truncate(c.Output))
	case FunctionCall:
		return fmt.Sprintf("function %s(%s) -> %s", c.Name, truncate(c.Arguments), truncate(c.Output))
	case CodeInterpreterCall:
		return fmt.Sprintf("code_interpreter (%d outputs): %s", len(c.Outputs), truncate(c.Input))
	case FileSearchCall:
		return fmt.Sprintf("file_search (%d results)", c.Results)
	case Activity:
		if c.Detail == "" {
			return fmt.Sprintf("activity %s", c.Kind)
		}
		return fmt.Sprintf("activity %s: %s", c.Kind, truncate(c.Detail))
	default:
		return ""
	}
}

// Summarize renders run steps as console lines, one per message or tool call
func Summarize(steps []Step) []string {
	var lines []string
	for _, step := range steps {
		switch s := step.(type) {
		case MessageCreation:
			lines = append(lines, fmt.Sprintf("[%s] message %s", s.Status, s.MessageID))
		case ToolCalls:
			for _, call := range s.Calls {
				if line := Describe(call); line != "" {
					lines = append(lines, fmt.Sprintf("[%s] %s", s.Status, line))
				}
			}
		}
	}
	return lines
}

// MCPCalls returns every MCP invocation found in steps, in order
func MCPCalls(steps []Step) []MCPCall {
	var calls []MCPCall
	for _, step := range steps {
		tc, ok := step.(ToolCalls)
		if !ok {
			continue
		}
		for _, call := range tc.Calls {
			if mcp, ok := call.(MCPCall); ok {
				calls = append(calls, mcp)
			}
		}
	}
	return calls
}

// Text joins the text parts of a message, skipping non-text content
func Text(contents []Content) string {
	var parts []string
	for _, c := range contents {
		if t, ok := c.(TextContent); ok && t.Text != "" {
			parts = append(parts, t.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= maxSummaryField {
		return s
	}
	return s[:maxSummaryField] + "..."
}
