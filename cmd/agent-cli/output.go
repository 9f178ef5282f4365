package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Ingenimax/agent-harness-go/pkg/agent"
	"github.com/Ingenimax/agent-harness-go/pkg/contentfilter"
	"github.com/Ingenimax/agent-harness-go/pkg/interfaces"
	"github.com/Ingenimax/agent-harness-go/pkg/runstep"
)

func outcomeStyle(outcome string) lipgloss.Style {
	switch outcome {
	case string(agent.OutcomeCompleted):
		return successStyle
	case string(agent.OutcomeFiltered):
		return toolStyle.Bold(true)
	default:
		return errorStyle
	}
}

// printReply renders a thread run: tool activity, the answer, then a status line
func printReply(w io.Writer, reply *agent.Reply) {
	for _, line := range runstep.Summarize(reply.Steps) {
		fmt.Fprintln(w, toolStyle.Render("  "+line))
	}

	if reply.Outcome == agent.OutcomeCompleted {
		fmt.Fprintln(w, assistantStyle.Render("Agent:"), reply.Text)
	} else {
		fmt.Fprintln(w, outcomeStyle(string(reply.Outcome)).Render(strings.ToUpper(string(reply.Outcome))), reply.Detail())
	}

	status := fmt.Sprintf("run %s  %s  %s", reply.RunID, reply.Status, reply.Latency.Round(time.Millisecond))
	if reply.Usage.TotalTokens > 0 {
		status += fmt.Sprintf("  %d tokens", reply.Usage.TotalTokens)
	}
	fmt.Fprintln(w, mutedStyle.Render(status))
}

// printExchange renders a responses exchange including approval rounds
func printExchange(w io.Writer, ex *agent.Exchange) {
	for _, d := range ex.Decisions {
		verdict := successStyle.Render("approved")
		if !d.Approve {
			verdict = errorStyle.Render("rejected") + mutedStyle.Render(" "+d.Reason)
		}
		fmt.Fprintln(w, toolStyle.Render("  approval "+d.RequestID), verdict)
	}
	for _, call := range ex.MCPCalls {
		printMCPCall(w, call)
	}

	resp := ex.Response
	if ex.Outcome() == agent.OutcomeCompleted {
		fmt.Fprintln(w, assistantStyle.Render("Agent:"), resp.OutputText)
	} else {
		detail := resp.ErrorCode
		if resp.ErrorMessage != "" {
			detail += ": " + resp.ErrorMessage
		}
		if resp.IncompleteReason != "" {
			detail += " incomplete: " + resp.IncompleteReason
		}
		fmt.Fprintln(w, outcomeStyle(string(ex.Outcome())).Render(strings.ToUpper(string(ex.Outcome()))), strings.TrimSpace(detail))
	}
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("response %s  %s  %d approval round(s)", resp.ID, resp.Status, ex.Rounds)))
}

func printMCPCall(w io.Writer, call interfaces.MCPCallRecord) {
	line := fmt.Sprintf("  mcp %s.%s(%s)", call.ServerLabel, call.Name, call.Arguments)
	if call.Error != "" {
		fmt.Fprintln(w, toolStyle.Render(line), errorStyle.Render(call.Error))
		return
	}
	fmt.Fprintln(w, toolStyle.Render(line))
}

// renderMatrix lays out the case by variant outcome table
func renderMatrix(report *contentfilter.Report) string {
	header, rows := report.Matrix()
	if len(header) == 0 {
		return ""
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	cells := make([]string, len(header))
	for i, h := range header {
		cells[i] = headerCellStyle.Width(widths[i] + 2).Render(h)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	b.WriteString("\n")

	for _, row := range rows {
		for i, cell := range row {
			style := cellStyle
			if i > 0 {
				style = outcomeStyle(cell).Padding(0, 1)
			}
			cells[i] = style.Width(widths[i] + 2).Render(cell)
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		b.WriteString("\n")
	}
	return b.String()
}

// printSummary renders per variant counts and the divergent cases
func printSummary(w io.Writer, report *contentfilter.Report) {
	fmt.Fprintln(w, titleStyle.Render("Content filter comparison "+report.HarnessID))
	fmt.Fprint(w, renderMatrix(report))
	fmt.Fprintln(w)

	for _, s := range report.Summary {
		fmt.Fprintf(w, "%s  completed %d  filtered %d  failed %d  errors %d  mean %dms\n",
			promptStyle.Render(s.Variant), s.Completed, s.Filtered, s.Failed, s.Errors, s.MeanLatencyMS)
	}

	if len(report.Divergences) == 0 {
		fmt.Fprintln(w, successStyle.Render("All variants agreed on every case"))
		return
	}
	fmt.Fprintln(w, toolStyle.Bold(true).Render(fmt.Sprintf("%d divergent case(s): %s",
		len(report.Divergences), strings.Join(report.DivergentCaseIDs(), ", "))))
}
