package main

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary   = lipgloss.Color("63")
	colorUser      = lipgloss.Color("39")
	colorAssistant = lipgloss.Color("213")
	colorTool      = lipgloss.Color("214")
	colorSuccess   = lipgloss.Color("42")
	colorError     = lipgloss.Color("196")
	colorMuted     = lipgloss.Color("241")
)

var (
	titleStyle = lipgloss.NewStyle().
			Background(colorPrimary).
			Foreground(lipgloss.Color("230")).
			Padding(0, 1).
			Bold(true)

	promptStyle = lipgloss.NewStyle().
			Foreground(colorUser).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(colorAssistant).
			Bold(true)

	toolStyle = lipgloss.NewStyle().
			Foreground(colorTool)

	successStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	headerCellStyle = cellStyle.
			Bold(true).
			Foreground(colorPrimary)
)
