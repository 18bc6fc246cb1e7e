package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("39")
	colorSuccess = lipgloss.Color("42")
	colorWarning = lipgloss.Color("220")
	colorError   = lipgloss.Color("196")
	colorDim     = lipgloss.Color("241")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	runningStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	exitedStyle = lipgloss.NewStyle().
			Foreground(colorError)

	idleStyle = lipgloss.NewStyle().
			Foreground(colorSuccess)

	stderrStyle = lipgloss.NewStyle().
			Foreground(colorError)

	outputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)
)
