package ui

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.Color("#7B68EE")

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent)

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8A8FA3"))

	HelpBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 2)
)
