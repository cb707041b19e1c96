package ui

import "github.com/charmbracelet/lipgloss"

var (
	colorSuccess = lipgloss.Color("#059669")
	colorWarning = lipgloss.Color("#D97706")
	colorError   = lipgloss.Color("#DC2626")
	colorMuted   = lipgloss.Color("#9CA3AF")
	colorAccent  = lipgloss.Color("#A78BFA")

	promptStyle  = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)

	diffAddStyle    = lipgloss.NewStyle().Foreground(colorSuccess)
	diffRemoveStyle = lipgloss.NewStyle().Foreground(colorError)
	diffHeadStyle   = lipgloss.NewStyle().Foreground(colorMuted).Bold(true)
)
