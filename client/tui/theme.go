package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorSuccess = lipgloss.AdaptiveColor{Light: "#2e7d32", Dark: "#66bb6a"}
	colorError   = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ef5350"}
	colorInfo    = lipgloss.AdaptiveColor{Light: "#0277bd", Dark: "#4fc3f7"}
	colorAccent  = lipgloss.AdaptiveColor{Light: "#6a1b9a", Dark: "#ce93d8"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9e9e9e"}
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	onlineStyle    = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	offlineStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	userStyle      = lipgloss.NewStyle().Foreground(colorInfo).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	systemStyle    = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
	videoStyle     = lipgloss.NewStyle().Foreground(colorSuccess)
	errorStyle     = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	recordingStyle = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	hintStyle      = lipgloss.NewStyle().Faint(true)
)
