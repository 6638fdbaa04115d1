package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#2F71F2", Dark: "#4A90FF"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#FF4672"}
	ColorDim     = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#666666"}

	StyleError = lipgloss.NewStyle().Foreground(ColorError)

	StyleHelpBar = lipgloss.NewStyle().Foreground(ColorDim)

	StyleStatusBar = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(ColorPrimary).
			Padding(0, 1)

	StylePrompt = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
)
