package cli

import "github.com/charmbracelet/lipgloss"

// Pulse colour palette - shared theme colours for consistent branding
// across the CLI and the live TUI view.
var (
	// Core pulse colours
	PulseYellow = lipgloss.Color("#FFD700") // Bright yellow, high confidence
	PulseOrange = lipgloss.Color("#FF8C00") // Deep orange
	PulseRed    = lipgloss.Color("#FF4500") // Orange-red, onset flash
	PulseBlue   = lipgloss.Color("#1E90FF") // Beat marker

	// Accent colours
	WarmGray = lipgloss.Color("#B8860B") // Dark goldenrod for subtle text
)
