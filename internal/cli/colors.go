package cli

import "github.com/charmbracelet/lipgloss"

// Groove colour palette
// Shared by the CLI output, the help printer and the batch TUI
var (
	// Core colours (cool to warm)
	BeatViolet  = lipgloss.Color("#7B2FBE") // Deep violet
	BeatMagenta = lipgloss.Color("#C13CFF") // Bright magenta
	BeatPink    = lipgloss.Color("#FF4FA3") // Hot pink
	BeatAmber   = lipgloss.Color("#FFB347") // Warm amber

	// Accent colours
	MutedLilac = lipgloss.Color("#9E8FB2") // Subtle text
	GoodGreen  = lipgloss.Color("#3DBE6E") // Valid results
	BadRed     = lipgloss.Color("#E0445A") // Errors and invalid results
)
