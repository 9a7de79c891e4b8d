package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/linuxmatters/jivebeat/internal/cli"
)

var blocks = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// barColours grade from quiet to loud
var barColours = []lipgloss.Color{cli.BeatViolet, cli.BeatMagenta, cli.BeatPink, cli.BeatAmber}

// renderPitchBars draws one block glyph per pitch class, scaled to the
// largest value and padded to three columns so labels line up beneath.
func renderPitchBars(values []float64) string {
	if len(values) == 0 {
		return ""
	}

	peak := 0.0
	for _, v := range values {
		peak = max(peak, v)
	}
	if peak == 0 {
		peak = 1
	}

	var b strings.Builder
	for _, v := range values {
		level := max(0, min(1, v/peak))
		idx := int(level * float64(len(blocks)-1))
		colour := barColours[min(len(barColours)-1, int(level*float64(len(barColours))))]
		b.WriteString(lipgloss.NewStyle().Foreground(colour).Render(string(blocks[idx])))
		b.WriteString("  ")
	}
	return strings.TrimRight(b.String(), " ")
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
