package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/linuxmatters/jivebeat/internal/analysis"
)

const (
	appName    = "Jivebeat 🎵"
	appTagline = "Find the tempo and key of your tracks."
)

// Styles
var (
	// Title style - bold violet
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(BeatMagenta).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(MutedLilac).
			Italic(true)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(BeatAmber).
			MarginTop(1).
			MarginBottom(1)

	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(GoodGreen)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(BadRed)

	// Highlight style for tempo and key
	HighlightStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(BeatAmber)

	// Key-value pair styles
	KeyStyle = lipgloss.NewStyle().
			Foreground(MutedLilac)

	ValueStyle = lipgloss.NewStyle().
			Bold(true)

	// Box style for framed content
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BeatViolet).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)
)

// PrintBanner prints the application banner
func PrintBanner() {
	fmt.Println(TitleStyle.Render(appName))
	fmt.Println(SubtitleStyle.Render(appTagline))
	fmt.Println()
}

// PrintVersion prints version information
func PrintVersion(version, engineVersion string) {
	fmt.Println(TitleStyle.Render(appName))
	fmt.Printf("%s %s\n", KeyStyle.Render("Version:"), ValueStyle.Render(version))
	fmt.Printf("%s %s\n", KeyStyle.Render("Analysis:"), ValueStyle.Render(engineVersion))
	fmt.Println()
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), message)
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", HighlightStyle.Render("Warning:"), message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("%s %s\n", SuccessStyle.Render("✓"), message)
}

// PrintInfo prints an informational message
func PrintInfo(key, value string) {
	fmt.Printf("%s %s\n", KeyStyle.Render(key+":"), ValueStyle.Render(value))
}

// PrintSection prints a section header
func PrintSection(title string) {
	fmt.Println(HeaderStyle.Render(title))
}

// FormatDuration formats a duration nicely
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.0fms", d.Seconds()*1000)
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}

// FormatBPM renders a tempo, or "unknown" when none was found.
func FormatBPM(bpm float64) string {
	if bpm <= 0 {
		return "unknown"
	}
	return fmt.Sprintf("%.1f BPM", bpm)
}

// FormatBytes formats bytes into human-readable format
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// PrintBox prints content in a styled box
func PrintBox(content string) {
	fmt.Println(BoxStyle.Render(content))
}

// RenderResult formats an analysis result as labelled lines.
func RenderResult(r analysis.Result) string {
	var b strings.Builder

	status := SuccessStyle.Render("✓ Valid result")
	if !r.Valid {
		status = ErrorStyle.Render("✗ Low confidence")
	}
	b.WriteString(status)
	b.WriteString("\n\n")

	line := func(label, value string) {
		b.WriteString(KeyStyle.Render(fmt.Sprintf("%-14s", label)))
		b.WriteString(value)
		b.WriteString("\n")
	}

	line("Tempo:", HighlightStyle.Render(FormatBPM(r.BPM))+
		KeyStyle.Render(fmt.Sprintf("  (confidence %.2f)", r.BPMConfidence)))
	line("Key:", HighlightStyle.Render(r.KeySignature().String())+
		KeyStyle.Render(fmt.Sprintf("  (confidence %.2f)", r.KeyConfidence)))
	if r.KeyRunnerUp.Known() {
		line("Runner-up:", ValueStyle.Render(r.KeyRunnerUp.String()))
	}
	line("Stability:", ValueStyle.Render(fmt.Sprintf("%.2f", r.KeyStability)))
	line("Confidence:", ValueStyle.Render(fmt.Sprintf("%.2f (%s)", r.Confidence, r.Level)))
	line("Advice:", ValueStyle.Render(r.Recommendation))

	if len(r.Alternatives) > 0 {
		b.WriteString("\n")
		b.WriteString(KeyStyle.Render("Other profiles:"))
		b.WriteString("\n")
		for _, alt := range r.Alternatives {
			b.WriteString(fmt.Sprintf("  %s %s %s\n",
				KeyStyle.Render(fmt.Sprintf("%-10s", alt.Profile)),
				ValueStyle.Render(fmt.Sprintf("%-10s", alt.Key)),
				KeyStyle.Render(fmt.Sprintf("%.2f", alt.Confidence))))
		}
	}

	if r.Duration > 0 {
		b.WriteString("\n")
		b.WriteString(KeyStyle.Render(fmt.Sprintf("%s  %s  %d Hz  %d ch",
			r.Format,
			FormatDuration(time.Duration(r.Duration*float64(time.Second))),
			r.SourceRate, r.Channels)))
	}

	return strings.TrimRight(b.String(), "\n")
}

// PrintResult prints a titled result box.
func PrintResult(w io.Writer, title string, r analysis.Result) {
	content := ValueStyle.Render(title) + "\n\n" + RenderResult(r)
	fmt.Fprintln(w, BoxStyle.Render(content))
}
