package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/linuxmatters/jivebeat/internal/analysis"
	"github.com/linuxmatters/jivebeat/internal/cli"
	"github.com/linuxmatters/jivebeat/internal/key"
)

// Number of finished files listed under the progress bar
const recentFiles = 6

// FileDone reports one finished file from a batch.
type FileDone struct {
	Done  int
	Total int
	Item  analysis.BatchResult
}

// BatchComplete signals that every file has been analysed.
type BatchComplete struct {
	Elapsed time.Duration
}

// progressQuitMsg is sent when it's time to quit after showing completion
type progressQuitMsg struct{}

// Model is the Bubbletea model for batch analysis.
type Model struct {
	progressBar progress.Model

	total  int
	done   int
	valid  int
	failed int
	recent []analysis.BatchResult

	// Detected tonics and tempi so far, for the summary charts
	tonics [12]float64
	tempi  []float64

	startTime       time.Time
	complete        *BatchComplete
	width           int
	completionDelay time.Duration
	cancel          func()
}

// NewModel creates a batch progress model for total files. cancel is called
// when the user interrupts the batch; it may be nil.
func NewModel(total int, cancel func()) *Model {
	p := progress.New(
		progress.WithGradient(string(cli.BeatViolet), string(cli.BeatAmber)),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return &Model{
		progressBar:     p,
		total:           total,
		startTime:       time.Now(),
		completionDelay: time.Second,
		cancel:          cancel,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progressBar.Width = max(10, min(msg.Width-30, 50))
		return m, nil

	case FileDone:
		m.record(msg)
		return m, nil

	case BatchComplete:
		m.complete = &msg
		return m, tea.Tick(m.completionDelay, func(time.Time) tea.Msg {
			return progressQuitMsg{}
		})

	case progressQuitMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		if m.complete != nil {
			return m, tea.Quit
		}
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m *Model) record(msg FileDone) {
	m.done = msg.Done
	if msg.Total > 0 {
		m.total = msg.Total
	}

	r := msg.Item.Result
	switch {
	case msg.Item.Err != nil:
		m.failed++
	case r.Valid:
		m.valid++
	}
	if msg.Item.Err == nil {
		if r.Key.Valid() {
			m.tonics[r.Key]++
		}
		if r.BPM > 0 {
			m.tempi = append(m.tempi, r.BPM)
		}
	}

	m.recent = append(m.recent, msg.Item)
	if len(m.recent) > recentFiles {
		m.recent = m.recent[len(m.recent)-recentFiles:]
	}
}

// View renders the UI
func (m *Model) View() string {
	if m.complete != nil {
		return m.Summary()
	}
	return m.renderProgress()
}

// Summary returns the final summary for printing after the program exits.
// It is empty until the batch completes.
func (m *Model) Summary() string {
	if m.complete == nil {
		return ""
	}
	var s strings.Builder

	s.WriteString(lipgloss.NewStyle().Bold(true).Foreground(cli.GoodGreen).Render("✓ Batch complete"))
	s.WriteString("\n\n")

	labelStyle := lipgloss.NewStyle().Foreground(cli.MutedLilac)
	valueStyle := lipgloss.NewStyle().Bold(true)
	fmt.Fprintf(&s, "  %s%s\n", labelStyle.Render(fmt.Sprintf("%-10s", "Files:")), valueStyle.Render(fmt.Sprint(m.done)))
	fmt.Fprintf(&s, "  %s%s\n", labelStyle.Render(fmt.Sprintf("%-10s", "Valid:")), valueStyle.Render(fmt.Sprint(m.valid)))
	fmt.Fprintf(&s, "  %s%s\n", labelStyle.Render(fmt.Sprintf("%-10s", "Failed:")), valueStyle.Render(fmt.Sprint(m.failed)))
	fmt.Fprintf(&s, "  %s%s\n", labelStyle.Render(fmt.Sprintf("%-10s", "Time:")), valueStyle.Render(formatDuration(m.complete.Elapsed)))

	m.renderCharts(&s)

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(cli.GoodGreen).
		Padding(1, 2).
		Render(s.String()) + "\n"
}

func (m *Model) renderProgress() string {
	var s strings.Builder

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(cli.BeatMagenta).
		Render("Jivebeat 🎵")
	s.WriteString(title)
	s.WriteString("\n")
	s.WriteString(lipgloss.NewStyle().Foreground(cli.BeatPink).Render("Analysing tempo and key"))
	s.WriteString("\n\n")

	ratio := 0.0
	if m.total > 0 {
		ratio = float64(m.done) / float64(m.total)
	}
	s.WriteString("Progress: ")
	s.WriteString(m.progressBar.ViewAs(ratio))
	fmt.Fprintf(&s, "  %3.0f%%\n\n", ratio*100)

	elapsed := time.Since(m.startTime)
	eta := "--"
	if m.done > 0 && m.done < m.total {
		remaining := time.Duration(float64(elapsed) / float64(m.done) * float64(m.total-m.done))
		eta = formatDuration(remaining)
	}
	s.WriteString(lipgloss.NewStyle().Faint(true).Render(
		fmt.Sprintf("%d/%d files  │  Elapsed: %s  │  ETA: %s", m.done, m.total, formatDuration(elapsed), eta)))
	s.WriteString("\n")

	if len(m.recent) > 0 {
		s.WriteString("\n")
		s.WriteString(lipgloss.NewStyle().Faint(true).Render("Recent:"))
		s.WriteString("\n")
		for _, item := range m.recent {
			s.WriteString("  ")
			s.WriteString(renderItem(item))
			s.WriteString("\n")
		}
	}

	m.renderCharts(&s)

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(cli.BeatViolet).
		Padding(1, 2).
		Render(s.String())
}

// renderCharts draws the tonic distribution and tempo range.
func (m *Model) renderCharts(s *strings.Builder) {
	if len(m.tempi) == 0 && m.tonics == [12]float64{} {
		return
	}

	s.WriteString("\n")
	s.WriteString(lipgloss.NewStyle().Faint(true).Render("Tonics:"))
	s.WriteString("\n  ")
	s.WriteString(renderPitchBars(m.tonics[:]))
	s.WriteString("\n  ")
	for pc := key.C; pc <= key.B; pc++ {
		s.WriteString(fmt.Sprintf("%-3s", pc))
	}
	s.WriteString("\n")

	if len(m.tempi) > 0 {
		lo, hi := m.tempi[0], m.tempi[0]
		for _, bpm := range m.tempi {
			lo, hi = min(lo, bpm), max(hi, bpm)
		}
		s.WriteString("\n")
		s.WriteString(lipgloss.NewStyle().Faint(true).Render(
			fmt.Sprintf("Tempo range: %.0f to %.0f BPM", lo, hi)))
		s.WriteString("\n")
	}
}

func renderItem(item analysis.BatchResult) string {
	name := filepath.Base(item.Path)
	if len(name) > 28 {
		name = name[:27] + "…"
	}
	name = fmt.Sprintf("%-28s", name)

	if item.Err != nil {
		return name + " " + lipgloss.NewStyle().Foreground(cli.BadRed).Render(analysis.KindOf(item.Err).String())
	}

	r := item.Result
	mark := lipgloss.NewStyle().Foreground(cli.GoodGreen).Render("✓")
	if !r.Valid {
		mark = lipgloss.NewStyle().Foreground(cli.BeatAmber).Render("?")
	}
	return fmt.Sprintf("%s %s %-10s %-9s %.2f", mark, name, cli.FormatBPM(r.BPM), r.KeySignature(), r.Confidence)
}
