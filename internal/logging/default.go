package logging

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	debugStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	infoStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00AA00"))
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFA500"))
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A40000"))
	fieldStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// DefaultLogger writes one line per entry to an io.Writer. Level tags are
// coloured with lipgloss when colour is enabled.
type DefaultLogger struct {
	mu        *sync.Mutex
	out       io.Writer
	level     Level
	fields    Fields
	useColors bool
	now       func() time.Time
}

// NewDefaultLogger logs to stderr at info level, with colour when stderr is
// a terminal.
func NewDefaultLogger() *DefaultLogger {
	return NewLogger(os.Stderr, InfoLevel, isTerminal(os.Stderr))
}

// NewLogger logs to out. Writes are serialised so one logger may be shared
// across goroutines.
func NewLogger(out io.Writer, level Level, useColors bool) *DefaultLogger {
	return &DefaultLogger{
		mu:        &sync.Mutex{},
		out:       out,
		level:     level,
		fields:    make(Fields),
		useColors: useColors,
		now:       time.Now,
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (d *DefaultLogger) formatMessage(level Level, err error, msg string, fields ...Fields) string {
	allFields := make(Fields)
	maps.Copy(allFields, d.fields)
	for _, f := range fields {
		maps.Copy(allFields, f)
	}

	var b strings.Builder
	b.WriteString(d.now().Format("15:04:05"))
	b.WriteByte(' ')
	b.WriteString(d.tag(level))
	b.WriteByte(' ')
	b.WriteString(msg)

	if err != nil {
		fmt.Fprintf(&b, ": %v", err)
	}

	// Sorted keys keep output stable for tests and diffs
	if len(allFields) > 0 {
		keys := slices.Sorted(maps.Keys(allFields))
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%v", k, allFields[k])
		}
		joined := strings.Join(parts, " ")
		if d.useColors {
			joined = fieldStyle.Render(joined)
		}
		b.WriteByte(' ')
		b.WriteString(joined)
	}

	return b.String()
}

func (d *DefaultLogger) tag(level Level) string {
	tag := fmt.Sprintf("[%s]", level)
	if !d.useColors {
		return tag
	}
	switch level {
	case DebugLevel:
		return debugStyle.Render(tag)
	case InfoLevel:
		return infoStyle.Render(tag)
	case WarnLevel:
		return warnStyle.Render(tag)
	default:
		return errorStyle.Render(tag)
	}
}

func (d *DefaultLogger) log(level Level, err error, msg string, fields ...Fields) {
	if level < d.level {
		return
	}

	line := d.formatMessage(level, err, msg, fields...)

	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintln(d.out, line)
}

func (d *DefaultLogger) Debug(msg string, fields ...Fields) {
	d.log(DebugLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Info(msg string, fields ...Fields) {
	d.log(InfoLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Warn(msg string, fields ...Fields) {
	d.log(WarnLevel, nil, msg, fields...)
}

func (d *DefaultLogger) Error(err error, msg string, fields ...Fields) {
	d.log(ErrorLevel, err, msg, fields...)
}

func (d *DefaultLogger) WithFields(fields Fields) Logger {
	newFields := make(Fields)
	maps.Copy(newFields, d.fields)
	maps.Copy(newFields, fields)

	clone := *d
	clone.fields = newFields
	return &clone
}

func (d *DefaultLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := fieldsFromContext(ctx); ok {
		return d.WithFields(fields)
	}
	return d
}

func (d *DefaultLogger) SetLevel(level Level) {
	d.level = level
}
