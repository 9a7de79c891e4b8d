package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func fixedLogger(buf *bytes.Buffer, level Level) *DefaultLogger {
	l := NewLogger(buf, level, false)
	l.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return l
}

func TestDefaultLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, DebugLevel)

	l.Info("decoded", Fields{"samples": 44100, "format": "wav"})
	l.Error(errors.New("boom"), "analysis failed", Fields{"path": "a.wav"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	want := []string{
		"03:04:05 [INFO] decoded format=wav samples=44100",
		"03:04:05 [ERROR] analysis failed: boom path=a.wav",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), buf.String())
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestDefaultLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, WarnLevel)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "[WARN] shown") {
		t.Errorf("unexpected output: %q", buf.String())
	}

	l.SetLevel(DebugLevel)
	l.Debug("now visible")
	if !strings.Contains(buf.String(), "[DEBUG] now visible") {
		t.Errorf("debug not logged after SetLevel: %q", buf.String())
	}
}

func TestDefaultLogger_WithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := fixedLogger(&buf, InfoLevel)
	child := parent.WithFields(Fields{"task": "t1"})

	child.Info("child")
	parent.Info("parent")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if !strings.HasSuffix(lines[0], "child task=t1") {
		t.Errorf("child line = %q", lines[0])
	}
	if strings.Contains(lines[1], "task=") {
		t.Errorf("parent inherited child fields: %q", lines[1])
	}
}

func TestDefaultLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, InfoLevel)

	ctx := ContextWithFields(context.Background(), Fields{"request": "r1"})
	ctx = ContextWithFields(ctx, Fields{"file": "x.mp3"})
	l.WithContext(ctx).Info("start")

	if !strings.Contains(buf.String(), "file=x.mp3 request=r1") {
		t.Errorf("context fields missing: %q", buf.String())
	}
	if l.WithContext(context.Background()) != Logger(l) {
		t.Error("WithContext without fields should return the same logger")
	}
}

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"", InfoLevel},
		{"warning", WarnLevel},
		{"Error", ErrorLevel},
	}
	for _, tc := range testCases {
		got, err := ParseLevel(tc.in)
		if err != nil || got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNoOpLogger(t *testing.T) {
	var l Logger = &NoOpLogger{}
	l.Info("ignored")
	if l.WithFields(Fields{"a": 1}) != l {
		t.Error("NoOpLogger.WithFields should return itself")
	}
}
