package analysis

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/linuxmatters/jivebeat/internal/audio"
)

// ErrorKind classifies engine failures. The numeric codes are stable and
// exposed by the HTTP API.
type ErrorKind int

const (
	FileNotFound      ErrorKind = 1001
	UnsupportedFormat ErrorKind = 1002
	AnalysisFailed    ErrorKind = 1003
	MemoryError       ErrorKind = 1004
	NotAvailable      ErrorKind = 1005
)

func (k ErrorKind) String() string {
	switch k {
	case FileNotFound:
		return "file not found"
	case UnsupportedFormat:
		return "unsupported format"
	case AnalysisFailed:
		return "analysis failed"
	case MemoryError:
		return "memory error"
	case NotAvailable:
		return "engine not available"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Code returns the numeric error code.
func (k ErrorKind) Code() int {
	return int(k)
}

// Error is the only error type returned across the engine boundary.
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

// Sentinels for errors.Is. An *Error matches the sentinel of its kind.
var (
	ErrFileNotFound      = &Error{Kind: FileNotFound}
	ErrUnsupportedFormat = &Error{Kind: UnsupportedFormat}
	ErrAnalysisFailed    = &Error{Kind: AnalysisFailed}
	ErrMemory            = &Error{Kind: MemoryError}
	ErrNotAvailable      = &Error{Kind: NotAvailable}
)

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrFileNotFound)
// works regardless of path and cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of err, or AnalysisFailed for errors that did not
// come from the engine.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return AnalysisFailed
}

// classify maps decoder and pipeline errors onto engine error kinds.
func classify(path string, err error) *Error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}

	kind := AnalysisFailed
	switch {
	case errors.Is(err, os.ErrNotExist), errors.Is(err, fs.ErrPermission):
		kind = FileNotFound
	case errors.Is(err, audio.ErrUnsupportedFormat):
		kind = UnsupportedFormat
	case errors.Is(err, audio.ErrTooLarge):
		kind = MemoryError
	case errors.Is(err, audio.ErrDecode), errors.Is(err, audio.ErrEmpty),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = AnalysisFailed
	}
	return &Error{Kind: kind, Path: path, Err: err}
}
