package crtc

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// Error is the uniform failure value carried by rejected promises and
// error callbacks: a free-text message plus the source location where the
// failure was detected. It is immutable once created.
type Error struct {
	message string
	file    string
	line    int
}

// ErrorCallback receives a failure value.
type ErrorCallback func(*Error)

// NewError creates an Error recording the caller's file and line.
func NewError(message string) *Error {
	return newError(message, 1)
}

// Errorf creates an Error from a format string, recording the caller's
// file and line.
func Errorf(format string, args ...any) *Error {
	return newError(fmt.Sprintf(format, args...), 1)
}

func newError(message string, skip int) *Error {
	file := "unknown"
	line := 0
	if _, f, l, ok := runtime.Caller(skip + 1); ok {
		file = filepath.Base(f)
		line = l
	}
	return &Error{message: message, file: file, line: line}
}

// Message returns the failure text.
func (e *Error) Message() string { return e.message }

// FileName returns the base name of the file where the error was created.
func (e *Error) FileName() string { return e.file }

// LineNumber returns the line where the error was created.
func (e *Error) LineNumber() int { return e.line }

// Error renders a single-line "<file>:<line>: <message>" summary.
func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.file, e.line, e.message)
}
