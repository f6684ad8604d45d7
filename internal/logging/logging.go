// Package logging defines the minimal structured-logging interface used
// across the project, with a slog-backed implementation.
package logging

import (
	"log/slog"
	"os"
)

// Logger is a structured logger. The variadic args are key-value pairs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

type slogLogger struct {
	l *slog.Logger
}

// New returns a Logger writing text records to stdout.
func New() Logger {
	return &slogLogger{l: slog.New(slog.NewTextHandler(os.Stdout, nil))}
}

// Wrap adapts an existing *slog.Logger.
func Wrap(l *slog.Logger) Logger {
	return &slogLogger{l: l}
}

func (s *slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

func (s *slogLogger) With(args ...any) Logger {
	return &slogLogger{l: s.l.With(args...)}
}

// Discard returns a Logger that drops everything. Useful in tests.
func Discard() Logger {
	return &slogLogger{l: slog.New(slog.DiscardHandler)}
}
