// Package logger provides the leveled logger shared by every gqlblind component.
//
// It wraps a go-kit logger writing logfmt lines. Components receive a *Logger
// through their constructors; there is no package-level logger.
package logger

import (
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Logger is a leveled, concurrency-safe logger.
type Logger struct {
	base log.Logger
}

// New returns a logger writing logfmt lines to w. Verbosity 0 shows info and
// above, 1 or more also shows debug lines. A negative verbosity shows warnings
// and errors only.
func New(w io.Writer, verbosity int) *Logger {
	l := log.NewLogfmtLogger(log.NewSyncWriter(w))
	l = log.With(l, "ts", log.DefaultTimestampUTC)
	return &Logger{base: level.NewFilter(l, allow(verbosity))}
}

// NewStderr returns New(os.Stderr, verbosity).
func NewStderr(verbosity int) *Logger {
	return New(os.Stderr, verbosity)
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{base: log.NewNopLogger()}
}

func allow(verbosity int) level.Option {
	switch {
	case verbosity < 0:
		return level.AllowWarn()
	case verbosity == 0:
		return level.AllowInfo()
	default:
		return level.AllowDebug()
	}
}

// With returns a child logger that adds keyvals to every line.
func (l *Logger) With(keyvals ...any) *Logger {
	if l == nil {
		return Nop()
	}
	return &Logger{base: log.With(l.base, keyvals...)}
}

// Debug logs msg at debug level.
func (l *Logger) Debug(msg string, keyvals ...any) {
	l.log(level.Debug, msg, keyvals)
}

// Info logs msg at info level.
func (l *Logger) Info(msg string, keyvals ...any) {
	l.log(level.Info, msg, keyvals)
}

// Warn logs msg at warn level.
func (l *Logger) Warn(msg string, keyvals ...any) {
	l.log(level.Warn, msg, keyvals)
}

// Error logs msg at error level.
func (l *Logger) Error(msg string, keyvals ...any) {
	l.log(level.Error, msg, keyvals)
}

func (l *Logger) log(lvl func(log.Logger) log.Logger, msg string, keyvals []any) {
	if l == nil {
		return
	}
	_ = lvl(l.base).Log(append([]any{"msg", msg}, keyvals...)...)
}
