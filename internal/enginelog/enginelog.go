// Package enginelog provides the line-oriented logger the engine uses to
// report each finished search, in the same style as the teacher's UCI front
// end. It is silent by default: a nil *Logger is a valid, no-op logger,
// so callers never need a guard before logging.
package enginelog

import (
	"io"
	"log"
)

// Logger wraps a standard library *log.Logger. The zero value is not
// usable directly; use New or Nop.
type Logger struct {
	std *log.Logger
}

// New returns a Logger writing to w with the standard library's default
// flags, matching the teacher's own log.Printf-to-stderr style.
func New(w io.Writer) *Logger {
	return &Logger{std: log.New(w, "", log.LstdFlags)}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{std: log.New(io.Discard, "", 0)}
}

// Printf logs a formatted line. Safe to call on a nil *Logger.
func (l *Logger) Printf(format string, args ...any) {
	if l == nil {
		return
	}
	l.std.Printf(format, args...)
}
