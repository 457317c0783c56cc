// Package logger wraps zerolog with the call-site style the rest of the
// engine uses: short, emoji-prefixed, printf-formatted lines.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a thin handle around a zerolog.Logger. Subsystems take one by
// constructor parameter rather than reaching for a package-level global.
type Logger struct {
	z zerolog.Logger
}

// New builds a console-writer logger at the given level ("debug", "info",
// "warn", "error"). An empty level defaults to "info".
func New(level string) *Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	w := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	z := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	return &Logger{z: z}
}

// NewWithWriter builds a logger writing JSON lines to w, used by tests and
// by anything that wants to capture output instead of printing it.
func NewWithWriter(w io.Writer) *Logger {
	z := zerolog.New(w).With().Timestamp().Logger()
	return &Logger{z: z}
}

// With returns a child logger with a component field set, so log lines can
// be filtered by subsystem without threading prefixes through every call.
func (l *Logger) With(component string) *Logger {
	return &Logger{z: l.z.With().Str("component", component).Logger()}
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.z.Info().Msgf(format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.z.Warn().Msgf(format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.z.Error().Msgf(format, args...)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.z.Debug().Msgf(format, args...)
}

// Nop returns a logger that discards everything, for tests that don't care
// about log output.
func Nop() *Logger {
	return &Logger{z: zerolog.Nop()}
}
