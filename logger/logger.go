// Package logger holds the process-wide zerolog logger.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the process logger. It discards everything until Init is called,
// so library code and tests stay silent by default.
var Logger = zerolog.Nop()

// Init configures Logger for service at the given level. pretty selects the
// human console writer, otherwise lines are JSON. Output goes to stderr so
// that command output on stdout stays clean.
func Init(service string, level string, pretty bool) {
	InitWriter(os.Stderr, service, level, pretty)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, service string, level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	Logger = zerolog.New(w).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}

func Debug() *zerolog.Event { return Logger.Debug() }
func Info() *zerolog.Event  { return Logger.Info() }
func Warn() *zerolog.Event  { return Logger.Warn() }
func Error() *zerolog.Event { return Logger.Error() }
func Fatal() *zerolog.Event { return Logger.Fatal() }

// With returns a child logger carrying the given key/value.
func With(key, value string) zerolog.Logger {
	return Logger.With().Str(key, value).Logger()
}
