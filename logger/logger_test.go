package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestInitWriter(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		pretty bool
		want   zerolog.Level
	}{
		{"info level pretty", "info", true, zerolog.InfoLevel},
		{"debug level json", "debug", false, zerolog.DebugLevel},
		{"invalid level defaults to info", "loud", false, zerolog.InfoLevel},
		{"empty level defaults to info", "", false, zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			InitWriter(&buf, "test", tt.level, tt.pretty)
			if got := zerolog.GlobalLevel(); got != tt.want {
				t.Errorf("global level = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "test", "debug", false)

	Debug().Msg("debug message")
	Info().Msg("info message")
	Warn().Msg("warn message")
	Error().Msg("error message")

	output := buf.String()
	for _, want := range []string{"debug message", "info message", "warn message", "error message", `"service":"test"`} {
		if !strings.Contains(output, want) {
			t.Errorf("output does not contain %q:\n%s", want, output)
		}
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "test", "info", false)

	l := With("instrument", "sony")
	l.Info().Msg("fetched")

	if !strings.Contains(buf.String(), `"instrument":"sony"`) {
		t.Errorf("With() field missing: %s", buf.String())
	}
}
