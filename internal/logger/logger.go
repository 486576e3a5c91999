// Package logger builds the process-wide slog logger. Records are rendered by
// charmbracelet/log, which doubles as the slog handler.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// New returns a logger writing to w at level ("debug", "info", "warn",
// "error") in format ("text", "json", "logfmt"). Unknown values fall back to
// info and text. A nil w means stderr.
func New(level, format string, w io.Writer) *slog.Logger {
	return slog.New(Handler(level, format, w))
}

// Handler returns the charmbracelet/log logger behind New.
func Handler(level, format string, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	return log.NewWithOptions(w, log.Options{
		Level:           parseLevel(level),
		Formatter:       parseFormat(format),
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05",
	})
}

// Init installs New's logger as the slog default and returns it.
func Init(level, format string, w io.Writer) *slog.Logger {
	l := New(level, format, w)
	slog.SetDefault(l)
	return l
}

func parseLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func parseFormat(format string) log.Formatter {
	switch strings.ToLower(format) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}
