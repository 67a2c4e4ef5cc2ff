package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/contre95/soulfetch/src/features/config"
)

var formatters = map[string]log.Formatter{
	"json":   log.JSONFormatter,
	"text":   log.TextFormatter,
	"logfmt": log.LogfmtFormatter,
}

// SetupLogger builds the process logger from the logger config section.
func SetupLogger(cfg *config.Manager) *slog.Logger {
	logger := NewLogger(os.Stderr, cfg.Get().Logger)
	logger.Debug("Logger initialized", "level", cfg.Get().Logger.Level, "format", cfg.Get().Logger.Format)
	return logger
}

// NewLogger returns a slog logger backed by a charmbracelet handler writing
// to w. Unknown formats fall back to logfmt and unknown levels to info.
func NewLogger(w io.Writer, cfg config.Logger) *slog.Logger {
	if !cfg.Enabled {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	formatter, ok := formatters[cfg.Format]
	if !ok {
		formatter = log.LogfmtFormatter
	}
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	return slog.New(log.NewWithOptions(w, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "Soulfetch",
		Formatter:       formatter,
		Level:           level,
	}))
}
