package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/bloodbank-ledger/internal/config"
)

// NewLogger returns the JSON stdout logger for one binary
func NewLogger(cfg *config.Config, service string) *slog.Logger {
	return NewLoggerWithWriter(cfg, service, os.Stdout)
}

// NewLoggerWithWriter tags every record with app, env and service. Debug level also
// records the call site.
func NewLoggerWithWriter(cfg *config.Config, service string, w io.Writer) *slog.Logger {
	level := ParseLevel(cfg.Logging.Level)

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	})

	attrs := make([]any, 0, 6)
	if cfg.Application.Name != "" {
		attrs = append(attrs, "app", cfg.Application.Name, "env", cfg.Application.Env)
	}
	if service != "" {
		attrs = append(attrs, "service", service)
	}
	logger := slog.New(handler).With(attrs...)

	logger.Info("Logger initialized", "level", level.String())
	return logger
}

// ParseLevel accepts slog level names (debug, INFO, warn+2, ...); anything else is info
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}
