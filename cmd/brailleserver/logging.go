package main

import (
	"log/slog"
	"os"

	"github.com/edequartel/BrailleServer/config"
)

// logLevels covers exactly the values config.Validate accepts
var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// setupLogger builds the process logger from the validated configuration.
// Source locations only appear at debug level; a classroom deployment's info
// logs stay readable.
func setupLogger(cfg config.Config) *slog.Logger {
	level := logLevels[cfg.LogLevel]
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler).With(
		"service", appName,
		"version", Version,
		"pid", os.Getpid(),
	)
}
