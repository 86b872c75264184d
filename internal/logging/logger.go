package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"haul/internal/config"
)

// DaemonLogFilename is the rotating JSON log written by the daemon.
const DaemonLogFilename = "hauld.log"

// Options describes logger construction parameters.
type Options struct {
	Level   string
	Format  string
	Console io.Writer

	// FilePath enables a rotating JSON file sink when non-empty. The file
	// records debug-level output regardless of the console level so
	// troubleshooting data survives quiet consoles.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// RunID is attached to every file record when set, so log lines from
	// different daemon invocations can be told apart after rotation.
	RunID string

	Development bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	consoleLevel := new(slog.LevelVar)
	consoleLevel.Set(level)

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	addSource := opts.Development || level <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	var consoleHandler slog.Handler
	switch format {
	case "json":
		consoleHandler = newJSONHandler(console, consoleLevel, addSource)
	case "console":
		consoleHandler = newPrettyHandler(console, consoleLevel, addSource)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	handler := consoleHandler
	if path := strings.TrimSpace(opts.FilePath); path != "" {
		if err := ensureLogDir(path); err != nil {
			return nil, err
		}
		fileLevel := new(slog.LevelVar)
		fileLevel.Set(slog.LevelDebug)
		sink := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    positiveOr(opts.MaxSizeMB, 20),
			MaxBackups: positiveOr(opts.MaxBackups, 5),
			MaxAge:     positiveOr(opts.MaxAgeDays, 30),
			Compress:   opts.Compress,
		}
		fileHandler := newJSONHandler(sink, fileLevel, true)
		if runID := strings.TrimSpace(opts.RunID); runID != "" {
			fileHandler = newRunIDHandler(fileHandler, runID)
		}
		handler = newFanoutHandler(consoleHandler, fileHandler)
	}

	return slog.New(handler), nil
}

// NewFromConfig creates a logger using application config defaults. The runID
// may be empty for short-lived CLI invocations.
func NewFromConfig(cfg *config.Config, runID string) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console"})
	}

	filePath := ""
	if cfg.Paths.LogDir != "" {
		filePath = filepath.Join(cfg.Paths.LogDir, DaemonLogFilename)
	}

	return New(Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		FilePath:   filePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
		RunID:      runID,
	})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info", "":
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}

func positiveOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure log directory: %w", err)
	}
	return nil
}
