package slogutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"reflexion/internal/config"
)

// LoggerFactory builds the CLI and engine loggers from configuration.
// Precedence for the level: CLI flag > logging.level > warn.
type LoggerFactory struct {
	root     string
	config   *config.Config
	cliLevel *slog.Level
	stderr   io.Writer
	closers  []io.Closer
	logger   *slog.Logger
}

// NewLoggerFactory creates a new logger factory. cliLevel is nil when no
// verbosity flag was given.
func NewLoggerFactory(root string, cfg *config.Config, cliLevel *slog.Level, stderr io.Writer) *LoggerFactory {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &LoggerFactory{
		root:     root,
		config:   cfg,
		cliLevel: cliLevel,
		stderr:   stderr,
	}
}

// Logger returns the process logger: stderr in the configured format, and
// additionally logging.file when set. A log file that cannot be opened is
// reported on stderr and otherwise ignored. The logger is built once.
func (f *LoggerFactory) Logger() *slog.Logger {
	if f.logger == nil {
		f.logger = f.build()
	}
	return f.logger
}

func (f *LoggerFactory) build() *slog.Logger {
	opts := &slog.HandlerOptions{Level: f.EffectiveLevel()}
	console := newFormatHandler(f.stderr, opts, f.config.Logging.Format)

	if f.config.Logging.File == "" {
		return slog.New(console)
	}

	path := config.ResolvePath(f.root, f.config.Logging.File)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		slog.New(console).Warn("Cannot create log directory", "path", path, "error", err.Error())
		return slog.New(console)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		slog.New(console).Warn("Cannot open log file", "path", path, "error", err.Error())
		return slog.New(console)
	}
	f.closers = append(f.closers, file)

	return slog.New(NewTeeHandler(console, NewHandler(file, opts)))
}

// EngineLogger returns the process logger scoped to the analysis engine.
func (f *LoggerFactory) EngineLogger() *slog.Logger {
	return f.Logger().With("component", "engine")
}

// EffectiveLevel returns the level after applying precedence.
func (f *LoggerFactory) EffectiveLevel() slog.Level {
	if f.cliLevel != nil {
		return *f.cliLevel
	}
	if f.config.Logging.Level != "" {
		return LevelFromString(f.config.Logging.Level)
	}
	return slog.LevelWarn
}

// Close closes all open log files.
func (f *LoggerFactory) Close() error {
	var firstErr error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.closers = nil
	f.logger = nil
	return firstErr
}
