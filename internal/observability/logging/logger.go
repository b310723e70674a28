// Package logging provides structured logging with zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	TimeFormat string // RFC3339, Unix, etc.

	// Folder enables size-rotated file output when non-empty.
	Folder       string
	FileName     string
	RotateSizeMB int
	MaxBackups   int
	// Stdout keeps writing to stdout in addition to the rotated file.
	Stdout bool
}

// DefaultConfig returns sensible default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:        "info",
		Format:       "json",
		TimeFormat:   time.RFC3339,
		FileName:     "luis.log",
		RotateSizeMB: 10,
	}
}

// Init initializes the global zerolog logger. The returned closer flushes and
// closes the rotated file, if any.
func Init(cfg Config) (io.Closer, error) {
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var stdout io.Writer = os.Stdout
	if cfg.Format == "console" {
		stdout = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.Kitchen,
		}
	}

	output := stdout
	var closer io.Closer = nopCloser{}
	if cfg.Folder != "" {
		if err := os.MkdirAll(cfg.Folder, 0o755); err != nil {
			return nil, fmt.Errorf("create log folder: %w", err)
		}
		name := cfg.FileName
		if name == "" {
			name = "luis.log"
		}
		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Folder, name),
			MaxSize:    max(1, cfg.RotateSizeMB), // megabytes
			MaxBackups: cfg.MaxBackups,
			Compress:   false,
		}
		closer = rotator
		output = rotator
		if cfg.Stdout {
			output = io.MultiWriter(stdout, rotator)
		}
	}

	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
	return closer, nil
}

// Logger returns a new logger with common fields for the service.
func Logger() zerolog.Logger {
	return log.Logger
}

// WithSession returns a logger with session context.
func WithSession(sessionID, provider string) zerolog.Logger {
	return log.With().
		Str("session", sessionID).
		Str("provider", provider).
		Logger()
}

// WithComponent returns a logger with a component tag.
func WithComponent(component string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Logger()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
