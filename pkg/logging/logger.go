// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging provides structured logging for atomspace components.
//
// Loggers are built on log/slog. Output goes to stderr (text or JSON) and,
// optionally, to a daily JSON file in a log directory:
//
//	logger, err := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    LogDir:  "~/.atomspace/logs",  // Supports ~ expansion
//	    Service: "atomspace",
//	})
//	if err != nil { ... }
//	defer logger.Close()
//
//	s := store.New(registry, store.WithLogger(logger.Logger))
//
// Components never depend on this package. They accept a *slog.Logger and
// default to slog.Default(); the embedded field is what gets passed in.
//
// # Thread Safety
//
// Logger is safe for concurrent use.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents log severity levels, ordered Debug < Info < Warn < Error.
type Level int

const (
	// LevelDebug is for development troubleshooting.
	LevelDebug Level = iota

	// LevelInfo is for normal operations.
	LevelInfo

	// LevelWarn is for recoverable issues.
	LevelWarn

	// LevelError is for operation failures.
	LevelError
)

// ErrUnknownLevel is returned by ParseLevel for unrecognised names.
var ErrUnknownLevel = errors.New("unknown log level")

// String returns "DEBUG", "INFO", "WARN", "ERROR", or "UNKNOWN".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a case-insensitive level name to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config configures a Logger. The zero value logs Info and above to
// stderr as text.
type Config struct {
	// Level sets the minimum log level.
	Level Level

	// LogDir enables file logging. The file is "{Service}_{YYYY-MM-DD}.log",
	// always JSON. The directory is created with 0750 if missing.
	LogDir string

	// Service is added to every record as the "service" attribute.
	Service string

	// JSON switches console output to JSON.
	JSON bool

	// Quiet disables console output.
	Quiet bool

	// Output replaces stderr as the console destination.
	Output io.Writer
}

// Logger is a *slog.Logger that may own a log file.
type Logger struct {
	*slog.Logger

	mu   sync.Mutex
	file *os.File
}

// New creates a Logger.
//
// Inputs:
//
//	cfg - Logger configuration.
//
// Outputs:
//
//	*Logger - Ready for use. Close it to release the log file.
//	error - If LogDir is set and the directory or file cannot be opened.
func New(cfg Config) (*Logger, error) {
	opts := &slog.HandlerOptions{Level: cfg.Level.slogLevel()}
	var handlers []slog.Handler

	if !cfg.Quiet {
		out := cfg.Output
		if out == nil {
			out = os.Stderr
		}
		if cfg.JSON {
			handlers = append(handlers, slog.NewJSONHandler(out, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(out, opts))
		}
	}

	l := &Logger{}
	if cfg.LogDir != "" {
		f, err := openLogFile(cfg.LogDir, cfg.Service, time.Now())
		if err != nil {
			return nil, err
		}
		l.file = f
		handlers = append(handlers, slog.NewJSONHandler(f, opts))
	}

	var h slog.Handler
	switch len(handlers) {
	case 0:
		h = slog.NewTextHandler(io.Discard, opts)
	case 1:
		h = handlers[0]
	default:
		h = &multiHandler{handlers: handlers}
	}
	if cfg.Service != "" {
		h = h.WithAttrs([]slog.Attr{slog.String("service", cfg.Service)})
	}

	l.Logger = slog.New(h)
	return l, nil
}

// Close syncs and closes the log file, if any. Safe to call twice.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	return errors.Join(f.Sync(), f.Close())
}

func openLogFile(dir, service string, now time.Time) (*os.File, error) {
	dir = expandPath(dir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}
	if service == "" {
		service = "atomspace"
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.log", service, now.Format("2006-01-02")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

// multiHandler fans records out to several handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, r.Level) {
			errs = append(errs, hh.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		out[i] = hh.WithAttrs(attrs)
	}
	return &multiHandler{handlers: out}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		out[i] = hh.WithGroup(name)
	}
	return &multiHandler{handlers: out}
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
