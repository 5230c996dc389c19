// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logging provides component-tagged structured logging for framescan.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Component identifies a subsystem for log filtering.
type Component string

// Component identifiers.
const (
	ComponentLink    Component = "link"
	ComponentSession Component = "session"
	ComponentCapture Component = "capture"
	ComponentProfile Component = "profile"
)

// Format specifies the output format for logging.
type Format int

// Log format options.
const (
	FormatText Format = iota // Text format (default)
	FormatJSON               // JSON format
)

var (
	// DefaultLogger is the logger used by the helpers below.
	DefaultLogger *slog.Logger

	level = new(slog.LevelVar)

	// output is where SetFormat points new handlers.
	output io.Writer = os.Stderr

	mu sync.RWMutex
)

func init() {
	level.Set(slog.LevelWarn)
	DefaultLogger = slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: level}))
}

// SetLevel sets the minimum log level.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// Level returns the current minimum log level.
func Level() slog.Level {
	return level.Level()
}

// SetLogger replaces the default logger with a custom logger.
func SetLogger(logger *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	DefaultLogger = logger
}

// New returns a logger of the given format writing to w at the shared level.
func New(w io.Writer, format Format) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SetOutput replaces the default logger with one of the given format writing
// to w. The current level is kept.
func SetOutput(w io.Writer, format Format) {
	l := New(w, format)
	mu.Lock()
	defer mu.Unlock()
	output = w
	DefaultLogger = l
}

// SetFormat switches the default logger format, keeping its writer.
func SetFormat(format Format) {
	mu.RLock()
	w := output
	mu.RUnlock()
	SetOutput(w, format)
}

// ParseLevel converts a flag value (debug, info, warn, error) to a level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return l, nil
}

// ParseFormat converts a flag value (text, json) to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("invalid log format %q (use text or json)", s)
	}
}

// Logger returns the current default logger.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return DefaultLogger
}

// LogDebug logs a debug message with the given component.
func LogDebug(component Component, msg string, args ...any) {
	Logger().Debug(msg, append([]any{"component", string(component)}, args...)...)
}

// LogInfo logs an info message with the given component.
func LogInfo(component Component, msg string, args ...any) {
	Logger().Info(msg, append([]any{"component", string(component)}, args...)...)
}

// LogWarn logs a warning message with the given component.
func LogWarn(component Component, msg string, args ...any) {
	Logger().Warn(msg, append([]any{"component", string(component)}, args...)...)
}

// LogError logs an error message with the given component.
func LogError(component Component, msg string, args ...any) {
	Logger().Error(msg, append([]any{"component", string(component)}, args...)...)
}
