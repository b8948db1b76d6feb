// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package logging configures structured logging for the passkey server.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls the logger output.
type Config struct {
	// Level is the minimum log level: debug, info, warn, or error.
	Level string `yaml:"level" json:"level"`
	// Format is the output format: text or json.
	Format string `yaml:"format" json:"format"`
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "text",
	}
}

// New creates a slog.Logger writing to stderr per the config.
// Unknown levels fall back to info, unknown formats to text.
func New(config Config) *slog.Logger {
	return NewWithWriter(config, os.Stderr)
}

// NewWithWriter creates a slog.Logger writing to the given writer.
func NewWithWriter(config Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(config.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(config.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// ParseLevel converts a level name to a slog.Level. Unknown names
// return slog.LevelInfo.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
