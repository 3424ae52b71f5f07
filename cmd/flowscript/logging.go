package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

const runIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// logOutput is where initLogger writes; tests swap it.
var logOutput io.Writer = os.Stderr

// initLogger installs the default slog logger for the given level and
// format. Both are case-insensitive.
func initLogger(level, format string) error {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q: use debug, info, warn or error", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler
	switch strings.ToLower(format) {
	case "text", "":
		h = slog.NewTextHandler(logOutput, opts)
	case "json":
		h = slog.NewJSONHandler(logOutput, opts)
	default:
		return fmt.Errorf("unknown log format %q: use text or json", format)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

// newRunID returns a short id that tags every log line of one invocation.
func newRunID() string {
	id, err := nanoid.Generate(runIDAlphabet, 8)
	if err != nil {
		return "unknown"
	}
	return id
}
