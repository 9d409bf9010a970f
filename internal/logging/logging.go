// Package logging wraps log/slog with the ambient conventions used across
// this module: third-party log lines are suppressed below debug level, and
// terminal output is colorized by level.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"golang.org/x/term"
)

var defaultLogger *slog.Logger

const corePackagePrefix = "github.com/adnify/agentcore"

// ParseLevel converts a level name to a slog.Level, defaulting to Warn for
// anything unrecognized rather than erroring, since a bad config value should
// not crash the process.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// filteringHandler only lets third-party log lines through when the minimum
// level is debug, so library chatter doesn't drown out core logs in normal
// operation.
type filteringHandler struct {
	handler  slog.Handler
	minLevel slog.Level
}

func (h *filteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level < h.minLevel {
		return false
	}
	return h.handler.Enabled(ctx, level)
}

func (h *filteringHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.minLevel <= slog.LevelDebug {
		return h.handler.Handle(ctx, record)
	}
	if h.isCorePackage(record.PC) {
		return h.handler.Handle(ctx, record)
	}
	return nil
}

func (h *filteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &filteringHandler{handler: h.handler.WithAttrs(attrs), minLevel: h.minLevel}
}

func (h *filteringHandler) WithGroup(name string) slog.Handler {
	return &filteringHandler{handler: h.handler.WithGroup(name), minLevel: h.minLevel}
}

func (h *filteringHandler) isCorePackage(pc uintptr) bool {
	if pc == 0 {
		return false
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return false
	}
	file, _ := fn.FileLine(pc)
	return strings.Contains(fn.Name(), corePackagePrefix) || strings.Contains(file, "agentcore/")
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\033[31m"
	case level >= slog.LevelWarn:
		return "\033[33m"
	case level >= slog.LevelInfo:
		return "\033[36m"
	default:
		return "\033[90m"
	}
}

func isTerminal(file *os.File) bool {
	return term.IsTerminal(int(file.Fd()))
}

// coloredHandler renders level + message + attrs with ANSI color codes.
type coloredHandler struct {
	writer io.Writer
}

func (h *coloredHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *coloredHandler) Handle(_ context.Context, record slog.Record) error {
	var buf strings.Builder
	color := levelColor(record.Level)
	reset := "\033[0m"

	if !record.Time.IsZero() {
		buf.WriteString(record.Time.Format("2006/01/02 15:04:05 "))
	}
	levelStr := record.Level.String()
	if levelStr == "WARNING" {
		levelStr = "WARN"
	}
	buf.WriteString(color)
	buf.WriteString(strings.ToUpper(levelStr))
	buf.WriteString(reset)
	buf.WriteString(" ")
	buf.WriteString(record.Message)

	record.Attrs(func(a slog.Attr) bool {
		buf.WriteString(" ")
		buf.WriteString(a.Key)
		buf.WriteString("=")
		buf.WriteString(a.Value.String())
		return true
	})
	buf.WriteString("\n")
	_, err := h.writer.Write([]byte(buf.String()))
	return err
}

func (h *coloredHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *coloredHandler) WithGroup(string) slog.Handler      { return h }

// Init installs the process-wide default logger.
func Init(level slog.Level, output *os.File) {
	var base slog.Handler
	if isTerminal(output) {
		base = &coloredHandler{writer: output}
	} else {
		base = slog.NewTextHandler(output, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.LevelKey && a.Value.String() == "WARNING" {
					return slog.String(slog.LevelKey, "WARN")
				}
				return a
			},
		})
	}

	defaultLogger = slog.New(&filteringHandler{handler: base, minLevel: level})
	slog.SetDefault(defaultLogger)
}

// Logger returns the process-wide logger, initializing a sane default on
// first use so packages never need a nil check.
func Logger() *slog.Logger {
	if defaultLogger == nil {
		Init(slog.LevelWarn, os.Stderr)
	}
	return defaultLogger
}
