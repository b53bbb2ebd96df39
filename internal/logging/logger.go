// Package logging provides leveled logging for split-nlogo.
//
// Warnings and errors go to stderr. Diagnostic records (debug and trace)
// go to stdout, so --debug output can be captured separately from the
// warnings a normal run prints.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// LevelTrace is a custom slog level below Debug for per-run detail.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace", "warn" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	case "warn":
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func handlerOptions(lvl slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Label the custom trace level
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, handlerOptions(ParseLevel(level))))
}

// NewConsoleLogger creates a leveled logger that writes records below Info
// to diag and everything else to out.
func NewConsoleLogger(level string, diag, out io.Writer) *slog.Logger {
	return slog.New(&splitHandler{
		level: ParseLevel(level),
		diag:  NewLogger(level, diag).Handler(),
		main:  NewLogger(level, out).Handler(),
	})
}

// splitHandler routes records to one of two handlers by level.
type splitHandler struct {
	level slog.Level
	diag  slog.Handler
	main  slog.Handler
}

func (h *splitHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level
}

func (h *splitHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < slog.LevelInfo {
		return h.diag.Handle(ctx, r)
	}
	return h.main.Handle(ctx, r)
}

func (h *splitHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &splitHandler{level: h.level, diag: h.diag.WithAttrs(attrs), main: h.main.WithAttrs(attrs)}
}

func (h *splitHandler) WithGroup(name string) slog.Handler {
	return &splitHandler{level: h.level, diag: h.diag.WithGroup(name), main: h.main.WithGroup(name)}
}
