// Package ux builds the status sink of the command line tool: a levelled
// slog.Logger writing info to stdout and warnings and errors to stderr,
// coloured on terminals, optionally mirrored in full to a log file.
package ux

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LevelTrace is below Debug and enables frame hex dumps.
const LevelTrace slog.Level = -8

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MultiHandler fans out records to multiple handlers.
type MultiHandler struct{ hs []slog.Handler }

func NewMultiHandler(hs ...slog.Handler) MultiHandler {
	return MultiHandler{hs: hs}
}

func (m MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.hs {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.hs {
		if h.Enabled(ctx, r.Level) {
			_ = h.Handle(ctx, r.Clone())
		}
	}
	return nil
}

func (m MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(m.hs))
	for i, h := range m.hs {
		out[i] = h.WithAttrs(attrs)
	}
	return MultiHandler{hs: out}
}

func (m MultiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(m.hs))
	for i, h := range m.hs {
		out[i] = h.WithGroup(name)
	}
	return MultiHandler{hs: out}
}

// LevelFilter delegates to an underlying handler but only passes the levels
// accepted by pass.
type LevelFilter struct {
	pass func(slog.Level) bool
	h    slog.Handler
}

func (f LevelFilter) Enabled(ctx context.Context, level slog.Level) bool {
	if !f.pass(level) {
		return false
	}
	return f.h.Enabled(ctx, level)
}

func (f LevelFilter) Handle(ctx context.Context, r slog.Record) error {
	if !f.pass(r.Level) {
		return nil
	}
	return f.h.Handle(ctx, r)
}

func (f LevelFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return LevelFilter{pass: f.pass, h: f.h.WithAttrs(attrs)}
}

func (f LevelFilter) WithGroup(name string) slog.Handler {
	return LevelFilter{pass: f.pass, h: f.h.WithGroup(name)}
}

// Options selects the sinks built by NewLogger.
type Options struct {
	Level  slog.Level
	Color  bool
	Stdout io.Writer
	Stderr io.Writer

	// File, when set, receives every record regardless of Level.
	File io.Writer
}

// NewLogger builds a logger from explicit writers.
func NewLogger(opts Options) *slog.Logger {
	var handlers []slog.Handler

	if opts.Stdout != nil {
		out := newConsoleHandler(opts.Stdout, opts.Level, opts.Color)
		handlers = append(handlers, LevelFilter{pass: func(l slog.Level) bool { return l < slog.LevelWarn }, h: out})
	}
	if opts.Stderr != nil {
		errOut := newConsoleHandler(opts.Stderr, max(opts.Level, slog.LevelWarn), opts.Color)
		handlers = append(handlers, LevelFilter{pass: func(l slog.Level) bool { return l >= slog.LevelWarn }, h: errOut})
	}
	if opts.File != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.File, &slog.HandlerOptions{
			Level:       LevelTrace,
			ReplaceAttr: replaceTraceLevel,
		}))
	}
	return slog.New(MultiHandler{hs: handlers})
}

// SetupLogger builds the process logger on stdout and stderr. A non-empty
// logFile is truncated and mirrors all levels; close the returned closers on
// exit.
func SetupLogger(logLevel, logFile string, noColor bool) (*slog.Logger, []io.Closer, error) {
	opts := Options{
		Level:  ParseLevel(logLevel),
		Color:  ColorEnabled(os.Stderr, noColor),
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}

	var closeFiles []io.Closer
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		closeFiles = append(closeFiles, f)
		opts.File = f
	}
	return NewLogger(opts), closeFiles, nil
}
