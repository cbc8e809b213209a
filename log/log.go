// Copyright 2026 The kiji-rpc Authors
// This file is part of kiji-rpc.
//
// kiji-rpc is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// kiji-rpc is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with kiji-rpc.  If not, see <http://www.gnu.org/licenses/>.

// Package log provides structured, leveled logging for the Avro RPC
// runtime. It mirrors the teacher's log API: package-level Trace/Debug/
// Info/Warn/Error/Crit helpers backed by a swappable root Logger, key/value
// context pairs, and a colorized terminal handler for interactive use.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Logger writes structured log records. It is implemented by *slog.Logger
// wrapped in logger below; callers only ever see this interface.
type Logger interface {
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})

	With(ctx ...interface{}) Logger
	Handler() slog.Handler
}

// levelTrace sits below slog.LevelDebug so Trace-level records can be told
// apart from Debug ones by handlers that care.
const levelTrace = slog.Level(-8)
const levelCrit = slog.Level(12)

type logger struct {
	inner *slog.Logger
}

func (l *logger) write(level slog.Level, msg string, ctx []interface{}) {
	l.inner.Log(context.Background(), level, msg, ctx...)
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(levelTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{})  { l.write(slog.LevelDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})   { l.write(slog.LevelInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})   { l.write(slog.LevelWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{})  { l.write(slog.LevelError, msg, ctx) }
func (l *logger) Crit(msg string, ctx ...interface{}) {
	l.write(levelCrit, msg, ctx)
	os.Exit(1)
}

func (l *logger) With(ctx ...interface{}) Logger {
	return &logger{inner: l.inner.With(ctx...)}
}

func (l *logger) Handler() slog.Handler { return l.inner.Handler() }

// NewLogger wraps an existing slog.Logger so it satisfies Logger.
func NewLogger(inner *slog.Logger) Logger {
	return &logger{inner: inner}
}

// New creates a freestanding Logger with the given key/value context,
// rooted at the current default handler.
func New(ctx ...interface{}) Logger {
	return root.Load().(Logger).With(ctx...)
}

var root atomic.Value

func init() {
	root.Store(NewLogger(slog.New(NewTerminalHandler(os.Stderr, slog.LevelInfo))))
}

// Root returns the current default logger.
func Root() Logger { return root.Load().(Logger) }

// SetDefault installs l as the default logger used by the package-level
// Trace/Debug/Info/Warn/Error/Crit functions.
func SetDefault(l Logger) { root.Store(l) }

func Trace(msg string, ctx ...interface{}) { Root().Trace(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { Root().Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { Root().Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { Root().Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { Root().Error(msg, ctx...) }
func Crit(msg string, ctx ...interface{})  { Root().Crit(msg, ctx...) }

// NewTerminalHandler builds a human-readable, optionally colorized handler
// for interactive terminals. Color is enabled automatically when w is a TTY.
func NewTerminalHandler(w io.Writer, level slog.Level) slog.Handler {
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	if useColor {
		w = colorable.NewColorable(w.(*os.File))
	}
	return &terminalHandler{out: w, level: level, useColor: useColor}
}

// ParseLevel maps a level name ("trace", "debug", "info", "warn", "error",
// "crit", case-insensitive) to its slog.Level, for flags like --log-level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "trace":
		return levelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "crit", "critical":
		return levelCrit, nil
	default:
		return 0, fmt.Errorf("log: unknown level %q", name)
	}
}

func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelDebug:
		return "TRACE"
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARN"
	case l < levelCrit:
		return "ERROR"
	default:
		return "CRIT"
	}
}

// levelColor returns the fatih/color attribute set used to render a level
// name on a TTY.
func levelColor(l slog.Level) *color.Color {
	switch {
	case l < slog.LevelDebug:
		return color.New(color.FgHiBlack)
	case l < slog.LevelInfo:
		return color.New(color.FgCyan)
	case l < slog.LevelWarn:
		return color.New(color.FgGreen)
	case l < slog.LevelError:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

type terminalHandler struct {
	out      io.Writer
	level    slog.Level
	useColor bool
	attrs    []slog.Attr
}

func (h *terminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *terminalHandler) Handle(_ context.Context, r slog.Record) error {
	name := levelName(r.Level)
	var line string
	if h.useColor {
		name = levelColor(r.Level).Sprintf("%-5s", name)
		line = fmt.Sprintf("%s[%s] %s", name, r.Time.Format("01-02|15:04:05.000"), r.Message)
	} else {
		line = fmt.Sprintf("%-5s[%s] %s", name, r.Time.Format("01-02|15:04:05.000"), r.Message)
	}
	for _, a := range h.attrs {
		line += fmt.Sprintf(" %s=%v", a.Key, a.Value.Any())
	}
	r.Attrs(func(a slog.Attr) bool {
		line += fmt.Sprintf(" %s=%v", a.Key, a.Value.Any())
		return true
	})
	_, err := fmt.Fprintln(h.out, line)
	return err
}

func (h *terminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	n := &terminalHandler{out: h.out, level: h.level, useColor: h.useColor}
	n.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return n
}

func (h *terminalHandler) WithGroup(_ string) slog.Handler { return h }
