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

package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// TestSetDefaultCustomLogger mirrors the teacher's root_test.go: SetDefault
// should install exactly the Logger given, recoverable via Root.
func TestSetDefaultCustomLogger(t *testing.T) {
	type customLogger struct {
		Logger
	}
	custom := &customLogger{}
	SetDefault(custom)
	if Root() != Logger(custom) {
		t.Error("expected custom logger to be set as default")
	}
}

func TestTerminalHandlerWritesMessageAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	handler := NewTerminalHandler(&buf, slog.LevelInfo)
	l := NewLogger(slog.New(handler))

	l.Info("hello world", "key", "value")
	out := buf.String()
	if !strings.Contains(out, "hello world") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "key=value") {
		t.Errorf("expected key=value in output, got %q", out)
	}
}

func TestTerminalHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	handler := NewTerminalHandler(&buf, slog.LevelWarn)
	l := NewLogger(slog.New(handler))

	l.Debug("should not appear")
	if buf.Len() != 0 {
		t.Errorf("expected no output below handler level, got %q", buf.String())
	}
	l.Warn("should appear")
	if buf.Len() == 0 {
		t.Error("expected output at or above handler level")
	}
}

func TestWithAddsContext(t *testing.T) {
	var buf bytes.Buffer
	handler := NewTerminalHandler(&buf, slog.LevelInfo)
	base := NewLogger(slog.New(handler))
	scoped := base.With("reqID", "abc123")

	scoped.Info("scoped message")
	out := buf.String()
	if !strings.Contains(out, "reqID=abc123") {
		t.Errorf("expected scoped context in output, got %q", out)
	}
}
