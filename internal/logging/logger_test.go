// plex-discord-rpc - Discord Rich Presence for Plex Media Server
// Copyright 2026 brokiem
// SPDX-License-Identifier: MIT
// https://github.com/brokiem/plex-discord-rpc

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"trace", zerolog.TraceLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf, Timestamp: true})
	defer Init(DefaultConfig())

	Info().Str("server", "office").Msg("monitoring started")

	out := buf.String()
	if !strings.Contains(out, `"server":"office"`) {
		t.Errorf("expected structured field in output, got %q", out)
	}
	if !strings.Contains(out, `"message":"monitoring started"`) {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestSetLoggerCapturesOutput(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	SetLogger(NewTestLogger(&buf))
	defer SetLogger(prev)

	Warn().Msg("cooldown active")

	if !strings.Contains(buf.String(), "cooldown active") {
		t.Errorf("expected replaced logger to capture output, got %q", buf.String())
	}
}

func TestSlogAdapterRoutesToZerolog(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	SetLogger(NewTestLogger(&buf))
	defer SetLogger(prev)

	slogger := slog.New(NewSlogHandler())
	slogger.Info("supervisor event", "service", "monitor", "attempt", int64(2))

	out := buf.String()
	if !strings.Contains(out, "supervisor event") {
		t.Errorf("expected message routed to zerolog, got %q", out)
	}
	if !strings.Contains(out, `"service":"monitor"`) {
		t.Errorf("expected slog attr as zerolog field, got %q", out)
	}
}
