package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, c := range cases {
		if got := parseLevel(c.in); got != c.want {
			t.Errorf("parseLevel(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestNewLevelGating(t *testing.T) {
	ctx := context.Background()

	if !New("debug", "text").Enabled(ctx, slog.LevelDebug) {
		t.Error("debug logger should enable debug records")
	}
	if New("error", "json").Enabled(ctx, slog.LevelInfo) {
		t.Error("error logger should suppress info records")
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := context.Background()

	if id := RequestID(ctx); id != "" {
		t.Errorf("empty context request ID = %q, want empty", id)
	}

	ctx = WithRequestID(ctx, "req-123")
	if id := RequestID(ctx); id != "req-123" {
		t.Errorf("request ID = %q, want req-123", id)
	}
}

func TestLoggerRoundTrip(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("empty context should yield the default logger")
	}

	custom := New("debug", "text")
	ctx := WithLogger(context.Background(), custom)
	if got := FromContext(ctx); got != custom {
		t.Error("context logger was not returned")
	}
}

func TestLTagsRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-456")
	ctx = WithLogger(ctx, New("info", "text"))

	logger := L(ctx)
	if logger == nil {
		t.Fatal("L returned nil")
	}
	// Must not panic and must still log at its configured level.
	logger.Info("request handled")
}